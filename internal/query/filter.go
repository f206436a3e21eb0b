package query

import (
	"strings"
	"time"

	"github.com/rcabrera/citewatch/internal/logger"
	"github.com/rcabrera/citewatch/internal/models"
	"github.com/rcabrera/citewatch/internal/temporal"
)

// DefaultSearchFields is the field set a contains-predicate matches against
// when the caller does not narrow it.
var DefaultSearchFields = []string{"name", "plate", "license", "violationNumber", "location", "type"}

// Predicates describes the in-memory conditions applied to a candidate set
// after the equality portion has already been pushed to the Record Store.
// All predicates are ANDed; OR is deliberately unsupported (a constraint
// carried over from the admin console's query surface).
type Predicates struct {
	// Search is a case-insensitive contains term. A record matches when any
	// of SearchFields contains it.
	Search       string
	SearchFields []string

	// DateFrom/DateTo bound an inclusive date range. Bounds are normalized to
	// start-of-day and end-of-day before comparison. A record whose event
	// time cannot be resolved never matches a date-range predicate.
	DateFrom *time.Time
	DateTo   *time.Time

	// RepeatOffender filters on the issuance-time repeat-offender flag.
	RepeatOffender *bool
}

// empty reports whether no predicate is set, letting Apply short-circuit.
func (p Predicates) empty() bool {
	return p.Search == "" && p.DateFrom == nil && p.DateTo == nil && p.RepeatOffender == nil
}

// Filter narrows in-memory record lists by the non-equality predicates the
// Record Store cannot express.
type Filter struct {
	tz  *temporal.Normalizer
	log *logger.Logger
}

// NewFilter creates a Filter resolving date fields through tz.
func NewFilter(tz *temporal.Normalizer, log *logger.Logger) *Filter {
	return &Filter{tz: tz, log: log}
}

// Apply returns the records matching every set predicate. Records that a
// date-range predicate cannot evaluate (no resolvable event time) are
// dropped and counted for diagnostics.
func (f *Filter) Apply(records []models.Violation, p Predicates) []models.Violation {
	if p.empty() {
		return records
	}

	var from, to time.Time
	if p.DateFrom != nil {
		from = f.tz.StartOfDay(*p.DateFrom)
	}
	if p.DateTo != nil {
		to = f.tz.EndOfDay(*p.DateTo)
	}

	term := strings.ToLower(strings.TrimSpace(p.Search))
	fields := p.SearchFields
	if len(fields) == 0 {
		fields = DefaultSearchFields
	}

	matched := make([]models.Violation, 0, len(records))
	unresolvable := 0

	for i := range records {
		v := &records[i]

		if term != "" && !containsAny(v, fields, term) {
			continue
		}

		if p.RepeatOffender != nil && v.IsRepeatOffender != *p.RepeatOffender {
			continue
		}

		if p.DateFrom != nil || p.DateTo != nil {
			at, ok := f.tz.EventTime(v)
			if !ok {
				unresolvable++
				continue
			}
			if p.DateFrom != nil && at.Before(from) {
				continue
			}
			if p.DateTo != nil && at.After(to) {
				continue
			}
		}

		matched = append(matched, *v)
	}

	if unresolvable > 0 {
		f.log.Warn("Records excluded from date filter", logger.Fields{
			"excluded": unresolvable,
			"reason":   "unresolvable event time",
		})
	}

	return matched
}

// containsAny reports whether any of the named fields contains term,
// case-insensitively.
func containsAny(v *models.Violation, fields []string, term string) bool {
	for _, field := range fields {
		if strings.Contains(strings.ToLower(fieldValue(v, field)), term) {
			return true
		}
	}
	return false
}

// fieldValue maps a searchable field name to its value. Unknown names yield
// the empty string and therefore never match.
func fieldValue(v *models.Violation, field string) string {
	switch field {
	case "name":
		return v.Name
	case "plate":
		return v.Plate
	case "license":
		return v.License
	case "violationNumber":
		return v.ViolationNumber
	case "location":
		return v.Location
	case "type":
		return v.Type
	case "phone":
		return v.Phone
	case "address":
		return v.Address
	case "model":
		return v.Model
	case "color":
		return v.Color
	default:
		return ""
	}
}
