package temporal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rcabrera/citewatch/internal/models"
)

// DefaultOffsetHours is the fixed UTC offset the field devices operate in.
// Device clocks carry no timezone information, so every device reading is
// reconstructed as if it occurred in this zone, never in the server's local
// zone.
const DefaultOffsetHours = 8

// Normalization failures. Callers are expected to supply their own fallback
// (typically "now") rather than propagate these.
var (
	ErrEmptyTimestamp      = errors.New("empty timestamp")
	ErrUnsupportedValue    = errors.New("unsupported timestamp value")
	ErrMalformedTimestamp  = errors.New("malformed device timestamp")
	ErrInvalidCalendarDate = errors.New("invalid calendar date")
)

// Timestamper is the accessor exposed by store-native timestamp values.
type Timestamper interface {
	Time() time.Time
}

// Normalizer converts the heterogeneous timestamp representations that reach
// the engine (native time values, ISO-8601 strings, malformed device strings)
// into one canonical instant in a fixed zone.
type Normalizer struct {
	loc *time.Location
}

// New creates a Normalizer anchored to the given fixed UTC offset.
func New(offsetHours int) *Normalizer {
	name := fmt.Sprintf("UTC%+d", offsetHours)
	return &Normalizer{loc: time.FixedZone(name, offsetHours*3600)}
}

// Location returns the fixed zone all instants are resolved into.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize converts raw into a canonical instant. It accepts a time.Time,
// a *time.Time, a store-native timestamp (anything with a Time() accessor),
// an ISO-8601 string, or a device string of the form "<date> <time>".
// Structurally invalid input returns an error; it never panics.
func (n *Normalizer) Normalize(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, ErrEmptyTimestamp
	case time.Time:
		if v.IsZero() {
			return time.Time{}, ErrEmptyTimestamp
		}
		return v.In(n.loc), nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, ErrEmptyTimestamp
		}
		return v.In(n.loc), nil
	case Timestamper:
		return n.Normalize(v.Time())
	case string:
		return n.normalizeString(v)
	default:
		return time.Time{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

func (n *Normalizer) normalizeString(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrEmptyTimestamp
	}

	// ISO-8601 strings carry their own offset and need no reconstruction.
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(n.loc), nil
		}
	}

	return n.parseDeviceString(s)
}

// parseDeviceString handles the "<date> <time>" strings sent by field
// hardware: date is M-D-Y (or M/D/Y), time is H:M:S (or H.M.S), seconds
// optional. A known firmware bug duplicates a year digit (e.g. 20255), fixed
// by truncating years above 9999 to their first four digits. Two-digit years
// mean 2000+year.
func (n *Normalizer) parseDeviceString(s string) (time.Time, error) {
	tokens := strings.Fields(s)
	if len(tokens) != 2 {
		return time.Time{}, fmt.Errorf("%w: want \"<date> <time>\", got %q", ErrMalformedTimestamp, s)
	}

	dateParts := splitAny(tokens[0], "-/")
	if len(dateParts) != 3 {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrMalformedTimestamp, tokens[0])
	}
	timeParts := splitAny(tokens[1], ":.")
	if len(timeParts) != 2 && len(timeParts) != 3 {
		return time.Time{}, fmt.Errorf("%w: bad time %q", ErrMalformedTimestamp, tokens[1])
	}

	month, err := parsePiece(dateParts[0])
	if err != nil {
		return time.Time{}, err
	}
	day, err := parsePiece(dateParts[1])
	if err != nil {
		return time.Time{}, err
	}
	year, err := parsePiece(dateParts[2])
	if err != nil {
		return time.Time{}, err
	}

	hour, err := parsePiece(timeParts[0])
	if err != nil {
		return time.Time{}, err
	}
	minute, err := parsePiece(timeParts[1])
	if err != nil {
		return time.Time{}, err
	}
	second := 0
	if len(timeParts) == 3 {
		second, err = parsePiece(timeParts[2])
		if err != nil {
			return time.Time{}, err
		}
	}

	year = correctYear(year)

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, n.loc)
	// time.Date silently normalizes out-of-range components (month 13 rolls
	// into the next year), so reject anything that did not round-trip.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidCalendarDate, s)
	}

	return t, nil
}

// correctYear repairs the duplicated-digit firmware bug and expands
// two-digit years.
func correctYear(year int) int {
	for year > 9999 {
		year /= 10
	}
	if year < 100 {
		year += 2000
	}
	return year
}

func parsePiece(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: non-numeric piece %q", ErrMalformedTimestamp, s)
	}
	return v, nil
}

// splitAny splits s on any of the given separator runes, treating them as
// interchangeable.
func splitAny(s, seps string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
}

// EventTime resolves the comparison instant for a violation using the ordered
// field priority: resolved capture instant, raw device capture string,
// creation time. The second return is false when no field yields a usable
// instant; such records are excluded from date filters and time buckets.
func (n *Normalizer) EventTime(v *models.Violation) (time.Time, bool) {
	if v.OccurredAt != nil && !v.OccurredAt.IsZero() {
		return v.OccurredAt.In(n.loc), true
	}
	if v.CapturedAt != "" {
		if t, err := n.Normalize(v.CapturedAt); err == nil {
			return t, true
		}
	}
	if !v.CreatedAt.IsZero() {
		return v.CreatedAt.In(n.loc), true
	}
	return time.Time{}, false
}

// StartOfDay truncates t to midnight in the fixed zone.
func (n *Normalizer) StartOfDay(t time.Time) time.Time {
	t = t.In(n.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, n.loc)
}

// EndOfDay returns the last representable millisecond of t's calendar day in
// the fixed zone (23:59:59.999).
func (n *Normalizer) EndOfDay(t time.Time) time.Time {
	t = t.In(n.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999_000_000, n.loc)
}

// MonthKey formats t's calendar month in the fixed zone as YYYY-MM.
func (n *Normalizer) MonthKey(t time.Time) string {
	return t.In(n.loc).Format("2006-01")
}

// DayKey formats t's calendar day in the fixed zone as YYYY-MM-DD.
func (n *Normalizer) DayKey(t time.Time) string {
	return t.In(n.loc).Format("2006-01-02")
}
