package aggregate

import (
	"math"
	"sort"

	"github.com/rcabrera/citewatch/internal/logger"
	"github.com/rcabrera/citewatch/internal/models"
	"github.com/rcabrera/citewatch/internal/temporal"
)

// RecentSampleSize bounds the per-offender violation sample included in a
// summary.
const RecentSampleSize = 5

// DefaultMinViolations is the default threshold for calling a violator a
// repeat offender. Callers may pass smaller values (down to 1, which
// degenerates to "every violator"); the engine does not reject them.
const DefaultMinViolations = 3

// OffenderSummary describes one distinct violator identity with at least the
// requested number of violations.
type OffenderSummary struct {
	IdentityKey    string  `json:"identityKey"`
	Name           string  `json:"name"`
	License        string  `json:"license,omitempty"`
	Plate          string  `json:"plate,omitempty"`
	ViolationCount int     `json:"violationCount"`
	TotalFines     float64 `json:"totalFines"`
	PaidFines      float64 `json:"paidFines"`
	PendingFines   float64 `json:"pendingFines"`

	// Most recent and earliest violations in the group, by event time.
	LastViolation  models.Violation `json:"lastViolation"`
	FirstViolation models.Violation `json:"firstViolation"`

	// RecentViolations is a bounded sample, newest first.
	RecentViolations []models.Violation `json:"recentViolations"`
}

// OffenderStats are the top-level statistics across all qualifying groups.
type OffenderStats struct {
	TotalOffenders    int     `json:"totalOffenders"`
	AverageViolations float64 `json:"averageViolations"` // one decimal place
	MaxViolations     int     `json:"maxViolations"`
}

// OffenderReport is the full repeat-offender view. It is recomputed from the
// current record set on every call, so it can disagree with the frozen
// issuance-time isRepeatOffender flag on individual violations.
type OffenderReport struct {
	Summaries []OffenderSummary `json:"summaries"`
	Stats     OffenderStats     `json:"stats"`

	// SkippedNoIdentity counts records excluded because no identity key
	// (license, plate, name) could be resolved.
	SkippedNoIdentity int `json:"skippedNoIdentity"`
}

// Grouper partitions violations by violator identity.
type Grouper struct {
	tz  *temporal.Normalizer
	log *logger.Logger
}

// NewGrouper creates a Grouper resolving event times through tz.
func NewGrouper(tz *temporal.Normalizer, log *logger.Logger) *Grouper {
	return &Grouper{tz: tz, log: log.WithComponent("grouper")}
}

// RepeatOffenders groups records by identity key and keeps groups with at
// least minCount violations. An empty input yields zero groups and zero-valued
// stats, not an error.
func (g *Grouper) RepeatOffenders(records []models.Violation, minCount int) OffenderReport {
	// minCount of 1 degenerates to "every violator"; unusual, but accepted.
	if minCount < 1 {
		minCount = 1
	}

	groups := make(map[string][]models.Violation)
	keyless := 0
	for i := range records {
		key := records[i].IdentityKey()
		if key == "" {
			keyless++
			continue
		}
		groups[key] = append(groups[key], records[i])
	}

	if keyless > 0 {
		g.log.Warn("Records excluded from offender grouping", logger.Fields{
			"excluded": keyless,
			"reason":   "no resolvable identity key",
		})
	}

	summaries := make([]OffenderSummary, 0, len(groups))
	for key, group := range groups {
		if len(group) < minCount {
			continue
		}
		summaries = append(summaries, g.summarize(key, group))
	}

	// Most prolific offenders first; identity key breaks ties so repeated
	// runs over the same snapshot are identical.
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].ViolationCount != summaries[j].ViolationCount {
			return summaries[i].ViolationCount > summaries[j].ViolationCount
		}
		return summaries[i].IdentityKey < summaries[j].IdentityKey
	})

	return OffenderReport{
		Summaries:         summaries,
		Stats:             computeStats(summaries),
		SkippedNoIdentity: keyless,
	}
}

// summarize orders one identity group newest-first and derives its financial
// totals.
func (g *Grouper) summarize(key string, group []models.Violation) OffenderSummary {
	sort.SliceStable(group, func(i, j int) bool {
		ti, _ := g.tz.EventTime(&group[i])
		tj, _ := g.tz.EventTime(&group[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return group[i].ID > group[j].ID
	})

	s := OffenderSummary{
		IdentityKey:    key,
		ViolationCount: len(group),
		LastViolation:  group[0],
		FirstViolation: group[len(group)-1],
	}

	// Violator facts come from the most recent sighting.
	s.Name = group[0].Name
	s.License = group[0].License
	s.Plate = group[0].Plate

	for i := range group {
		v := &group[i]
		s.TotalFines += v.FineAmount
		switch v.Status {
		case models.StatusPaid:
			s.PaidFines += v.FineAmount
		case models.StatusPending, models.StatusIssued:
			s.PendingFines += v.FineAmount
		}
	}

	sample := group
	if len(sample) > RecentSampleSize {
		sample = sample[:RecentSampleSize]
	}
	s.RecentViolations = append([]models.Violation(nil), sample...)

	return s
}

func computeStats(summaries []OffenderSummary) OffenderStats {
	stats := OffenderStats{TotalOffenders: len(summaries)}
	if len(summaries) == 0 {
		return stats
	}

	total := 0
	for _, s := range summaries {
		total += s.ViolationCount
		if s.ViolationCount > stats.MaxViolations {
			stats.MaxViolations = s.ViolationCount
		}
	}
	stats.AverageViolations = math.Round(float64(total)/float64(len(summaries))*10) / 10

	return stats
}
