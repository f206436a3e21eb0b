package models

// UnknownActor is the placeholder used when an enforcer reference is absent,
// points at a deleted user, or the lookup failed. Every enriched record gets
// a value, so consumers never branch on whether enrichment succeeded.
const UnknownActor = "Unknown"

// EnrichedViolation is a violation with the enforcer reference resolved to a
// human-readable name and badge.
type EnrichedViolation struct {
	Violation
	EnforcerName  string `json:"enforcerName"`
	EnforcerBadge string `json:"enforcerBadge"`
}

// NewEnrichedViolation wraps v with placeholder actor values; the Enrichment
// Joiner overwrites them when a lookup resolves.
func NewEnrichedViolation(v Violation) EnrichedViolation {
	return EnrichedViolation{
		Violation:     v,
		EnforcerName:  UnknownActor,
		EnforcerBadge: UnknownActor,
	}
}
