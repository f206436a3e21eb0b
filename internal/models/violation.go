package models

import (
	"time"
)

// Status is the lifecycle state of a violation ticket.
// Transitions are driven by admin/enforcer actions in the presentation layer;
// the engine only reads the current value.
type Status string

const (
	StatusPending   Status = "pending"
	StatusIssued    Status = "issued"
	StatusPaid      Status = "paid"
	StatusDisputed  Status = "disputed"
	StatusCancelled Status = "cancelled"
)

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusIssued, StatusPaid, StatusDisputed, StatusCancelled:
		return true
	}
	return false
}

// Violation is the central ticket record stored in the violations collection.
// Nullable fields use pointers to distinguish zero values from absent ones.
//
// CapturedAt holds the raw device-reported event time exactly as received; it
// may be malformed. OccurredAt is the canonical instant resolved from it at
// the creation boundary. Records written by older device firmware may carry
// only the raw string, so readers resolve the event time through the ordered
// priority OccurredAt, CapturedAt, CreatedAt.
type Violation struct {
	ID              string  `json:"id"`
	ViolationNumber string  `json:"violationNumber"`
	EnforcerID      *string `json:"enforcerId,omitempty"`

	// Violator facts. License, plate and name double as the composite
	// fallback identity key for repeat-offender grouping.
	Name    string `json:"name"`
	License string `json:"license,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`

	// Vehicle facts.
	Plate string `json:"plate,omitempty"`
	Model string `json:"model,omitempty"`
	Color string `json:"color,omitempty"`

	// Violation facts.
	Type        string  `json:"type"`
	Description string  `json:"description,omitempty"`
	Location    string  `json:"location,omitempty"`
	FineAmount  float64 `json:"fineAmount"`

	Status Status `json:"status"`

	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	CapturedAt string     `json:"capturedAt,omitempty"`
	OccurredAt *time.Time `json:"occurredAt,omitempty"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
	PaidAt     *time.Time `json:"paidAt,omitempty"`

	// Issuance-time snapshot of repeat-offender standing. Never recomputed
	// after creation, so it can lag behind the on-demand repeat-offender
	// report once later violations arrive.
	IsRepeatOffender        bool `json:"isRepeatOffender"`
	PreviousViolationsCount int  `json:"previousViolationsCount"`
}

// IdentityKey returns the violator-matching key used for grouping: the first
// non-empty of license, plate, name. The empty string means the record has no
// resolvable identity and must be excluded from grouping.
func (v *Violation) IdentityKey() string {
	if v.License != "" {
		return v.License
	}
	if v.Plate != "" {
		return v.Plate
	}
	return v.Name
}
