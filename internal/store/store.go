// Package store defines the Record Store contract the engine is written
// against: a schema-less document store queryable only by equality. Anything
// resembling ordering, ranges, joins or pagination is synthesized above this
// contract, never inside it.
package store

import (
	"context"

	"github.com/rcabrera/citewatch/internal/models"
)

// Collection names used by the engine.
const (
	CollectionViolations = "violations"
	CollectionUsers      = "users"
)

// Filters is a set of field/value equality conditions. The store matches
// documents whose fields equal every filter value; that is the only query
// shape it supports.
type Filters map[string]interface{}

// Compact drops filters whose value is nil or an empty string. Undefined
// predicates are removed rather than matched literally, so a blank search
// form field never filters anything out.
func (f Filters) Compact() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// ViolationStore is the violations collection. Find methods return (nil, nil)
// when nothing matches; errors mean the store itself failed.
type ViolationStore interface {
	// Create assigns an id and creation/update timestamps and persists v.
	Create(ctx context.Context, v *models.Violation) (*models.Violation, error)

	// FindByID returns the violation with the given id, or (nil, nil).
	FindByID(ctx context.Context, id string) (*models.Violation, error)

	// FindOne returns the first violation whose field equals value, or
	// (nil, nil).
	FindOne(ctx context.Context, field string, value interface{}) (*models.Violation, error)

	// FindMany returns violations matching every equality filter, up to
	// limit (0 means no limit). Order is unspecified.
	FindMany(ctx context.Context, filters Filters, limit int) ([]models.Violation, error)

	// Update merges patch into the stored document and refreshes the update
	// timestamp. Returns (nil, nil) when the id does not exist.
	Update(ctx context.Context, id string, patch Filters) (*models.Violation, error)

	// Delete removes the violation; false means it did not exist.
	Delete(ctx context.Context, id string) (bool, error)

	// Count returns the number of violations matching every equality filter.
	Count(ctx context.Context, filters Filters) (int, error)
}

// UserStore is the users collection. The engine only reads it.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindOne(ctx context.Context, field string, value interface{}) (*models.User, error)
	FindMany(ctx context.Context, filters Filters, limit int) ([]models.User, error)
	Count(ctx context.Context, filters Filters) (int, error)
}
