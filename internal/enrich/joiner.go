package enrich

import (
	"context"
	"sync"

	"github.com/rcabrera/citewatch/internal/logger"
	"github.com/rcabrera/citewatch/internal/models"
	"github.com/rcabrera/citewatch/internal/store"
)

// Joiner resolves enforcer references on violation records to names and
// badges. The Record Store has no batch-get primitive, so lookups for a batch
// fan out concurrently, one goroutine per distinct id.
//
// Enrichment never fails a request: a missing user, a deleted user, or a
// faulted lookup all degrade to the Unknown placeholder.
type Joiner struct {
	users store.UserStore
	log   *logger.Logger
}

// NewJoiner creates a Joiner reading actors from users.
func NewJoiner(users store.UserStore, log *logger.Logger) *Joiner {
	return &Joiner{users: users, log: log.WithComponent("enrich")}
}

// Attach wraps each violation with its resolved enforcer name and badge.
// Records without an enforcer reference receive the placeholder uniformly, so
// consumers never branch on whether enrichment happened.
func (j *Joiner) Attach(ctx context.Context, records []models.Violation) []models.EnrichedViolation {
	enriched := make([]models.EnrichedViolation, len(records))
	for i, v := range records {
		enriched[i] = models.NewEnrichedViolation(v)
	}
	return j.Fill(ctx, enriched)
}

// Fill resolves actor placeholders in an already-wrapped batch in place and
// returns it. Used for derived views that wrap their own records.
func (j *Joiner) Fill(ctx context.Context, records []models.EnrichedViolation) []models.EnrichedViolation {
	ids := make(map[string]struct{})
	for i := range records {
		if id := records[i].EnforcerID; id != nil && *id != "" {
			ids[*id] = struct{}{}
		}
	}
	if len(ids) == 0 {
		return records
	}

	resolved := j.lookupAll(ctx, ids)

	for i := range records {
		id := records[i].EnforcerID
		if id == nil || *id == "" {
			continue
		}
		if u, ok := resolved[*id]; ok {
			records[i].EnforcerName = u.FullName
			if u.BadgeNumber != "" {
				records[i].EnforcerBadge = u.BadgeNumber
			}
		}
	}

	return records
}

// lookupAll issues one concurrent point lookup per distinct id and collects
// the users that resolved. Failed or empty lookups are logged and simply
// absent from the result.
func (j *Joiner) lookupAll(ctx context.Context, ids map[string]struct{}) map[string]models.User {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		resolved = make(map[string]models.User, len(ids))
	)

	for id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			user, err := j.users.FindByID(ctx, id)
			if err != nil {
				j.log.Warn("Enforcer lookup failed", logger.Fields{
					"enforcer_id": id,
					"error":       err.Error(),
				})
				return
			}
			if user == nil {
				j.log.Debug("Enforcer reference points at no user", logger.Fields{
					"enforcer_id": id,
				})
				return
			}

			mu.Lock()
			resolved[id] = *user
			mu.Unlock()
		}(id)
	}

	wg.Wait()
	return resolved
}
