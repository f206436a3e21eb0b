package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rcabrera/citewatch/internal/database"
	"github.com/rcabrera/citewatch/internal/models"
)

// Postgres is the production Record Store: one JSONB documents table keyed by
// (collection, id). Equality filters compile to a containment match, which is
// the only query shape exposed; everything richer happens in the engine after
// FindMany returns.
type Postgres struct {
	db  *database.Database
	now func() time.Time
}

// NewPostgres creates a Postgres Record Store over an existing pool.
func NewPostgres(db *database.Database) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// EnsureSchema creates the documents table and its containment index.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS documents (
			collection text NOT NULL,
			id         uuid NOT NULL,
			data       jsonb NOT NULL,
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS documents_data_gin
			ON documents USING gin (data jsonb_path_ops);
	`
	if _, err := p.db.Pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure document schema: %w", err)
	}
	return nil
}

// Violations returns the violations collection view.
func (p *Postgres) Violations() ViolationStore {
	return &pgViolations{pg: p}
}

// Users returns the users collection view.
func (p *Postgres) Users() UserStore {
	return &pgUsers{pg: p}
}

func (p *Postgres) insert(ctx context.Context, collection, id string, data []byte) error {
	const q = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`
	if _, err := p.db.Pool.Exec(ctx, q, collection, id, data); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return nil
}

func (p *Postgres) getByID(ctx context.Context, collection, id string) ([]byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		// Malformed ids cannot match any document; not a store failure.
		return nil, nil
	}

	const q = `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	var data []byte
	err := p.db.Pool.QueryRow(ctx, q, collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (p *Postgres) queryMany(ctx context.Context, collection string, filters Filters, limit int) ([][]byte, error) {
	q := `SELECT data FROM documents WHERE collection = $1 AND data @> $2`
	args := []interface{}{collection, filterJSON(filters)}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := p.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", collection, err)
		}
		out = append(out, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s documents: %w", collection, err)
	}
	return out, nil
}

func (p *Postgres) patch(ctx context.Context, collection, id string, patch Filters) ([]byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	merged := make(map[string]interface{}, len(patch)+1)
	for k, v := range patch {
		merged[k] = v
	}
	merged["updatedAt"] = p.now().UTC()
	patchJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}

	const q = `
		UPDATE documents SET data = data || $3
		WHERE collection = $1 AND id = $2
		RETURNING data
	`
	var data []byte
	err = p.db.Pool.QueryRow(ctx, q, collection, id, patchJSON).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (p *Postgres) remove(ctx context.Context, collection, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	const q = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	tag, err := p.db.Pool.Exec(ctx, q, collection, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) count(ctx context.Context, collection string, filters Filters) (int, error) {
	const q = `SELECT count(*) FROM documents WHERE collection = $1 AND data @> $2`
	var n int
	if err := p.db.Pool.QueryRow(ctx, q, collection, filterJSON(filters)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

// filterJSON renders compacted equality filters as the JSONB containment
// argument. An empty filter set becomes {}, which contains-matches every
// document.
func filterJSON(filters Filters) []byte {
	compacted := filters.Compact()
	data, err := json.Marshal(compacted)
	if err != nil {
		return []byte(`{}`)
	}
	return data
}

type pgViolations struct {
	pg *Postgres
}

func (s *pgViolations) Create(ctx context.Context, v *models.Violation) (*models.Violation, error) {
	created := *v
	created.ID = uuid.New().String()
	created.CreatedAt = s.pg.now().UTC()
	created.UpdatedAt = created.CreatedAt

	data, err := json.Marshal(created)
	if err != nil {
		return nil, fmt.Errorf("failed to encode violation: %w", err)
	}
	if err := s.pg.insert(ctx, CollectionViolations, created.ID, data); err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *pgViolations) FindByID(ctx context.Context, id string) (*models.Violation, error) {
	return decodeViolation(s.pg.getByID(ctx, CollectionViolations, id))
}

func (s *pgViolations) FindOne(ctx context.Context, field string, value interface{}) (*models.Violation, error) {
	docs, err := s.pg.queryMany(ctx, CollectionViolations, Filters{field: value}, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeViolation(docs[0], nil)
}

func (s *pgViolations) FindMany(ctx context.Context, filters Filters, limit int) ([]models.Violation, error) {
	docs, err := s.pg.queryMany(ctx, CollectionViolations, filters, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Violation, 0, len(docs))
	for _, doc := range docs {
		v, err := decodeViolation(doc, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (s *pgViolations) Update(ctx context.Context, id string, patch Filters) (*models.Violation, error) {
	return decodeViolation(s.pg.patch(ctx, CollectionViolations, id, patch))
}

func (s *pgViolations) Delete(ctx context.Context, id string) (bool, error) {
	return s.pg.remove(ctx, CollectionViolations, id)
}

func (s *pgViolations) Count(ctx context.Context, filters Filters) (int, error) {
	return s.pg.count(ctx, CollectionViolations, filters)
}

func decodeViolation(data []byte, err error) (*models.Violation, error) {
	if err != nil || data == nil {
		return nil, err
	}
	var v models.Violation
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode violation: %w", err)
	}
	return &v, nil
}

type pgUsers struct {
	pg *Postgres
}

func (s *pgUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	return decodeUser(s.pg.getByID(ctx, CollectionUsers, id))
}

func (s *pgUsers) FindOne(ctx context.Context, field string, value interface{}) (*models.User, error) {
	docs, err := s.pg.queryMany(ctx, CollectionUsers, Filters{field: value}, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeUser(docs[0], nil)
}

func (s *pgUsers) FindMany(ctx context.Context, filters Filters, limit int) ([]models.User, error) {
	docs, err := s.pg.queryMany(ctx, CollectionUsers, filters, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		u, err := decodeUser(doc, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

func (s *pgUsers) Count(ctx context.Context, filters Filters) (int, error) {
	return s.pg.count(ctx, CollectionUsers, filters)
}

func decodeUser(data []byte, err error) (*models.User, error) {
	if err != nil || data == nil {
		return nil, err
	}
	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &u, nil
}
