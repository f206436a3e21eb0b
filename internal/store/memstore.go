package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rcabrera/citewatch/internal/models"
)

// MemStore is an in-memory Record Store used by tests and local development.
// Documents live as JSON objects, so equality matching behaves exactly like
// the schema-less production store: field against decoded JSON value.
type MemStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection

	// now is swappable so tests control store-assigned timestamps.
	now func() time.Time
}

type memCollection struct {
	order []string
	docs  map[string]map[string]interface{}
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		collections: make(map[string]*memCollection),
		now:         time.Now,
	}
}

// SetClock overrides the timestamp source. Test hook.
func (m *MemStore) SetClock(now func() time.Time) {
	m.now = now
}

// Violations returns the violations collection view.
func (m *MemStore) Violations() ViolationStore {
	return &memViolations{store: m}
}

// Users returns the users collection view.
func (m *MemStore) Users() UserStore {
	return &memUsers{store: m}
}

// SeedUser inserts a user directly, assigning an id when absent.
func (m *MemStore) SeedUser(u models.User) models.User {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	doc, _ := toDocument(u)
	m.put(CollectionUsers, u.ID, doc)
	return u
}

func (m *MemStore) collection(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string]map[string]interface{})}
		m.collections[name] = c
	}
	return c
}

func (m *MemStore) put(collection, id string, doc map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = doc
}

func (m *MemStore) get(collection, id string) (map[string]interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil, false
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, false
	}
	return copyDoc(doc), true
}

func copyDoc(doc map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func (m *MemStore) query(collection string, filters Filters, limit int) []map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filters = filters.Compact()
	c, ok := m.collections[collection]
	if !ok {
		return nil
	}

	var out []map[string]interface{}
	for _, id := range c.order {
		doc := c.docs[id]
		if !matches(doc, filters) {
			continue
		}
		out = append(out, copyDoc(doc))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (m *MemStore) remove(collection, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	if _, ok := c.docs[id]; !ok {
		return false
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// matches applies equality filters against a decoded JSON document. Filter
// values are normalized through JSON so a Status constant matches the string
// it was stored as.
func matches(doc map[string]interface{}, filters Filters) bool {
	for field, want := range filters {
		if !reflect.DeepEqual(doc[field], jsonNormalize(want)) {
			return false
		}
	}
	return true
}

func jsonNormalize(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func toDocument(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func fromDocument(doc map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// mergePatch overlays patch fields onto doc, dropping explicit nils.
func mergePatch(doc map[string]interface{}, patch Filters) {
	for field, value := range patch {
		if value == nil {
			delete(doc, field)
			continue
		}
		doc[field] = jsonNormalize(value)
	}
}

type memViolations struct {
	store *MemStore
}

func (s *memViolations) Create(ctx context.Context, v *models.Violation) (*models.Violation, error) {
	created := *v
	created.ID = uuid.New().String()
	created.CreatedAt = s.store.now().UTC()
	created.UpdatedAt = created.CreatedAt

	doc, err := toDocument(created)
	if err != nil {
		return nil, err
	}
	s.store.put(CollectionViolations, created.ID, doc)
	return &created, nil
}

func (s *memViolations) FindByID(ctx context.Context, id string) (*models.Violation, error) {
	doc, ok := s.store.get(CollectionViolations, id)
	if !ok {
		return nil, nil
	}
	var v models.Violation
	if err := fromDocument(doc, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *memViolations) FindOne(ctx context.Context, field string, value interface{}) (*models.Violation, error) {
	docs := s.store.query(CollectionViolations, Filters{field: value}, 1)
	if len(docs) == 0 {
		return nil, nil
	}
	var v models.Violation
	if err := fromDocument(docs[0], &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *memViolations) FindMany(ctx context.Context, filters Filters, limit int) ([]models.Violation, error) {
	docs := s.store.query(CollectionViolations, filters, limit)
	out := make([]models.Violation, 0, len(docs))
	for _, doc := range docs {
		var v models.Violation
		if err := fromDocument(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *memViolations) Update(ctx context.Context, id string, patch Filters) (*models.Violation, error) {
	doc, ok := s.store.get(CollectionViolations, id)
	if !ok {
		return nil, nil
	}

	mergePatch(doc, patch)
	doc["updatedAt"] = jsonNormalize(s.store.now().UTC())
	s.store.put(CollectionViolations, id, doc)

	var v models.Violation
	if err := fromDocument(doc, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *memViolations) Delete(ctx context.Context, id string) (bool, error) {
	return s.store.remove(CollectionViolations, id), nil
}

func (s *memViolations) Count(ctx context.Context, filters Filters) (int, error) {
	return len(s.store.query(CollectionViolations, filters, 0)), nil
}

type memUsers struct {
	store *MemStore
}

func (s *memUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	doc, ok := s.store.get(CollectionUsers, id)
	if !ok {
		return nil, nil
	}
	var u models.User
	if err := fromDocument(doc, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *memUsers) FindOne(ctx context.Context, field string, value interface{}) (*models.User, error) {
	docs := s.store.query(CollectionUsers, Filters{field: value}, 1)
	if len(docs) == 0 {
		return nil, nil
	}
	var u models.User
	if err := fromDocument(docs[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *memUsers) FindMany(ctx context.Context, filters Filters, limit int) ([]models.User, error) {
	docs := s.store.query(CollectionUsers, filters, limit)
	out := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		var u models.User
		if err := fromDocument(doc, &u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *memUsers) Count(ctx context.Context, filters Filters) (int, error) {
	return len(s.store.query(CollectionUsers, filters, 0)), nil
}
