package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps documents in process memory.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string][]byte),
	}
}

// Find returns copies of all matching documents ordered by id.
func (m *MemoryStore) Find(_ context.Context, collection string, filter Filter) ([]Document, error) {
	if _, err := validateFilter(filter); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for id, data := range m.collections[collection] {
		ok, err := matchDocument(id, data, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, Document{ID: id, Data: slices.Clone(data)})
		}
	}
	sortDocuments(out)
	return out, nil
}

// FindOne returns the first matching document by id order.
func (m *MemoryStore) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	docs, err := m.Find(ctx, collection, filter)
	if err != nil {
		return Document{}, err
	}
	if len(docs) == 0 {
		return Document{}, ErrNotFound
	}
	return docs[0], nil
}

// InsertOne adds a new document.
func (m *MemoryStore) InsertOne(_ context.Context, collection string, doc Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.collection(collection)
	if _, exists := coll[doc.ID]; exists {
		return ErrDuplicateID
	}
	coll[doc.ID] = slices.Clone(doc.Data)
	return nil
}

// ReplaceOne replaces an existing document.
func (m *MemoryStore) ReplaceOne(_ context.Context, collection string, doc Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.collection(collection)
	if _, exists := coll[doc.ID]; !exists {
		return ErrNotFound
	}
	coll[doc.ID] = slices.Clone(doc.Data)
	return nil
}

// Remove deletes all matching documents.
func (m *MemoryStore) Remove(_ context.Context, collection string, filter Filter) (int, error) {
	if _, err := validateFilter(filter); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.collection(collection)
	removed := 0
	for id, data := range coll {
		ok, err := matchDocument(id, data, filter)
		if err != nil {
			return removed, err
		}
		if ok {
			delete(coll, id)
			removed++
		}
	}
	return removed, nil
}

// BulkWrite applies ops in order under one lock; a validation failure
// leaves the collection untouched.
func (m *MemoryStore) BulkWrite(_ context.Context, collection string, ops []WriteOp) (BulkResult, error) {
	if err := validateOps(ops); err != nil {
		return BulkResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.collection(collection)
	var res BulkResult
	for _, op := range ops {
		switch op.Kind {
		case OpReplace:
			coll[op.Doc.ID] = slices.Clone(op.Doc.Data)
			res.Upserted++
		case OpDeleteMany:
			for _, id := range op.IDs {
				if _, ok := coll[id]; ok {
					delete(coll, id)
					res.Deleted++
				}
			}
		}
	}
	return res, nil
}

// HealthCheck always succeeds.
func (m *MemoryStore) HealthCheck(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// collection returns the named collection, creating it. Caller holds mu.
func (m *MemoryStore) collection(name string) map[string][]byte {
	coll, ok := m.collections[name]
	if !ok {
		coll = make(map[string][]byte)
		m.collections[name] = coll
	}
	return coll
}

// matchDocument evaluates filter against one stored document.
func matchDocument(id string, data []byte, filter Filter) (bool, error) {
	if len(filter) == 0 {
		return true, nil
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return false, fmt.Errorf("decoding %s: %w", id, err)
	}

	for key, want := range filter {
		var got any
		if key == FieldID {
			got = id
		} else {
			got = lookupPath(body, key)
		}
		if !matchValue(got, want) {
			return false, nil
		}
	}
	return true, nil
}

func lookupPath(body map[string]any, path string) any {
	var cur any = body
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[part]
	}
	return cur
}

// matchValue compares a decoded JSON value with a filter value.
func matchValue(got, want any) bool {
	switch w := want.(type) {
	case nil:
		return got == nil
	case []string:
		s, ok := got.(string)
		return ok && slices.Contains(w, s)
	case string:
		s, ok := got.(string)
		return ok && s == w
	case bool:
		b, ok := got.(bool)
		return ok && b == w
	default:
		f, ok := got.(float64)
		return ok && f == toFloat(w)
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return math.NaN()
}
