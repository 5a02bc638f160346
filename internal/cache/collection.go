package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/nerrad567/playout-core/internal/docstore"
)

// saver is implemented by every writable collection type.
type saver interface {
	Name() string
	IsModified() bool
	pendingOps() []docstore.WriteOp
	markSaved()
}

type entry struct {
	current   []byte // nil when removed
	committed []byte // nil when not in the store
}

// Collection is a writable in-memory collection.
type Collection[T docstore.Identifiable] struct {
	name    string
	entries map[string]*entry
}

// NewCollection creates a collection seeded with documents as loaded from the store.
func NewCollection[T docstore.Identifiable](name string, loaded []T) (*Collection[T], error) {
	c := &Collection[T]{
		name:    name,
		entries: make(map[string]*entry, len(loaded)),
	}
	for _, doc := range loaded {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding %s: %w", name, doc.DocID(), err)
		}
		c.entries[doc.DocID()] = &entry{current: data, committed: data}
	}
	return c, nil
}

// Name returns the store collection name.
func (c *Collection[T]) Name() string { return c.name }

// FindOne returns a copy of the document with id.
func (c *Collection[T]) FindOne(id string) (T, bool) {
	e, ok := c.entries[id]
	if !ok || e.current == nil {
		var zero T
		return zero, false
	}
	return c.decode(id, e.current), true
}

// Find returns copies of the documents matching pred ordered by id.
// A nil pred matches everything.
func (c *Collection[T]) Find(pred func(T) bool) []T {
	var out []T
	for _, id := range c.ids() {
		doc := c.decode(id, c.entries[id].current)
		if pred == nil || pred(doc) {
			out = append(out, doc)
		}
	}
	return out
}

// Insert adds a new document.
func (c *Collection[T]) Insert(doc T) error {
	id := doc.DocID()
	if e, ok := c.entries[id]; ok && e.current != nil {
		return fmt.Errorf("%w: %s/%s", ErrDocumentExists, c.name, id)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: encoding %s: %w", c.name, id, err)
	}
	if e, ok := c.entries[id]; ok {
		e.current = data
		return nil
	}
	c.entries[id] = &entry{current: data}
	return nil
}

// Replace overwrites an existing document.
func (c *Collection[T]) Replace(doc T) error {
	return c.Update(doc.DocID(), func(d *T) { *d = doc })
}

// Update applies fn to the document with id.
func (c *Collection[T]) Update(id string, fn func(*T)) error {
	e, ok := c.entries[id]
	if !ok || e.current == nil {
		return fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, c.name, id)
	}

	doc := c.decode(id, e.current)
	fn(&doc)
	if doc.DocID() != id {
		return fmt.Errorf("%w: %s/%s became %s", ErrIDChanged, c.name, id, doc.DocID())
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: encoding %s: %w", c.name, id, err)
	}
	e.current = data
	return nil
}

// UpdateAll applies fn to every document matching pred and returns how many matched.
func (c *Collection[T]) UpdateAll(pred func(T) bool, fn func(*T)) (int, error) {
	matched := c.Find(pred)
	for _, doc := range matched {
		if err := c.Update(doc.DocID(), fn); err != nil {
			return 0, err
		}
	}
	return len(matched), nil
}

// Remove deletes the document with id, reporting whether it existed.
func (c *Collection[T]) Remove(id string) bool {
	e, ok := c.entries[id]
	if !ok || e.current == nil {
		return false
	}
	if e.committed == nil {
		delete(c.entries, id)
		return true
	}
	e.current = nil
	return true
}

// RemoveAll deletes every document matching pred and returns how many.
func (c *Collection[T]) RemoveAll(pred func(T) bool) int {
	n := 0
	for _, doc := range c.Find(pred) {
		if c.Remove(doc.DocID()) {
			n++
		}
	}
	return n
}

// IsModified reports whether the collection differs from the store.
func (c *Collection[T]) IsModified() bool {
	for _, e := range c.entries {
		if !bytes.Equal(e.current, e.committed) {
			return true
		}
	}
	return false
}

// pendingOps returns the minimal bulk write for this collection.
func (c *Collection[T]) pendingOps() []docstore.WriteOp {
	var (
		ops     []docstore.WriteOp
		removed []string
	)
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		e := c.entries[id]
		switch {
		case e.current == nil && e.committed != nil:
			removed = append(removed, id)
		case e.current != nil && !bytes.Equal(e.current, e.committed):
			ops = append(ops, docstore.ReplaceOp(docstore.Document{ID: id, Data: slices.Clone(e.current)}))
		}
	}
	if len(removed) > 0 {
		ops = append(ops, docstore.DeleteManyOp(removed...))
	}
	return ops
}

func (c *Collection[T]) markSaved() {
	for id, e := range c.entries {
		if e.current == nil {
			delete(c.entries, id)
			continue
		}
		e.committed = e.current
	}
}

// ids returns the ids of live documents in order.
func (c *Collection[T]) ids() []string {
	ids := make([]string, 0, len(c.entries))
	for id, e := range c.entries {
		if e.current != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// decode panics on corrupt bytes: everything stored was produced by json.Marshal of T.
func (c *Collection[T]) decode(id string, data []byte) T {
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		panic(fmt.Sprintf("cache: %s/%s holds undecodable data: %v", c.name, id, err))
	}
	return doc
}

// Object is a single writable document.
type Object[T docstore.Identifiable] struct {
	coll *Collection[T]
	id   string
}

// NewObject wraps one loaded document.
func NewObject[T docstore.Identifiable](name string, doc T) (*Object[T], error) {
	coll, err := NewCollection(name, []T{doc})
	if err != nil {
		return nil, err
	}
	return &Object[T]{coll: coll, id: doc.DocID()}, nil
}

// Doc returns a copy of the document.
func (o *Object[T]) Doc() T {
	doc, _ := o.coll.FindOne(o.id)
	return doc
}

// Update applies fn to the document.
func (o *Object[T]) Update(fn func(*T)) error { return o.coll.Update(o.id, fn) }

// Name returns the store collection name.
func (o *Object[T]) Name() string { return o.coll.name }

// IsModified reports whether the document differs from the store.
func (o *Object[T]) IsModified() bool { return o.coll.IsModified() }

func (o *Object[T]) pendingOps() []docstore.WriteOp { return o.coll.pendingOps() }
func (o *Object[T]) markSaved()                     { o.coll.markSaved() }

// ReadOnlyCollection holds loaded templates.
type ReadOnlyCollection[T docstore.Identifiable] struct {
	name string
	docs []T
	byID map[string]int
}

// NewReadOnlyCollection wraps loaded documents, ordering them by id.
func NewReadOnlyCollection[T docstore.Identifiable](name string, docs []T) *ReadOnlyCollection[T] {
	sorted := slices.Clone(docs)
	slices.SortFunc(sorted, func(a, b T) int {
		switch {
		case a.DocID() < b.DocID():
			return -1
		case a.DocID() > b.DocID():
			return 1
		}
		return 0
	})
	byID := make(map[string]int, len(sorted))
	for i, d := range sorted {
		byID[d.DocID()] = i
	}
	return &ReadOnlyCollection[T]{name: name, docs: sorted, byID: byID}
}

// Name returns the store collection name.
func (r *ReadOnlyCollection[T]) Name() string { return r.name }

// FindOne returns the document with id.
func (r *ReadOnlyCollection[T]) FindOne(id string) (T, bool) {
	i, ok := r.byID[id]
	if !ok {
		var zero T
		return zero, false
	}
	return r.docs[i], true
}

// Find returns the documents matching pred ordered by id.
func (r *ReadOnlyCollection[T]) Find(pred func(T) bool) []T {
	var out []T
	for _, d := range r.docs {
		if pred == nil || pred(d) {
			out = append(out, d)
		}
	}
	return out
}

// All returns every document ordered by id.
func (r *ReadOnlyCollection[T]) All() []T { return slices.Clone(r.docs) }
