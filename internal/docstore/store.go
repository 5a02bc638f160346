package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
)

// FieldID selects on the document id rather than a JSON field.
const FieldID = "_id"

// Document is one stored document: its id and JSON object body.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Filter is a conjunction of field equality tests.
//
// Keys are JSON field names (dotted for nested fields) or FieldID.
// Values may be string, bool, any integer or float kind, nil (field absent
// or null) or []string (field equals one of the values).
type Filter map[string]any

// ByID selects a single document by id.
func ByID(id string) Filter {
	return Filter{FieldID: id}
}

// ByIDs selects the documents whose id is in ids.
func ByIDs(ids ...string) Filter {
	return Filter{FieldID: ids}
}

// OpKind distinguishes the two bulk write operations.
type OpKind int

const (
	// OpReplace replaces the whole document, inserting it when missing.
	OpReplace OpKind = iota + 1
	// OpDeleteMany removes every listed id.
	OpDeleteMany
)

// WriteOp is one entry of a bulk write.
type WriteOp struct {
	Kind OpKind
	Doc  Document // OpReplace
	IDs  []string // OpDeleteMany
}

// ReplaceOp builds an upserting replace.
func ReplaceOp(doc Document) WriteOp {
	return WriteOp{Kind: OpReplace, Doc: doc}
}

// DeleteManyOp builds a delete of the given ids.
func DeleteManyOp(ids ...string) WriteOp {
	return WriteOp{Kind: OpDeleteMany, IDs: ids}
}

// BulkResult summarises an applied bulk write.
type BulkResult struct {
	Upserted int
	Deleted  int
}

// Store is the document store contract shared by all backends.
//
// Find results are ordered by id so callers see a stable order regardless
// of backend.
type Store interface {
	Find(ctx context.Context, collection string, filter Filter) ([]Document, error)
	FindOne(ctx context.Context, collection string, filter Filter) (Document, error)
	InsertOne(ctx context.Context, collection string, doc Document) error
	ReplaceOne(ctx context.Context, collection string, doc Document) error
	Remove(ctx context.Context, collection string, filter Filter) (int, error)
	BulkWrite(ctx context.Context, collection string, ops []WriteOp) (BulkResult, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// validateFilter checks field names and value kinds, returning the keys sorted.
func validateFilter(filter Filter) ([]string, error) {
	keys := make([]string, 0, len(filter))
	for k, v := range filter {
		if k != FieldID && !fieldPattern.MatchString(k) {
			return nil, fmt.Errorf("%w: field %q", ErrInvalidFilter, k)
		}
		switch v.(type) {
		case nil, string, bool, []string,
			int, int32, int64, float64:
		default:
			return nil, fmt.Errorf("%w: unsupported value %T for %q", ErrInvalidFilter, v, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func validateDocument(doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDocument)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(doc.Data, &obj); err != nil {
		return fmt.Errorf("%w: %s is not a JSON object: %v", ErrInvalidDocument, doc.ID, err)
	}
	return nil
}

func validateOps(ops []WriteOp) error {
	for _, op := range ops {
		switch op.Kind {
		case OpReplace:
			if err := validateDocument(op.Doc); err != nil {
				return err
			}
		case OpDeleteMany:
		default:
			return fmt.Errorf("docstore: unknown write op kind %d", op.Kind)
		}
	}
	return nil
}

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
