package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Identifiable is implemented by every persisted model type.
type Identifiable interface {
	DocID() string
}

// Encode marshals v into a Document.
func Encode[T Identifiable](v T) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("encoding %s: %w", v.DocID(), err)
	}
	return Document{ID: v.DocID(), Data: data}, nil
}

// Decode unmarshals a Document into T.
func Decode[T any](doc Document) (T, error) {
	var v T
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		return v, fmt.Errorf("decoding %s: %w", doc.ID, err)
	}
	return v, nil
}

// FindAs runs Find and decodes every result.
func FindAs[T any](ctx context.Context, s Store, collection string, filter Filter) ([]T, error) {
	docs, err := s.Find(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := Decode[T](d)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", collection, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// FindOneAs runs FindOne and decodes the result.
func FindOneAs[T any](ctx context.Context, s Store, collection string, filter Filter) (T, error) {
	doc, err := s.FindOne(ctx, collection, filter)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](doc)
}

// InsertAs encodes and inserts v.
func InsertAs[T Identifiable](ctx context.Context, s Store, collection string, v T) error {
	doc, err := Encode(v)
	if err != nil {
		return err
	}
	return s.InsertOne(ctx, collection, doc)
}

// ReplaceAllAs writes every value as an upserting replace in one bulk write.
func ReplaceAllAs[T Identifiable](ctx context.Context, s Store, collection string, values []T) error {
	if len(values) == 0 {
		return nil
	}
	ops := make([]WriteOp, 0, len(values))
	for _, v := range values {
		doc, err := Encode(v)
		if err != nil {
			return err
		}
		ops = append(ops, ReplaceOp(doc))
	}
	_, err := s.BulkWrite(ctx, collection, ops)
	return err
}
