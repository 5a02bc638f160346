package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/playout-core/internal/infrastructure/database"
)

// SQLiteStore keeps all collections in the documents table created by the
// embedded migrations.
type SQLiteStore struct {
	db *database.DB
}

// NewSQLiteStore wraps an open, migrated database.
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Find returns all matching documents ordered by id.
func (s *SQLiteStore) Find(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	where, args, err := compileFilter(collection, filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data FROM documents WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			id   string
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", collection, err)
		}
		docs = append(docs, Document{ID: id, Data: []byte(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", collection, err)
	}
	return docs, nil
}

// FindOne returns the first matching document by id order.
func (s *SQLiteStore) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	where, args, err := compileFilter(collection, filter)
	if err != nil {
		return Document{}, err
	}

	var (
		id   string
		data string
	)
	err = s.db.QueryRowContext(ctx,
		"SELECT id, data FROM documents WHERE "+where+" ORDER BY id LIMIT 1", args...,
	).Scan(&id, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("querying %s: %w", collection, err)
	}
	return Document{ID: id, Data: []byte(data)}, nil
}

// InsertOne adds a new document.
func (s *SQLiteStore) InsertOne(ctx context.Context, collection string, doc Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)",
		collection, doc.ID, string(doc.Data), now(),
	)
	if isUniqueConstraintError(err) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("inserting %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

// ReplaceOne replaces an existing document.
func (s *SQLiteStore) ReplaceOne(ctx context.Context, collection string, doc Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?",
		string(doc.Data), now(), collection, doc.ID,
	)
	if err != nil {
		return fmt.Errorf("replacing %s/%s: %w", collection, doc.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes all matching documents.
func (s *SQLiteStore) Remove(ctx context.Context, collection string, filter Filter) (int, error) {
	where, args, err := compileFilter(collection, filter)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("removing from %s: %w", collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("removing from %s: %w", collection, err)
	}
	return int(n), nil
}

// BulkWrite applies ops in order inside one transaction.
func (s *SQLiteStore) BulkWrite(ctx context.Context, collection string, ops []WriteOp) (BulkResult, error) {
	if err := validateOps(ops); err != nil {
		return BulkResult{}, err
	}
	if len(ops) == 0 {
		return BulkResult{}, nil
	}

	var res BulkResult
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		stamp := now()
		for _, op := range ops {
			switch op.Kind {
			case OpReplace:
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
					ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
					collection, op.Doc.ID, string(op.Doc.Data), stamp,
				); err != nil {
					return fmt.Errorf("upserting %s/%s: %w", collection, op.Doc.ID, err)
				}
				res.Upserted++
			case OpDeleteMany:
				if len(op.IDs) == 0 {
					continue
				}
				args := make([]any, 0, len(op.IDs)+1)
				args = append(args, collection)
				for _, id := range op.IDs {
					args = append(args, id)
				}
				r, err := tx.ExecContext(ctx,
					"DELETE FROM documents WHERE collection = ? AND id IN ("+placeholders(len(op.IDs))+")",
					args...,
				)
				if err != nil {
					return fmt.Errorf("deleting from %s: %w", collection, err)
				}
				if n, err := r.RowsAffected(); err == nil {
					res.Deleted += int(n)
				}
			}
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, err
	}
	return res, nil
}

// HealthCheck pings the database.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// compileFilter turns a Filter into a WHERE clause scoped to collection.
func compileFilter(collection string, filter Filter) (string, []any, error) {
	keys, err := validateFilter(filter)
	if err != nil {
		return "", nil, err
	}

	clauses := []string{"collection = ?"}
	args := []any{collection}

	for _, key := range keys {
		column := "json_extract(data, '$." + key + "')"
		if key == FieldID {
			column = "id"
		}

		switch v := filter[key].(type) {
		case nil:
			clauses = append(clauses, column+" IS NULL")
		case []string:
			if len(v) == 0 {
				clauses = append(clauses, "0")
				continue
			}
			clauses = append(clauses, column+" IN ("+placeholders(len(v))+")")
			for _, s := range v {
				args = append(args, s)
			}
		case bool:
			// json_extract yields 1/0 for JSON booleans.
			clauses = append(clauses, column+" = ?")
			args = append(args, boolToInt(v))
		default:
			clauses = append(clauses, column+" = ?")
			args = append(args, v)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
