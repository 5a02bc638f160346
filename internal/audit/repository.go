// Package audit persists the job log: one row per playout or ingest job
// executed by the job runner, with its outcome and duration.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome is the result class of a job.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeUserError Outcome = "user_error"
	OutcomeFailed    Outcome = "failed"
)

// timeLayout has a fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrInvalidEntry is returned when an entry is missing required fields.
var ErrInvalidEntry = errors.New("audit: invalid job log entry")

// Entry is a single job log row.
type Entry struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	StudioID   string        `json:"studio_id,omitempty"`
	PlaylistID string        `json:"playlist_id,omitempty"`
	RundownID  string        `json:"rundown_id,omitempty"`
	Outcome    Outcome       `json:"outcome"`
	ErrorCode  string        `json:"error_code,omitempty"`
	Message    string        `json:"message,omitempty"`
	Duration   time.Duration `json:"duration_ms"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Kind       string  // optional: job kind (take, activate, ...)
	PlaylistID string  // optional
	Outcome    Outcome // optional
	Limit      int     // default 50, max 200
	Offset     int
}

// ListResult contains a page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines job log persistence.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores the job log in the job_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a job log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts an entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.Kind == "" || e.Outcome == "" {
		return fmt.Errorf("%w: kind and outcome are required", ErrInvalidEntry)
	}
	if e.ID == "" {
		e.ID = "job-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO job_log (id, kind, studio_id, playlist_id, rundown_id, outcome, error_code, message, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind,
		nullableString(e.StudioID), nullableString(e.PlaylistID), nullableString(e.RundownID),
		string(e.Outcome), nullableString(e.ErrorCode), nullableString(e.Message),
		e.Duration.Milliseconds(),
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting job log entry: %w", err)
	}
	return nil
}

// nullableString maps "" to NULL for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.PlaylistID != "" {
		conditions = append(conditions, "playlist_id = ?")
		args = append(args, filter.PlaylistID)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM job_log " + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting job log: %w", err)
	}

	query := "SELECT id, kind, studio_id, playlist_id, rundown_id, outcome, error_code, message, duration_ms, created_at FROM job_log " +
		where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying job log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                                              Entry
			studioID, playlistID, rundownID, code, message sql.NullString
			outcome, createdAt                             string
			durationMS                                     int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &studioID, &playlistID, &rundownID,
			&outcome, &code, &message, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning job log entry: %w", err)
		}
		e.StudioID = studioID.String
		e.PlaylistID = playlistID.String
		e.RundownID = rundownID.String
		e.Outcome = Outcome(outcome)
		e.ErrorCode = code.String
		e.Message = message.String
		e.Duration = time.Duration(durationMS) * time.Millisecond

		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing job log timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating job log: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
