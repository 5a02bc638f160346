package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/playout-core/internal/infrastructure/config"
	"github.com/nerrad567/playout-core/internal/infrastructure/database"
	_ "github.com/nerrad567/playout-core/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestRecord_GeneratesIDAndTime(t *testing.T) {
	repo := newTestRepo(t)
	e := &Entry{Kind: "take", PlaylistID: "pl1", Outcome: OutcomeOK, Duration: 12 * time.Millisecond}

	if err := repo.Record(context.Background(), e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Errorf("Record() did not fill ID/CreatedAt: %+v", e)
	}

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || len(res.Entries) != 1 {
		t.Fatalf("List() total=%d len=%d, want 1/1", res.Total, len(res.Entries))
	}
	got := res.Entries[0]
	if got.ID != e.ID || got.Kind != "take" || got.Duration != 12*time.Millisecond || got.StudioID != "" {
		t.Errorf("List() entry = %+v", got)
	}
}

func TestRecord_Invalid(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.Record(context.Background(), &Entry{Kind: "take"})
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Record() error = %v, want ErrInvalidEntry", err)
	}
}

func TestList_FiltersAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 18, 0, 0, 0, time.UTC)

	entries := []Entry{
		{Kind: "activate", PlaylistID: "pl1", Outcome: OutcomeOK, CreatedAt: base},
		{Kind: "take", PlaylistID: "pl1", Outcome: OutcomeOK, CreatedAt: base.Add(time.Second)},
		{Kind: "take", PlaylistID: "pl1", Outcome: OutcomeUserError, ErrorCode: "TakeNoNextPart", CreatedAt: base.Add(2 * time.Second)},
		{Kind: "take", PlaylistID: "pl2", Outcome: OutcomeFailed, Message: "store unreachable", CreatedAt: base.Add(3 * time.Second)},
	}
	for i := range entries {
		if err := repo.Record(ctx, &entries[i]); err != nil {
			t.Fatalf("Record(%d) error = %v", i, err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
	}{
		{"all newest first", Filter{}, 4, "take"},
		{"by playlist", Filter{PlaylistID: "pl1"}, 3, "take"},
		{"by kind", Filter{Kind: "activate"}, 1, "activate"},
		{"by outcome", Filter{Outcome: OutcomeUserError}, 1, "take"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
			if len(res.Entries) == 0 || res.Entries[0].Kind != tt.wantFirst {
				t.Errorf("first entry = %+v, want kind %q", res.Entries, tt.wantFirst)
			}
		})
	}

	res, err := repo.List(ctx, Filter{Outcome: OutcomeUserError})
	if err != nil {
		t.Fatal(err)
	}
	if res.Entries[0].ErrorCode != "TakeNoNextPart" {
		t.Errorf("ErrorCode = %q", res.Entries[0].ErrorCode)
	}

	page, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 4 || len(page.Entries) != 2 || !page.Entries[1].CreatedAt.Equal(base) {
		t.Errorf("page = %+v", page)
	}
}
