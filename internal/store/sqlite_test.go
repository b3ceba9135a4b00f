package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"northpole/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=journal_mode(WAL)", filepath.Join(t.TempDir(), "workshop.db"))
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, EnsureSchema(db))
	return db
}

func sampleSnapshot() domain.Snapshot {
	created := time.Date(2026, 12, 1, 8, 30, 0, 0, time.UTC)
	return domain.Snapshot{
		Toys: []domain.Toy{
			{Name: "Teddy Bear", Category: "Soft", Cost: 30, Stock: 12},
			{Name: "Robot", Category: "Electronics", Cost: 50, Stock: 6},
		},
		Elves: []domain.Elf{
			{Name: "Jingle", Skills: []string{"Electronics"}, Capacity: 50, Shift: 100,
				Assigned: []domain.Job{{OrderID: "ord_1", Child: "Ava", Toy: "Robot", Cost: 50, Address: "10 Snow Rd"}}},
			{Name: "Buddy", Skills: []string{"Blocks", "Soft"}, Capacity: 120, Shift: 120},
		},
		Orders: []domain.Order{
			{ID: "ord_1", Child: "Ava", Toy: "Robot", Priority: 5, Address: "10 Snow Rd", CreatedAt: created},
			{ID: "ord_2", Child: "Mia", Toy: "Teddy Bear", Priority: 4, Address: "1 Holly Ln", Message: "thanks!", CreatedAt: created.Add(time.Minute)},
		},
		Scheduled: map[string]string{"ord_1": "Jingle"},
	}
}

func TestSQLiteRepo_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepo(openTestDB(t))
	want := sampleSnapshot()

	require.NoError(t, repo.SaveSnapshot(ctx, want))
	got, err := repo.LoadSnapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, want.Toys, got.Toys)
	assert.Equal(t, want.Elves, got.Elves, "insertion order and assigned jobs survive")
	assert.Equal(t, want.Scheduled, got.Scheduled)
	require.Len(t, got.Orders, 2)
	for i := range want.Orders {
		assert.True(t, want.Orders[i].CreatedAt.Equal(got.Orders[i].CreatedAt))
		got.Orders[i].CreatedAt = want.Orders[i].CreatedAt
	}
	assert.Equal(t, want.Orders, got.Orders)
}

func TestSQLiteRepo_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepo(openTestDB(t))

	require.NoError(t, repo.SaveSnapshot(ctx, sampleSnapshot()))
	smaller := domain.Snapshot{Toys: []domain.Toy{{Name: "Sled", Category: "Outdoor", Cost: 90, Stock: 2}}}
	require.NoError(t, repo.SaveSnapshot(ctx, smaller))

	got, err := repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, smaller.Toys, got.Toys)
	assert.Empty(t, got.Elves)
	assert.Empty(t, got.Orders)
	assert.Empty(t, got.Scheduled)
}

func TestSQLiteRepo_SaveIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepo(openTestDB(t))
	require.NoError(t, repo.SaveSnapshot(ctx, sampleSnapshot()))

	bad := sampleSnapshot()
	bad.Orders[1].Priority = 9 // rejected by the CHECK constraint
	require.Error(t, repo.SaveSnapshot(ctx, bad))

	got, err := repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Orders, 2)
	assert.Equal(t, 4, got.Orders[1].Priority)
}

func TestSQLiteRepo_EmptyLoad(t *testing.T) {
	got, err := NewSQLiteRepo(openTestDB(t)).LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Toys)
	assert.Empty(t, got.Elves)
	assert.Empty(t, got.Orders)
}

func TestSQLiteRepo_Runs(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepo(openTestDB(t))

	start := time.Date(2026, 12, 24, 20, 0, 0, 0, time.UTC)
	events := []domain.BuildEvent{
		{Elf: "Jingle", OrderID: "ord_1", Toy: "Robot", Kind: domain.EventStart, At: 0},
		{Elf: "Jingle", OrderID: "ord_1", Toy: "Robot", Kind: domain.EventFinish, At: 5},
	}
	id, err := repo.RecordRun(ctx, Run{StartedAt: start, FinishedAt: start.Add(5 * time.Second)}, events)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "run_"))

	_, err = repo.RecordRun(ctx, Run{ID: "run_late", State: RunCanceled, Error: "context canceled", StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour)}, nil)
	require.NoError(t, err)

	run, got, err := repo.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, run.State)
	assert.Equal(t, 2, run.Events)
	assert.True(t, run.StartedAt.Equal(start))
	assert.Equal(t, events, got)

	runs, err := repo.ListRecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run_late", runs[0].ID)
	assert.Equal(t, "context canceled", runs[0].Error)

	_, _, err = repo.GetRun(ctx, "run_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
