package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"northpole/internal/domain"
)

var ErrNotFound = errors.New("not found")

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS toys (
  name TEXT PRIMARY KEY,
  seq INTEGER NOT NULL,
  category TEXT NOT NULL,
  build_time INTEGER NOT NULL CHECK(build_time > 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK(stock >= 0)
);
CREATE TABLE IF NOT EXISTS elves (
  name TEXT PRIMARY KEY,
  seq INTEGER NOT NULL,
  skills TEXT NOT NULL,
  capacity INTEGER NOT NULL CHECK(capacity >= 0),
  shift_capacity INTEGER NOT NULL,
  assigned TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  seq INTEGER NOT NULL,
  child TEXT NOT NULL,
  toy TEXT NOT NULL,
  priority INTEGER NOT NULL CHECK(priority BETWEEN 1 AND 5),
  address TEXT NOT NULL,
  message TEXT NOT NULL DEFAULT '',
  scheduled_elf TEXT,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS build_runs (
  id TEXT PRIMARY KEY,
  state TEXT NOT NULL CHECK(state IN ('succeeded','canceled','failed')),
  error TEXT,
  events INTEGER NOT NULL DEFAULT 0,
  started_at DATETIME NOT NULL,
  finished_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS build_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL,
  elf TEXT NOT NULL,
  order_id TEXT NOT NULL,
  toy TEXT NOT NULL,
  kind TEXT NOT NULL CHECK(kind IN ('start','finish')),
  at REAL NOT NULL,
  FOREIGN KEY(run_id) REFERENCES build_runs(id)
);
CREATE INDEX IF NOT EXISTS idx_build_events_run ON build_events(run_id, id);
`
	_, err := db.Exec(schema)
	return err
}

type Repository interface {
	SaveSnapshot(ctx context.Context, s domain.Snapshot) error
	LoadSnapshot(ctx context.Context) (domain.Snapshot, error)

	RecordRun(ctx context.Context, r Run, events []domain.BuildEvent) (string, error)
	GetRun(ctx context.Context, id string) (Run, []domain.BuildEvent, error)
	ListRecentRuns(ctx context.Context, limit int) ([]Run, error)
}

const (
	RunSucceeded = "succeeded"
	RunCanceled  = "canceled"
	RunFailed    = "failed"
)

type Run struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	Error      string    `json:"error,omitempty"`
	Events     int       `json:"events"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type sqliteRepo struct{ db *sql.DB }

func NewSQLiteRepo(db *sql.DB) Repository { return &sqliteRepo{db: db} }

// SaveSnapshot replaces the stored workshop with s in one transaction.
func (r *sqliteRepo) SaveSnapshot(ctx context.Context, s domain.Snapshot) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM orders; DELETE FROM elves; DELETE FROM toys;`); err != nil {
		return fmt.Errorf("clear workshop: %w", err)
	}
	for i, t := range s.Toys {
		if _, err = tx.ExecContext(ctx, `INSERT INTO toys (name,seq,category,build_time,stock) VALUES (?,?,?,?,?)`,
			t.Name, i, t.Category, t.Cost, t.Stock); err != nil {
			return fmt.Errorf("insert toy %q: %w", t.Name, err)
		}
	}
	for i, e := range s.Elves {
		skills, jerr := json.Marshal(e.Skills)
		if jerr != nil {
			return jerr
		}
		assigned := []byte("[]")
		if len(e.Assigned) > 0 {
			if assigned, err = json.Marshal(e.Assigned); err != nil {
				return err
			}
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO elves (name,seq,skills,capacity,shift_capacity,assigned) VALUES (?,?,?,?,?,?)`,
			e.Name, i, string(skills), e.Capacity, e.Shift, string(assigned)); err != nil {
			return fmt.Errorf("insert elf %q: %w", e.Name, err)
		}
	}
	for i, o := range s.Orders {
		var elf sql.NullString
		if name, ok := s.Scheduled[o.ID]; ok {
			elf = sql.NullString{String: name, Valid: true}
		}
		if _, err = tx.ExecContext(ctx, `
INSERT INTO orders (id,seq,child,toy,priority,address,message,scheduled_elf,created_at)
VALUES (?,?,?,?,?,?,?,?,?)`, o.ID, i, o.Child, o.Toy, o.Priority, o.Address, o.Message, elf, o.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("insert order %q: %w", o.ID, err)
		}
	}
	return tx.Commit()
}

func (r *sqliteRepo) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	s := domain.Snapshot{Toys: []domain.Toy{}, Elves: []domain.Elf{}, Orders: []domain.Order{}, Scheduled: map[string]string{}}

	rows, err := r.db.QueryContext(ctx, `SELECT name,category,build_time,stock FROM toys ORDER BY seq`)
	if err != nil {
		return s, err
	}
	for rows.Next() {
		var t domain.Toy
		if err := rows.Scan(&t.Name, &t.Category, &t.Cost, &t.Stock); err != nil {
			rows.Close()
			return s, err
		}
		s.Toys = append(s.Toys, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return s, err
	}

	rows, err = r.db.QueryContext(ctx, `SELECT name,skills,capacity,shift_capacity,assigned FROM elves ORDER BY seq`)
	if err != nil {
		return s, err
	}
	for rows.Next() {
		var e domain.Elf
		var skills, assigned string
		if err := rows.Scan(&e.Name, &skills, &e.Capacity, &e.Shift, &assigned); err != nil {
			rows.Close()
			return s, err
		}
		if err := json.Unmarshal([]byte(skills), &e.Skills); err != nil {
			rows.Close()
			return s, fmt.Errorf("elf %q skills: %w", e.Name, err)
		}
		if err := json.Unmarshal([]byte(assigned), &e.Assigned); err != nil {
			rows.Close()
			return s, fmt.Errorf("elf %q assigned: %w", e.Name, err)
		}
		if len(e.Assigned) == 0 {
			e.Assigned = nil
		}
		s.Elves = append(s.Elves, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return s, err
	}

	rows, err = r.db.QueryContext(ctx, `
SELECT id,child,toy,priority,address,message,scheduled_elf,created_at FROM orders ORDER BY seq`)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var o domain.Order
		var elf sql.NullString
		if err := rows.Scan(&o.ID, &o.Child, &o.Toy, &o.Priority, &o.Address, &o.Message, &elf, &o.CreatedAt); err != nil {
			return s, err
		}
		o.CreatedAt = o.CreatedAt.UTC()
		if elf.Valid {
			s.Scheduled[o.ID] = elf.String
		}
		s.Orders = append(s.Orders, o)
	}
	return s, rows.Err()
}

func (r *sqliteRepo) RecordRun(ctx context.Context, run Run, events []domain.BuildEvent) (id string, err error) {
	id = run.ID
	if id == "" {
		id = "run_" + uuid.NewString()
	}
	if run.State == "" {
		run.State = RunSucceeded
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var errStr sql.NullString
	if run.Error != "" {
		errStr = sql.NullString{String: run.Error, Valid: true}
	}
	if _, err = tx.ExecContext(ctx, `
INSERT INTO build_runs (id,state,error,events,started_at,finished_at) VALUES (?,?,?,?,?,?)`,
		id, run.State, errStr, len(events), run.StartedAt.UTC(), run.FinishedAt.UTC()); err != nil {
		return "", err
	}
	for _, ev := range events {
		if _, err = tx.ExecContext(ctx, `
INSERT INTO build_events (run_id,elf,order_id,toy,kind,at) VALUES (?,?,?,?,?,?)`,
			id, ev.Elf, ev.OrderID, ev.Toy, string(ev.Kind), ev.At); err != nil {
			return "", err
		}
	}
	if err = tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func (r *sqliteRepo) GetRun(ctx context.Context, id string) (Run, []domain.BuildEvent, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,state,error,events,started_at,finished_at FROM build_runs WHERE id=?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, ErrNotFound
	}
	if err != nil {
		return Run{}, nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT elf,order_id,toy,kind,at FROM build_events WHERE run_id=? ORDER BY id`, id)
	if err != nil {
		return Run{}, nil, err
	}
	defer rows.Close()

	var events []domain.BuildEvent
	for rows.Next() {
		var ev domain.BuildEvent
		var kind string
		if err := rows.Scan(&ev.Elf, &ev.OrderID, &ev.Toy, &kind, &ev.At); err != nil {
			return Run{}, nil, err
		}
		ev.Kind = domain.EventKind(kind)
		events = append(events, ev)
	}
	return run, events, rows.Err()
}

func (r *sqliteRepo) ListRecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,state,error,events,started_at,finished_at FROM build_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var errStr sql.NullString
	if err := s.Scan(&run.ID, &run.State, &errStr, &run.Events, &run.StartedAt, &run.FinishedAt); err != nil {
		return Run{}, err
	}
	run.Error = errStr.String
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()
	return run, nil
}
