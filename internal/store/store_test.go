package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func testMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create widgets",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
				return err
			},
		},
		{
			Version:     2,
			Description: "add widget color",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`ALTER TABLE widgets ADD COLUMN color TEXT NOT NULL DEFAULT ''`)
				return err
			},
		},
	}
}

func TestMigrateIdempotent(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.Migrate(ctx, "widgets", testMigrations()); err != nil {
			t.Fatalf("Migrate pass %d: %v", i, err)
		}
	}

	var n int
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM _migrations WHERE component = 'widgets'`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 2 {
		t.Errorf("applied migrations = %d, want 2", n)
	}
	if _, err := s.DB().ExecContext(ctx, `INSERT INTO widgets (name, color) VALUES ('a', 'red')`); err != nil {
		t.Errorf("insert after migrate: %v", err)
	}
}

func TestMigrateFailureRollsBack(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	boom := errors.New("boom")
	err = s.Migrate(ctx, "broken", []Migration{{
		Version:     1,
		Description: "fails halfway",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE TABLE half (id INTEGER)`); err != nil {
				return err
			}
			return boom
		},
	}})
	if !errors.Is(err, boom) {
		t.Fatalf("Migrate error = %v, want boom", err)
	}

	var n int
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'half'`).Scan(&n); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if n != 0 {
		t.Error("table from failed migration should have been rolled back")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New(%q): %v", path, err)
	}
	defer s.Close()
	if err := s.DB().PingContext(context.Background()); err != nil {
		t.Fatalf("PingContext: %v", err)
	}
}
