package db

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()
	database, err := New(path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return database
}

func TestNew_CreatesDatabase(t *testing.T) {
	database := openTestDB(t, filepath.Join(t.TempDir(), "nested", "test.db"))
	defer database.Close()

	tables := []string{"videos", "frames", "comparisons", "jobs", "config", "_migrations"}
	for _, table := range tables {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNew_WALEnabled(t *testing.T) {
	database := openTestDB(t, filepath.Join(t.TempDir(), "test.db"))
	defer database.Close()

	var journalMode string
	if err := database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1 := openTestDB(t, dbPath)
	db1.Close()

	db2 := openTestDB(t, dbPath)
	defer db2.Close()

	var count int
	if err := db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations error = %v", err)
	}
	if count != 3 {
		t.Errorf("migration count = %d, want 3", count)
	}
}

func TestFramesCascadeOnVideoDelete(t *testing.T) {
	database := openTestDB(t, filepath.Join(t.TempDir(), "test.db"))
	defer database.Close()

	conn := database.Conn()
	if _, err := conn.Exec(`INSERT INTO videos (id, start_time, created_at) VALUES ('v1', datetime('now'), datetime('now'))`); err != nil {
		t.Fatalf("insert video error = %v", err)
	}
	if _, err := conn.Exec(`INSERT INTO frames (video_id, seq, timestamp_ms, landmarks) VALUES ('v1', 0, 0, '[]')`); err != nil {
		t.Fatalf("insert frame error = %v", err)
	}
	if _, err := conn.Exec(`DELETE FROM videos WHERE id = 'v1'`); err != nil {
		t.Fatalf("delete video error = %v", err)
	}

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM frames`).Scan(&count); err != nil {
		t.Fatalf("count frames error = %v", err)
	}
	if count != 0 {
		t.Errorf("frames left after delete = %d, want 0", count)
	}
}

func TestMarkInterruptedJobs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1 := openTestDB(t, dbPath)
	_, err := db1.Conn().Exec(`
		INSERT INTO jobs (id, type, status, progress, created_at, updated_at)
		VALUES ('test-job', 'compare', 'running', 50, datetime('now'), datetime('now'))
	`)
	if err != nil {
		t.Fatalf("insert job error = %v", err)
	}
	db1.Close()

	db2 := openTestDB(t, dbPath)
	defer db2.Close()

	var status, errMsg string
	err = db2.Conn().QueryRow("SELECT status, error FROM jobs WHERE id = 'test-job'").Scan(&status, &errMsg)
	if err != nil {
		t.Fatalf("query job error = %v", err)
	}
	if status != "failed" {
		t.Errorf("job status = %s, want failed", status)
	}
	if errMsg != "interrupted by restart" {
		t.Errorf("job error = %s, want 'interrupted by restart'", errMsg)
	}
}
