package storage

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// TimeLayout is the ISO-8601 layout used for every stored timestamp.
// It is fixed width, so lexical order in SQL matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// New opens a SQLite database connection at the given path.
// Foreign keys are enabled through the DSN so every pooled connection enforces them.
func New(path string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", path+sep+"_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			upload_date TEXT NOT NULL,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			metadata TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_upload_date ON documents(upload_date);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			position INTEGER NOT NULL,
			filename TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (document_id, chunk_index),
			FOREIGN KEY (document_id) REFERENCES documents(doc_id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_position ON chunks(position);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}
