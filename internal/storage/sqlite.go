// Package storage persists interaction history and sink-side metadata
// records in SQLite.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for interactions and metadata
// records.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "dochound.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Interactions ---

// SaveInteraction inserts one finished turn.
func (s *Store) SaveInteraction(i Interaction) error {
	completed := 0
	if i.Completed {
		completed = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO interactions (id, created_at, utterance, response, completed)
		VALUES (?, ?, ?, ?, ?)`,
		i.ID, i.CreatedAt.UTC().Format(time.RFC3339), i.Utterance, i.Response, completed,
	)
	return err
}

// RecordInteraction saves a turn with a fresh ID and current timestamp.
func (s *Store) RecordInteraction(_ context.Context, utterance, response string, completed bool) error {
	return s.SaveInteraction(Interaction{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Utterance: utterance,
		Response:  response,
		Completed: completed,
	})
}

// GetInteraction returns one turn by ID.
func (s *Store) GetInteraction(id string) (Interaction, error) {
	var i Interaction
	var createdAt string
	var completed int
	err := s.db.QueryRow(`
		SELECT id, created_at, utterance, response, completed
		FROM interactions WHERE id = ?`, id,
	).Scan(&i.ID, &createdAt, &i.Utterance, &i.Response, &completed)
	if err == sql.ErrNoRows {
		return Interaction{}, ErrNotFound
	}
	if err != nil {
		return Interaction{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Interaction{}, fmt.Errorf("parsing created_at: %w", err)
	}
	i.CreatedAt = t
	i.Completed = completed != 0
	return i, nil
}

// RecentInteractions returns the latest turns, newest first.
func (s *Store) RecentInteractions(limit int) ([]Interaction, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, utterance, response, completed
		FROM interactions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Interaction
	for rows.Next() {
		var i Interaction
		var createdAt string
		var completed int
		if err := rows.Scan(&i.ID, &createdAt, &i.Utterance, &i.Response, &completed); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		i.CreatedAt = t
		i.Completed = completed != 0
		results = append(results, i)
	}
	return results, rows.Err()
}

// --- Metadata records ---

// UpsertMetadata stores one sink record, replacing any earlier upload for
// the same filename.
func (s *Store) UpsertMetadata(m Metadata) error {
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO metadata_records (filename, label, content, file_type, size, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			label = excluded.label,
			content = excluded.content,
			file_type = excluded.file_type,
			size = excluded.size,
			received_at = excluded.received_at`,
		m.Filename, m.Label, m.Content, m.FileType, m.SizeBytes,
		m.ReceivedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetMetadata returns the record for one filename.
func (s *Store) GetMetadata(filename string) (Metadata, error) {
	var m Metadata
	var receivedAt string
	err := s.db.QueryRow(`
		SELECT filename, label, content, file_type, size, received_at
		FROM metadata_records WHERE filename = ?`, filename,
	).Scan(&m.Filename, &m.Label, &m.Content, &m.FileType, &m.SizeBytes, &receivedAt)
	if err == sql.ErrNoRows {
		return Metadata{}, ErrNotFound
	}
	if err != nil {
		return Metadata{}, err
	}
	t, err := time.Parse(time.RFC3339, receivedAt)
	if err != nil {
		return Metadata{}, fmt.Errorf("parsing received_at: %w", err)
	}
	m.ReceivedAt = t
	return m, nil
}

// ListMetadata returns every stored record ordered by filename.
func (s *Store) ListMetadata() ([]Metadata, error) {
	rows, err := s.db.Query(`
		SELECT filename, label, content, file_type, size, received_at
		FROM metadata_records ORDER BY filename ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Metadata
	for rows.Next() {
		var m Metadata
		var receivedAt string
		if err := rows.Scan(&m.Filename, &m.Label, &m.Content, &m.FileType, &m.SizeBytes, &receivedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, receivedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing received_at: %w", err)
		}
		m.ReceivedAt = t
		results = append(results, m)
	}
	return results, rows.Err()
}
