package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry describes one converted package.
type Entry struct {
	Dir         string    `json:"dir"`
	SourcePath  string    `json:"source_path,omitempty"`
	VillageName string    `json:"village_name"`
	VillageID   string    `json:"village_id,omitempty"`
	State       string    `json:"state"`
	Periods     int       `json:"periods"`
	Elements    int       `json:"elements"`
	RunID       string    `json:"run_id"`
	ConvertedAt time.Time `json:"converted_at"`
}

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the catalog database at path, creating it and applying
// migrations as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("catalog path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts or replaces the entry for entry.Dir.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if entry.Dir == "" {
		return errors.New("entry dir is empty")
	}
	if entry.ConvertedAt.IsZero() {
		entry.ConvertedAt = time.Now()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO packages (
            dir, source_path, village_name, village_id, state,
            period_count, element_count, run_id, converted_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(dir) DO UPDATE SET
            source_path = excluded.source_path,
            village_name = excluded.village_name,
            village_id = excluded.village_id,
            state = excluded.state,
            period_count = excluded.period_count,
            element_count = excluded.element_count,
            run_id = excluded.run_id,
            converted_at = excluded.converted_at`,
		entry.Dir,
		nullableString(entry.SourcePath),
		entry.VillageName,
		nullableString(entry.VillageID),
		entry.State,
		entry.Periods,
		entry.Elements,
		entry.RunID,
		entry.ConvertedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record package: %w", err)
	}
	return nil
}

const entryColumns = `dir, source_path, village_name, village_id, state,
    period_count, element_count, run_id, converted_at`

// Get returns the entry for dir, or nil when none is recorded.
func (s *Store) Get(ctx context.Context, dir string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM packages WHERE dir = ?`, dir)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get package: %w", err)
	}
	return entry, nil
}

// List returns every entry, most recently converted first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM packages ORDER BY converted_at DESC, dir`)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packages: %w", err)
	}
	return entries, nil
}

// Remove deletes the entry for dir. It reports whether a row existed.
func (s *Store) Remove(ctx context.Context, dir string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM packages WHERE dir = ?`, dir)
	if err != nil {
		return false, fmt.Errorf("remove package: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry      Entry
		sourcePath sql.NullString
		villageID  sql.NullString
		converted  string
	)
	if err := row.Scan(
		&entry.Dir,
		&sourcePath,
		&entry.VillageName,
		&villageID,
		&entry.State,
		&entry.Periods,
		&entry.Elements,
		&entry.RunID,
		&converted,
	); err != nil {
		return nil, err
	}
	entry.SourcePath = sourcePath.String
	entry.VillageID = villageID.String
	ts, err := time.Parse(time.RFC3339Nano, converted)
	if err != nil {
		return nil, fmt.Errorf("parse converted_at %q: %w", converted, err)
	}
	entry.ConvertedAt = ts
	return &entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
