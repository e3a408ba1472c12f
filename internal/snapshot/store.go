package snapshot

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/ecc-analyzer/internal/block"
	"github.com/danielpatrickdp/ecc-analyzer/internal/logging"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS layout_versions (
	version_id   TEXT PRIMARY KEY,
	parent_id    TEXT,
	system       TEXT NOT NULL,
	config_json  TEXT NOT NULL,
	layout_hash  TEXT NOT NULL,
	note         TEXT,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES layout_versions(version_id)
);

CREATE INDEX IF NOT EXISTS layout_versions_system ON layout_versions(system, created_at);

CREATE TABLE IF NOT EXISTS active_layout (
	system       TEXT PRIMARY KEY,
	version_id   TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES layout_versions(version_id)
);
`

// #endregion schema

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region store-struct
// Store keeps versioned layout snapshots in SQLite with one active version
// per system name.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger for commit and rollback events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s := &Store{db: db, log: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion constructor

// #region commit
// Commit stores root as a new version of system and makes it active. The
// previously active version, if any, becomes its parent.
func (s *Store) Commit(system string, root block.Block, note string) (Record, error) {
	cfg := root.Config()
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return Record{}, fmt.Errorf("marshal layout: %w", err)
	}
	hash, err := logging.HashLayout(cfg)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		VersionID:  uuid.New().String(),
		System:     system,
		Config:     cfg,
		LayoutHash: hash,
		Note:       note,
		CreatedAt:  time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	err = tx.QueryRow(`SELECT version_id FROM active_layout WHERE system = ?`, system).Scan(&parent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get active: %w", err)
	}
	if parent.Valid {
		rec.ParentID = parent.String
	}

	_, err = tx.Exec(
		`INSERT INTO layout_versions (version_id, parent_id, system, config_json, layout_hash, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, nullIfEmpty(rec.ParentID), system, string(cfgJSON), hash,
		nullIfEmpty(note), rec.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_layout (system, version_id) VALUES (?, ?)
		 ON CONFLICT(system) DO UPDATE SET version_id = excluded.version_id`,
		system, rec.VersionID,
	)
	if err != nil {
		return Record{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}
	s.log.Info("layout committed", "system", system, "version_id", rec.VersionID, "parent_id", rec.ParentID, "layout_hash", hash)
	return rec, nil
}

// #endregion commit

// #region get
// Current reads the active version of system.
func (s *Store) Current(system string) (Record, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_layout WHERE system = ?`, system).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get active %s: %w", system, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get active %s: %w", system, err)
	}
	return s.Version(versionID)
}

// Version retrieves a specific version by ID.
func (s *Store) Version(id string) (Record, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, system, config_json, layout_hash, note, created_at
		 FROM layout_versions WHERE version_id = ?`, id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get

// #region rollback
// Rollback points system's active version at an earlier version of the same
// system.
func (s *Store) Rollback(system, targetVersionID string) error {
	var owner string
	err := s.db.QueryRow(
		`SELECT system FROM layout_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != system) {
		return fmt.Errorf("rollback %s to %s: %w", system, targetVersionID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO active_layout (system, version_id) VALUES (?, ?)
		 ON CONFLICT(system) DO UPDATE SET version_id = excluded.version_id`,
		system, targetVersionID,
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	s.log.Info("layout rolled back", "system", system, "version_id", targetVersionID)
	return nil
}

// #endregion rollback

// #region list-versions
// List returns the most recent versions of system, newest first.
func (s *Store) List(system string, limit int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, system, config_json, layout_hash, note, created_at
		 FROM layout_versions WHERE system = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, system, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list-versions

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var parentID, note sql.NullString
	var cfgJSON, createdStr string

	if err := row.Scan(&rec.VersionID, &parentID, &rec.System, &cfgJSON, &rec.LayoutHash, &note, &createdStr); err != nil {
		return Record{}, err
	}
	rec.ParentID = parentID.String
	rec.Note = note.String
	if err := json.Unmarshal([]byte(cfgJSON), &rec.Config); err != nil {
		return Record{}, fmt.Errorf("unmarshal layout: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return rec, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
