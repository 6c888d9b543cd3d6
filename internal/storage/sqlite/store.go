package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"pmsync/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
	ErrInvalid  = errors.New("invalid record")
)

var tables = map[models.EntityType]string{
	models.Projects:       "projects",
	models.Tasks:          "tasks",
	models.Meetings:       "meetings",
	models.Documents:      "documents",
	models.SocialContents: "social_contents",
}

func tableFor(t models.EntityType) (string, error) {
	name, ok := tables[t]
	if !ok {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalid, t)
	}
	return name, nil
}

// Store keeps every record as a JSON document in one table per entity type.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := New(conn, logger)
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// New wraps an already migrated database.
func New(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.Named("sqlite")}
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	var stmts []string
	for _, t := range models.EntityTypes {
		table := tables[t]
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            project_id TEXT NOT NULL DEFAULT '',
            data TEXT NOT NULL,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`, table),
			fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS trg_%[1]s_updated
            AFTER UPDATE OF data ON %[1]s
            FOR EACH ROW BEGIN
                UPDATE %[1]s SET updated_at = CURRENT_TIMESTAMP WHERE id = OLD.id;
            END;`, table),
		)
		if t != models.Projects {
			stmts = append(stmts, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_project ON %[1]s(project_id);`, table))
		}
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func encode(t models.EntityType, rec models.Record) (projectID string, data []byte, err error) {
	data, err = json.Marshal(rec)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", t, err)
	}
	if t != models.Projects {
		projectID = rec.OwnerProjectID()
	}
	return projectID, data, nil
}

// LoadAll returns every collection in insertion order.
func (s *Store) LoadAll(ctx context.Context) (models.Collections, error) {
	out := models.EmptyCollections()
	for _, t := range models.EntityTypes {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT data FROM %s ORDER BY rowid`, tables[t]))
		if err != nil {
			return models.Collections{}, fmt.Errorf("list %s: %w", t, err)
		}
		for rows.Next() {
			var data []byte
			if err := rows.Scan(&data); err != nil {
				rows.Close()
				return models.Collections{}, fmt.Errorf("scan %s: %w", t, err)
			}
			rec, err := models.DecodeRecord(t, data)
			if err != nil {
				rows.Close()
				return models.Collections{}, err
			}
			switch v := rec.(type) {
			case models.Project:
				out.Projects = append(out.Projects, v)
			case models.Task:
				out.Tasks = append(out.Tasks, v)
			case models.Meeting:
				out.Meetings = append(out.Meetings, v)
			case models.Document:
				out.Documents = append(out.Documents, v)
			case models.SocialContent:
				out.SocialContents = append(out.SocialContents, v)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return models.Collections{}, fmt.Errorf("list %s: %w", t, err)
		}
	}
	return out.Normalize(), nil
}

// Create persists a new record. The id comes from the caller. Sending the
// same record again is accepted and reports created as false, so a client
// that lost the first response can retry safely. A different record under an
// existing id fails with ErrExists.
func (s *Store) Create(ctx context.Context, t models.EntityType, raw []byte) (rec models.Record, created bool, err error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, false, err
	}
	rec, err = models.DecodeRecord(t, raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if rec.EntityID() == "" {
		return nil, false, fmt.Errorf("%w: missing id", ErrInvalid)
	}
	projectID, data, err := encode(t, rec)
	if err != nil {
		return nil, false, err
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s(id, project_id, data) VALUES(?, ?, ?)`, table), rec.EntityID(), projectID, string(data))
	if err == nil {
		return rec, true, nil
	}
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return nil, false, fmt.Errorf("insert %s: %w", t, err)
	}

	var stored []byte
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, table), rec.EntityID()).Scan(&stored); err != nil {
		return nil, false, fmt.Errorf("get %s: %w", t, err)
	}
	if !bytes.Equal(stored, data) {
		return nil, false, fmt.Errorf("%w: %s %q", ErrExists, t, rec.EntityID())
	}
	s.logger.Debug("duplicate create accepted", zap.String("type", string(t)), zap.String("id", rec.EntityID()))
	return rec, false, nil
}

// Get fetches a single record by id.
func (s *Store) Get(ctx context.Context, t models.EntityType, id string) (models.Record, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, table), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, t, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", t, err)
	}
	return models.DecodeRecord(t, data)
}

// Update merges the partial JSON document patch into the stored record.
func (s *Store) Update(ctx context.Context, t models.EntityType, id string, patch []byte) (models.Record, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored []byte
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, table), id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, t, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", t, err)
	}

	rec, err := models.MergeRecord(t, stored, patch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	projectID, data, err := encode(t, rec)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET project_id = ?, data = ? WHERE id = ?`, table), projectID, string(data), id); err != nil {
		return nil, fmt.Errorf("update %s: %w", t, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// Delete removes a record. Deleting a project also removes every record
// that references it and returns how many were removed that way.
func (s *Store) Delete(ctx context.Context, t models.EntityType, id string) (int64, error) {
	table, err := tableFor(t)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", t, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrNotFound, t, id)
	}

	var cascaded int64
	if t == models.Projects {
		for _, child := range models.ChildTypes {
			res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE project_id = ?`, tables[child]), id)
			if err != nil {
				return 0, fmt.Errorf("delete %s of project: %w", child, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return 0, err
			}
			cascaded += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	if cascaded > 0 {
		s.logger.Info("project deleted with children", zap.String("id", id), zap.Int64("cascaded", cascaded))
	}
	return cascaded, nil
}
