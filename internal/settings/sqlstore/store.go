package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/agentx-labs/exthost/internal/platform"
	"github.com/agentx-labs/exthost/internal/settings"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS subjects (
	id                    TEXT PRIMARY KEY,
	kind                  TEXT NOT NULL,
	name                  TEXT NOT NULL,
	viewer_can_administer INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS settings (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id TEXT NOT NULL REFERENCES subjects(id),
	contents   TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS settings_subject ON settings(subject_id, id);
`

// ErrSubjectExists is returned by AddSubject for a duplicate id.
var ErrSubjectExists = errors.New("subject already exists")

// ErrNoSuchSubject is returned for writes to a subject that isn't stored.
var ErrNoSuchSubject = errors.New("no such subject")

// ConflictError reports a write against a stale revision.
type ConflictError struct {
	SubjectID string
	LastID    *string
	LatestID  *string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("settings for %s: last known revision %s, latest is %s",
		e.SubjectID, revString(e.LastID), revString(e.LatestID))
}

// Is matches settings.ErrWriteConflict.
func (e *ConflictError) Is(target error) bool {
	return target == settings.ErrWriteConflict
}

func revString(id *string) string {
	if id == nil {
		return "none"
	}
	return *id
}

// Record is one stored settings revision.
type Record struct {
	ID        string
	SubjectID string
	Contents  map[string]any
	CreatedAt time.Time
}

// Store is a settings.Backend and settings.SnapshotProvider over SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening settings database: %w", err)
	}
	// One connection serializes transactions; SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating settings schema: %w", err)
	}
	if err := platform.RestrictFile(path); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddSubject registers a new subject.
func (s *Store) AddSubject(ctx context.Context, subject settings.Subject) error {
	if subject.ID == "" {
		return errors.New("subject id is required")
	}
	if subject.Kind == "" {
		subject.Kind = settings.KindUser
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subjects (id, kind, name, viewer_can_administer) VALUES (?, ?, ?, ?)`,
		subject.ID, string(subject.Kind), subject.Name, subject.ViewerCanAdminister)
	if err != nil {
		if exists, _ := s.subjectExists(ctx, s.db, subject.ID); exists {
			return fmt.Errorf("%w: %s", ErrSubjectExists, subject.ID)
		}
		return fmt.Errorf("adding subject %s: %w", subject.ID, err)
	}
	s.logger.Info("settings subject added", zap.String("subject", subject.ID), zap.String("kind", string(subject.Kind)))
	return nil
}

// EnsureSubject registers subject unless a subject with its id exists.
func (s *Store) EnsureSubject(ctx context.Context, subject settings.Subject) error {
	exists, err := s.subjectExists(ctx, s.db, subject.ID)
	if err != nil || exists {
		return err
	}
	err = s.AddSubject(ctx, subject)
	if errors.Is(err, ErrSubjectExists) {
		return nil
	}
	return err
}

// Snapshot returns every subject with its latest revision, ordered global,
// org, user, then by insertion.
func (s *Store) Snapshot(ctx context.Context) (settings.Cascade, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT s.id, s.kind, s.name, s.viewer_can_administer, r.id, r.contents
FROM subjects s
LEFT JOIN settings r ON r.id = (SELECT MAX(id) FROM settings WHERE subject_id = s.id)
ORDER BY CASE s.kind WHEN 'global' THEN 0 WHEN 'org' THEN 1 ELSE 2 END, s.rowid`)
	if err != nil {
		return settings.Cascade{}, fmt.Errorf("querying subjects: %w", err)
	}
	defer rows.Close()

	var c settings.Cascade
	for rows.Next() {
		var (
			sub      settings.Subject
			kind     string
			revID    sql.NullInt64
			contents sql.NullString
		)
		if err := rows.Scan(&sub.ID, &kind, &sub.Name, &sub.ViewerCanAdminister, &revID, &contents); err != nil {
			return settings.Cascade{}, fmt.Errorf("scanning subject: %w", err)
		}
		sub.Kind = settings.SubjectKind(kind)
		if revID.Valid {
			m, err := decode(contents.String)
			if err != nil {
				return settings.Cascade{}, fmt.Errorf("subject %s revision %d: %w", sub.ID, revID.Int64, err)
			}
			sub.LatestSettings = &settings.Revision{ID: strconv.FormatInt(revID.Int64, 10), Contents: m}
		}
		c.Subjects = append(c.Subjects, sub)
	}
	if err := rows.Err(); err != nil {
		return settings.Cascade{}, fmt.Errorf("reading subjects: %w", err)
	}
	return c, nil
}

// EditSettings applies edit to the subject's latest contents and stores the
// result as a new revision, provided lastID is still the latest revision id.
// Otherwise it returns a *ConflictError and writes nothing.
func (s *Store) EditSettings(ctx context.Context, subjectID string, lastID *string, edit settings.BackendEdit) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	exists, err := s.subjectExists(ctx, tx, subjectID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNoSuchSubject, subjectID)
	}

	var (
		latestID sql.NullInt64
		contents sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, contents FROM settings WHERE subject_id = ? ORDER BY id DESC LIMIT 1`, subjectID).
		Scan(&latestID, &contents)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading latest settings: %w", err)
	}

	var latest *string
	if latestID.Valid {
		id := strconv.FormatInt(latestID.Int64, 10)
		latest = &id
	}
	if !sameRevision(lastID, latest) {
		return &ConflictError{SubjectID: subjectID, LastID: lastID, LatestID: latest}
	}

	current, err := decode(contents.String)
	if err != nil {
		return fmt.Errorf("decoding latest settings: %w", err)
	}
	next, err := settings.ApplyEdit(current, edit.KeyPath, edit.Value)
	if err != nil {
		return err
	}
	if err := settings.ValidateContents(next); err != nil {
		return err
	}
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO settings (subject_id, contents, created_at) VALUES (?, ?, ?)`,
		subjectID, string(data), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting settings: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing settings: %w", err)
	}

	newID, _ := res.LastInsertId()
	s.logger.Debug("settings revision stored",
		zap.String("subject", subjectID),
		zap.Int64("revision", newID),
		zap.Strings("key_path", edit.KeyPath))
	return nil
}

// History returns the subject's revisions, newest first.
func (s *Store) History(ctx context.Context, subjectID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contents, created_at FROM settings WHERE subject_id = ? ORDER BY id DESC LIMIT ?`,
		subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			id        int64
			contents  string
			createdAt string
		)
		if err := rows.Scan(&id, &contents, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning revision: %w", err)
		}
		m, err := decode(contents)
		if err != nil {
			return nil, fmt.Errorf("revision %d: %w", id, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("revision %d timestamp: %w", id, err)
		}
		out = append(out, Record{ID: strconv.FormatInt(id, 10), SubjectID: subjectID, Contents: m, CreatedAt: ts})
	}
	return out, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) subjectExists(ctx context.Context, q queryer, id string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM subjects WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("looking up subject %s: %w", id, err)
	}
	return n > 0, nil
}

func sameRevision(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func decode(contents string) (map[string]any, error) {
	m := map[string]any{}
	if contents == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(contents), &m); err != nil {
		return nil, fmt.Errorf("decoding settings JSON: %w", err)
	}
	return m, nil
}
