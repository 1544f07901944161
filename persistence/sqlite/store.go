// Package sqlite stores saved essays in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"essay_reader/essay"
	"essay_reader/persistence"
)

// Fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Gateway implements persistence.Gateway on SQLite.
type Gateway struct {
	db     *sql.DB
	path   string
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

// Option customizes the gateway.
type Option func(*Gateway)

// WithClock overrides the timestamp source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// Open initializes or connects to the database at path and applies migrations.
func Open(path string, opts ...Option) (*Gateway, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db dir: %w", err)
		}
	}
	// pragmas go in the DSN so the driver applies them to every pooled connection
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	g := &Gateway{
		db:     db,
		path:   path,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return g, nil
}

// Close closes the underlying database connection.
func (g *Gateway) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

const recordColumns = `id, user_id, subject, reading_level, content, created_at`

func (g *Gateway) ListSaved(ctx context.Context, userID string) ([]persistence.SavedEssayRecord, error) {
	if err := persistence.CheckUser(userID); err != nil {
		return nil, err
	}
	rows, err := g.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM saved_essays WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, persistence.Unavailable(fmt.Errorf("list saved essays: %w", err), "")
	}
	defer rows.Close()

	records := make([]persistence.SavedEssayRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, persistence.Unavailable(err, "")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.Unavailable(fmt.Errorf("iterate saved essays: %w", err), "")
	}
	return records, nil
}

func (g *Gateway) Save(ctx context.Context, userID string, key essay.Key) (string, error) {
	if err := persistence.CheckUser(userID); err != nil {
		return "", err
	}
	if err := persistence.CheckKey(key); err != nil {
		return "", err
	}
	id := g.newID()
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO saved_essays (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, key.Subject, string(key.ReadingLevel), key.Content,
		g.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", persistence.Rejectedf(fmt.Errorf("insert saved essay: %w", err), "Could not save the essay. Please try again.")
	}
	g.logger.Debug().Str("id", id).Str("user_id", userID).Msg("essay saved")
	return id, nil
}

func (g *Gateway) Remove(ctx context.Context, id, userID string) error {
	if err := persistence.CheckUser(userID); err != nil {
		return err
	}
	res, err := g.db.ExecContext(ctx, `DELETE FROM saved_essays WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return persistence.Rejectedf(fmt.Errorf("delete saved essay: %w", err), "Could not remove the essay. Please try again.")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		g.logger.Debug().Str("id", id).Str("user_id", userID).Msg("remove matched no rows")
	}
	return nil
}

func (g *Gateway) FindDuplicate(ctx context.Context, userID string, key essay.Key) (string, error) {
	if err := persistence.CheckUser(userID); err != nil {
		return "", err
	}
	var id string
	err := g.db.QueryRowContext(ctx,
		`SELECT id FROM saved_essays
         WHERE user_id = ? AND subject = ? AND reading_level = ? AND content = ?
         ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		userID, key.Subject, string(key.ReadingLevel), key.Content,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", persistence.Unavailable(fmt.Errorf("find duplicate: %w", err), "")
	}
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (persistence.SavedEssayRecord, error) {
	var (
		rec       persistence.SavedEssayRecord
		level     string
		createdAt string
	)
	if err := s.Scan(&rec.ID, &rec.UserID, &rec.Subject, &level, &rec.Content, &createdAt); err != nil {
		return persistence.SavedEssayRecord{}, fmt.Errorf("scan saved essay: %w", err)
	}
	rec.ReadingLevel = essay.ReadingLevel(level)
	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return persistence.SavedEssayRecord{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	rec.CreatedAt = ts
	return rec, nil
}
