// Package postgres stores saved essays in PostgreSQL through GORM.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"essay_reader/essay"
	"essay_reader/persistence"
)

// savedEssay maps the saved_essays table.
// Seq breaks ties between rows created in the same instant.
type savedEssay struct {
	ID           string    `gorm:"primaryKey;type:text"`
	Seq          int64     `gorm:"autoIncrement;not null;<-:false"`
	UserID       string    `gorm:"type:text;not null;index:idx_saved_essays_user_created,priority:1"`
	Subject      string    `gorm:"type:text;not null"`
	ReadingLevel string    `gorm:"type:text;not null"`
	Content      string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null;index:idx_saved_essays_user_created,priority:2,sort:desc"`
}

func (savedEssay) TableName() string {
	return "saved_essays"
}

// BeforeCreate assigns a server-side id when the caller left it empty.
func (s *savedEssay) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (s savedEssay) record() persistence.SavedEssayRecord {
	return persistence.SavedEssayRecord{
		ID:           s.ID,
		UserID:       s.UserID,
		Subject:      s.Subject,
		ReadingLevel: essay.ReadingLevel(s.ReadingLevel),
		Content:      s.Content,
		CreatedAt:    s.CreatedAt.UTC(),
	}
}

const newestFirst = "created_at DESC, seq DESC"

// Gateway implements persistence.Gateway on PostgreSQL.
type Gateway struct {
	db     *gorm.DB
	now    func() time.Time
	logger zerolog.Logger
}

// Option customizes the gateway.
type Option func(*Gateway)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// Open connects to the database described by dsn.
// Call Migrate before first use on a fresh database.
func Open(dsn string, opts ...Option) (*Gateway, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db, opts...), nil
}

// New wraps an existing GORM handle.
func New(db *gorm.DB, opts ...Option) *Gateway {
	g := &Gateway{
		db:     db,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Migrate creates the saved_essays table and its index if they are missing.
func (g *Gateway) Migrate(ctx context.Context) error {
	if err := g.db.WithContext(ctx).AutoMigrate(&savedEssay{}); err != nil {
		return fmt.Errorf("migrate saved_essays: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (g *Gateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ownedBy scopes a query to one user's rows.
func ownedBy(userID string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("user_id = ?", userID)
	}
}

func matching(key essay.Key) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("subject = ? AND reading_level = ? AND content = ?",
			key.Subject, string(key.ReadingLevel), key.Content)
	}
}

func (g *Gateway) ListSaved(ctx context.Context, userID string) ([]persistence.SavedEssayRecord, error) {
	if err := persistence.CheckUser(userID); err != nil {
		return nil, err
	}
	var rows []savedEssay
	err := g.db.WithContext(ctx).Scopes(ownedBy(userID)).Order(newestFirst).Find(&rows).Error
	if err != nil {
		return nil, persistence.Unavailable(fmt.Errorf("list saved essays: %w", err), "")
	}
	records := make([]persistence.SavedEssayRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
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
	row := savedEssay{
		UserID:       userID,
		Subject:      key.Subject,
		ReadingLevel: string(key.ReadingLevel),
		Content:      key.Content,
		CreatedAt:    g.now().UTC(),
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", persistence.Rejectedf(fmt.Errorf("insert saved essay: %w", err), "Could not save the essay. Please try again.")
	}
	g.logger.Debug().Str("id", row.ID).Str("user_id", userID).Msg("essay saved")
	return row.ID, nil
}

func (g *Gateway) Remove(ctx context.Context, id, userID string) error {
	if err := persistence.CheckUser(userID); err != nil {
		return err
	}
	res := g.db.WithContext(ctx).Scopes(ownedBy(userID)).Where("id = ?", id).Delete(&savedEssay{})
	if res.Error != nil {
		return persistence.Rejectedf(fmt.Errorf("delete saved essay: %w", res.Error), "Could not remove the essay. Please try again.")
	}
	if res.RowsAffected == 0 {
		g.logger.Debug().Str("id", id).Str("user_id", userID).Msg("remove matched no rows")
	}
	return nil
}

func (g *Gateway) FindDuplicate(ctx context.Context, userID string, key essay.Key) (string, error) {
	if err := persistence.CheckUser(userID); err != nil {
		return "", err
	}
	var row savedEssay
	err := g.db.WithContext(ctx).
		Select("id").
		Scopes(ownedBy(userID), matching(key)).
		Order(newestFirst).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", persistence.Unavailable(fmt.Errorf("find duplicate: %w", err), "")
	}
	return row.ID, nil
}
