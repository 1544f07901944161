package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"essay_reader/essay"
	"essay_reader/persistence"
	"essay_reader/persistence/gatewaytest"
)

// dryRun returns a handle that renders SQL without connecting.
func dryRun(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=essay dbname=essay sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestRemoveMatchesIDAndUser(t *testing.T) {
	db := dryRun(t)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Scopes(ownedBy("user42")).Where("id = ?", "abc123").Delete(&savedEssay{})
	})
	assert.Contains(t, sql, `DELETE FROM "saved_essays"`)
	assert.Contains(t, sql, "user_id = 'user42'")
	assert.Contains(t, sql, "id = 'abc123'")
}

func TestFindDuplicateQueryPicksNewest(t *testing.T) {
	db := dryRun(t)
	key := gatewaytest.Key("Physics", essay.LevelUniversity, "it's quantum")
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var row savedEssay
		return tx.Select("id").Scopes(ownedBy("user42"), matching(key)).Order(newestFirst).Take(&row)
	})
	assert.Contains(t, sql, "user_id = 'user42'")
	assert.Contains(t, sql, "reading_level = 'University Student'")
	assert.Contains(t, sql, "content = 'it''s quantum'")
	assert.Contains(t, sql, "ORDER BY created_at DESC, seq DESC")
	assert.Contains(t, sql, "LIMIT 1")
}

func TestValidationHappensBeforeQuery(t *testing.T) {
	g := New(dryRun(t))
	ctx := context.Background()

	_, err := g.ListSaved(ctx, "")
	assert.ErrorIs(t, err, persistence.ErrUnauthenticated)
	_, err = g.Save(ctx, "user42", gatewaytest.Key("", essay.LevelChild, "c"))
	assert.True(t, persistence.IsKind(err, persistence.Rejected))
	assert.ErrorIs(t, g.Remove(ctx, "abc123", ""), persistence.ErrUnauthenticated)
}

func TestBeforeCreateAssignsID(t *testing.T) {
	row := savedEssay{}
	require.NoError(t, row.BeforeCreate(nil))
	assert.NotEmpty(t, row.ID)

	kept := savedEssay{ID: "abc123"}
	require.NoError(t, kept.BeforeCreate(nil))
	assert.Equal(t, "abc123", kept.ID)
}

// Set ESSAY_READER_TEST_POSTGRES_DSN to run the shared checks against a real server.
func TestGatewayConformance(t *testing.T) {
	dsn := os.Getenv("ESSAY_READER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ESSAY_READER_TEST_POSTGRES_DSN not set")
	}
	gatewaytest.Run(t, func(t *testing.T) persistence.Gateway {
		g, err := Open(dsn)
		require.NoError(t, err)
		require.NoError(t, g.Migrate(context.Background()))
		require.NoError(t, g.db.Exec("DELETE FROM saved_essays").Error)
		t.Cleanup(func() { _ = g.Close() })
		return g
	})
}
