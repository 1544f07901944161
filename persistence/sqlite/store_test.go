package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"essay_reader/essay"
	"essay_reader/persistence"
	"essay_reader/persistence/gatewaytest"
)

// steppedClock hands out strictly increasing timestamps.
type steppedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func openTest(t *testing.T, opts ...Option) *Gateway {
	t.Helper()
	g, err := Open(filepath.Join(t.TempDir(), "essays.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGatewayConformance(t *testing.T) {
	gatewaytest.Run(t, func(t *testing.T) persistence.Gateway {
		clock := &steppedClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
		return openTest(t, WithClock(clock.Now))
	})
}

func TestSameInstantKeepsInsertOrder(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	g := openTest(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	k := gatewaytest.Key("Art", essay.LevelChild, "same")
	_, err := g.Save(ctx, "user42", k)
	require.NoError(t, err)
	second, err := g.Save(ctx, "user42", k)
	require.NoError(t, err)

	found, err := g.FindDuplicate(ctx, "user42", k)
	require.NoError(t, err)
	assert.Equal(t, second, found)
}

func TestCreatedAtRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 15, 123456789, time.FixedZone("CST", 8*3600))
	g := openTest(t, WithClock(func() time.Time { return at }))
	ctx := context.Background()

	_, err := g.Save(ctx, "user42", gatewaytest.Key("Art", essay.LevelChild, "c"))
	require.NoError(t, err)
	records, err := g.ListSaved(ctx, "user42")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, at.Equal(records[0].CreatedAt))
	assert.Equal(t, time.UTC, records[0].CreatedAt.Location())
}

func TestReopenKeepsRowsAndSkipsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "essays.db")
	g, err := Open(path)
	require.NoError(t, err)
	id, err := g.Save(context.Background(), "user42", gatewaytest.Key("Art", essay.LevelChild, "kept"))
	require.NoError(t, err)
	require.NoError(t, g.Close())

	g, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	records, err := g.ListSaved(context.Background(), "user42")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)

	var applied int
	require.NoError(t, g.db.QueryRow("SELECT COUNT(1) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestClosedDatabaseIsUnavailable(t *testing.T) {
	g, err := Open(filepath.Join(t.TempDir(), "essays.db"))
	require.NoError(t, err)
	require.NoError(t, g.Close())

	_, err = g.ListSaved(context.Background(), "user42")
	assert.True(t, persistence.IsKind(err, persistence.Transport), "got %v", err)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestBusyTimeoutOnEveryConnection(t *testing.T) {
	g := openTest(t)
	ctx := context.Background()

	first, err := g.db.Conn(ctx)
	require.NoError(t, err)
	defer first.Close()
	second, err := g.db.Conn(ctx)
	require.NoError(t, err)
	defer second.Close()

	for _, conn := range []*sql.Conn{first, second} {
		var timeout int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 5000, timeout)
	}
}
