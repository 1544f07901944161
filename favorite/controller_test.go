package favorite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"essay_reader/auth"
	"essay_reader/essay"
	"essay_reader/persistence"
)

type call struct {
	op     string
	id     string
	userID string
	key    essay.Key
}

// fakeGateway records calls and stores rows in memory.
type fakeGateway struct {
	mu      sync.Mutex
	calls   []call
	rows    map[string]persistence.SavedEssayRecord
	nextID  []string
	saveErr error
	remErr  error
	findErr error
	// if set, Save waits for it to be closed
	hold    chan struct{}
	entered chan struct{}
}

func newFake(ids ...string) *fakeGateway {
	return &fakeGateway{rows: map[string]persistence.SavedEssayRecord{}, nextID: ids}
}

func (f *fakeGateway) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeGateway) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeGateway) ListSaved(ctx context.Context, userID string) ([]persistence.SavedEssayRecord, error) {
	return nil, errors.New("not used")
}

func (f *fakeGateway) Save(ctx context.Context, userID string, key essay.Key) (string, error) {
	f.record(call{op: "save", userID: userID, key: key})
	if f.entered != nil {
		close(f.entered)
	}
	if f.hold != nil {
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	id := fmt.Sprintf("row-%d", len(f.rows)+1)
	if len(f.nextID) > 0 {
		id, f.nextID = f.nextID[0], f.nextID[1:]
	}
	f.rows[id] = persistence.SavedEssayRecord{ID: id, UserID: userID, Subject: key.Subject, ReadingLevel: key.ReadingLevel, Content: key.Content}
	return id, nil
}

func (f *fakeGateway) Remove(ctx context.Context, id, userID string) error {
	f.record(call{op: "remove", id: id, userID: userID})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remErr != nil {
		return f.remErr
	}
	if row, ok := f.rows[id]; ok && row.UserID == userID {
		delete(f.rows, id)
	}
	return nil
}

func (f *fakeGateway) FindDuplicate(ctx context.Context, userID string, key essay.Key) (string, error) {
	f.record(call{op: "find", userID: userID, key: key})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return "", f.findErr
	}
	for id, row := range f.rows {
		if row.UserID == userID && row.Subject == key.Subject && row.ReadingLevel == key.ReadingLevel && row.Content == key.Content {
			return id, nil
		}
	}
	return "", nil
}

func (f *fakeGateway) Close() error { return nil }

func physics() *essay.Essay {
	return &essay.Essay{Subject: "Physics", ReadingLevel: essay.LevelUniversity, Content: "Quantum mechanics ..."}
}

func setup(t *testing.T, g *fakeGateway, who auth.Identity) (*Controller, *essay.Session) {
	t.Helper()
	s := essay.NewSession()
	s.Set(physics())
	return NewController(g, s, WithIdentity(who)), s
}

func TestToggleSaveThenRemove(t *testing.T) {
	g := newFake("abc123")
	c, s := setup(t, g, auth.Static("user42"))
	ctx := context.Background()
	assert.Equal(t, Unsaved, c.State())

	state, err := c.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, Saved, state)
	cur, _ := s.Current()
	assert.Equal(t, "abc123", cur.ID)
	assert.True(t, cur.IsFavorite)
	assert.Equal(t, Saved, c.State())

	calls := g.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, call{op: "save", userID: "user42", key: physics().Key()}, calls[0])

	state, err = c.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, Unsaved, state)
	cur, _ = s.Current()
	assert.Empty(t, cur.ID)
	assert.False(t, cur.IsFavorite)

	calls = g.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, call{op: "remove", id: "abc123", userID: "user42"}, calls[1])
}

func TestToggleFailureKeepsState(t *testing.T) {
	g := newFake()
	g.saveErr = persistence.Rejectedf(nil, "Could not save the essay.")
	c, s := setup(t, g, auth.Static("user42"))

	state, err := c.Toggle(context.Background())
	assert.True(t, persistence.IsKind(err, persistence.Rejected))
	assert.Equal(t, Unsaved, state)
	cur, _ := s.Current()
	assert.Empty(t, cur.ID)
	assert.False(t, cur.IsFavorite)

	g.saveErr = nil
	_, err = c.Toggle(context.Background())
	require.NoError(t, err)

	g.remErr = persistence.Rejectedf(nil, "Could not remove the essay.")
	state, err = c.Toggle(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Saved, state)
	cur, _ = s.Current()
	assert.NotEmpty(t, cur.ID)
	assert.True(t, cur.IsFavorite)
}

func TestToggleRequiresIdentityAndEssay(t *testing.T) {
	g := newFake()
	c, _ := setup(t, g, auth.Anonymous)
	_, err := c.Toggle(context.Background())
	assert.ErrorIs(t, err, persistence.ErrUnauthenticated)

	empty := NewController(g, essay.NewSession(), WithIdentity(auth.Static("user42")))
	_, err = empty.Toggle(context.Background())
	assert.ErrorIs(t, err, ErrNoEssay)
	assert.Empty(t, g.Calls())
}

func TestSecondToggleWhileInFlightIsIgnored(t *testing.T) {
	g := newFake("abc123")
	g.hold = make(chan struct{})
	g.entered = make(chan struct{})
	c, s := setup(t, g, auth.Static("user42"))

	done := make(chan State, 1)
	go func() {
		state, _ := c.Toggle(context.Background())
		done <- state
	}()
	<-g.entered

	assert.Equal(t, Saving, c.State())
	state, err := c.Toggle(context.Background())
	assert.ErrorIs(t, err, ErrToggleInFlight)
	assert.Equal(t, Saving, state)

	close(g.hold)
	assert.Equal(t, Saved, <-done)
	assert.Len(t, g.Calls(), 1)
	cur, _ := s.Current()
	assert.Equal(t, "abc123", cur.ID)
}

func TestEssayReplacedDuringToggleIsLeftAlone(t *testing.T) {
	g := newFake("abc123")
	g.hold = make(chan struct{})
	g.entered = make(chan struct{})
	c, s := setup(t, g, auth.Static("user42"))

	done := make(chan error, 1)
	go func() {
		_, err := c.Toggle(context.Background())
		done <- err
	}()
	<-g.entered
	s.Set(&essay.Essay{Subject: "Art", ReadingLevel: essay.LevelChild, Content: "Colors"})
	close(g.hold)
	require.NoError(t, <-done)

	cur, _ := s.Current()
	assert.Equal(t, "Art", cur.Subject)
	assert.Empty(t, cur.ID)
	assert.False(t, cur.IsFavorite)
}

func TestRemoveWithoutIDResolvesNewestMatch(t *testing.T) {
	g := newFake()
	_, err := g.Save(context.Background(), "user42", physics().Key())
	require.NoError(t, err)

	s := essay.NewSession()
	inferred := physics()
	inferred.IsFavorite = true
	s.Set(inferred)
	c := NewController(g, s, WithIdentity(auth.Static("user42")))

	state, err := c.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unsaved, state)

	calls := g.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "find", calls[1].op)
	assert.Equal(t, call{op: "remove", id: "row-1", userID: "user42"}, calls[2])
}

func TestRemoveWithoutIDAndNoMatchClears(t *testing.T) {
	g := newFake()
	s := essay.NewSession()
	inferred := physics()
	inferred.IsFavorite = true
	s.Set(inferred)
	c := NewController(g, s, WithIdentity(auth.Static("user42")))

	state, err := c.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unsaved, state)
	for _, cl := range g.Calls() {
		assert.NotEqual(t, "remove", cl.op)
	}
	cur, _ := s.Current()
	assert.False(t, cur.IsFavorite)
}

func TestReconcile(t *testing.T) {
	g := newFake("abc123")
	_, err := g.Save(context.Background(), "user42", physics().Key())
	require.NoError(t, err)

	c, s := setup(t, g, auth.Static("user42"))
	require.NoError(t, c.Reconcile(context.Background()))
	cur, _ := s.Current()
	assert.Equal(t, "abc123", cur.ID)
	assert.True(t, cur.IsFavorite)

	// a known id is authoritative: no further lookup
	before := len(g.Calls())
	require.NoError(t, c.Reconcile(context.Background()))
	assert.Len(t, g.Calls(), before)
}

func TestIdentityChange(t *testing.T) {
	g := newFake("abc123")
	c, s := setup(t, g, auth.Static("user42"))
	_, err := c.Toggle(context.Background())
	require.NoError(t, err)

	assert.False(t, c.SetIdentity(auth.Static("user42")))

	assert.True(t, c.SetIdentity(auth.Static("user7")))
	require.NoError(t, c.Reconcile(context.Background()))
	cur, _ := s.Current()
	assert.Empty(t, cur.ID)
	assert.False(t, cur.IsFavorite)

	assert.True(t, c.SetIdentity(auth.Static("user42")))
	require.NoError(t, c.Reconcile(context.Background()))
	cur, _ = s.Current()
	assert.Equal(t, "abc123", cur.ID)
	assert.True(t, cur.IsFavorite)

	assert.True(t, c.SetIdentity(nil))
	require.NoError(t, c.Reconcile(context.Background()))
	cur, _ = s.Current()
	assert.False(t, cur.IsFavorite)
}

func TestReconcileErrorLeavesState(t *testing.T) {
	g := newFake()
	g.findErr = persistence.Unavailable(errors.New("dial tcp"), "")
	c, s := setup(t, g, auth.Static("user42"))

	err := c.Reconcile(context.Background())
	assert.True(t, persistence.IsKind(err, persistence.Transport))
	cur, _ := s.Current()
	assert.Equal(t, *physics(), cur)
}

func TestReconcileDuringToggleRunsAfterIt(t *testing.T) {
	g := newFake("art-1", "abc123")
	art := &essay.Essay{Subject: "Art", ReadingLevel: essay.LevelChild, Content: "Colors"}
	_, err := g.Save(context.Background(), "user42", art.Key())
	require.NoError(t, err)

	g.hold = make(chan struct{})
	g.entered = make(chan struct{})
	c, s := setup(t, g, auth.Static("user42"))

	done := make(chan error, 1)
	go func() {
		_, err := c.Toggle(context.Background())
		done <- err
	}()
	<-g.entered

	s.Set(art)
	require.NoError(t, c.Reconcile(context.Background()))
	cur, _ := s.Current()
	assert.False(t, cur.IsFavorite, "lookup waits for the toggle")

	close(g.hold)
	require.NoError(t, <-done)

	cur, _ = s.Current()
	assert.Equal(t, "Art", cur.Subject)
	assert.Equal(t, "art-1", cur.ID)
	assert.True(t, cur.IsFavorite)
	assert.Equal(t, Saved, c.State())
}

func TestIdentityChangeDuringToggle(t *testing.T) {
	g := newFake("abc123")
	g.hold = make(chan struct{})
	g.entered = make(chan struct{})
	c, s := setup(t, g, auth.Static("user42"))

	done := make(chan error, 1)
	go func() {
		_, err := c.Toggle(context.Background())
		done <- err
	}()
	<-g.entered

	assert.True(t, c.SetIdentity(auth.Static("user7")))
	require.NoError(t, c.Reconcile(context.Background()))
	close(g.hold)
	require.NoError(t, <-done)

	// the row belongs to user42; user7 sees the essay as unsaved
	cur, _ := s.Current()
	assert.Empty(t, cur.ID)
	assert.False(t, cur.IsFavorite)
	calls := g.Calls()
	assert.Equal(t, call{op: "find", userID: "user7", key: physics().Key()}, calls[len(calls)-1])
}
