// Package favorite keeps the current essay's saved state in step with the store.
//
// The toggle cycles Unsaved → Saving → Saved → Removing → Unsaved. Network
// calls run without holding any lock; results are written back to the session
// only if the essay they started from is still current and the acting user
// has not changed in the meantime.
package favorite

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"essay_reader/auth"
	"essay_reader/essay"
	"essay_reader/persistence"
)

// State of the current essay's favorite toggle.
type State int

const (
	Unsaved State = iota
	Saving
	Saved
	Removing
)

func (s State) String() string {
	switch s {
	case Unsaved:
		return "unsaved"
	case Saving:
		return "saving"
	case Saved:
		return "saved"
	case Removing:
		return "removing"
	default:
		return "unknown"
	}
}

var (
	// ErrToggleInFlight is returned for a toggle issued while another is still running. The call is ignored.
	ErrToggleInFlight = errors.New("a favorite change is already in progress")
	// ErrNoEssay is returned when there is no current essay to toggle.
	ErrNoEssay = errors.New("there is no essay to save")
)

// Controller owns the toggle state machine for the session's current essay.
type Controller struct {
	gateway persistence.Gateway
	session *essay.Session
	logger  zerolog.Logger

	mu       sync.Mutex
	identity auth.Identity
	inFlight bool
	pending  State
	// toggle 进行中收到的 reconcile 请求，toggle 结束后补做
	reconcileDue bool
	// 每次 toggle 完成或身份切换时递增，用于丢弃过期的 reconcile 结果
	epoch uint64
}

// Option customizes the controller.
type Option func(*Controller)

// WithIdentity sets the initial acting user.
func WithIdentity(id auth.Identity) Option {
	return func(c *Controller) {
		if id != nil {
			c.identity = id
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController builds a controller over gateway and session.
func NewController(gateway persistence.Gateway, session *essay.Session, opts ...Option) *Controller {
	c := &Controller{
		gateway:  gateway,
		session:  session,
		logger:   zerolog.Nop(),
		identity: auth.Anonymous,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) userLocked() string {
	id, _ := c.identity.UserID()
	return id
}

// UserID returns the acting user, if signed in.
func (c *Controller) UserID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity.UserID()
}

// State reports the toggle state of the current essay.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return c.pending
	}
	if e, ok := c.session.Current(); ok && e.IsFavorite {
		return Saved
	}
	return Unsaved
}

// SetIdentity switches the acting user. It returns true when the user id changed,
// in which case any id held for the current essay is dropped: it belonged to the
// previous user. Callers reconcile afterwards.
func (c *Controller) SetIdentity(id auth.Identity) bool {
	if id == nil {
		id = auth.Anonymous
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.userLocked()
	c.identity = id
	after := c.userLocked()
	if before == after {
		return false
	}
	c.epoch++
	if _, version, ok := c.session.Snapshot(); ok {
		c.session.Amend(version, func(e *essay.Essay) {
			e.ID = ""
			e.IsFavorite = false
		})
	}
	c.logger.Debug().Bool("signed_in", after != "").Msg("identity changed")
	return true
}

// Toggle saves an unsaved current essay or removes a saved one and returns the resulting state.
// On failure the state is unchanged and the error is returned.
func (c *Controller) Toggle(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.inFlight {
		state := c.pending
		c.mu.Unlock()
		return state, ErrToggleInFlight
	}
	userID := c.userLocked()
	if userID == "" {
		c.mu.Unlock()
		return c.State(), persistence.ErrUnauthenticated
	}
	current, version, ok := c.session.Snapshot()
	if !ok {
		c.mu.Unlock()
		return Unsaved, ErrNoEssay
	}
	from, next := Unsaved, Saving
	if current.IsFavorite {
		from, next = Saved, Removing
	}
	c.inFlight = true
	c.pending = next
	c.mu.Unlock()

	var (
		to    State
		err   error
		amend func(*essay.Essay)
	)
	if from == Unsaved {
		to, amend, err = c.save(ctx, userID, current)
	} else {
		to, amend, err = c.remove(ctx, userID, current)
	}
	if err != nil {
		to = from
	}

	c.mu.Lock()
	c.inFlight = false
	c.epoch++
	if amend != nil && c.userLocked() == userID {
		if !c.session.Amend(version, amend) {
			c.logger.Debug().Str("state", to.String()).Msg("essay replaced during toggle")
		}
	}
	_, now, _ := c.session.Snapshot()
	rerun := c.reconcileDue || now != version || c.userLocked() != userID
	c.reconcileDue = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Str("from", from.String()).Msg("favorite toggle failed")
	}
	if rerun {
		// the essay or the user changed underneath the toggle
		if rerr := c.Reconcile(ctx); rerr != nil {
			c.logger.Warn().Err(rerr).Msg("reconcile after toggle failed")
		}
	}
	return to, err
}

func (c *Controller) save(ctx context.Context, userID string, current essay.Essay) (State, func(*essay.Essay), error) {
	id, err := c.gateway.Save(ctx, userID, current.Key())
	if err != nil {
		return Unsaved, nil, err
	}
	return Saved, func(e *essay.Essay) {
		e.ID = id
		e.IsFavorite = true
	}, nil
}

func (c *Controller) remove(ctx context.Context, userID string, current essay.Essay) (State, func(*essay.Essay), error) {
	cleared := func(e *essay.Essay) {
		e.ID = ""
		e.IsFavorite = false
	}
	id := current.ID
	if id == "" {
		// 只有内容匹配、没有 id：先解析出最新的那一行再删
		found, err := c.gateway.FindDuplicate(ctx, userID, current.Key())
		if err != nil {
			return Saved, nil, err
		}
		if found == "" {
			return Unsaved, cleared, nil
		}
		id = found
	}
	if err := c.gateway.Remove(ctx, id, userID); err != nil {
		return Saved, nil, err
	}
	return Unsaved, cleared, nil
}

// Reconcile re-derives the current essay's id and favorite flag from the store.
// Call it when the acting user changes or a new essay becomes current, not on every read.
// A known id is authoritative and is kept as is. While a toggle is running the
// request is deferred and carried out when the toggle finishes.
func (c *Controller) Reconcile(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight {
		c.reconcileDue = true
		c.mu.Unlock()
		return nil
	}
	current, version, ok := c.session.Snapshot()
	if !ok {
		c.mu.Unlock()
		return nil
	}
	userID := c.userLocked()
	if userID == "" {
		c.session.Amend(version, func(e *essay.Essay) {
			e.ID = ""
			e.IsFavorite = false
		})
		c.mu.Unlock()
		return nil
	}
	if current.Saved() {
		c.mu.Unlock()
		return nil
	}
	epoch := c.epoch
	c.mu.Unlock()

	found, err := c.gateway.FindDuplicate(ctx, userID, current.Key())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		c.reconcileDue = true
		return nil
	}
	if c.epoch != epoch {
		return nil
	}
	c.session.Amend(version, func(e *essay.Essay) {
		e.ID = found
		e.IsFavorite = found != ""
	})
	return nil
}
