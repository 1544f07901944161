// Package reader is the entry point a presentation layer drives: generate an
// essay, read the current one, toggle it as a favorite, browse saved ones.
package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"essay_reader/auth"
	"essay_reader/essay"
	"essay_reader/favorite"
	"essay_reader/persistence"
)

// Generator produces essay text. *genclient.Client satisfies it.
type Generator interface {
	GenerateEssay(ctx context.Context, subject string, level essay.ReadingLevel) (string, error)
}

// ErrSuperseded is returned when a newer generation finished first; the older result was discarded.
var ErrSuperseded = errors.New("a newer essay replaced this one")

// Reader wires generation, the session and favorites together.
type Reader struct {
	gen       Generator
	gateway   persistence.Gateway
	session   *essay.Session
	favorites *favorite.Controller
	logger    zerolog.Logger
}

// New builds a Reader with its own session. identity may be nil (signed out).
func New(gen Generator, gateway persistence.Gateway, identity auth.Identity, logger zerolog.Logger) *Reader {
	session := essay.NewSession()
	return &Reader{
		gen:       gen,
		gateway:   gateway,
		session:   session,
		favorites: favorite.NewController(gateway, session, favorite.WithIdentity(identity), favorite.WithLogger(logger)),
		logger:    logger,
	}
}

// Session exposes the shared current-essay holder.
func (r *Reader) Session() *essay.Session {
	return r.session
}

// Current returns the essay being viewed.
func (r *Reader) Current() (essay.Essay, bool) {
	return r.session.Current()
}

// FavoriteState reports the current essay's toggle state.
func (r *Reader) FavoriteState() favorite.State {
	return r.favorites.State()
}

// Generate requests a new essay and makes it current.
//
// On a generation error the session is left as it was. When a newer request
// has already been accepted the result is dropped and ErrSuperseded returned.
// If the essay became current but its saved status could not be checked, the
// essay is returned together with the persistence error.
func (r *Reader) Generate(ctx context.Context, subject string, level essay.ReadingLevel) (essay.Essay, error) {
	ticket := r.session.Ticket()
	content, err := r.gen.GenerateEssay(ctx, subject, level)
	if err != nil {
		return essay.Essay{}, err
	}
	e := essay.Essay{Subject: subject, ReadingLevel: level, Content: content}
	if !r.session.Offer(ticket, e) {
		r.logger.Debug().Uint64("ticket", ticket).Msg("stale generation discarded")
		return essay.Essay{}, ErrSuperseded
	}
	if err := r.favorites.Reconcile(ctx); err != nil {
		cur, _ := r.session.Current()
		return cur, fmt.Errorf("check saved status: %w", err)
	}
	cur, _ := r.session.Current()
	return cur, nil
}

// Open makes a saved record the current essay.
func (r *Reader) Open(rec persistence.SavedEssayRecord) essay.Essay {
	e := rec.Essay()
	r.session.Set(&e)
	return e
}

// Clear empties the session.
func (r *Reader) Clear() {
	r.session.Set(nil)
}

// ToggleFavorite saves or removes the current essay.
func (r *Reader) ToggleFavorite(ctx context.Context) (favorite.State, error) {
	return r.favorites.Toggle(ctx)
}

// SignedIn switches the acting user and re-checks the current essay.
func (r *Reader) SignedIn(ctx context.Context, id auth.Identity) error {
	if !r.favorites.SetIdentity(id) {
		return nil
	}
	return r.favorites.Reconcile(ctx)
}

// SignedOut drops the acting user.
func (r *Reader) SignedOut(ctx context.Context) error {
	return r.SignedIn(ctx, auth.Anonymous)
}

// Saved lists the acting user's saved essays, newest first.
func (r *Reader) Saved(ctx context.Context) ([]persistence.SavedEssayRecord, error) {
	userID, _ := r.favorites.UserID()
	return r.gateway.ListSaved(ctx, userID)
}
