package guard

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/biztrack/console/internal/session"
	"github.com/biztrack/console/pkg/clients/biztrack"
)

// ErrNotAuthenticated means no session is present; callers land on the
// login entry path.
var ErrNotAuthenticated = errors.New("not authenticated, please login first")

// ErrSessionExpired means a protected call observed a rejected credential.
// By the time it surfaces, the stored token is already gone.
var ErrSessionExpired = errors.New("session expired, please login again")

// Guard gates protected operations behind a valid session. It owns the only
// teardown path in the client: any ErrAuthFailed surfaced by a guarded
// operation clears the store, unconditionally and uniformly.
type Guard struct {
	tokens     session.Store
	logger     *zap.Logger
	onTeardown func()

	mu sync.Mutex
}

// New constructs a guard around the given store. onTeardown, when non-nil,
// runs once per teardown after the store is cleared (the console uses it to
// navigate back to the login entry point).
func New(tokens session.Store, logger *zap.Logger, onTeardown func()) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{tokens: tokens, logger: logger, onTeardown: onTeardown}
}

// Authenticated reports whether a session is currently present.
func (g *Guard) Authenticated() bool {
	_, ok := g.tokens.Get()
	return ok
}

// Require runs fn only when a session is present. When fn reports
// ErrAuthFailed the guard tears the session down and returns
// ErrSessionExpired; every other failure passes through untouched for
// screen-local handling.
func (g *Guard) Require(ctx context.Context, fn func(context.Context) error) error {
	if !g.Authenticated() {
		return ErrNotAuthenticated
	}

	err := fn(ctx)
	if errors.Is(err, biztrack.ErrAuthFailed) {
		g.Teardown()
		return ErrSessionExpired
	}
	return err
}

// Teardown transitions to the unauthenticated state: the store is cleared
// and the teardown hook fires. The transition happens once per session; an
// already-unauthenticated guard treats Teardown as a no-op, so overlapping
// failure paths (a view-model hook and Require observing the same rejected
// credential) produce a single redirect.
func (g *Guard) Teardown() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.tokens.Get(); !ok {
		return
	}

	if err := g.tokens.Clear(); err != nil {
		g.logger.Warn("failed clearing session store", zap.Error(err))
	}
	g.logger.Info("session torn down")

	if g.onTeardown != nil {
		g.onTeardown()
	}
}
