// Package store holds the user collection shared by every view of the app.
//
// STATE:
// The Store owns exactly two pieces of shared mutable state, the fetched
// collection and a loading flag. Nothing else writes to them; every change
// goes through FetchUsers. Views read with State and learn about changes
// through Subscribe.
//
// REQUEST SEQUENCING:
// FetchUsers may be called while an earlier call is still in flight (a retry
// pressed twice, say). Each call draws a generation number, and only the most
// recently issued call is allowed to write its outcome. An older call that
// finishes late returns ErrSuperseded and changes nothing, so a slow stale
// response can never overwrite a fresher one.
//
// LIFECYCLE:
// A Store is constructed explicitly and passed to whoever needs it; there is
// no package-level instance. Close detaches all subscribers and suppresses
// every later write, including those of fetches still in flight.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/user-directory/internal/model"
	"github.com/sakif/user-directory/internal/observer"
)

var (
	// ErrSuperseded is returned by a fetch whose result was discarded because
	// a newer fetch was issued after it.
	ErrSuperseded = errors.New("store: fetch superseded by a newer request")

	// ErrClosed is returned by FetchUsers once the store is closed.
	ErrClosed = errors.New("store: closed")
)

// Source is the remote capability the store pulls from.
// *userapi.Client implements it.
type Source interface {
	FetchAllUsers(ctx context.Context) ([]model.User, error)
}

// State is a point-in-time read of the store.
type State struct {
	// Users is the current collection in server order. Treat it as
	// read-only: the store replaces it wholesale and never edits it.
	Users []model.User

	// Loading is true from the moment a fetch is issued until the most
	// recent one finishes.
	Loading bool

	// Version increases by one every time a fetch commits a new collection.
	// Views compare it to detect that the collection reference changed.
	Version uint64
}

// Store is the user collection store.
type Store struct {
	source Source
	logger *slog.Logger

	mu      sync.Mutex
	users   []model.User
	loading bool
	version uint64
	issued  uint64 // generation of the most recently issued fetch
	closed  bool

	observers observer.Registry
}

// New creates an empty, idle Store reading from source.
func New(source Source, logger *slog.Logger) *Store {
	return &Store{
		source: source,
		logger: logger,
		users:  []model.User{},
	}
}

// State returns the current state. It never blocks on a fetch.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	return State{Users: s.users, Loading: s.loading, Version: s.version}
}

// Subscribe registers fn to run after every state change. fn runs on the
// goroutine that made the change and must not block; read the new state
// with State.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	return s.observers.Add(fn)
}

// FetchUsers replaces the collection with a fresh copy from the source.
//
// Loading is set to true before the source is called, so a State read right
// after FetchUsers starts (from any goroutine) already sees it. On success the
// collection is replaced and Loading cleared. On failure the previous
// collection stays as it was, Loading is cleared, and the error is returned
// wrapped; converting it into something a person can read is the caller's job.
//
// There is no retry. Call FetchUsers again to retry.
func (s *Store) FetchUsers(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.issued++
	gen := s.issued
	s.loading = true
	s.mu.Unlock()
	s.observers.Notify()

	start := time.Now()
	users, err := s.source.FetchAllUsers(ctx)

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case gen != s.issued:
		s.mu.Unlock()
		s.logger.Debug("discarding superseded fetch",
			slog.Uint64("generation", gen),
			slog.Duration("duration", time.Since(start)),
		)
		return ErrSuperseded
	}

	s.loading = false
	if err == nil {
		if users == nil {
			users = []model.User{}
		}
		s.users = users
		s.version++
	}
	count := len(s.users)
	s.mu.Unlock()
	s.observers.Notify()

	if err != nil {
		s.logger.Warn("fetching users failed",
			slog.Uint64("generation", gen),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("store: fetching users: %w", err)
	}

	s.logger.Info("users fetched",
		slog.Int("count", count),
		slog.Uint64("generation", gen),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Close disposes of the store. Subscribers are dropped and in-flight fetches
// finish without writing anything. Close is idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.observers.Close()
}
