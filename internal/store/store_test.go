package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/user-directory/internal/apperror"
	"github.com/sakif/user-directory/internal/model"
)

// =========================================================================
// FAKE SOURCE
// =========================================================================

// fakeSource answers each call with the function registered for it.
// call numbers start at 1.
type fakeSource struct {
	mu    sync.Mutex
	calls int
	fetch func(ctx context.Context, call int) ([]model.User, error)
}

func (f *fakeSource) FetchAllUsers(ctx context.Context) ([]model.User, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fetch(ctx, call)
}

func users(ids ...int) []model.User {
	out := make([]model.User, len(ids))
	for i, id := range ids {
		out[i] = model.User{ID: id, Name: "User", Email: "user@example.com"}
	}
	return out
}

func newTestStore(t *testing.T, fetch func(ctx context.Context, call int) ([]model.User, error)) (*Store, *fakeSource) {
	t.Helper()
	src := &fakeSource{fetch: fetch}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(src, logger)
	t.Cleanup(s.Close)
	return s, src
}

var errTransport = apperror.Remote("userapi: GET /users", errors.New("connection refused"))

// =========================================================================
// BASIC FETCH
// =========================================================================

func TestNew_StartsEmptyAndIdle(t *testing.T) {
	s, _ := newTestStore(t, nil)

	st := s.State()
	assert.Empty(t, st.Users)
	assert.NotNil(t, st.Users)
	assert.False(t, st.Loading)
	assert.Zero(t, st.Version)
}

func TestFetchUsers_LoadingVisibleBeforeSourceRuns(t *testing.T) {
	var s *Store
	var sawLoading bool
	s, _ = newTestStore(t, func(context.Context, int) ([]model.User, error) {
		sawLoading = s.State().Loading
		return users(1, 2), nil
	})

	require.NoError(t, s.FetchUsers(context.Background()))
	assert.True(t, sawLoading)
}

func TestFetchUsers_Success(t *testing.T) {
	s, src := newTestStore(t, func(context.Context, int) ([]model.User, error) {
		return users(1, 2, 3), nil
	})

	require.NoError(t, s.FetchUsers(context.Background()))

	st := s.State()
	assert.Equal(t, users(1, 2, 3), st.Users)
	assert.False(t, st.Loading)
	assert.Equal(t, uint64(1), st.Version)
	assert.Equal(t, 1, src.calls)
}

func TestFetchUsers_ReplacesNotMerges(t *testing.T) {
	s, _ := newTestStore(t, func(_ context.Context, call int) ([]model.User, error) {
		if call == 1 {
			return users(1, 2, 3), nil
		}
		return users(7), nil
	})

	require.NoError(t, s.FetchUsers(context.Background()))
	require.NoError(t, s.FetchUsers(context.Background()))

	st := s.State()
	assert.Equal(t, users(7), st.Users)
	assert.Equal(t, uint64(2), st.Version)
}

// Previously loaded users survive a failing refetch.
func TestFetchUsers_ErrorLeavesStateIntact(t *testing.T) {
	s, _ := newTestStore(t, func(_ context.Context, call int) ([]model.User, error) {
		if call == 1 {
			return users(1, 2, 3), nil
		}
		return nil, errTransport
	})

	require.NoError(t, s.FetchUsers(context.Background()))
	before := s.State()

	err := s.FetchUsers(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrRemote, "error propagates to the caller")

	after := s.State()
	assert.Equal(t, users(1, 2, 3), after.Users)
	assert.Equal(t, before.Version, after.Version, "no new collection committed")
	assert.False(t, after.Loading)
}

func TestFetchUsers_ErrorOnEmptyStore(t *testing.T) {
	s, _ := newTestStore(t, func(context.Context, int) ([]model.User, error) {
		return nil, errTransport
	})

	assert.ErrorIs(t, s.FetchUsers(context.Background()), apperror.ErrRemote)
	assert.Empty(t, s.State().Users)
	assert.False(t, s.State().Loading)
}

// =========================================================================
// SUBSCRIPTIONS
// =========================================================================

func TestSubscribe(t *testing.T) {
	s, _ := newTestStore(t, func(context.Context, int) ([]model.User, error) {
		return users(1), nil
	})

	var seen []bool
	unsubscribe := s.Subscribe(func() { seen = append(seen, s.State().Loading) })

	require.NoError(t, s.FetchUsers(context.Background()))
	assert.Equal(t, []bool{true, false}, seen, "notified when loading starts and when it ends")

	unsubscribe()
	require.NoError(t, s.FetchUsers(context.Background()))
	assert.Len(t, seen, 2)
}

// =========================================================================
// SEQUENCING
// =========================================================================

func TestFetchUsers_OnlyLatestCommits(t *testing.T) {
	releaseFirst := make(chan struct{})
	firstStarted := make(chan struct{})

	s, _ := newTestStore(t, func(_ context.Context, call int) ([]model.User, error) {
		if call == 1 {
			close(firstStarted)
			<-releaseFirst
			return users(1, 2, 3), nil // stale
		}
		return users(10, 11), nil
	})

	firstErr := make(chan error, 1)
	go func() { firstErr <- s.FetchUsers(context.Background()) }()
	<-firstStarted

	require.NoError(t, s.FetchUsers(context.Background()))
	close(releaseFirst)

	assert.ErrorIs(t, <-firstErr, ErrSuperseded)

	st := s.State()
	assert.Equal(t, users(10, 11), st.Users, "the stale response did not overwrite the newer one")
	assert.Equal(t, uint64(1), st.Version)
	assert.False(t, st.Loading)
}

func TestFetchUsers_StaleCompletionKeepsLoading(t *testing.T) {
	firstInSource := make(chan struct{})
	secondStarted := make(chan struct{})
	releaseSecond := make(chan struct{})

	s, _ := newTestStore(t, func(_ context.Context, call int) ([]model.User, error) {
		if call == 1 {
			close(firstInSource)
			// Only fail once the second fetch is in flight.
			<-secondStarted
			return nil, errTransport
		}
		close(secondStarted)
		<-releaseSecond
		return users(5), nil
	})

	firstErr := make(chan error, 1)
	go func() { firstErr <- s.FetchUsers(context.Background()) }()
	<-firstInSource

	secondErr := make(chan error, 1)
	go func() { secondErr <- s.FetchUsers(context.Background()) }()

	assert.ErrorIs(t, <-firstErr, ErrSuperseded, "stale errors are swallowed too")
	assert.True(t, s.State().Loading, "the newer fetch is still running")

	close(releaseSecond)
	require.NoError(t, <-secondErr)
	assert.False(t, s.State().Loading)
	assert.Equal(t, users(5), s.State().Users)
}

// =========================================================================
// CLOSE
// =========================================================================

func TestClose_SuppressesInFlightWrites(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	s, _ := newTestStore(t, func(context.Context, int) ([]model.User, error) {
		close(started)
		<-release
		return users(1), nil
	})

	var notified atomic.Int32
	s.Subscribe(func() { notified.Add(1) })

	errc := make(chan error, 1)
	go func() { errc <- s.FetchUsers(context.Background()) }()
	<-started
	startNotifications := notified.Load()

	s.Close()
	close(release)

	assert.ErrorIs(t, <-errc, ErrClosed)
	assert.Empty(t, s.State().Users)
	assert.Equal(t, startNotifications, notified.Load(), "no notification after close")

	assert.ErrorIs(t, s.FetchUsers(context.Background()), ErrClosed)
}
