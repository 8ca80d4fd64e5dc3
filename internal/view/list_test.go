package view

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/user-directory/internal/apperror"
	"github.com/sakif/user-directory/internal/model"
	"github.com/sakif/user-directory/internal/store"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

// =========================================================================
// TEST HELPERS
// =========================================================================

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

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// numberedUsers returns users with ids 1..n.
func numberedUsers(n int) []model.User {
	out := make([]model.User, n)
	for i := range out {
		id := i + 1
		out[i] = model.User{
			ID:    id,
			Name:  fmt.Sprintf("User %d", id),
			Email: fmt.Sprintf("user%d@example.com", id),
		}
	}
	return out
}

func always(users []model.User) func(context.Context, int) ([]model.User, error) {
	return func(context.Context, int) ([]model.User, error) { return users, nil }
}

func ids(users []model.User) []int {
	out := make([]int, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func idRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTestList wires a real store to a fake source and returns a controller
// with a short settle delay.
func newTestList(t *testing.T, fetch func(context.Context, int) ([]model.User, error), opts ListOptions) (*ListController, *store.Store, *fakeSource) {
	t.Helper()
	src := &fakeSource{fetch: fetch}
	st := store.New(src, testLogger)
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 20 * time.Millisecond
	}
	opts.Logger = testLogger
	c := NewListController(st, opts)
	t.Cleanup(func() {
		c.Close()
		st.Close()
	})
	return c, st, src
}

// loadMoreAndSettle calls LoadMore and waits until the window settled.
func loadMoreAndSettle(t *testing.T, c *ListController) bool {
	t.Helper()
	started := c.LoadMore()
	if started {
		require.Eventually(t, func() bool { return !c.Snapshot().LoadingMore }, waitFor, tick)
	}
	return started
}

// =========================================================================
// SCENARIOS
// =========================================================================

// Twelve users with a page size of five reveal in steps of 5, 10, 12.
func TestList_IncrementalReveal(t *testing.T) {
	c, _, _ := newTestList(t, always(numberedUsers(12)), ListOptions{PageSize: 5})
	require.NoError(t, c.Mount(context.Background()))

	s := c.Snapshot()
	assert.Equal(t, idRange(1, 5), ids(s.Users))
	assert.Equal(t, 1, s.Page)
	assert.True(t, s.HasMore())

	require.True(t, loadMoreAndSettle(t, c))
	s = c.Snapshot()
	assert.Equal(t, idRange(1, 10), ids(s.Users))
	assert.Equal(t, 2, s.Page)

	require.True(t, loadMoreAndSettle(t, c))
	s = c.Snapshot()
	assert.Equal(t, idRange(1, 12), ids(s.Users), "only two new records on the last page")
	assert.Equal(t, 3, s.Page)
	assert.False(t, s.HasMore())

	assert.False(t, c.LoadMore(), "nothing left to reveal")
	s = c.Snapshot()
	assert.False(t, s.LoadingMore)
	assert.Len(t, s.Users, 12)
	assert.Equal(t, 3, s.Page)
}

func TestList_SearchMatchesVisibleUser(t *testing.T) {
	mock := []model.User{{ID: 1, Name: "Mock User", Email: "mock@example.com"}}
	c, _, _ := newTestList(t, always(mock), ListOptions{})
	require.NoError(t, c.Mount(context.Background()))

	c.SetSearchTerm("mock")
	assert.Equal(t, mock, c.Snapshot().Users)
}

func TestList_ErrorThenRetry(t *testing.T) {
	c, st, _ := newTestList(t, func(_ context.Context, call int) ([]model.User, error) {
		if call == 1 {
			return nil, apperror.Remote("userapi: GET /users", errors.New("no route to host"))
		}
		return numberedUsers(3), nil
	}, ListOptions{})

	err := c.Mount(context.Background())
	assert.ErrorIs(t, err, apperror.ErrRemote)

	s := c.Snapshot()
	assert.Equal(t, ListLoadErrorMessage, s.ErrorMessage)
	assert.Empty(t, s.Users)
	assert.Empty(t, st.State().Users)
	assert.False(t, s.InitialLoading)

	require.NoError(t, c.Retry(context.Background()))

	s = c.Snapshot()
	assert.Empty(t, s.ErrorMessage, "success clears the error")
	assert.Equal(t, []int{1, 2, 3}, ids(s.Users))
	assert.Len(t, st.State().Users, 3)
}

// =========================================================================
// PROPERTIES
// =========================================================================

// A successful fetch always snaps the window back to the first page.
func TestList_FetchResetsWindow(t *testing.T) {
	tests := []struct {
		name    string
		refetch []model.User
		want    []int
	}{
		{"bigger than a page", numberedUsers(12), idRange(1, 5)},
		{"smaller than a page", numberedUsers(3), idRange(1, 3)},
		{"empty", []model.User{}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestList(t, func(_ context.Context, call int) ([]model.User, error) {
				if call == 1 {
					return numberedUsers(12), nil
				}
				return tt.refetch, nil
			}, ListOptions{PageSize: 5})

			require.NoError(t, c.Mount(context.Background()))
			require.True(t, loadMoreAndSettle(t, c))
			require.True(t, loadMoreAndSettle(t, c))
			require.Equal(t, 3, c.Snapshot().Page)

			require.NoError(t, c.Retry(context.Background()))

			s := c.Snapshot()
			assert.Equal(t, tt.want, ids(s.Users))
			assert.Equal(t, 1, s.Page)
		})
	}
}

func TestList_RevealIsMonotonic(t *testing.T) {
	for _, total := range []int{0, 1, 5, 6, 23} {
		t.Run(fmt.Sprintf("%d users", total), func(t *testing.T) {
			c, _, _ := newTestList(t, always(numberedUsers(total)), ListOptions{PageSize: 5, SettleDelay: time.Millisecond})
			require.NoError(t, c.Mount(context.Background()))

			prev := len(c.Snapshot().Users)
			for i := 0; i < 10; i++ {
				loadMoreAndSettle(t, c)
				n := len(c.Snapshot().Users)
				assert.GreaterOrEqual(t, n, prev)
				assert.LessOrEqual(t, n, total)
				prev = n
			}
			assert.Equal(t, total, prev)

			var flipped atomic.Bool
			unsubscribe := c.Subscribe(func() {
				if c.Snapshot().LoadingMore {
					flipped.Store(true)
				}
			})
			defer unsubscribe()

			assert.False(t, c.LoadMore())
			assert.False(t, flipped.Load(), "loadingMore never turns on once everything is revealed")
		})
	}
}

func TestList_LoadMoreIgnoredWhilePending(t *testing.T) {
	c, _, _ := newTestList(t, always(numberedUsers(20)), ListOptions{PageSize: 5, SettleDelay: 50 * time.Millisecond})
	require.NoError(t, c.Mount(context.Background()))

	require.True(t, c.LoadMore())
	assert.True(t, c.Snapshot().LoadingMore)
	assert.False(t, c.LoadMore(), "second call while the first is settling")
	assert.False(t, c.LoadMore())

	require.Eventually(t, func() bool { return !c.Snapshot().LoadingMore }, waitFor, tick)
	s := c.Snapshot()
	assert.Equal(t, 2, s.Page)
	assert.Len(t, s.Users, 10)
}

// With window-scoped search, a match beyond the revealed window stays hidden
// until load-more reaches it.
func TestList_SearchScopedToRevealedWindow(t *testing.T) {
	users := numberedUsers(10)
	users[6].Name = "Needle Person" // position 7

	c, _, _ := newTestList(t, always(users), ListOptions{PageSize: 5, Scope: FilterRevealed})
	require.NoError(t, c.Mount(context.Background()))

	c.SetSearchTerm("needle")
	assert.Empty(t, c.Snapshot().Users)

	require.True(t, loadMoreAndSettle(t, c))
	assert.Equal(t, []int{7}, ids(c.Snapshot().Users))
}

func TestList_SearchScopedToCollection(t *testing.T) {
	users := numberedUsers(10)
	users[6].Name = "Needle Person"

	c, _, _ := newTestList(t, always(users), ListOptions{PageSize: 5, Scope: FilterCollection})
	require.NoError(t, c.Mount(context.Background()))

	c.SetSearchTerm("needle")
	assert.Equal(t, []int{7}, ids(c.Snapshot().Users))

	c.SetSearchTerm("user")
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(c.Snapshot().Users), "still windowed to one page")
}

func TestList_SearchIsCaseInsensitive(t *testing.T) {
	users := []model.User{
		{ID: 1, Name: "John Doe", Email: "jd@example.com"},
		{ID: 2, Name: "Bob", Email: "bob@john.com"},
		{ID: 3, Name: "Alice", Email: "alice@example.com"},
	}
	c, _, _ := newTestList(t, always(users), ListOptions{})
	require.NoError(t, c.Mount(context.Background()))

	c.SetSearchTerm("JOHN")
	s := c.Snapshot()
	assert.Equal(t, []int{1, 2}, ids(s.Users))
	assert.Equal(t, "JOHN", s.SearchTerm)

	c.SetSearchTerm("")
	assert.Len(t, c.Snapshot().Users, 3)
}

// =========================================================================
// LIFECYCLE AND CONCURRENCY
// =========================================================================

func TestList_MountSkipsFetchWhenLoaded(t *testing.T) {
	c, st, src := newTestList(t, always(numberedUsers(3)), ListOptions{})
	require.NoError(t, st.FetchUsers(context.Background()))

	require.NoError(t, c.Mount(context.Background()))
	assert.Equal(t, 1, src.Calls())
	assert.Len(t, c.Snapshot().Users, 3)
}

func TestList_InitialLoadingFollowsStore(t *testing.T) {
	release := make(chan struct{})
	c, _, _ := newTestList(t, func(context.Context, int) ([]model.User, error) {
		<-release
		return numberedUsers(2), nil
	}, ListOptions{})

	done := make(chan error, 1)
	go func() { done <- c.Mount(context.Background()) }()

	require.Eventually(t, func() bool { return c.Snapshot().InitialLoading }, waitFor, tick)
	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Snapshot().InitialLoading)
}

func TestList_NotifiesOnStoreChange(t *testing.T) {
	c, st, _ := newTestList(t, always(numberedUsers(7)), ListOptions{})

	var notified atomic.Int32
	c.Subscribe(func() { notified.Add(1) })

	require.NoError(t, st.FetchUsers(context.Background()))
	assert.GreaterOrEqual(t, notified.Load(), int32(2))
	assert.Len(t, c.Snapshot().Users, 5)
}

// A refetch landing while load-more is settling resets the cursor first; the
// load-more then advances from the fresh first page of the new collection.
func TestList_RefetchDuringPendingLoadMore(t *testing.T) {
	c, _, _ := newTestList(t, func(_ context.Context, call int) ([]model.User, error) {
		if call == 1 {
			return numberedUsers(12), nil
		}
		users := numberedUsers(8)
		for i := range users {
			users[i].ID += 100
		}
		return users, nil
	}, ListOptions{PageSize: 5, SettleDelay: 80 * time.Millisecond})

	require.NoError(t, c.Mount(context.Background()))
	require.True(t, loadMoreAndSettle(t, c))
	require.Equal(t, 2, c.Snapshot().Page)

	require.True(t, c.LoadMore())
	require.NoError(t, c.Retry(context.Background()))

	s := c.Snapshot()
	assert.Equal(t, 1, s.Page, "refetch reset the cursor")
	assert.True(t, s.LoadingMore)

	require.Eventually(t, func() bool { return !c.Snapshot().LoadingMore }, waitFor, tick)
	s = c.Snapshot()
	assert.Equal(t, 2, s.Page)
	assert.Equal(t, idRange(101, 108), ids(s.Users))
	assert.LessOrEqual(t, s.Revealed, s.Total)
}

func TestList_CloseStopsPendingLoadMore(t *testing.T) {
	c, st, _ := newTestList(t, always(numberedUsers(12)), ListOptions{PageSize: 5, SettleDelay: 30 * time.Millisecond})
	require.NoError(t, c.Mount(context.Background()))

	var notified atomic.Int32
	c.Subscribe(func() { notified.Add(1) })

	require.True(t, c.LoadMore())
	before := notified.Load()
	c.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, before, notified.Load(), "no notifications after close")
	assert.Equal(t, 1, c.Snapshot().Page, "window did not advance")

	assert.False(t, c.LoadMore())

	// Store changes no longer reach the closed controller.
	require.NoError(t, st.FetchUsers(context.Background()))
	assert.Equal(t, before, notified.Load())
}

func TestList_ZeroOptionsUseDefaultSettleDelay(t *testing.T) {
	st := store.New(&fakeSource{fetch: always(numberedUsers(12))}, testLogger)
	c := NewListController(st, ListOptions{})
	t.Cleanup(func() {
		c.Close()
		st.Close()
	})

	require.NoError(t, c.Mount(context.Background()))
	require.Len(t, c.Snapshot().Users, 5, "default page size")

	require.True(t, c.LoadMore())
	time.Sleep(50 * time.Millisecond)

	s := c.Snapshot()
	assert.True(t, s.LoadingMore, "still settling well before 500ms")
	assert.Equal(t, 5, s.Revealed)

	require.Eventually(t, func() bool { return !c.Snapshot().LoadingMore }, waitFor, tick)
	assert.Equal(t, 10, c.Snapshot().Revealed)
}

func TestList_NoSettleDelay(t *testing.T) {
	c, _, _ := newTestList(t, always(numberedUsers(12)), ListOptions{SettleDelay: NoSettleDelay})
	require.NoError(t, c.Mount(context.Background()))

	require.True(t, c.LoadMore())
	require.Eventually(t, func() bool { return c.Snapshot().Revealed == 10 }, 200*time.Millisecond, tick)
}

func TestListOptions_WithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"zero is the default", 0, DefaultSettleDelay},
		{"negative settles immediately", NoSettleDelay, 0},
		{"explicit value kept", 80 * time.Millisecond, 80 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ListOptions{SettleDelay: tt.in}.withDefaults()
			assert.Equal(t, tt.want, got.SettleDelay)
			assert.Equal(t, 5, got.PageSize)
			assert.NotNil(t, got.Logger)
		})
	}
}

func TestParseFilterScope(t *testing.T) {
	tests := []struct {
		in      string
		want    FilterScope
		wantErr bool
	}{
		{"window", FilterRevealed, false},
		{"", FilterRevealed, false},
		{"collection", FilterCollection, false},
		{"galaxy", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFilterScope(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "collection", FilterCollection.String())
}
