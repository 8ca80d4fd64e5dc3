// Package view turns store state into what a screen shows.
//
// A controller never renders anything. It derives a read model (ListState,
// DetailState), exposes the actions a screen can trigger, and notifies
// subscribers whenever the read model may have changed. Renderers call
// Snapshot on notification.
//
// Each controller belongs to one screen instance and must be closed when the
// screen goes away; Close stops pending timers and suppresses every later
// state write.
package view

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/user-directory/internal/model"
	"github.com/sakif/user-directory/internal/observer"
	"github.com/sakif/user-directory/internal/store"
)

// UserStore is the part of *store.Store the list screen needs.
type UserStore interface {
	State() store.State
	FetchUsers(ctx context.Context) error
	Subscribe(fn func()) (unsubscribe func())
}

// ListState is the read model of the list screen.
type ListState struct {
	Users          []model.User // visible, filtered, in server order
	InitialLoading bool         // a collection fetch is in flight
	LoadingMore    bool         // a load-more is waiting for its settle delay
	ErrorMessage   string       // empty when there is no error

	Page       int    // page cursor, 1-based
	Revealed   int    // size of the reveal window
	Total      int    // size of the full collection
	SearchTerm string // active filter, empty for none
}

// HasMore reports whether load-more would reveal anything.
func (s ListState) HasMore() bool { return s.Revealed < s.Total }

// ListController drives the paginated, searchable user list.
//
// PAGINATION:
// The whole collection is already in memory; "pages" only decide how much of
// it is revealed. LoadMore grows the window by one page after the settle
// delay. Whenever the store commits a new collection the window snaps back to
// the first page.
type ListController struct {
	store  UserStore
	opts   ListOptions
	logger *slog.Logger

	mu          sync.Mutex
	version     uint64 // store version the window belongs to
	page        int
	revealed    int
	term        string
	loadingMore bool
	errMsg      string
	timer       *time.Timer
	disposed    bool

	unsubscribe func()
	observers   observer.Registry
}

// NewListController attaches a controller to st. Zero-valued options fall
// back to the defaults.
func NewListController(st UserStore, opts ListOptions) *ListController {
	opts = opts.withDefaults()
	c := &ListController{
		store:  st,
		opts:   opts,
		logger: opts.Logger,
	}
	c.resetLocked(st.State())
	c.unsubscribe = st.Subscribe(c.onStoreChange)
	return c
}

// Subscribe registers fn to run whenever the read model may have changed.
func (c *ListController) Subscribe(fn func()) (unsubscribe func()) {
	return c.observers.Add(fn)
}

// Mount fetches the collection unless the store already holds one.
// Errors are recorded in the read model and also returned.
func (c *ListController) Mount(ctx context.Context) error {
	if len(c.store.State().Users) > 0 {
		return nil
	}
	return c.fetch(ctx)
}

// Retry fetches the collection again.
func (c *ListController) Retry(ctx context.Context) error {
	return c.fetch(ctx)
}

func (c *ListController) fetch(ctx context.Context) error {
	if !c.update(func() { c.errMsg = "" }) {
		return nil
	}

	err := c.store.FetchUsers(ctx)
	if err == nil || errors.Is(err, store.ErrSuperseded) || errors.Is(err, store.ErrClosed) {
		return nil
	}

	c.logger.Warn("loading user list failed", slog.String("error", err.Error()))
	c.update(func() { c.errMsg = ListLoadErrorMessage })
	return err
}

// SetSearchTerm sets the filter. The empty string shows everything.
func (c *ListController) SetSearchTerm(term string) {
	c.update(func() { c.term = term })
}

// LoadMore reveals one more page after the settle delay. It reports false,
// doing nothing, when a load-more is already pending or everything is
// already revealed.
func (c *ListController) LoadMore() bool {
	c.mu.Lock()
	st := c.store.State()
	c.syncLocked(st)
	if c.disposed || c.loadingMore || c.revealed >= len(st.Users) {
		c.mu.Unlock()
		return false
	}
	c.loadingMore = true
	c.timer = time.AfterFunc(c.opts.SettleDelay, c.settle)
	c.mu.Unlock()

	c.observers.Notify()
	return true
}

// settle runs when the settle delay elapses. It computes the window from the
// collection that is current now, which is not necessarily the one LoadMore
// saw.
func (c *ListController) settle() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	st := c.store.State()
	c.syncLocked(st)

	c.page++
	c.revealed = min(len(st.Users), c.opts.PageSize*c.page)
	c.loadingMore = false
	c.timer = nil
	page, revealed := c.page, c.revealed
	c.mu.Unlock()

	c.logger.Debug("page revealed",
		slog.Int("page", page),
		slog.Int("revealed", revealed),
		slog.Int("total", len(st.Users)),
	)
	c.observers.Notify()
}

// Snapshot returns the current read model.
func (c *ListController) Snapshot() ListState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.store.State()
	c.syncLocked(st)

	n := min(c.revealed, len(st.Users))
	var visible []model.User
	switch c.opts.Scope {
	case FilterCollection:
		visible = filterUsers(st.Users, c.term)
		if len(visible) > n {
			visible = visible[:n]
		}
	default:
		visible = filterUsers(st.Users[:n], c.term)
	}

	return ListState{
		Users:          visible,
		InitialLoading: st.Loading,
		LoadingMore:    c.loadingMore,
		ErrorMessage:   c.errMsg,
		Page:           c.page,
		Revealed:       n,
		Total:          len(st.Users),
		SearchTerm:     c.term,
	}
}

// Close detaches from the store and stops a pending load-more.
func (c *ListController) Close() {
	c.mu.Lock()
	c.disposed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.unsubscribe()
	c.observers.Close()
}

func (c *ListController) onStoreChange() {
	c.update(func() { c.syncLocked(c.store.State()) })
}

// update applies fn under the lock and notifies subscribers. It reports false
// if the controller was already closed.
func (c *ListController) update(fn func()) bool {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return false
	}
	fn()
	c.mu.Unlock()
	c.observers.Notify()
	return true
}

// syncLocked resets the window when the store committed a new collection.
func (c *ListController) syncLocked(st store.State) {
	if st.Version != c.version {
		c.resetLocked(st)
	}
}

func (c *ListController) resetLocked(st store.State) {
	c.version = st.Version
	c.page = 1
	c.revealed = min(c.opts.PageSize, len(st.Users))
}

func filterUsers(users []model.User, term string) []model.User {
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if u.Matches(term) {
			out = append(out, u)
		}
	}
	return out
}
