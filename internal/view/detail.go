package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/user-directory/internal/model"
	"github.com/sakif/user-directory/internal/observer"
)

// UserFetcher loads a single user. *userapi.Client implements it.
type UserFetcher interface {
	FetchUserByID(ctx context.Context, id int) (*model.User, error)
}

// DetailState is the read model of the detail screen.
type DetailState struct {
	UserID       int
	User         *model.User // nil until the first successful load
	Loading      bool
	ErrorMessage string
}

// DetailController loads one user for the detail screen. It starts in the
// loading state because the screen always fetches on open.
type DetailController struct {
	fetcher UserFetcher
	userID  int
	logger  *slog.Logger

	mu       sync.Mutex
	user     *model.User
	loading  bool
	errMsg   string
	issued   uint64
	disposed bool

	observers observer.Registry
}

// NewDetailController prepares a controller for userID. Call Load to fetch.
func NewDetailController(fetcher UserFetcher, userID int, logger *slog.Logger) *DetailController {
	if logger == nil {
		logger = discardLogger()
	}
	return &DetailController{
		fetcher: fetcher,
		userID:  userID,
		logger:  logger,
		loading: true,
	}
}

// UserID returns the id handed over by the list screen.
func (d *DetailController) UserID() int { return d.userID }

// Subscribe registers fn to run whenever the read model changed.
func (d *DetailController) Subscribe(fn func()) (unsubscribe func()) {
	return d.observers.Add(fn)
}

// Load fetches the user. Only the latest of overlapping calls updates the
// state. Errors are recorded as a static message and also returned.
func (d *DetailController) Load(ctx context.Context) error {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return nil
	}
	d.issued++
	gen := d.issued
	d.loading = true
	d.errMsg = ""
	d.mu.Unlock()
	d.observers.Notify()

	u, err := d.fetcher.FetchUserByID(ctx, d.userID)

	d.mu.Lock()
	if d.disposed || gen != d.issued {
		d.mu.Unlock()
		return nil
	}
	d.loading = false
	if err != nil {
		d.errMsg = DetailLoadErrorMessage
	} else {
		d.user = u
	}
	d.mu.Unlock()
	d.observers.Notify()

	if err != nil {
		d.logger.Warn("loading user failed",
			slog.Int("user_id", d.userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("view: loading user %d: %w", d.userID, err)
	}
	return nil
}

// Retry is Load under the name the screen's retry action uses.
func (d *DetailController) Retry(ctx context.Context) error {
	return d.Load(ctx)
}

// Snapshot returns the current read model.
func (d *DetailController) Snapshot() DetailState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DetailState{
		UserID:       d.userID,
		User:         d.user,
		Loading:      d.loading,
		ErrorMessage: d.errMsg,
	}
}

// Close suppresses every later state write and drops subscribers.
func (d *DetailController) Close() {
	d.mu.Lock()
	d.disposed = true
	d.mu.Unlock()
	d.observers.Close()
}
