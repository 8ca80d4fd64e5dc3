package view

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Static messages shown next to the retry action.
const (
	ListLoadErrorMessage   = "Could not load users. Check your connection."
	DetailLoadErrorMessage = "Could not load this user. Please try again."
)

// FilterScope decides which users the search term is applied to.
type FilterScope int

const (
	// FilterRevealed searches only the revealed page window. A match further
	// down the collection stays hidden until load-more reveals it.
	FilterRevealed FilterScope = iota

	// FilterCollection searches the whole collection and then shows the
	// first Revealed matches.
	FilterCollection
)

func (s FilterScope) String() string {
	switch s {
	case FilterRevealed:
		return "window"
	case FilterCollection:
		return "collection"
	default:
		return fmt.Sprintf("FilterScope(%d)", int(s))
	}
}

// ParseFilterScope accepts "window" or "collection".
func ParseFilterScope(s string) (FilterScope, error) {
	switch s {
	case "window", "":
		return FilterRevealed, nil
	case "collection":
		return FilterCollection, nil
	default:
		return 0, fmt.Errorf("view: unknown filter scope %q", s)
	}
}

// DefaultSettleDelay is the pause before a load-more completes when
// ListOptions leaves SettleDelay zero.
const DefaultSettleDelay = 500 * time.Millisecond

// NoSettleDelay makes a load-more complete on the next timer tick. Any
// negative SettleDelay behaves the same.
const NoSettleDelay time.Duration = -1

// ListOptions tunes a ListController.
type ListOptions struct {
	PageSize    int           // records revealed per load-more, default 5
	SettleDelay time.Duration // zero means DefaultSettleDelay, negative means NoSettleDelay
	Scope       FilterScope
	Logger      *slog.Logger
}

// DefaultListOptions returns page size 5, a 500ms settle delay and
// window-scoped search.
func DefaultListOptions() ListOptions {
	return ListOptions{
		PageSize:    5,
		SettleDelay: DefaultSettleDelay,
		Scope:       FilterRevealed,
	}
}

func (o ListOptions) withDefaults() ListOptions {
	if o.PageSize <= 0 {
		o.PageSize = 5
	}
	switch {
	case o.SettleDelay == 0:
		o.SettleDelay = DefaultSettleDelay
	case o.SettleDelay < 0:
		o.SettleDelay = 0
	}
	if o.Logger == nil {
		o.Logger = discardLogger()
	}
	return o
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
