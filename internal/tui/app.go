// Package tui is a line-oriented terminal front end for the user directory.
//
// The App reads one command per line and redraws the active screen whenever
// its controller reports a change. There are two screens: the list, backed by
// a view.ListController that lives as long as the App, and a detail screen
// whose view.DetailController is created on "open" and closed on "back".
package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/user-directory/internal/view"
)

const clearScreen = "\033[H\033[2J"

// DetailFactory builds the controller for a user's detail screen.
type DetailFactory func(userID int) *view.DetailController

// Options configures an App.
type Options struct {
	In     io.Reader
	Out    io.Writer
	Width  int  // columns, 0 means 80
	Clear  bool // clear the screen before each frame
	Logger *slog.Logger
}

// App runs the terminal session.
type App struct {
	list       *view.ListController
	openDetail DetailFactory
	in         io.Reader
	out        io.Writer
	width      int
	clear      bool
	logger     *slog.Logger

	// Everything below is owned by the command loop goroutine.
	group        *errgroup.Group
	ctx          context.Context
	redraw       chan struct{}
	detail       *view.DetailController
	detailCtx    context.Context
	detailCancel context.CancelFunc
	detailUnsub  func()
	status       string
}

// New creates an App. The list controller is not closed by the App.
func New(list *view.ListController, openDetail DetailFactory, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		list:       list,
		openDetail: openDetail,
		in:         opts.In,
		out:        opts.Out,
		width:      clampWidth(opts.Width),
		clear:      opts.Clear,
		logger:     logger,
		redraw:     make(chan struct{}, 1),
	}
}

// Run mounts the list screen and processes commands until "quit", end of
// input or ctx cancellation.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := a.list.Subscribe(a.requestRedraw)
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	a.group, a.ctx = g, gctx

	lines := readLines(gctx, a.in)

	a.spawn("mount list", a.list.Mount)
	g.Go(func() error {
		defer cancel()
		return a.loop(gctx, lines)
	})

	err := g.Wait()
	a.closeDetail()
	return err
}

func (a *App) loop(ctx context.Context, lines <-chan string) error {
	a.render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.redraw:
			a.render()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if a.handle(line) {
				return nil
			}
			a.render()
		}
	}
}

// handle runs one command and reports whether the session should end.
func (a *App) handle(line string) (quit bool) {
	line = strings.TrimSpace(line)
	a.status = ""
	if line == "" {
		return false
	}

	if term, ok := strings.CutPrefix(line, "/"); ok {
		a.search(strings.TrimSpace(term))
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "q", "quit", "exit":
		return true
	case "help", "?":
		a.status = helpText
	case "s", "search":
		a.search(arg)
	case "m", "more":
		a.more()
	case "o", "open":
		id, err := strconv.Atoi(arg)
		if err != nil {
			a.status = fmt.Sprintf("Not a user id: %q", arg)
			return false
		}
		a.open(id)
	case "r", "retry":
		a.retry()
	case "b", "back":
		if a.detail == nil {
			a.status = "Already on the list."
			return false
		}
		a.closeDetail()
	default:
		if id, err := strconv.Atoi(cmd); err == nil && arg == "" {
			a.open(id)
			return false
		}
		a.status = fmt.Sprintf("Unknown command %q. Type 'help'.", cmd)
	}
	return false
}

func (a *App) search(term string) {
	if a.detail != nil {
		a.status = "Type 'back' to return to the list first."
		return
	}
	a.list.SetSearchTerm(term)
}

func (a *App) more() {
	if a.detail != nil {
		a.status = "Type 'back' to return to the list first."
		return
	}
	if a.list.LoadMore() {
		return
	}
	if a.list.Snapshot().LoadingMore {
		a.status = "Already loading more."
	} else {
		a.status = "All users are shown."
	}
}

func (a *App) open(id int) {
	if a.detail != nil {
		a.status = "Type 'back' to return to the list first."
		return
	}

	d := a.openDetail(id)
	ctx, cancel := context.WithCancel(a.ctx)
	a.detail = d
	a.detailCtx, a.detailCancel = ctx, cancel
	a.detailUnsub = d.Subscribe(a.requestRedraw)

	a.logger.Debug("opening user", slog.Int("user_id", id))
	a.spawnWith(ctx, "load user", d.Load)
}

func (a *App) retry() {
	if a.detail != nil {
		a.spawnWith(a.detailCtx, "retry user", a.detail.Retry)
		return
	}
	a.spawn("retry list", a.list.Retry)
}

func (a *App) closeDetail() {
	if a.detail == nil {
		return
	}
	a.detailCancel()
	a.detailUnsub()
	a.detail.Close()
	a.detail, a.detailCtx, a.detailCancel, a.detailUnsub = nil, nil, nil, nil
}

func (a *App) spawn(what string, fn func(context.Context) error) {
	a.spawnWith(a.ctx, what, fn)
}

// spawnWith runs fn in the group. Failures are already part of the read
// model, so they are only logged here and never end the session.
func (a *App) spawnWith(ctx context.Context, what string, fn func(context.Context) error) {
	a.group.Go(func() error {
		if err := fn(ctx); err != nil {
			a.logger.Debug(what+" failed", slog.String("error", err.Error()))
		}
		return nil
	})
}

func (a *App) requestRedraw() {
	select {
	case a.redraw <- struct{}{}:
	default:
	}
}

func (a *App) render() {
	var b strings.Builder
	if a.clear {
		b.WriteString(clearScreen)
	}
	if a.detail != nil {
		RenderDetail(&b, a.detail.Snapshot(), a.width)
	} else {
		RenderList(&b, a.list.Snapshot(), a.width)
	}
	if a.status != "" {
		b.WriteString("\n" + a.status + "\n")
	}
	b.WriteString("> ")

	if _, err := io.WriteString(a.out, b.String()); err != nil {
		a.logger.Warn("writing frame failed", slog.String("error", err.Error()))
	}
}

// readLines feeds lines from r into the returned channel until EOF or ctx is
// done. The reader goroutine may stay blocked in Read after ctx is done.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
