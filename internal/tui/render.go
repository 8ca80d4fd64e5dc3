package tui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/sakif/user-directory/internal/view"
)

const (
	defaultWidth = 80
	minWidth     = 40
	idColumn     = 4
	ellipsis     = "…"
)

// TerminalWidth returns the column count of f when it is a terminal and
// defaultWidth otherwise.
func TerminalWidth(f *os.File) int {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return clampWidth(w)
}

func clampWidth(w int) int {
	if w <= 0 {
		return defaultWidth
	}
	return max(w, minWidth)
}

// RenderList writes the list screen for s into w.
//
// Precedence follows the screen's states: a running collection fetch hides
// everything else, then an error, then the list itself.
func RenderList(w io.Writer, s view.ListState, width int) {
	width = clampWidth(width)
	rule := strings.Repeat("─", width)

	header := "Users"
	if s.SearchTerm != "" {
		header += fmt.Sprintf("   search: %q", s.SearchTerm)
	}
	fmt.Fprintln(w, fit(header, width))
	fmt.Fprintln(w, rule)

	switch {
	case s.InitialLoading:
		fmt.Fprintln(w, "Loading users…")
	case s.ErrorMessage != "":
		fmt.Fprintln(w, fit(s.ErrorMessage, width))
		fmt.Fprintln(w, "Type 'retry' to try again.")
	default:
		renderRows(w, s, width)
		fmt.Fprintln(w, rule)
		fmt.Fprintln(w, fit(listFooter(s), width))
	}
}

func renderRows(w io.Writer, s view.ListState, width int) {
	if len(s.Users) == 0 {
		if s.SearchTerm != "" {
			fmt.Fprintln(w, fit(fmt.Sprintf("No users match %q.", s.SearchTerm), width))
		} else {
			fmt.Fprintln(w, "No users.")
		}
		return
	}

	// id, two spaces, name, two spaces, email
	rest := width - idColumn - 4
	nameWidth := rest / 2
	emailWidth := rest - nameWidth

	for _, u := range s.Users {
		id := strconv.Itoa(u.ID)
		id = strings.Repeat(" ", max(0, idColumn-len(id))) + id
		name := runewidth.FillRight(runewidth.Truncate(u.Name, nameWidth, ellipsis), nameWidth)
		email := runewidth.Truncate(u.Email, emailWidth, ellipsis)
		fmt.Fprintf(w, "%s  %s  %s\n", id, name, email)
	}
}

func listFooter(s view.ListState) string {
	switch {
	case s.LoadingMore:
		return "Loading more…"
	case s.HasMore():
		return fmt.Sprintf("Showing %d of %d. Type 'more' to load more.", s.Revealed, s.Total)
	default:
		return fmt.Sprintf("Showing all %d users.", s.Total)
	}
}

// RenderDetail writes the detail screen for s into w.
func RenderDetail(w io.Writer, s view.DetailState, width int) {
	width = clampWidth(width)

	switch {
	case s.Loading:
		fmt.Fprintf(w, "User %d\n", s.UserID)
		fmt.Fprintln(w, strings.Repeat("─", width))
		fmt.Fprintln(w, "Loading user…")
		return
	case s.ErrorMessage != "":
		fmt.Fprintf(w, "User %d\n", s.UserID)
		fmt.Fprintln(w, strings.Repeat("─", width))
		fmt.Fprintln(w, fit(s.ErrorMessage, width))
		fmt.Fprintln(w, "Type 'retry' to try again or 'back' to return.")
		return
	case s.User == nil:
		return
	}

	u := s.User
	fmt.Fprintln(w, fit(u.Name, width))
	fmt.Fprintln(w, strings.Repeat("─", width))

	field(w, "Email", u.Email, width)
	field(w, "Phone", u.Phone, width)
	field(w, "Address", u.Address.String(), width)
	field(w, "Company", u.Company.Name, width)
	if u.Company.CatchPhrase != "" {
		field(w, "", strconv.Quote(u.Company.CatchPhrase), width)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Type 'back' to return.")
}

const labelWidth = 10

// field writes "Label:   value", wrapping value under itself.
func field(w io.Writer, label, value string, width int) {
	if value == "" {
		return
	}
	prefix := ""
	if label != "" {
		prefix = label + ":"
	}
	prefix = runewidth.FillRight(prefix, labelWidth)
	indent := strings.Repeat(" ", labelWidth)

	for i, line := range wrapText(value, width-labelWidth) {
		if i == 0 {
			fmt.Fprintln(w, prefix+line)
		} else {
			fmt.Fprintln(w, indent+line)
		}
	}
}

func fit(s string, width int) string {
	return runewidth.Truncate(s, width, ellipsis)
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string

	currentLine := ""
	currentWidth := 0

	for _, r := range text {
		runeWidth := runewidth.RuneWidth(r)
		if currentWidth+runeWidth > width {
			lines = append(lines, currentLine)
			currentLine = string(r)
			currentWidth = runeWidth
		} else {
			currentLine += string(r)
			currentWidth += runeWidth
		}
	}

	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return lines
}

const helpText = `Commands:
  /<text>, search <text>  filter by name or email (empty clears)
  more, m                 load the next page
  open <id>, <id>         show a user
  retry, r                reload after an error
  back, b                 return to the list
  help                    show this text
  quit, q                 exit`
