// Package bubbletea provides the Bubble Tea TUI shell for maru. It is
// thin view glue: every piece of conversation state lives in the
// orchestration store and is re-read on each render.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Authenticator is the authentication collaborator. The model calls
// Logout on ctrl+l and resets the store afterwards; login happens before
// the TUI starts.
type Authenticator interface {
	Logout(ctx context.Context) error
}

// Bookmarker saves a recommendation from an assistant message, on
// explicit user action only.
type Bookmarker interface {
	AddBookmark(ctx context.Context, name, url string) error
}

// Config carries TUI configuration that is not conversation state.
type Config struct {
	// AccountName is shown in the status bar.
	AccountName string
	// Changes receives a signal whenever the store mutates; wire it to the
	// store's OnChange hook. May be nil.
	Changes <-chan struct{}
}

// Run creates and runs the Bubble Tea program. It blocks until the
// program exits. The context is used for graceful shutdown — when
// cancelled, the program quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// storeChangedMsg signals that the store mutated and the view must be
// rebuilt from its read-only views.
type storeChangedMsg struct{}

// opDoneMsg reports the outcome of a store or collaborator operation.
// input carries the submitted message text so a precondition rejection
// can hand it back to the input instead of discarding it.
type opDoneMsg struct {
	err   error
	input string
}

// loggedOutMsg signals that logout completed and the program should quit.
type loggedOutMsg struct {
	err error
}

// listenForChange re-arms the store change listener.
func listenForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		<-ch
		return storeChangedMsg{}
	}
}
