package bubbletea_test

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sejinpk/maru"
	bt "github.com/sejinpk/maru/bubbletea"
	"github.com/sejinpk/maru/mock"
	"github.com/stretchr/testify/require"
)

// newDirectoryClient is a mock client serving a fixed session directory
// with empty histories. Sends fail loudly unless a SendFn is set.
func newDirectoryClient(sessions []maru.Session) *mock.Client {
	return &mock.Client{
		ListSessionsFn: func(context.Context) ([]maru.Session, error) {
			return sessions, nil
		},
		MessagesFn: func(context.Context, string) ([]maru.Message, error) {
			return nil, nil
		},
	}
}

// newSeededStore builds a store over client, loads the directory, and
// selects the first session.
func newSeededStore(t *testing.T, client maru.Client, selectFirst bool) *maru.Store {
	t.Helper()
	store := maru.NewStore(client)
	require.NoError(t, store.ListSessions(context.Background()))
	if selectFirst {
		sessions := store.Sessions()
		require.NotEmpty(t, sessions)
		require.NoError(t, store.SelectSession(context.Background(), sessions[0].ID))
	}
	return store
}

// initModel creates a model over store and sends a WindowSizeMsg to
// initialize the viewport.
func initModel(t *testing.T, store *maru.Store, auth bt.Authenticator, marks bt.Bookmarker) bt.Model {
	t.Helper()
	m := bt.New(store, auth, marks, maru.DefaultTheme(), bt.Config{AccountName: "김세진"})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// runCmd executes a command and feeds its message back into the model.
func runCmd(t *testing.T, m bt.Model, cmd tea.Cmd) bt.Model {
	t.Helper()
	require.NotNil(t, cmd)
	return updateModel(t, m, cmd())
}

type authFunc func(ctx context.Context) error

func (f authFunc) Logout(ctx context.Context) error { return f(ctx) }

type bookmarkFunc func(ctx context.Context, name, url string) error

func (f bookmarkFunc) AddBookmark(ctx context.Context, name, url string) error {
	return f(ctx, name, url)
}
