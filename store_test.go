package maru_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sejinpk/maru"
	"github.com/sejinpk/maru/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore returns a store with a deterministic clock and ID sequence.
func newTestStore(t *testing.T, client *mock.Client, opts ...maru.StoreOption) *maru.Store {
	t.Helper()
	var n atomic.Int64
	base := []maru.StoreOption{
		maru.WithClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }),
		maru.WithIDGenerator(func() string { return fmt.Sprintf("m%d", n.Add(1)) }),
	}
	return maru.NewStore(client, append(base, opts...)...)
}

func TestListSessions_ReplacesDirectoryWholesale(t *testing.T) {
	t.Parallel()

	lists := [][]maru.Session{
		{{ID: "s1", LastMessage: "hi"}, {ID: "s2"}},
		{{ID: "s3"}},
	}
	var call atomic.Int64
	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			return lists[call.Add(1)-1], nil
		},
	}
	store := newTestStore(t, client)

	require.NoError(t, store.ListSessions(context.Background()))
	assert.Len(t, store.Sessions(), 2)

	// The second fetch fully replaces the first; no merge.
	require.NoError(t, store.ListSessions(context.Background()))
	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "s3", sessions[0].ID)
}

func TestListSessions_StaleResponseDropped(t *testing.T) {
	t.Parallel()

	var call atomic.Int64
	firstEntered := make(chan struct{})
	release := make(chan struct{})
	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			if call.Add(1) == 1 {
				close(firstEntered)
				<-release // hold the first call open until the second lands
				return []maru.Session{{ID: "stale"}}, nil
			}
			return []maru.Session{{ID: "fresh"}}, nil
		},
	}
	store := newTestStore(t, client)

	done := make(chan error, 1)
	go func() { done <- store.ListSessions(context.Background()) }()
	<-firstEntered

	require.NoError(t, store.ListSessions(context.Background()))
	close(release)
	require.NoError(t, <-done)

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "fresh", sessions[0].ID)
}

func TestCreateSession_InsertsAtFrontAndActivates(t *testing.T) {
	t.Parallel()

	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			return []maru.Session{{ID: "s1"}}, nil
		},
		CreateSessionFn: func(ctx context.Context, title string) (maru.Session, error) {
			assert.Equal(t, "seed", title)
			return maru.Session{ID: "s2", Title: "seed"}, nil
		},
	}
	store := newTestStore(t, client)
	require.NoError(t, store.ListSessions(context.Background()))

	sess, err := store.CreateSession(context.Background(), "seed")
	require.NoError(t, err)
	assert.Equal(t, "s2", sess.ID)

	sessions := store.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "s2", sessions[0].ID)
	assert.Equal(t, "s2", store.CurrentSessionID())
	assert.False(t, store.IsMessagesLoading())
	assert.Empty(t, store.Messages())
}

func TestCreateSession_FailureLeavesDirectoryUntouched(t *testing.T) {
	t.Parallel()

	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			return []maru.Session{{ID: "s1"}}, nil
		},
		CreateSessionFn: func(ctx context.Context, title string) (maru.Session, error) {
			return maru.Session{}, fmt.Errorf("boom")
		},
	}
	store := newTestStore(t, client)
	require.NoError(t, store.ListSessions(context.Background()))

	_, err := store.CreateSession(context.Background(), "")
	require.Error(t, err)
	assert.Len(t, store.Sessions(), 1)
	assert.Empty(t, store.CurrentSessionID())
}

func TestCreateSession_AfterResetReportsSuperseded(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	client := &mock.Client{
		CreateSessionFn: func(ctx context.Context, title string) (maru.Session, error) {
			close(entered)
			<-release
			return maru.Session{ID: "s1"}, nil
		},
	}
	store := newTestStore(t, client)

	type result struct {
		sess maru.Session
		err  error
	}
	done := make(chan result, 1)
	go func() {
		sess, err := store.CreateSession(context.Background(), "")
		done <- result{sess, err}
	}()
	<-entered

	// The account changes while the create is in flight.
	store.Reset()
	close(release)
	res := <-done

	// The discarded creation is reported, never mistakable for success.
	require.ErrorIs(t, res.err, maru.ErrSuperseded)
	assert.Empty(t, res.sess.ID)
	assert.Empty(t, store.Sessions())
	assert.Empty(t, store.CurrentSessionID())
}

func TestDeleteSession_ActiveClearsPointer(t *testing.T) {
	t.Parallel()

	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			return []maru.Session{{ID: "s1"}, {ID: "s2"}}, nil
		},
		MessagesFn: func(ctx context.Context, sessionID string) ([]maru.Message, error) {
			return nil, nil
		},
		DeleteSessionFn: func(ctx context.Context, id string) error { return nil },
	}
	store := newTestStore(t, client)
	require.NoError(t, store.ListSessions(context.Background()))
	require.NoError(t, store.SelectSession(context.Background(), "s1"))

	require.NoError(t, store.DeleteSession(context.Background(), "s1"))

	// No automatic fallback selection.
	assert.Empty(t, store.CurrentSessionID())
	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "s2", sessions[0].ID)
	assert.Empty(t, store.MessagesFor("s1"))
}

func TestDeleteSession_NonActiveKeepsPointer(t *testing.T) {
	t.Parallel()

	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			return []maru.Session{{ID: "s1"}, {ID: "s2"}}, nil
		},
		MessagesFn: func(ctx context.Context, sessionID string) ([]maru.Message, error) {
			return nil, nil
		},
		DeleteSessionFn: func(ctx context.Context, id string) error { return nil },
	}
	store := newTestStore(t, client)
	require.NoError(t, store.ListSessions(context.Background()))
	require.NoError(t, store.SelectSession(context.Background(), "s1"))

	require.NoError(t, store.DeleteSession(context.Background(), "s2"))
	assert.Equal(t, "s1", store.CurrentSessionID())
}

func TestDeleteSession_NotFoundRefreshesDirectory(t *testing.T) {
	t.Parallel()

	var listed atomic.Int64
	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			if listed.Add(1) == 1 {
				return []maru.Session{{ID: "s1"}, {ID: "gone"}}, nil
			}
			return []maru.Session{{ID: "s1"}}, nil
		},
		DeleteSessionFn: func(ctx context.Context, id string) error {
			return fmt.Errorf("session %s: %w", id, maru.ErrNotFound)
		},
	}
	store := newTestStore(t, client)
	require.NoError(t, store.ListSessions(context.Background()))

	err := store.DeleteSession(context.Background(), "gone")
	require.ErrorIs(t, err, maru.ErrNotFound)

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
}

func TestSelectSession_LazyLoadsHistoryOnce(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int64
	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			return []maru.Session{{ID: "s1"}, {ID: "s2"}}, nil
		},
		MessagesFn: func(ctx context.Context, sessionID string) ([]maru.Message, error) {
			fetches.Add(1)
			return []maru.Message{{ID: "h1", Role: maru.RoleUser, Body: "earlier", Status: maru.StatusConfirmed}}, nil
		},
	}
	store := newTestStore(t, client)
	require.NoError(t, store.ListSessions(context.Background()))

	require.NoError(t, store.SelectSession(context.Background(), "s1"))
	require.Len(t, store.Messages(), 1)
	assert.False(t, store.IsMessagesLoading())

	// Switching away and back reuses the cached ledger.
	require.NoError(t, store.SelectSession(context.Background(), "s2"))
	require.NoError(t, store.SelectSession(context.Background(), "s1"))
	assert.Equal(t, int64(2), fetches.Load()) // one per session, not per select
}

func TestSelectSession_LoadingFlagWhileFetchInFlight(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			return []maru.Session{{ID: "s1"}}, nil
		},
		MessagesFn: func(ctx context.Context, sessionID string) ([]maru.Message, error) {
			close(entered)
			<-release
			return nil, nil
		},
	}
	store := newTestStore(t, client)
	require.NoError(t, store.ListSessions(context.Background()))

	done := make(chan error, 1)
	go func() { done <- store.SelectSession(context.Background(), "s1") }()
	<-entered

	// Until the fetch resolves the ledger reads as empty, not unknown.
	assert.True(t, store.IsMessagesLoading())
	assert.Equal(t, "s1", store.CurrentSessionID())
	assert.Empty(t, store.Messages())

	close(release)
	require.NoError(t, <-done)
	assert.False(t, store.IsMessagesLoading())
}

func TestSelectSession_NoneClearsPointer(t *testing.T) {
	t.Parallel()

	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			return []maru.Session{{ID: "s1"}}, nil
		},
		MessagesFn: func(ctx context.Context, sessionID string) ([]maru.Message, error) {
			return nil, nil
		},
	}
	store := newTestStore(t, client)
	require.NoError(t, store.ListSessions(context.Background()))
	require.NoError(t, store.SelectSession(context.Background(), "s1"))

	require.NoError(t, store.SelectSession(context.Background(), ""))
	assert.Empty(t, store.CurrentSessionID())
	assert.Nil(t, store.Messages())
}

func TestSelectSession_UnknownSession(t *testing.T) {
	t.Parallel()

	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			return []maru.Session{{ID: "s1"}}, nil
		},
	}
	store := newTestStore(t, client)
	require.NoError(t, store.ListSessions(context.Background()))

	err := store.SelectSession(context.Background(), "nope")
	require.ErrorIs(t, err, maru.ErrNotFound)
	assert.Empty(t, store.CurrentSessionID())
}

func TestReset_Completeness(t *testing.T) {
	t.Parallel()

	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			return []maru.Session{{ID: "s1"}, {ID: "s2"}}, nil
		},
		MessagesFn: func(ctx context.Context, sessionID string) ([]maru.Message, error) {
			return []maru.Message{{ID: "h1", Role: maru.RoleUser, Body: "old"}}, nil
		},
	}
	store := newTestStore(t, client)
	store.SetLocation("서울")
	require.NoError(t, store.ListSessions(context.Background()))
	require.NoError(t, store.SelectSession(context.Background(), "s1"))
	require.NoError(t, store.SelectSession(context.Background(), "s2"))

	store.Reset()

	assert.Empty(t, store.Sessions())
	assert.Empty(t, store.CurrentSessionID())
	assert.Empty(t, store.MessagesFor("s1"))
	assert.Empty(t, store.MessagesFor("s2"))
	assert.Empty(t, store.Location())
	assert.False(t, store.IsMessagesLoading())
}

func TestReset_SubsequentFetchIsSoleSource(t *testing.T) {
	t.Parallel()

	var call atomic.Int64
	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			if call.Add(1) == 1 {
				return []maru.Session{{ID: "old1"}, {ID: "old2"}}, nil
			}
			return []maru.Session{{ID: "new1"}}, nil
		},
		MessagesFn: func(ctx context.Context, sessionID string) ([]maru.Message, error) {
			return []maru.Message{{ID: "h1", Body: "residue"}}, nil
		},
	}
	store := newTestStore(t, client)
	require.NoError(t, store.ListSessions(context.Background()))
	require.NoError(t, store.SelectSession(context.Background(), "old1"))

	store.Reset()
	require.NoError(t, store.ListSessions(context.Background()))

	sessions := store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "new1", sessions[0].ID)
	assert.Empty(t, store.MessagesFor("old1"))
}

func TestReset_DropsInFlightHistoryLoad(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			return []maru.Session{{ID: "s1"}}, nil
		},
		MessagesFn: func(ctx context.Context, sessionID string) ([]maru.Message, error) {
			close(entered)
			<-release
			return []maru.Message{{ID: "h1", Body: "stale history"}}, nil
		},
	}
	store := newTestStore(t, client)
	require.NoError(t, store.ListSessions(context.Background()))

	done := make(chan error, 1)
	go func() { done <- store.SelectSession(context.Background(), "s1") }()
	<-entered

	store.Reset()
	close(release)
	require.NoError(t, <-done)

	assert.Empty(t, store.MessagesFor("s1"))
	assert.False(t, store.IsMessagesLoading())
}

func TestOnChange_FiresOnMutation(t *testing.T) {
	t.Parallel()

	var changes atomic.Int64
	client := &mock.Client{
		ListSessionsFn: func(ctx context.Context) ([]maru.Session, error) {
			return []maru.Session{{ID: "s1"}}, nil
		},
	}
	store := newTestStore(t, client, maru.WithOnChange(func() { changes.Add(1) }))

	require.NoError(t, store.ListSessions(context.Background()))
	store.SetLocation("부산")
	assert.GreaterOrEqual(t, changes.Load(), int64(2))
}
