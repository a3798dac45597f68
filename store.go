package maru

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the session and message orchestration engine. It owns the
// session directory, the per-session message ledgers, the active-session
// pointer, and the location gate, and it runs the optimistic send
// protocol against a Client.
//
// All methods are safe for concurrent use. Backend calls block the
// calling goroutine; run them from whatever async machinery drives the
// UI. Completions that arrive after a Reset or after the target session
// was deleted are dropped, never misattributed.
type Store struct {
	mu sync.Mutex

	client      Client
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
	sendTimeout time.Duration
	onChange    func()

	sessions []Session            // directory, server order
	ledgers  map[string][]Message // session id -> ordered messages
	current  string               // active session pointer, "" = none
	location string

	inflight map[string]string // session id -> pending optimistic message id

	loadingMessages bool
	loadSeq         uint64 // invalidates in-flight history loads

	listSeq     uint64 // ListSessions calls issued
	listApplied uint64 // highest call whose result was applied

	gen uint64 // bumped by Reset; in-flight completions from a prior gen are dropped
}

// DefaultSendTimeout bounds how long a send may stay pending before it is
// marked failed.
const DefaultSendTimeout = 60 * time.Second

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the debug logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithSendTimeout sets the per-send deadline.
func WithSendTimeout(d time.Duration) StoreOption {
	return func(s *Store) { s.sendTimeout = d }
}

// WithClock sets the time source. Useful for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the generator for optimistic message IDs.
// Defaults to random UUIDs.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) { s.newID = fn }
}

// WithOnChange sets a callback invoked after every state mutation, outside
// the store's lock. The UI uses it to schedule a repaint.
func WithOnChange(fn func()) StoreOption {
	return func(s *Store) { s.onChange = fn }
}

// NewStore creates a Store backed by the given client.
func NewStore(client Client, opts ...StoreOption) *Store {
	s := &Store{
		client:      client,
		logger:      zap.NewNop(),
		now:         time.Now,
		newID:       uuid.NewString,
		sendTimeout: DefaultSendTimeout,
		ledgers:     make(map[string][]Message),
		inflight:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// ListSessions fetches the account's session summaries and replaces the
// directory wholesale; the server is authoritative. Concurrent calls are
// ordered by a request counter so a slow stale response never clobbers a
// newer one.
func (s *Store) ListSessions(ctx context.Context) error {
	s.mu.Lock()
	s.listSeq++
	seq := s.listSeq
	gen := s.gen
	s.mu.Unlock()

	sessions, err := s.client.ListSessions(ctx)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("dropping session list from before reset")
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("list sessions: %w", err)
	}
	if seq <= s.listApplied {
		s.mu.Unlock()
		s.logger.Debug("dropping stale session list", zap.Uint64("seq", seq))
		return nil
	}
	s.listApplied = seq
	s.sessions = slices.Clone(sessions)
	s.mu.Unlock()
	s.notify()
	return nil
}

// CreateSession creates a session with an optional seed title, inserts it
// at the front of the directory, and makes it active. On failure the
// directory is untouched. A session created on the far side of a Reset is
// discarded and reported as ErrSuperseded.
func (s *Store) CreateSession(ctx context.Context, title string) (Session, error) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	sess, err := s.client.CreateSession(ctx, title)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("dropping created session from before reset", zap.String("session", sess.ID))
		return Session{}, fmt.Errorf("create session: %w", ErrSuperseded)
	}
	if err != nil {
		s.mu.Unlock()
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	s.sessions = append([]Session{sess}, s.sessions...)
	s.current = sess.ID
	s.ledgers[sess.ID] = []Message{} // fresh session, nothing to lazy-load
	s.loadingMessages = false
	s.loadSeq++
	s.mu.Unlock()
	s.notify()
	return sess, nil
}

// DeleteSession removes the session server-side, then drops its directory
// entry and ledger. Deleting the active session clears the active-session
// pointer atomically with the removal; no fallback session is selected.
// A not-found from the server refreshes the directory before returning.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	err := s.client.DeleteSession(ctx, id)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, ErrNotFound) {
			// The session is already gone server-side; resync.
			_ = s.ListSessions(ctx)
		}
		return fmt.Errorf("delete session: %w", err)
	}
	s.sessions = slices.DeleteFunc(s.sessions, func(e Session) bool { return e.ID == id })
	delete(s.ledgers, id)
	delete(s.inflight, id)
	if s.current == id {
		s.current = ""
		s.loadingMessages = false
		s.loadSeq++
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// SelectSession sets the active-session pointer. An empty id means "no
// conversation selected". Selecting a session whose ledger is not yet
// populated lazily fetches its history; until that resolves the ledger
// reads as empty and the message-view loading flag is raised. A fetch
// superseded by a newer select still caches its result but never touches
// the loading flag.
func (s *Store) SelectSession(ctx context.Context, id string) error {
	s.mu.Lock()
	if id == "" {
		s.current = ""
		s.loadingMessages = false
		s.loadSeq++
		s.mu.Unlock()
		s.notify()
		return nil
	}
	if !s.hasSessionLocked(id) {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	s.current = id
	s.loadSeq++
	seq := s.loadSeq
	gen := s.gen
	if _, ok := s.ledgers[id]; ok {
		s.loadingMessages = false
		s.mu.Unlock()
		s.notify()
		return nil
	}
	s.loadingMessages = true
	s.mu.Unlock()
	s.notify()

	msgs, err := s.client.Messages(ctx, id)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("dropping history from before reset", zap.String("session", id))
		return nil
	}
	if seq == s.loadSeq {
		s.loadingMessages = false
	}
	if err != nil {
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("load messages: %w", err)
	}
	// Cache the history even if a newer select superseded this fetch, but
	// only if nothing populated the ledger in the meantime and the session
	// still exists.
	if _, ok := s.ledgers[id]; !ok && s.hasSessionLocked(id) {
		s.ledgers[id] = msgs
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Reset clears the session directory, every ledger, the active-session
// pointer, and all in-flight bookkeeping. The authentication collaborator
// must call it on login, logout, and account deletion; skipping it leaks
// one account's cached sessions to another.
func (s *Store) Reset() {
	s.mu.Lock()
	s.gen++
	s.sessions = nil
	s.ledgers = make(map[string][]Message)
	s.inflight = make(map[string]string)
	s.current = ""
	s.location = ""
	s.loadingMessages = false
	s.loadSeq++
	s.listApplied = s.listSeq // outstanding list calls are stale now
	s.mu.Unlock()
	s.notify()
}

// Sessions returns a copy of the session directory.
func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sessions)
}

// SessionByID returns the directory entry for id, if present.
func (s *Store) SessionByID(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return Session{}, false
}

// CurrentSessionID returns the active-session pointer, "" if none.
func (s *Store) CurrentSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Messages returns a copy of the active session's ledger. Nil when no
// session is selected or the ledger has not loaded yet.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == "" {
		return nil
	}
	return slices.Clone(s.ledgers[s.current])
}

// MessagesFor returns a copy of the given session's ledger.
func (s *Store) MessagesFor(id string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ledgers[id])
}

// IsMessagesLoading reports whether the active session's history fetch is
// still in flight. Scoped to the message view, not the session list.
func (s *Store) IsMessagesLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingMessages
}

// IsAwaitingReply reports whether a send is pending for the session.
func (s *Store) IsAwaitingReply(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[id]
	return ok
}

// Location returns the location gate value.
func (s *Store) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// SetLocation sets the location gate value.
func (s *Store) SetLocation(v string) {
	s.mu.Lock()
	s.location = v
	s.mu.Unlock()
	s.notify()
}

func (s *Store) hasSessionLocked(id string) bool {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return true
		}
	}
	return false
}
