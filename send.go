package maru

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SendMessage runs the optimistic send protocol against the session that
// is active at invocation time (the target session):
//
//   - Preconditions: a non-empty location, a non-empty text or image, an
//     active session with its history loaded, and no send already pending
//     for it. Precondition failures reject before any network call or
//     ledger mutation.
//   - A user Message with status pending is appended to the target's
//     ledger immediately, then the backend call is issued with a bounded
//     deadline.
//   - On success the pending entry becomes confirmed (adopting a
//     server-assigned ID when one is returned), the assistant reply is
//     appended to the target's ledger — even if the active session changed
//     while the call was in flight — and the target's directory preview is
//     refreshed.
//   - On failure the pending entry becomes failed and stays visible; there
//     is no automatic retry.
//
// A reply that arrives after the target session was deleted or the store
// was reset is discarded.
func (s *Store) SendMessage(ctx context.Context, text, image string) error {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if strings.TrimSpace(s.location) == "" {
		s.mu.Unlock()
		return ErrLocationRequired
	}
	if text == "" && image == "" {
		s.mu.Unlock()
		return fmt.Errorf("message text or image is required: %w", ErrValidation)
	}
	target := s.current
	if target == "" {
		s.mu.Unlock()
		return ErrNoSession
	}
	if _, loaded := s.ledgers[target]; !loaded {
		// The lazy history fetch has not resolved; appending now would make
		// the fetch skip caching and lose the server history.
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", target, ErrHistoryNotLoaded)
	}
	if _, busy := s.inflight[target]; busy {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", target, ErrSendInFlight)
	}
	location := s.location
	gen := s.gen

	pending := Message{
		ID:        s.newID(),
		Role:      RoleUser,
		Body:      text,
		Image:     image,
		Status:    StatusPending,
		CreatedAt: s.now(),
	}
	s.ledgers[target] = append(s.ledgers[target], pending)
	s.inflight[target] = pending.ID
	s.mu.Unlock()
	s.notify()

	sctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	res, err := s.client.Send(sctx, SendRequest{
		SessionID: target,
		Text:      text,
		Image:     image,
		Location:  location,
	})

	s.mu.Lock()
	if gen != s.gen || s.inflight[target] != pending.ID {
		// The target was reset or deleted mid-flight; its ledger is gone
		// and the reply must not resurrect it.
		s.mu.Unlock()
		s.logger.Debug("discarding reply for cleared session", zap.String("session", target))
		return nil
	}
	delete(s.inflight, target)

	if err != nil {
		s.setStatusLocked(target, pending.ID, StatusFailed)
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("send message: %w", err)
	}

	confirmedID := pending.ID
	if res.User.ID != "" {
		confirmedID = res.User.ID
	}
	s.confirmLocked(target, pending.ID, confirmedID)

	reply := res.Assistant
	if reply.ID == "" {
		reply.ID = s.newID()
	}
	reply.Role = RoleAssistant
	reply.Status = StatusConfirmed
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = s.now()
	}
	s.ledgers[target] = append(s.ledgers[target], reply)
	s.touchSessionLocked(target, reply.Body, reply.CreatedAt)
	s.mu.Unlock()
	s.notify()
	return nil
}

// setStatusLocked updates the delivery status of one ledger entry.
func (s *Store) setStatusLocked(sessionID, messageID string, status DeliveryStatus) {
	msgs := s.ledgers[sessionID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Status = status
			return
		}
	}
}

// confirmLocked marks the optimistic entry confirmed, replacing its
// client-generated ID with the server-assigned one.
func (s *Store) confirmLocked(sessionID, messageID, confirmedID string) {
	msgs := s.ledgers[sessionID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].ID = confirmedID
			msgs[i].Status = StatusConfirmed
			return
		}
	}
}

// touchSessionLocked refreshes a directory entry's preview and timestamp.
// Entries are never reordered or otherwise mutated.
func (s *Store) touchSessionLocked(sessionID, lastMessage string, at time.Time) {
	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			s.sessions[i].LastMessage = lastMessage
			s.sessions[i].LastDate = at
			return
		}
	}
}
