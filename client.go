package maru

import (
	"context"
	"fmt"
	"strings"
)

// Client is the backend API surface the Store consumes. Implementations
// carry ambient account credentials (cookie/token); the core never manages
// credential storage.
type Client interface {
	// ListSessions returns the current account's session summaries.
	ListSessions(ctx context.Context) ([]Session, error)

	// CreateSession creates a new session with an optional seed title.
	CreateSession(ctx context.Context, title string) (Session, error)

	// DeleteSession removes the session server-side.
	DeleteSession(ctx context.Context, id string) error

	// Messages returns the ordered message history of a session.
	Messages(ctx context.Context, sessionID string) ([]Message, error)

	// Send delivers a user message and returns the exchange. The returned
	// user message may be zero-valued except for a server-assigned ID; the
	// caller reconciles it with its optimistic entry.
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// SendRequest carries one user message to the backend.
type SendRequest struct {
	SessionID string
	Text      string
	Image     string // data URI, optional
	Location  string
}

// Validate checks universal constraints on SendRequest.
// Client implementations may apply additional validation.
func (r SendRequest) Validate() error {
	if strings.TrimSpace(r.Location) == "" {
		return ErrLocationRequired
	}
	if r.SessionID == "" {
		return fmt.Errorf("session id is required: %w", ErrValidation)
	}
	if strings.TrimSpace(r.Text) == "" && r.Image == "" {
		return fmt.Errorf("message text or image is required: %w", ErrValidation)
	}
	return nil
}

// SendResult is the backend's reply to a send: the confirmed user message
// (possibly zero except for its ID) and the assistant's response.
type SendResult struct {
	User      Message
	Assistant Message
}
