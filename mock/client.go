// Package mock provides test doubles for maru interfaces using function fields.
package mock

import (
	"context"

	"github.com/sejinpk/maru"
)

// Interface compliance check.
var _ maru.Client = (*Client)(nil)

// Client is a test double for maru.Client.
// Set the function fields for the methods you need.
type Client struct {
	ListSessionsFn  func(ctx context.Context) ([]maru.Session, error)
	CreateSessionFn func(ctx context.Context, title string) (maru.Session, error)
	DeleteSessionFn func(ctx context.Context, id string) error
	MessagesFn      func(ctx context.Context, sessionID string) ([]maru.Message, error)
	SendFn          func(ctx context.Context, req maru.SendRequest) (maru.SendResult, error)
}

// ListSessions delegates to ListSessionsFn.
func (c *Client) ListSessions(ctx context.Context) ([]maru.Session, error) {
	return c.ListSessionsFn(ctx)
}

// CreateSession delegates to CreateSessionFn.
func (c *Client) CreateSession(ctx context.Context, title string) (maru.Session, error) {
	return c.CreateSessionFn(ctx, title)
}

// DeleteSession delegates to DeleteSessionFn.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.DeleteSessionFn(ctx, id)
}

// Messages delegates to MessagesFn.
func (c *Client) Messages(ctx context.Context, sessionID string) ([]maru.Message, error) {
	return c.MessagesFn(ctx, sessionID)
}

// Send delegates to SendFn.
func (c *Client) Send(ctx context.Context, req maru.SendRequest) (maru.SendResult, error) {
	return c.SendFn(ctx, req)
}
