package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sejinpk/maru"
)

// Account identifies the authenticated user.
type Account struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// authEnvelope wraps auth responses: {success, message, data}.
type authEnvelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    *Account `json:"data"`
}

// Login authenticates with email and password. On success the server sets
// the token cookie on the client's jar; every later call carries it. The
// caller must reset the orchestration store after a successful login so no
// prior account's cached sessions survive.
func (c *Client) Login(ctx context.Context, email, password string) (Account, error) {
	return c.postAuth(ctx, loginPath, map[string]string{"email": email, "password": password})
}

// Signup registers a new account and authenticates it in one step.
func (c *Client) Signup(ctx context.Context, name, email, password string) (Account, error) {
	return c.postAuth(ctx, signupPath, map[string]string{"name": name, "email": email, "password": password})
}

// Status returns the account behind the ambient credentials, or
// [maru.ErrUnauthorized] when there is none.
func (c *Client) Status(ctx context.Context) (Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statusPath, nil)
	if err != nil {
		return Account{}, fmt.Errorf("api: status: %w", err)
	}
	var acct Account
	if err := c.doJSON(req, &acct); err != nil {
		return Account{}, fmt.Errorf("api: status: %w", err)
	}
	return acct, nil
}

// Logout clears the server session and expires the token cookie. The caller
// must reset the orchestration store afterwards.
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+logoutPath, nil)
	if err != nil {
		return fmt.Errorf("api: logout: %w", err)
	}
	if err := c.doJSON(req, nil); err != nil {
		return fmt.Errorf("api: logout: %w", err)
	}
	return nil
}

// DeleteAccount removes the authenticated account. The caller must reset
// the orchestration store afterwards.
func (c *Client) DeleteAccount(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+deleteAccountPath, nil)
	if err != nil {
		return fmt.Errorf("api: delete account: %w", err)
	}
	if err := c.doJSON(req, nil); err != nil {
		return fmt.Errorf("api: delete account: %w", err)
	}
	return nil
}

func (c *Client) postAuth(ctx context.Context, path string, payload map[string]string) (Account, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Account{}, fmt.Errorf("api: auth: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Account{}, fmt.Errorf("api: auth: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var env authEnvelope
	if err := c.doJSON(req, &env); err != nil {
		return Account{}, fmt.Errorf("api: auth: %w", err)
	}
	if env.Data == nil {
		return Account{}, fmt.Errorf("api: auth: empty account in response: %w", maru.ErrValidation)
	}
	return *env.Data, nil
}
