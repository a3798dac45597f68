package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/sejinpk/maru"
)

// Interface compliance check.
var _ maru.Client = (*Client)(nil)

// Client implements [maru.Client] over HTTP with cookie-based credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. The caller is responsible for
// attaching a cookie jar if ambient credentials are needed.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new backend [Client] for the given base URL. The default
// HTTP client carries an in-memory cookie jar so the token cookie set by
// Login flows to every later request.
func New(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil) // nil options never fail
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Jar: jar},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListSessions fetches the account's session summaries.
func (c *Client) ListSessions(ctx context.Context) ([]maru.Session, error) {
	var out []apiSession
	if err := c.getJSON(ctx, sessionsPath, &out); err != nil {
		return nil, fmt.Errorf("api: list sessions: %w", err)
	}
	sessions := make([]maru.Session, len(out))
	for i, s := range out {
		sessions[i] = maru.Session{
			ID:          s.ID,
			Title:       s.Title,
			LastMessage: s.LastMessage,
			CreatedAt:   parseTime(s.CreatedAt),
		}
		if s.LastDate != nil {
			sessions[i].LastDate = parseTime(*s.LastDate)
		}
	}
	return sessions, nil
}

// CreateSession creates a new session with an optional seed title.
func (c *Client) CreateSession(ctx context.Context, title string) (maru.Session, error) {
	body, err := json.Marshal(apiSessionCreate{Title: title})
	if err != nil {
		return maru.Session{}, fmt.Errorf("api: create session: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sessionsPath, bytes.NewReader(body))
	if err != nil {
		return maru.Session{}, fmt.Errorf("api: create session: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out apiSession
	if err := c.doJSON(req, &out); err != nil {
		return maru.Session{}, fmt.Errorf("api: create session: %w", err)
	}
	return maru.Session{
		ID:        out.ID,
		Title:     out.Title,
		CreatedAt: parseTime(out.CreatedAt),
	}, nil
}

// DeleteSession removes a session server-side.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+sessionsPath+"/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("api: delete session: %w", err)
	}
	if err := c.doJSON(req, nil); err != nil {
		return fmt.Errorf("api: delete session: %w", err)
	}
	return nil
}

// Messages fetches a session's ordered history.
func (c *Client) Messages(ctx context.Context, sessionID string) ([]maru.Message, error) {
	var out []apiLog
	path := sessionsPath + "/" + url.PathEscape(sessionID) + "/logs"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("api: messages: %w", err)
	}
	msgs := make([]maru.Message, len(out))
	for i, l := range out {
		msgs[i] = maru.Message{
			ID:        l.ID.String(),
			Role:      maru.Role(l.Role),
			Body:      l.Message,
			Status:    maru.StatusConfirmed,
			CreatedAt: parseTime(l.CreatedAt),
		}
		if l.Name != "" || l.URL != "" {
			msgs[i].Place = &maru.Place{Name: l.Name, URL: l.URL}
		}
	}
	return msgs, nil
}

// Send delivers a user message as a form post and returns the assistant's
// reply. The structured recommendation payload, when present, is surfaced
// verbatim on the assistant message.
func (c *Client) Send(ctx context.Context, sreq maru.SendRequest) (maru.SendResult, error) {
	if err := sreq.Validate(); err != nil {
		return maru.SendResult{}, fmt.Errorf("api: send: %w", err)
	}
	form := url.Values{}
	form.Set("message", sreq.Text)
	form.Set("session_id", sreq.SessionID)
	form.Set("location", sreq.Location)
	if sreq.Image != "" {
		form.Set("image", sreq.Image)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, strings.NewReader(form.Encode()))
	if err != nil {
		return maru.SendResult{}, fmt.Errorf("api: send: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out apiSendResponse
	if err := c.doJSON(req, &out); err != nil {
		return maru.SendResult{}, fmt.Errorf("api: send: %w", err)
	}

	res := maru.SendResult{
		User: maru.Message{ID: out.UserID.String()},
		Assistant: maru.Message{
			ID:        out.AssistantID.String(),
			Role:      maru.RoleAssistant,
			Body:      out.Message,
			Image:     out.Image,
			Status:    maru.StatusConfirmed,
			CreatedAt: parseTime(out.CreatedAt),
		},
	}
	if out.Name != "" || out.URL != "" {
		res.Assistant.Place = &maru.Place{Name: out.Name, URL: out.URL}
	}
	return res, nil
}

// getJSON issues a GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// doJSON executes the request, maps HTTP errors to sentinel errors, and
// decodes the body into out when out is non-nil.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseHTTPError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseHTTPError maps backend status codes to sentinel errors, carrying the
// server's detail text when present.
func parseHTTPError(resp *http.Response) error {
	var apiErr apiError
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(body, &apiErr)
	detail := apiErr.text()
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", detail, maru.ErrUnauthorized)
	case http.StatusForbidden, http.StatusNotFound:
		return fmt.Errorf("%s: %w", detail, maru.ErrNotFound)
	default:
		return fmt.Errorf("status %d: %s", resp.StatusCode, detail)
	}
}

// parseTime accepts the backend's timestamp formats: RFC 3339 with or
// without fractional seconds, and naive datetimes treated as UTC.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
