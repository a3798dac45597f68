// Package api implements [maru.Client] against the recommendation chat
// backend. Credentials are ambient: the login call sets a token cookie on
// the client's jar and every later request carries it; nothing is stored
// locally beyond the jar.
package api

import "encoding/json"

const (
	sessionsPath      = "/api/sessions"
	sendPath          = "/get_response"
	loginPath         = "/api/login"
	signupPath        = "/api/signup"
	logoutPath        = "/api/logout"
	statusPath        = "/api/status"
	deleteAccountPath = "/api/delete-account"
	bookmarksPath     = "/api/bookmarks"
)

// apiSession is a session summary as returned by GET /api/sessions.
type apiSession struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	CreatedAt   string  `json:"created_at"`
	LastMessage string  `json:"last_message"`
	LastDate    *string `json:"last_date"`
}

// apiLog is one row of GET /api/sessions/{id}/logs.
type apiLog struct {
	ID        json.Number `json:"id"`
	SessionID string      `json:"session_id"`
	Role      string      `json:"role"`
	Message   string      `json:"message"`
	Name      string      `json:"name"`
	URL       string      `json:"url"`
	CreatedAt string      `json:"created_at"`
}

// apiSessionCreate is the body of POST /api/sessions.
type apiSessionCreate struct {
	Title string `json:"title"`
}

// apiSendResponse is the reply of POST /get_response. Name and URL are
// present only when the assistant made a concrete recommendation.
type apiSendResponse struct {
	Message   string `json:"message"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Image     string `json:"image"`
	CreatedAt string `json:"createdAt"`

	// Server-assigned IDs when the backend echoes the exchange.
	UserID      json.Number `json:"user_id"`
	AssistantID json.Number `json:"assistant_id"`
}

// apiError is the backend's error envelope. FastAPI uses "detail"; some
// handlers use "message".
type apiError struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (e apiError) text() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}
