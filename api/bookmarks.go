package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Bookmark is a saved recommendation. Bookmarks are created from the
// name/url payload of assistant messages, always on explicit user action.
type Bookmark struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

const (
	addBookmarkPath    = "/api/add_bookmark"
	deleteBookmarkPath = "/api/delete_bookmark"
	updateBookmarkPath = "/api/update_bookmark"
)

// Bookmarks lists the account's saved bookmarks.
func (c *Client) Bookmarks(ctx context.Context) ([]Bookmark, error) {
	var out []Bookmark
	if err := c.getJSON(ctx, bookmarksPath, &out); err != nil {
		return nil, fmt.Errorf("api: bookmarks: %w", err)
	}
	return out, nil
}

// AddBookmark saves a recommendation.
func (c *Client) AddBookmark(ctx context.Context, name, url string) error {
	return c.postBookmark(ctx, addBookmarkPath, map[string]any{"name": name, "url": url})
}

// UpdateBookmark renames or repoints an existing bookmark.
func (c *Client) UpdateBookmark(ctx context.Context, id int, name, url string) error {
	return c.postBookmark(ctx, updateBookmarkPath, map[string]any{"id": id, "name": name, "url": url})
}

// DeleteBookmark removes a bookmark.
func (c *Client) DeleteBookmark(ctx context.Context, id int) error {
	return c.postBookmark(ctx, deleteBookmarkPath, map[string]any{"bookmark_id": id})
}

func (c *Client) postBookmark(ctx context.Context, path string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("api: bookmark: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("api: bookmark: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.doJSON(req, nil); err != nil {
		return fmt.Errorf("api: bookmark: %w", err)
	}
	return nil
}
