// Package todoist is a thin client for the unified Todoist API, covering the
// two endpoints the rescheduler needs: filtered task listing and task updates.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"

	"github.com/daypack/daypack/internal/types"
)

// DefaultBaseURL is the unified Todoist API root.
const DefaultBaseURL = "https://api.todoist.com/api/v1"

// pageLimit is the page size requested from the filter endpoint; 200 is the
// documented maximum.
const pageLimit = 200

// APIError is a non-2xx response from the Todoist API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("todoist: HTTP %d: %s", e.StatusCode, e.Body)
}

// Unauthorized reports whether the response means the token was rejected,
// as opposed to a transient server-side failure worth retrying.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client talks to the Todoist REST API on behalf of one user token.
type Client struct {
	baseURL    string
	token      string
	log        *zap.SugaredLogger
	httpClient *http.Client
}

// New creates a Client authenticating with the given user token.
func New(token string, log *zap.SugaredLogger) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = 30 * time.Second
	return &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		log:        log,
		httpClient: httpClient,
	}
}

type filterResponse struct {
	Results    []types.Task `json:"results"`
	NextCursor *string      `json:"next_cursor"`
}

// FilterTasks streams every task matching the filter query to fn, one page at
// a time, following pagination cursors until the listing is exhausted.
//
// Expectations:
//   - An empty query makes no HTTP request and never calls fn
//   - fn sees pages in listing order; empty pages are not delivered
//   - An error from fn stops pagination and is returned as-is
//   - A non-2xx response surfaces as *APIError
func (c *Client) FilterTasks(ctx context.Context, query string, fn func([]types.Task) error) error {
	if query == "" {
		return nil
	}
	cursor := ""
	for {
		c.log.Debugw("requesting task page", "query", query, "cursor", cursor)
		page, next, err := c.filterPage(ctx, query, cursor)
		if err != nil {
			return err
		}
		if len(page) > 0 {
			if err := fn(page); err != nil {
				return err
			}
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}

func (c *Client) filterPage(ctx context.Context, query, cursor string) ([]types.Task, string, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(pageLimit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var resp filterResponse
	if err := c.do(ctx, http.MethodGet, "/tasks/filter?"+params.Encode(), nil, &resp); err != nil {
		return nil, "", err
	}
	next := ""
	if resp.NextCursor != nil {
		next = *resp.NextCursor
	}
	return resp.Results, next, nil
}

// UpdateTask applies params to the task and returns the task as the API now
// sees it.
func (c *Client) UpdateTask(ctx context.Context, id string, params types.UpdateTaskParams) (types.Task, error) {
	c.log.Debugw("updating task", "id", id)
	var task types.Task
	if err := c.do(ctx, http.MethodPost, "/tasks/"+id, params, &task); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

// do performs one authenticated request and decodes the JSON response into
// out (skipped when out is nil).
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("todoist: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("todoist: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("todoist: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("todoist: read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("todoist: unmarshal response: %w", err)
	}
	return nil
}
