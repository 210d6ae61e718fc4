package todoist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/daypack/daypack/internal/types"
)

func testClient(srv *httptest.Server) *Client {
	return &Client{
		baseURL:    srv.URL,
		token:      "test-token",
		log:        zap.NewNop().Sugar(),
		httpClient: srv.Client(),
	}
}

// --- FilterTasks ---

func TestFilterTasks_EmptyQuerySkipsHTTP(t *testing.T) {
	// An empty filter never reaches the network and never calls fn
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	calls := 0
	err := testClient(srv).FilterTasks(context.Background(), "", func([]types.Task) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 0 || calls != 0 {
		t.Errorf("requests = %d, fn calls = %d, want 0 and 0", requests, calls)
	}
}

func TestFilterTasks_FollowsPaginationCursor(t *testing.T) {
	// Pages are fetched until next_cursor comes back empty, each delivered to fn
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Method != http.MethodGet || r.URL.Path != "/tasks/filter" {
			t.Errorf("request = %s %s, want GET /tasks/filter", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization = %q, want bearer token", got)
		}
		q := r.URL.Query()
		if q.Get("query") != "today" {
			t.Errorf("query = %q, want %q", q.Get("query"), "today")
		}
		if q.Get("limit") != "200" {
			t.Errorf("limit = %q, want %q", q.Get("limit"), "200")
		}
		switch q.Get("cursor") {
		case "":
			fmt.Fprint(w, `{"results":[{"id":"t1","content":"One"},{"id":"t2","content":"Two"}],"next_cursor":"abc"}`)
		case "abc":
			fmt.Fprint(w, `{"results":[{"id":"t3","content":"Three"}],"next_cursor":null}`)
		default:
			t.Errorf("unexpected cursor %q", q.Get("cursor"))
		}
	}))
	defer srv.Close()

	var ids []string
	var pageSizes []int
	err := testClient(srv).FilterTasks(context.Background(), "today", func(page []types.Task) error {
		pageSizes = append(pageSizes, len(page))
		for _, task := range page {
			ids = append(ids, task.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
	if len(pageSizes) != 2 || pageSizes[0] != 2 || pageSizes[1] != 1 {
		t.Errorf("page sizes = %v, want [2 1]", pageSizes)
	}
	want := []string{"t1", "t2", "t3"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestFilterTasks_StopsWhenCallbackFails(t *testing.T) {
	// A failing fn halts pagination before the next page is requested
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"results":[{"id":"t1","content":"One"}],"next_cursor":"more"}`)
	}))
	defer srv.Close()

	wantErr := errors.New("enough")
	err := testClient(srv).FilterTasks(context.Background(), "today", func([]types.Task) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1", requests)
	}
}

func TestFilterTasks_AuthFailureSurfacesAPIError(t *testing.T) {
	// A 401 comes back as *APIError and reads as an authorization failure
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "Unauthorized")
	}))
	defer srv.Close()

	err := testClient(srv).FilterTasks(context.Background(), "today", func([]types.Task) error {
		t.Fatal("fn must not be called on auth failure")
		return nil
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
	if !apiErr.Unauthorized() {
		t.Error("Unauthorized() = false, want true")
	}
}

// --- UpdateTask ---

func TestUpdateTask_PostsParamsAndParsesResponse(t *testing.T) {
	// The update posts exactly the set fields and returns the updated task
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tasks/t1" {
			t.Errorf("request = %s %s, want POST /tasks/t1", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("content-type = %q, want application/json", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["due_date"] != "2025-01-05" {
			t.Errorf("due_date = %v, want 2025-01-05", body["due_date"])
		}
		if _, ok := body["due_datetime"]; ok {
			t.Error("due_datetime sent for a date-only update")
		}
		fmt.Fprint(w, `{"id":"t1","content":"One","due":{"date":"2025-01-05"}}`)
	}))
	defer srv.Close()

	task, err := testClient(srv).UpdateTask(context.Background(), "t1", types.UpdateTaskParams{
		DueDate: "2025-01-05",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "t1" || task.Due == nil || task.Due.Date != "2025-01-05" {
		t.Errorf("task = %+v, want t1 due 2025-01-05", task)
	}
}

func TestUpdateTask_ErrorCarriesStatusAndBody(t *testing.T) {
	// Server failures surface the status code and response body
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "task not found")
	}))
	defer srv.Close()

	_, err := testClient(srv).UpdateTask(context.Background(), "t1", types.UpdateTaskParams{DueDate: "2025-01-05"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", apiErr.StatusCode)
	}
	if apiErr.Body != "task not found" {
		t.Errorf("body = %q, want %q", apiErr.Body, "task not found")
	}
	if apiErr.Unauthorized() {
		t.Error("Unauthorized() = true for a 500, want false")
	}
}

// --- APIError ---

func TestAPIError_UnauthorizedCoversBothRejections(t *testing.T) {
	// 401 and 403 read as auth failures; other statuses do not
	cases := []struct {
		status int
		want   bool
	}{
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, true},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		e := &APIError{StatusCode: tc.status}
		if got := e.Unauthorized(); got != tc.want {
			t.Errorf("Unauthorized() for %d = %v, want %v", tc.status, got, tc.want)
		}
	}
}
