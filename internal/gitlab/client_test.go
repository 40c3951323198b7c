package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// TestNewClient verifies the constructor creates a properly configured client.
func TestNewClient(t *testing.T) {
	client := NewClient("test-token", "https://gitlab.example.com/")

	if client.Token != "test-token" {
		t.Errorf("Token = %q, want %q", client.Token, "test-token")
	}
	if client.BaseURL != "https://gitlab.example.com" {
		t.Errorf("BaseURL = %q, want %q", client.BaseURL, "https://gitlab.example.com")
	}
	if client.HTTPClient == nil {
		t.Error("HTTPClient is nil, want non-nil default client")
	}

	if got := NewClient("t", "").BaseURL; got != DefaultURL {
		t.Errorf("default BaseURL = %q, want %q", got, DefaultURL)
	}
}

func TestClientWithHTTPClient(t *testing.T) {
	customClient := &http.Client{Timeout: 60 * time.Second}
	client := NewClient("token", "https://gitlab.example.com").WithHTTPClient(customClient)

	if client.HTTPClient != customClient {
		t.Error("HTTPClient not set to custom client")
	}
	if client.Token != "token" {
		t.Errorf("Token = %q, want %q", client.Token, "token")
	}
}

func TestClientWithInsecureSkipVerify(t *testing.T) {
	client := NewClient("token", "https://gitlab.example.com").WithInsecureSkipVerify()

	transport, ok := client.HTTPClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport = %T, want *http.Transport", client.HTTPClient.Transport)
	}
	if !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = false, want true")
	}
	if client.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", client.HTTPClient.Timeout, DefaultTimeout)
	}
}

func TestBuildURL(t *testing.T) {
	client := NewClient("token", "https://gitlab.example.com")

	tests := []struct {
		name    string
		path    string
		params  map[string]string
		wantURL string
	}{
		{
			name:    "issues endpoint",
			path:    "/projects/123/issues",
			wantURL: "https://gitlab.example.com/api/v4/projects/123/issues",
		},
		{
			name:    "with query params",
			path:    "/projects",
			params:  map[string]string{"search": "proj", "per_page": "100"},
			wantURL: "https://gitlab.example.com/api/v4/projects",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := client.buildURL(tt.path, tt.params)
			if !strings.HasPrefix(got, tt.wantURL) {
				t.Errorf("buildURL(%q) = %q, want prefix %q", tt.path, got, tt.wantURL)
			}
			for k, v := range tt.params {
				if !strings.Contains(got, k+"="+v) {
					t.Errorf("buildURL missing param %s=%s in %q", k, v, got)
				}
			}
		})
	}
}

func TestFetchIssues_Pagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("PRIVATE-TOKEN") != "test-token" {
			t.Errorf("PRIVATE-TOKEN header = %q, want %q", r.Header.Get("PRIVATE-TOKEN"), "test-token")
		}
		if r.URL.Path != "/api/v4/projects/123/issues" {
			t.Errorf("URL path = %s, want /api/v4/projects/123/issues", r.URL.Path)
		}
		if r.URL.Query().Get("scope") != "all" {
			t.Errorf("scope = %q, want all", r.URL.Query().Get("scope"))
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "1":
			w.Header().Set("X-Next-Page", "2")
			json.NewEncoder(w).Encode([]Issue{{IID: 1, Title: "First"}})
		case "2":
			json.NewEncoder(w).Encode([]Issue{{IID: 2, Title: "Second"}})
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	issues, err := NewClient("test-token", server.URL).FetchIssues(context.Background(), 123)
	if err != nil {
		t.Fatalf("FetchIssues() error = %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("FetchIssues() returned %d issues, want 2", len(issues))
	}
	if issues[1].Title != "Second" {
		t.Errorf("issues[1].Title = %q, want %q", issues[1].Title, "Second")
	}
}

func TestFetchMergeRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/projects/5/merge_requests" {
			t.Errorf("URL path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("state") != "all" {
			t.Errorf("state = %q, want all", r.URL.Query().Get("state"))
		}
		w.Write([]byte(`[{"iid": 3, "source_project_id": 9, "source_branch": "feat", "target_branch": "master"}]`))
	}))
	defer server.Close()

	mrs, err := NewClient("t", server.URL).FetchMergeRequests(context.Background(), 5)
	if err != nil {
		t.Fatalf("FetchMergeRequests() error = %v", err)
	}
	if len(mrs) != 1 || mrs[0].SourceProjectID != 9 || mrs[0].SourceBranch != "feat" {
		t.Errorf("FetchMergeRequests() = %+v", mrs)
	}
}

func TestCreateIssueNote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/v4/projects/5/issues/8/notes" {
			t.Errorf("URL path = %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["body"] != "moved" {
			t.Errorf("body = %q, want %q", body["body"], "moved")
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 77, "body": "moved"}`))
	}))
	defer server.Close()

	note, err := NewClient("t", server.URL).CreateIssueNote(context.Background(), 5, 8, "moved")
	if err != nil {
		t.Fatalf("CreateIssueNote() error = %v", err)
	}
	if note.ID != 77 {
		t.Errorf("note.ID = %d, want 77", note.ID)
	}
}

func TestSetIssueLabels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("Method = %s, want PUT", r.Method)
		}
		raw, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(raw), `"labels":"bug,MigratedToGitHub"`) {
			t.Errorf("body = %s", raw)
		}
		w.Write([]byte(`{"iid": 8, "labels": ["bug", "MigratedToGitHub"]}`))
	}))
	defer server.Close()

	issue, err := NewClient("t", server.URL).SetIssueLabels(context.Background(), 5, 8, []string{"bug", "MigratedToGitHub"})
	if err != nil {
		t.Fatalf("SetIssueLabels() error = %v", err)
	}
	if len(issue.Labels) != 2 {
		t.Errorf("labels = %v", issue.Labels)
	}
}

func TestDoRequest_ForbiddenError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "403 Forbidden"}`))
	}))
	defer server.Close()

	_, err := NewClient("t", server.URL).FetchIssues(context.Background(), 1)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !apiErr.Forbidden() {
		t.Error("Forbidden() = false, want true")
	}
	if apiErr.Message != "403 Forbidden" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestDoRequest_NotFoundIsNotForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "404 Project Not Found"}`))
	}))
	defer server.Close()

	_, err := NewClient("t", server.URL).FetchIssues(context.Background(), 1)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Forbidden() {
		t.Error("Forbidden() = true, want false")
	}
	if apiErr.Message != "404 Project Not Found" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestDoRequest_RetriesRateLimit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, err := NewClient("t", server.URL).FetchIssues(context.Background(), 1); err != nil {
		t.Fatalf("FetchIssues() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"message": "boom"}`, "boom"},
		{`{"message": {"title": ["is too long"]}}`, `{"title":["is too long"]}`},
		{`{"error": "invalid_token"}`, "invalid_token"},
		{"plain text\n", "plain text"},
	}
	for _, tt := range tests {
		if got := errorMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("errorMessage(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestListProjects_ScopedToGroup(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.EscapedPath(), r.URL.RawQuery
		w.Write([]byte(`[{"id": 4, "name": "api", "namespace": {"full_path": "acme/backend"}}]`))
	}))
	defer server.Close()

	projects, err := NewClient("t", server.URL).ListProjects(context.Background(), "acme/backend", "api")
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 1 || projects[0].ID != 4 {
		t.Errorf("ListProjects() = %+v", projects)
	}
	if gotPath != "/api/v4/groups/acme%2Fbackend/projects" {
		t.Errorf("path = %s, want the group projects endpoint", gotPath)
	}
	if !strings.Contains(gotQuery, "search=api") {
		t.Errorf("query = %s, want search=api", gotQuery)
	}
}

func TestListProjects_FallsBackToUserNamespace(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.HasPrefix(r.URL.Path, "/api/v4/groups/") {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message": "404 Group Not Found"}`))
			return
		}
		w.Write([]byte(`[{"id": 5, "name": "dotfiles", "namespace": {"full_path": "alice"}}]`))
	}))
	defer server.Close()

	projects, err := NewClient("t", server.URL).ListProjects(context.Background(), "alice", "dotfiles")
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 1 || projects[0].ID != 5 {
		t.Errorf("ListProjects() = %+v", projects)
	}
	want := []string{"/api/v4/groups/alice/projects", "/api/v4/users/alice/projects"}
	if strings.Join(paths, " ") != strings.Join(want, " ") {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestListProjects_UnknownNamespaceIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	projects, err := NewClient("t", server.URL).ListProjects(context.Background(), "typo", "api")
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("ListProjects() = %+v, want none", projects)
	}
}

func TestListProjects_WithoutNamespaceUsesMembership(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/projects" {
			t.Errorf("URL path = %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, err := NewClient("t", server.URL).ListProjects(context.Background(), "", "api"); err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if !strings.Contains(gotQuery, "membership=true") {
		t.Errorf("query = %s, want membership=true", gotQuery)
	}
}

func TestCreateIssueNote_TimeoutNotResent(t *testing.T) {
	var posts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if posts.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 1, "body": "moved"}`))
	}))
	defer server.Close()

	client := NewClient("t", server.URL).WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond})
	_, err := client.CreateIssueNote(context.Background(), 5, 8, "moved")

	if err == nil {
		t.Fatal("CreateIssueNote() error = nil, want the timeout")
	}
	if n := posts.Load(); n != 1 {
		t.Errorf("note POSTed %d times, want 1", n)
	}
}

func TestFetchIssues_TimeoutRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		w.Write([]byte(`[{"iid": 1}]`))
	}))
	defer server.Close()

	client := NewClient("t", server.URL).WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond})
	issues, err := client.FetchIssues(context.Background(), 1)

	if err != nil {
		t.Fatalf("FetchIssues() error = %v", err)
	}
	if len(issues) != 1 {
		t.Errorf("FetchIssues() returned %d issues, want 1", len(issues))
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}
