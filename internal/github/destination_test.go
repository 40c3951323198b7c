package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alnlarsen/labtohub/internal/migrate"
)

// newTestDestination serves mux under the enterprise API prefix go-github uses.
func newTestDestination(t *testing.T, mux *http.ServeMux) *Destination {
	t.Helper()
	server := httptest.NewServer(http.StripPrefix("/api/v3", mux))
	t.Cleanup(server.Close)

	client, err := NewClientWithHTTPClient(server.Client(), "token", "o", "r", server.URL)
	require.NoError(t, err)
	return NewDestination(client)
}

func decode(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("decode request body: %v", err)
	}
	return body
}

func TestFetchIssues_SkipsPullRequestsAndPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		switch r.URL.Query().Get("page") {
		case "1":
			w.Header().Set("Link", `<https://github.test/api/v3/repos/o/r/issues?page=2>; rel="next"`)
			fmt.Fprint(w, `[
				{"number": 1, "title": "one", "body": "b1", "state": "open", "html_url": "https://gh/o/r/issues/1",
				 "labels": [{"name": "bug"}], "milestone": {"number": 4}},
				{"number": 2, "title": "pr", "pull_request": {"url": "x"}}
			]`)
		case "2":
			fmt.Fprint(w, `[{"number": 3, "title": "three", "state": "closed"}]`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})
	dst := newTestDestination(t, mux)

	got, err := dst.FetchIssues(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	four := 4
	assert.Equal(t, migrate.DestinationItem{
		Number: 1, Title: "one", Body: "b1", State: "open", Labels: []string{"bug"},
		Milestone: &four, URL: "https://gh/o/r/issues/1",
	}, got[0])
	assert.Equal(t, 3, got[1].Number)
	assert.Equal(t, "closed", got[1].State)
}

func TestCreateIssue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body := decode(t, r)
		assert.Equal(t, "title", body["title"])
		assert.Equal(t, "body", body["body"])
		assert.Equal(t, []interface{}{"bug"}, body["labels"])
		assert.Equal(t, float64(7), body["milestone"])
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number": 11, "title": "title", "body": "body", "state": "open", "html_url": "https://gh/o/r/issues/11"}`)
	})
	dst := newTestDestination(t, mux)

	seven := 7
	got, err := dst.CreateIssue(context.Background(), migrate.IssueRequest{
		Title: "title", Body: "body", Labels: []string{"bug"}, Milestone: &seven,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, got.Number)
	assert.Equal(t, "https://gh/o/r/issues/11", got.URL)
}

func TestUpdateIssue_SendsOnlyTitleAndBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/issues/11", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		body := decode(t, r)
		assert.Equal(t, map[string]interface{}{"title": "t2", "body": "b2"}, body)
		fmt.Fprint(w, `{"number": 11, "title": "t2", "body": "b2", "state": "closed"}`)
	})
	dst := newTestDestination(t, mux)

	got, err := dst.UpdateIssue(context.Background(), 11, migrate.ItemUpdate{Title: "t2", Body: "b2"})
	require.NoError(t, err)
	assert.Equal(t, "closed", got.State)
}

func TestMilestones(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/milestones", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "all", r.URL.Query().Get("state"))
			fmt.Fprint(w, `[{"number": 1, "title": "v1"}]`)
		case http.MethodPost:
			body := decode(t, r)
			assert.Equal(t, "v2", body["title"])
			assert.Equal(t, "closed", body["state"])
			assert.Equal(t, "2021-06-30T00:00:00Z", body["due_on"])
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"number": 2, "title": "v2"}`)
		}
	})
	dst := newTestDestination(t, mux)

	got, err := dst.FetchMilestones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []migrate.DestinationMilestone{{Number: 1, Title: "v1"}}, got)

	due := time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC)
	created, err := dst.CreateMilestone(context.Background(), migrate.MilestoneRequest{Title: "v2", DueOn: &due, Closed: true})
	require.NoError(t, err)
	assert.Equal(t, 2, created.Number)
}

func TestPullRequestsAndBranches(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/pulls", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "all", r.URL.Query().Get("state"))
			fmt.Fprint(w, `[{"number": 5, "title": "p", "body": "marker", "state": "closed"}]`)
		case http.MethodPost:
			body := decode(t, r)
			assert.Equal(t, "feature", body["head"])
			assert.Equal(t, "main", body["base"])
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"number": 6, "title": "new", "state": "open", "html_url": "https://gh/o/r/pull/6"}`)
		}
	})
	mux.HandleFunc("/repos/o/r/pulls/5", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		fmt.Fprint(w, `{"number": 5, "title": "p2"}`)
	})
	mux.HandleFunc("/repos/o/r/branches", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name": "main"}, {"name": "develop"}]`)
	})
	dst := newTestDestination(t, mux)
	ctx := context.Background()

	pulls, err := dst.FetchPullRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pulls, 1)
	assert.Equal(t, "marker", pulls[0].Body)

	branches, err := dst.FetchBranches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "develop"}, branches)

	created, err := dst.CreatePullRequest(ctx, migrate.PullRequestRequest{Title: "new", Head: "feature", Base: "main", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, 6, created.Number)

	updated, err := dst.UpdatePullRequest(ctx, 5, migrate.ItemUpdate{Title: "p2", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, "p2", updated.Title)
}

func TestCreatePullRequest_ValidationError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/pulls", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message": "Validation Failed", "errors": [
			{"resource": "PullRequest", "code": "custom", "message": "No commits between main and feature"},
			{"resource": "PullRequest", "field": "head", "code": "invalid"}
		]}`)
	})
	dst := newTestDestination(t, mux)

	_, err := dst.CreatePullRequest(context.Background(), migrate.PullRequestRequest{Head: "feature", Base: "main"})

	msgs, ok := migrate.ValidationMessages(err)
	require.True(t, ok, "error %v should carry validation messages", err)
	assert.Equal(t, []string{"No commits between main and feature", "PullRequest head invalid"}, msgs)
	assert.Equal(t, migrate.OutcomeFatal, migrate.Classify(err))
}

func TestErrors_Classification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		body    string
		want    migrate.Outcome
	}{
		{
			name:    "primary rate limit",
			status:  http.StatusForbidden,
			headers: map[string]string{"X-RateLimit-Remaining": "0", "X-RateLimit-Reset": "1"},
			body:    `{"message": "API rate limit exceeded"}`,
			want:    migrate.OutcomeRetryable,
		},
		{
			name:   "secondary rate limit",
			status: http.StatusForbidden,
			body:   `{"message": "You have exceeded a secondary rate limit", "documentation_url": "https://docs.github.com/rest/overview/rate-limits-for-the-rest-api#about-secondary-rate-limits"}`,
			want:   migrate.OutcomeRetryable,
		},
		{
			name:   "plain forbidden",
			status: http.StatusForbidden,
			body:   `{"message": "Resource not accessible by integration"}`,
			want:   migrate.OutcomeRetryable,
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   `{"message": "Not Found"}`,
			want:   migrate.OutcomeFatal,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"message": "boom"}`,
			want:   migrate.OutcomeFatal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/repos/o/r/branches", func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			dst := newTestDestination(t, mux)

			_, err := dst.FetchBranches(context.Background())

			require.Error(t, err)
			assert.Equal(t, tt.want, migrate.Classify(err))
		})
	}
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient("t", "o", "r", "://bad")
	assert.Error(t, err)
}
