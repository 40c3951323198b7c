package gitlab

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewClient creates a new GitLab client for the instance at baseURL.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		Token:   token,
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		Token:      c.Token,
		BaseURL:    c.BaseURL,
		HTTPClient: httpClient,
	}
}

// WithInsecureSkipVerify returns a new client that does not verify the
// instance's TLS certificate. Only for self-hosted instances with private CAs.
func (c *Client) WithInsecureSkipVerify() *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	timeout := DefaultTimeout
	if c.HTTPClient != nil {
		timeout = c.HTTPClient.Timeout
	}
	return c.WithHTTPClient(&http.Client{Timeout: timeout, Transport: transport})
}

// APIError is a non-2xx response from the GitLab API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gitlab API error: %s (status %d)", e.Message, e.StatusCode)
}

// Forbidden reports whether the request was refused for authorization or
// rate-limit reasons that are expected to clear on their own.
func (e *APIError) Forbidden() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + DefaultAPIEndpoint + path

	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	return u
}

func projectPath(projectID int) string {
	return "/projects/" + strconv.Itoa(projectID)
}

// doRequest performs an HTTP request with authentication and retry logic.
// Rate-limited requests (429) are retried with exponential backoff, honoring
// Retry-After. Transport failures are retried only for methods that are safe
// to repeat; a POST that timed out may already have been applied.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body interface{}) ([]byte, http.Header, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	type response struct {
		body   []byte
		header http.Header
	}

	bo := newRetryBackOff()
	attempt := 0
	op := func() (response, error) {
		attempt++
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
		if err != nil {
			return response{}, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("PRIVATE-TOKEN", c.Token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return response{}, backoff.Permanent(ctx.Err())
			}
			err = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, MaxRetries+1, err)
			if !idempotent(method) {
				return response{}, backoff.Permanent(err)
			}
			return response{}, err
		}

		const maxResponseSize = 50 * 1024 * 1024
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			err = fmt.Errorf("failed to read response (attempt %d/%d): %w", attempt, MaxRetries+1, err)
			if !idempotent(method) {
				return response{}, backoff.Permanent(err)
			}
			return response{}, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds >= 0 {
				bo.retryAfter(time.Duration(seconds) * time.Second)
			}
			return response{}, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return response{}, backoff.Permanent(&APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)})
		}

		return response{body: respBody, header: resp.Header}, nil
	}

	res, err := backoff.RetryWithData(op, backoff.WithContext(backoff.WithMaxRetries(bo, MaxRetries), ctx))
	if err != nil {
		return nil, nil, err
	}
	return res.body, res.header, nil
}

// idempotent reports whether a request with method can be sent again after a
// transport failure without risking a duplicate write.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// retryBackOff is an exponential backoff whose next wait can be pinned by a
// Retry-After header.
type retryBackOff struct {
	*backoff.ExponentialBackOff
	pinned   time.Duration
	isPinned bool
}

func newRetryBackOff() *retryBackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = RetryDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	return &retryBackOff{ExponentialBackOff: exp}
}

func (b *retryBackOff) retryAfter(d time.Duration) {
	b.pinned, b.isPinned = d, true
}

func (b *retryBackOff) NextBackOff() time.Duration {
	next := b.ExponentialBackOff.NextBackOff()
	if b.isPinned {
		b.isPinned = false
		return b.pinned
	}
	return next
}

// errorMessage extracts the "message" or "error" field of a GitLab error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message interface{} `json:"message"`
		Error   string      `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != nil:
			if s, ok := payload.Message.(string); ok {
				return s
			}
			if b, err := json.Marshal(payload.Message); err == nil {
				return string(b)
			}
		case payload.Error != "":
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}

// getPaged fetches every page of a list endpoint, following X-Next-Page.
func getPaged[T any](ctx context.Context, c *Client, path string, params map[string]string) ([]T, error) {
	var all []T
	page := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		query := map[string]string{
			"per_page": strconv.Itoa(MaxPageSize),
			"page":     strconv.Itoa(page),
		}
		for k, v := range params {
			query[k] = v
		}

		respBody, headers, err := c.doRequest(ctx, http.MethodGet, c.buildURL(path, query), nil)
		if err != nil {
			return nil, err
		}

		var items []T
		if err := json.Unmarshal(respBody, &items); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		all = append(all, items...)

		next := headers.Get("X-Next-Page")
		if next == "" {
			break
		}
		nextPage, err := strconv.Atoi(next)
		if err != nil || nextPage <= page {
			break
		}
		page = nextPage

		if page > MaxPages {
			return nil, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
	return all, nil
}

// ListProjects returns the projects in namespace whose name matches search.
// namespace may be a group or a user path. With no namespace, only projects
// the token's user is a member of are listed.
func (c *Client) ListProjects(ctx context.Context, namespace, search string) ([]Project, error) {
	params := map[string]string{"simple": "false"}
	if search != "" {
		params["search"] = search
	}
	if namespace == "" {
		params["membership"] = "true"
		projects, err := getPaged[Project](ctx, c, "/projects", params)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		return projects, nil
	}

	escaped := url.PathEscape(namespace)
	projects, err := getPaged[Project](ctx, c, "/groups/"+escaped+"/projects", params)
	if isNotFound(err) {
		projects, err = getPaged[Project](ctx, c, "/users/"+escaped+"/projects", params)
		if isNotFound(err) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list projects in %s: %w", namespace, err)
	}
	return projects, nil
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// FetchIssues retrieves every issue of a project, in any state.
func (c *Client) FetchIssues(ctx context.Context, projectID int) ([]Issue, error) {
	issues, err := getPaged[Issue](ctx, c, projectPath(projectID)+"/issues",
		map[string]string{"scope": "all", "order_by": "created_at", "sort": "asc"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issues: %w", err)
	}
	return issues, nil
}

// FetchMergeRequests retrieves every merge request of a project, in any state.
func (c *Client) FetchMergeRequests(ctx context.Context, projectID int) ([]MergeRequest, error) {
	mrs, err := getPaged[MergeRequest](ctx, c, projectPath(projectID)+"/merge_requests",
		map[string]string{"state": "all", "scope": "all", "order_by": "created_at", "sort": "asc"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch merge requests: %w", err)
	}
	return mrs, nil
}

// CreateIssueNote adds a comment to an issue.
func (c *Client) CreateIssueNote(ctx context.Context, projectID, iid int, body string) (*Note, error) {
	urlStr := c.buildURL(projectPath(projectID)+"/issues/"+strconv.Itoa(iid)+"/notes", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, map[string]string{"body": body})
	if err != nil {
		return nil, fmt.Errorf("failed to create note on issue %d: %w", iid, err)
	}

	var note Note
	if err := json.Unmarshal(respBody, &note); err != nil {
		return nil, fmt.Errorf("failed to parse note response: %w", err)
	}
	return &note, nil
}

// SetIssueLabels replaces the label set of an issue.
func (c *Client) SetIssueLabels(ctx context.Context, projectID, iid int, labels []string) (*Issue, error) {
	urlStr := c.buildURL(projectPath(projectID)+"/issues/"+strconv.Itoa(iid), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPut, urlStr, map[string]string{"labels": strings.Join(labels, ",")})
	if err != nil {
		return nil, fmt.Errorf("failed to update labels on issue %d: %w", iid, err)
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse issue response: %w", err)
	}
	return &issue, nil
}
