// Package gitlab provides a client and data types for the GitLab REST API,
// and adapts them to the migration engine's source interface.
package gitlab

import (
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitLab API v4 endpoint suffix.
	DefaultAPIEndpoint = "/api/v4"

	// DefaultURL is the instance used when none is configured.
	DefaultURL = "https://gitlab.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for rate-limited requests
	// and, for idempotent methods, transport failures.
	MaxRetries = 3

	// RetryDelay is the base delay between retries (exponential backoff).
	RetryDelay = time.Second

	// MaxPageSize is the maximum number of items to fetch per page.
	MaxPageSize = 100

	// MaxPages is the maximum number of pages to fetch before stopping.
	// This prevents infinite loops from malformed X-Next-Page headers.
	MaxPages = 1000
)

// Client provides methods to interact with the GitLab REST API.
type Client struct {
	Token      string       // GitLab personal access token
	BaseURL    string       // GitLab instance URL (e.g., "https://gitlab.com")
	HTTPClient *http.Client // Optional custom HTTP client
}

// Issue represents an issue from the GitLab API.
type Issue struct {
	ID          int        `json:"id"`  // Global issue ID
	IID         int        `json:"iid"` // Project-scoped issue ID
	ProjectID   int        `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	State       string     `json:"state"` // "opened", "closed"
	CreatedAt   *time.Time `json:"created_at"`
	Labels      []string   `json:"labels"`
	Author      *User      `json:"author,omitempty"`
	Milestone   *Milestone `json:"milestone,omitempty"`
	WebURL      string     `json:"web_url"`
}

// MergeRequest represents a merge request from the GitLab API.
type MergeRequest struct {
	ID              int        `json:"id"`
	IID             int        `json:"iid"`
	ProjectID       int        `json:"project_id"`
	SourceProjectID int        `json:"source_project_id"`
	TargetProjectID int        `json:"target_project_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	State           string     `json:"state"` // "opened", "closed", "merged", "locked"
	SourceBranch    string     `json:"source_branch"`
	TargetBranch    string     `json:"target_branch"`
	CreatedAt       *time.Time `json:"created_at"`
	Labels          []string   `json:"labels"`
	Author          *User      `json:"author,omitempty"`
	Milestone       *Milestone `json:"milestone,omitempty"`
	WebURL          string     `json:"web_url"`
}

// User represents a GitLab user.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Milestone represents a GitLab milestone.
type Milestone struct {
	ID          int    `json:"id"`
	IID         int    `json:"iid"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	State       string `json:"state"` // "active", "closed"
	DueDate     string `json:"due_date,omitempty"`
}

// Note represents a comment on an issue.
type Note struct {
	ID   int    `json:"id"`
	Body string `json:"body"`
}

// Project represents a GitLab project.
type Project struct {
	ID                int        `json:"id"`
	Name              string     `json:"name"`
	Path              string     `json:"path"`
	PathWithNamespace string     `json:"path_with_namespace"`
	WebURL            string     `json:"web_url"`
	DefaultBranch     string     `json:"default_branch,omitempty"`
	Namespace         *Namespace `json:"namespace,omitempty"`
}

// Namespace represents a GitLab namespace (group or user).
type Namespace struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Kind     string `json:"kind"` // "user" or "group"
	FullPath string `json:"full_path"`
}
