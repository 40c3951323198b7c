package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Key describes a scalar configuration key.
type Key struct {
	Key         string // Full key name (e.g., "gitlab.url")
	Description string // Human-readable description
	EnvVar      string // Environment variable with the LABTOHUB_ prefix
	AltEnvVar   string // Conventional variable honored as a fallback
	Secret      bool   // Masked by `config show`
	Required    bool   // Validation fails when empty
	Default     string // Default value (empty = no default)
	Validate    func(string) error
}

// Keys defines every scalar configuration key. The rename tables
// (labels.rename, users.rename) are lists and are handled separately.
var Keys = []Key{
	// Source platform
	{
		Key:         "gitlab.url",
		Description: "GitLab instance base URL",
		EnvVar:      "LABTOHUB_GITLAB_URL",
		Default:     "https://gitlab.com",
		Validate:    validateURL,
	},
	{
		Key:         "gitlab.token",
		Description: "GitLab API token",
		EnvVar:      "LABTOHUB_GITLAB_TOKEN",
		AltEnvVar:   "GITLAB_TOKEN",
		Secret:      true,
		Required:    true,
	},
	{
		Key:         "gitlab.namespace",
		Description: "Namespace full path of the source project",
		EnvVar:      "LABTOHUB_GITLAB_NAMESPACE",
		Required:    true,
	},
	{
		Key:         "gitlab.project",
		Description: "Source project name",
		EnvVar:      "LABTOHUB_GITLAB_PROJECT",
		Required:    true,
	},
	{
		Key:         "gitlab.main_branch",
		Description: "Source default branch, renamed on the destination",
		EnvVar:      "LABTOHUB_GITLAB_MAIN_BRANCH",
		Default:     "master",
	},
	{
		Key:         "gitlab.insecure_skip_verify",
		Description: "Skip TLS verification for self-hosted instances",
		EnvVar:      "LABTOHUB_GITLAB_INSECURE_SKIP_VERIFY",
		Default:     "false",
		Validate:    validateBool,
	},
	// Destination platform
	{
		Key:         "github.url",
		Description: "GitHub Enterprise base URL (empty for github.com)",
		EnvVar:      "LABTOHUB_GITHUB_URL",
		Validate:    validateURL,
	},
	{
		Key:         "github.token",
		Description: "GitHub API token",
		EnvVar:      "LABTOHUB_GITHUB_TOKEN",
		AltEnvVar:   "GITHUB_TOKEN",
		Secret:      true,
		Required:    true,
	},
	{
		Key:         "github.owner",
		Description: "Destination repository owner",
		EnvVar:      "LABTOHUB_GITHUB_OWNER",
		Required:    true,
	},
	{
		Key:         "github.repo",
		Description: "Destination repository name",
		EnvVar:      "LABTOHUB_GITHUB_REPO",
		Required:    true,
	},
	{
		Key:         "github.default_branch",
		Description: "Destination default branch",
		EnvVar:      "LABTOHUB_GITHUB_DEFAULT_BRANCH",
		Default:     "main",
	},
	// Local mirror
	{
		Key:         "mirror.path",
		Description: "Working directory of the local mirror",
		EnvVar:      "LABTOHUB_MIRROR_PATH",
		Default:     ".",
	},
	{
		Key:         "mirror.remote",
		Description: "Git remote pointing at the destination",
		EnvVar:      "LABTOHUB_MIRROR_REMOTE",
		Default:     "origin",
	},
	{
		Key:         "mirror.timeout",
		Description: "Time limit for each git operation",
		EnvVar:      "LABTOHUB_MIRROR_TIMEOUT",
		Default:     "10s",
		Validate:    validatePositiveDuration,
	},
	// Labels
	{
		Key:         "labels.migrated",
		Description: "Label marking source issues as migrated",
		EnvVar:      "LABTOHUB_LABELS_MIGRATED",
		Default:     "MigratedToGitHub",
		Required:    true,
	},
	// Pacing
	{
		Key:         "migration.issue_cooldown",
		Description: "Pause after each issue creation",
		EnvVar:      "LABTOHUB_MIGRATION_ISSUE_COOLDOWN",
		Default:     "1s",
		Validate:    validatePositiveDuration,
	},
	{
		Key:         "migration.push_cooldown",
		Description: "Pause after each branch push",
		EnvVar:      "LABTOHUB_MIGRATION_PUSH_COOLDOWN",
		Default:     "2s",
		Validate:    validatePositiveDuration,
	},
	{
		Key:         "migration.retry_cooloff",
		Description: "Pause before retrying a pass refused by the platform",
		EnvVar:      "LABTOHUB_MIGRATION_RETRY_COOLOFF",
		Default:     "10s",
		Validate:    validatePositiveDuration,
	},
	{
		Key:         "migration.max_retries",
		Description: "Maximum pass retries (0 retries forever)",
		EnvVar:      "LABTOHUB_MIGRATION_MAX_RETRIES",
		Default:     "0",
		Validate:    validateNonNegativeInt,
	},
}

var keyMap map[string]*Key

func init() {
	keyMap = make(map[string]*Key, len(Keys))
	for i := range Keys {
		keyMap[Keys[i].Key] = &Keys[i]
	}
}

// LookupKey returns the Key definition, or nil if key is unknown.
func LookupKey(key string) *Key {
	return keyMap[key]
}

// ValidateKey checks whether key is known and value is acceptable for it.
func ValidateKey(key, value string) error {
	k := keyMap[key]
	if k == nil {
		known := make([]string, 0, len(Keys))
		for _, k := range Keys {
			known = append(known, k.Key)
		}
		return fmt.Errorf("unknown key %q; valid keys: %s", key, strings.Join(known, ", "))
	}
	if value == "" {
		if k.Required {
			return fmt.Errorf("%s is required (%s)", key, k.envHint())
		}
		return nil
	}
	if k.Validate != nil {
		if err := k.Validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	return nil
}

func (k *Key) envHint() string {
	if k.AltEnvVar != "" {
		return fmt.Sprintf("set it in the config file, %s or %s", k.EnvVar, k.AltEnvVar)
	}
	return fmt.Sprintf("set it in the config file or %s", k.EnvVar)
}

// Mask hides all but the last four characters of a secret.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}

// Validation helpers

func validateURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("must be a URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http or https URL, got %q", value)
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host, got %q", value)
	}
	return nil
}

func validateBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false, got %q", value)
	}
	return nil
}

func validateDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("must be a duration such as 500ms or 2s, got %q", value)
	}
	if d < 0 {
		return fmt.Errorf("must not be negative, got %s", value)
	}
	return nil
}

func validatePositiveDuration(value string) error {
	if err := validateDuration(value); err != nil {
		return err
	}
	if d, _ := time.ParseDuration(value); d == 0 {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validateNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if n < 0 {
		return fmt.Errorf("must not be negative, got %d", n)
	}
	return nil
}
