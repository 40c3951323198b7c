package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alnlarsen/labtohub/internal/migrate"
)

// document is the on-disk layout written by WriteFile. Durations are
// written in their string form so the file stays hand-editable.
type document struct {
	GitLab GitLab `yaml:"gitlab"`
	GitHub GitHub `yaml:"github"`
	Mirror struct {
		Path    string `yaml:"path"`
		Remote  string `yaml:"remote"`
		Timeout string `yaml:"timeout"`
	} `yaml:"mirror"`
	Labels struct {
		Rename   []migrate.Rename `yaml:"rename,omitempty"`
		Migrated string           `yaml:"migrated"`
	} `yaml:"labels"`
	Users struct {
		Rename []migrate.Rename `yaml:"rename,omitempty"`
	} `yaml:"users,omitempty"`
	Migration struct {
		IssueCooldown string `yaml:"issue_cooldown"`
		PushCooldown  string `yaml:"push_cooldown"`
		RetryCooloff  string `yaml:"retry_cooloff"`
		MaxRetries    int    `yaml:"max_retries"`
	} `yaml:"migration"`
}

// Marshal renders cfg as a labtohub.yaml document.
func Marshal(cfg *Config) ([]byte, error) {
	var doc document
	doc.GitLab = cfg.GitLab
	doc.GitHub = cfg.GitHub
	doc.Mirror.Path = cfg.Mirror.Path
	doc.Mirror.Remote = cfg.Mirror.Remote
	doc.Mirror.Timeout = cfg.Mirror.Timeout.String()
	doc.Labels.Rename = cfg.Labels.Rename
	doc.Labels.Migrated = cfg.Labels.Migrated
	doc.Users.Rename = cfg.Users.Rename
	doc.Migration.IssueCooldown = cfg.Migration.IssueCooldown.String()
	doc.Migration.PushCooldown = cfg.Migration.PushCooldown.String()
	doc.Migration.RetryCooloff = cfg.Migration.RetryCooloff.String()
	doc.Migration.MaxRetries = cfg.Migration.MaxRetries

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes cfg to path with owner-only permissions, since the file
// holds API tokens. An existing file is only replaced when overwrite is set.
func WriteFile(path string, cfg *Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to replace it)", path)
		}
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Defaults returns a Config populated only with built-in defaults.
func Defaults() *Config {
	return &Config{
		GitLab: GitLab{URL: "https://gitlab.com", MainBranch: migrate.DefaultSourceMain},
		GitHub: GitHub{DefaultBranch: migrate.DefaultDestinationMain},
		Mirror: Mirror{Path: ".", Remote: "origin", Timeout: 10 * time.Second},
		Labels: Labels{Migrated: migrate.DefaultMigratedLabel},
		Migration: Migration{
			IssueCooldown: migrate.DefaultIssueCooldown,
			PushCooldown:  migrate.DefaultPushCooldown,
			RetryCooloff:  migrate.DefaultRetryCooloff,
		},
	}
}
