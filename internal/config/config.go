// Package config loads labtohub settings from labtohub.yaml, LABTOHUB_*
// environment variables and built-in defaults, in increasing order of
// precedence: defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/alnlarsen/labtohub/internal/migrate"
)

// FileName is the config file base name searched for when no explicit
// path is given.
const FileName = "labtohub"

var (
	mu sync.Mutex
	v  *viper.Viper
)

// Initialize loads configuration. An empty configFile searches the working
// directory and $HOME/.config/labtohub; a missing file is then not an error.
// An explicit configFile must exist.
func Initialize(configFile string) error {
	mu.Lock()
	defer mu.Unlock()

	nv := viper.New()
	nv.SetConfigType("yaml")
	if configFile != "" {
		nv.SetConfigFile(configFile)
	} else {
		nv.SetConfigName(FileName)
		nv.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			nv.AddConfigPath(filepath.Join(home, ".config", "labtohub"))
		}
	}

	nv.SetEnvPrefix("LABTOHUB")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	for _, k := range Keys {
		nv.SetDefault(k.Key, k.Default)
		if k.AltEnvVar != "" {
			if err := nv.BindEnv(k.Key, k.EnvVar, k.AltEnvVar); err != nil {
				return fmt.Errorf("failed to bind %s: %w", k.Key, err)
			}
		}
	}

	if err := nv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	v = nv
	return nil
}

// ResetForTesting discards loaded configuration.
func ResetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	v = nil
}

// instance returns the loaded viper, initializing with defaults on first use.
func instance() *viper.Viper {
	mu.Lock()
	loaded := v
	mu.Unlock()
	if loaded != nil {
		return loaded
	}
	if err := Initialize(""); err != nil {
		// Discovery failed to parse a file; fall back to defaults and env.
		mu.Lock()
		defer mu.Unlock()
		v = viper.New()
		for _, k := range Keys {
			v.SetDefault(k.Key, k.Default)
		}
		return v
	}
	mu.Lock()
	defer mu.Unlock()
	return v
}

// ConfigFileUsed returns the path of the loaded file, or "" if none.
func ConfigFileUsed() string {
	return instance().ConfigFileUsed()
}

// GetString returns the effective value of key.
func GetString(key string) string {
	return instance().GetString(key)
}

// Set overrides key for the rest of the process.
func Set(key string, value interface{}) {
	instance().Set(key, value)
}

// GitLab holds source platform settings.
type GitLab struct {
	URL                string `mapstructure:"url" yaml:"url"`
	Token              string `mapstructure:"token" yaml:"token"`
	Namespace          string `mapstructure:"namespace" yaml:"namespace"`
	Project            string `mapstructure:"project" yaml:"project"`
	MainBranch         string `mapstructure:"main_branch" yaml:"main_branch"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify,omitempty"`
}

// GitHub holds destination platform settings.
type GitHub struct {
	URL           string `mapstructure:"url" yaml:"url,omitempty"`
	Token         string `mapstructure:"token" yaml:"token"`
	Owner         string `mapstructure:"owner" yaml:"owner"`
	Repo          string `mapstructure:"repo" yaml:"repo"`
	DefaultBranch string `mapstructure:"default_branch" yaml:"default_branch"`
}

// Mirror holds local git mirror settings.
type Mirror struct {
	Path    string        `mapstructure:"path"`
	Remote  string        `mapstructure:"remote"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Labels holds label settings.
type Labels struct {
	Rename   []migrate.Rename `mapstructure:"rename"`
	Migrated string           `mapstructure:"migrated"`
}

// Users holds handle settings.
type Users struct {
	Rename []migrate.Rename `mapstructure:"rename"`
}

// Migration holds pacing and retry settings.
type Migration struct {
	IssueCooldown time.Duration `mapstructure:"issue_cooldown"`
	PushCooldown  time.Duration `mapstructure:"push_cooldown"`
	RetryCooloff  time.Duration `mapstructure:"retry_cooloff"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

// Config is the effective configuration.
type Config struct {
	GitLab    GitLab    `mapstructure:"gitlab"`
	GitHub    GitHub    `mapstructure:"github"`
	Mirror    Mirror    `mapstructure:"mirror"`
	Labels    Labels    `mapstructure:"labels"`
	Users     Users     `mapstructure:"users"`
	Migration Migration `mapstructure:"migration"`
}

// Load returns the effective configuration. It does not validate.
func Load() (*Config, error) {
	var cfg Config
	if err := instance().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks every key and returns all problems joined.
func Validate() error {
	return validate(func(string) bool { return true })
}

// ValidateSections is Validate restricted to keys under the named top-level
// sections, for commands that only talk to one platform.
func ValidateSections(sections ...string) error {
	return validate(func(key string) bool {
		section, _, _ := strings.Cut(key, ".")
		return slices.Contains(sections, section)
	})
}

func validate(include func(key string) bool) error {
	vp := instance()
	var errs []error
	for _, k := range Keys {
		if !include(k.Key) {
			continue
		}
		if err := ValidateKey(k.Key, vp.GetString(k.Key)); err != nil {
			errs = append(errs, err)
		}
	}

	cfg, err := Load()
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	if include("labels.rename") {
		errs = append(errs, validateRenames("labels.rename", cfg.Labels.Rename)...)
	}
	if include("users.rename") {
		errs = append(errs, validateRenames("users.rename", cfg.Users.Rename)...)
	}

	if include("mirror.path") && cfg.Mirror.Path != "" {
		if info, err := os.Stat(cfg.Mirror.Path); err != nil {
			errs = append(errs, fmt.Errorf("mirror.path: %w", err))
		} else if !info.IsDir() {
			errs = append(errs, fmt.Errorf("mirror.path: %s is not a directory", cfg.Mirror.Path))
		}
	}
	return errors.Join(errs...)
}

func validateRenames(key string, renames []migrate.Rename) []error {
	var errs []error
	for i, r := range renames {
		if r.From == "" {
			errs = append(errs, fmt.Errorf("%s[%d]: from must not be empty", key, i))
		}
	}
	return errs
}

// MigrateOptions maps the configuration onto engine options.
func (c *Config) MigrateOptions() migrate.Options {
	return migrate.Options{
		Namespace:                c.GitLab.Namespace,
		ProjectName:              c.GitLab.Project,
		SourceMainBranch:         c.GitLab.MainBranch,
		DestinationDefaultBranch: c.GitHub.DefaultBranch,
		LabelRenames:             c.Labels.Rename,
		UserRenames:              c.Users.Rename,
		MigratedLabel:            c.Labels.Migrated,
		IssueCooldown:            c.Migration.IssueCooldown,
		PushCooldown:             c.Migration.PushCooldown,
		RetryCooloff:             c.Migration.RetryCooloff,
		MaxRetries:               c.Migration.MaxRetries,
	}
}

// Setting is one effective value as reported by `config show`.
type Setting struct {
	Key    string
	Value  string
	Source string // "default", "file" or "env"
}

// Settings returns every scalar key with its effective value, secrets
// masked.
func Settings() []Setting {
	vp := instance()
	out := make([]Setting, 0, len(Keys))
	for _, k := range Keys {
		value := vp.GetString(k.Key)
		if k.Secret {
			value = Mask(value)
		}
		out = append(out, Setting{Key: k.Key, Value: value, Source: sourceOf(vp, k)})
	}
	return out
}

func sourceOf(vp *viper.Viper, k Key) string {
	if _, ok := os.LookupEnv(k.EnvVar); ok {
		return "env"
	}
	if k.AltEnvVar != "" {
		if _, ok := os.LookupEnv(k.AltEnvVar); ok {
			return "env"
		}
	}
	if vp.InConfig(k.Key) {
		return "file"
	}
	return "default"
}
