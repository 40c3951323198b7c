package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/alnlarsen/labtohub/internal/config"
	"github.com/alnlarsen/labtohub/internal/git"
	"github.com/alnlarsen/labtohub/internal/github"
	"github.com/alnlarsen/labtohub/internal/gitlab"
	"github.com/alnlarsen/labtohub/internal/migrate"
	"github.com/alnlarsen/labtohub/internal/telemetry"
)

const (
	hintConfig   = "Run 'labtohub config init' to create labtohub.yaml, or see 'labtohub config show'"
	hintProjects = "Run 'labtohub projects --all' to list the projects your GitLab token can see"
)

// loadConfig validates the named sections and returns the effective config.
func loadConfig(sections ...string) (*config.Config, error) {
	if err := config.ValidateSections(sections...); err != nil {
		return nil, withHint(fmt.Errorf("invalid configuration:\n%w", err), hintConfig)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, withHint(err, hintConfig)
	}
	return cfg, nil
}

func newSource(cfg *config.Config) migrate.Source {
	client := gitlab.NewClient(cfg.GitLab.Token, cfg.GitLab.URL)
	if cfg.GitLab.InsecureSkipVerify {
		client = client.WithInsecureSkipVerify()
	}
	return telemetry.WrapSource(gitlab.NewSource(client))
}

func newDestination(cfg *config.Config) (migrate.Destination, error) {
	client, err := github.NewClient(cfg.GitHub.Token, cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.URL)
	if err != nil {
		return nil, err
	}
	return telemetry.WrapDestination(github.NewDestination(client)), nil
}

// newMirror opens and checks the local mirror.
func newMirror(ctx context.Context, cfg *config.Config) (migrate.Mirror, error) {
	m := git.NewMirror(cfg.Mirror.Path, cfg.Mirror.Remote, cfg.Mirror.Timeout)
	if err := m.Validate(ctx); err != nil {
		return nil, withHint(fmt.Errorf("local mirror unusable: %w", err),
			"Set mirror.path to a clone of the GitLab project whose '"+cfg.Mirror.Remote+"' remote points at GitHub, or pass --skip-merge-requests")
	}
	return telemetry.WrapMirror(m), nil
}

// buildEngine assembles an engine from cfg. The mirror is only opened when
// withMirror is set.
func buildEngine(ctx context.Context, cfg *config.Config, opts migrate.Options, withMirror bool) (*migrate.Engine, error) {
	dst, err := newDestination(cfg)
	if err != nil {
		return nil, err
	}
	var mirror migrate.Mirror
	if withMirror {
		if mirror, err = newMirror(ctx, cfg); err != nil {
			return nil, err
		}
	}
	return migrate.NewEngine(newSource(cfg), dst, mirror, opts), nil
}

// explain attaches hints to errors users can act on.
func explain(err error) error {
	var notFound *migrate.ProjectNotFoundError
	if errors.As(err, &notFound) {
		return withHint(err, hintProjects)
	}
	return err
}
