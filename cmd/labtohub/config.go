package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/alnlarsen/labtohub/internal/config"
	"github.com/alnlarsen/labtohub/internal/ui"
)

var (
	configInitPath  string
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create labtohub configuration",
	Long: `Configuration is read from labtohub.yaml (working directory, then
~/.config/labtohub, or --config), overridden by LABTOHUB_* environment
variables. GITLAB_TOKEN and GITHUB_TOKEN are honored for the tokens.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration (tokens masked)",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration without contacting either platform",
	RunE:  runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create labtohub.yaml interactively",
	Long: `Create a starter labtohub.yaml. On a terminal an interactive form asks for
the required settings; otherwise a file with defaults is written for editing.`,
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", config.FileName+".yaml", "Where to write the file")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Replace an existing file")
	configCmd.AddCommand(configShowCmd, configValidateCmd, configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings := config.Settings()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if jsonOutput {
		out := map[string]interface{}{"config_file": config.ConfigFileUsed()}
		values := make(map[string]string, len(settings))
		for _, s := range settings {
			values[s.Key] = s.Value
		}
		out["settings"] = values
		out["labels.rename"] = cfg.Labels.Rename
		out["users.rename"] = cfg.Users.Rename
		return printJSON(cmd, out)
	}

	w := cmd.OutOrStdout()
	file := config.ConfigFileUsed()
	if file == "" {
		file = "(none)"
	}
	_, _ = fmt.Fprintf(w, "%s %s\n\n", ui.RenderMuted("config file:"), file)

	width := 0
	for _, s := range settings {
		if len(s.Key) > width {
			width = len(s.Key)
		}
	}
	for _, s := range settings {
		_, _ = fmt.Fprintf(w, "%-*s  %s %s\n", width, s.Key, s.Value, ui.RenderMuted("("+s.Source+")"))
	}
	for _, t := range []struct {
		key     string
		renames int
	}{{"labels.rename", len(cfg.Labels.Rename)}, {"users.rename", len(cfg.Users.Rename)}} {
		_, _ = fmt.Fprintf(w, "%-*s  %d entries\n", width, t.key, t.renames)
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	err := config.Validate()
	if err == nil {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s Configuration is valid\n", ui.RenderPass(ui.IconPass))
		return nil
	}

	issues := []error{err}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		issues = joined.Unwrap()
	}
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "%s Configuration has %d problem(s):\n", ui.RenderFail(ui.IconFail), len(issues))
	for _, issue := range issues {
		_, _ = fmt.Fprintf(w, "  • %s\n", issue)
	}
	return withHint(fmt.Errorf("invalid configuration"), "Fix the keys above in "+configFileOrDefault()+" or via LABTOHUB_* variables")
}

func configFileOrDefault() string {
	if f := config.ConfigFileUsed(); f != "" {
		return f
	}
	return config.FileName + ".yaml"
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Defaults()
	if ui.IsInputTerminal() {
		if err := configForm(cfg).Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return fmt.Errorf("aborted")
			}
			return err
		}
	}

	if err := config.WriteFile(configInitPath, cfg, configInitForce); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", ui.RenderPass(ui.IconPass), configInitPath)
	if cfg.GitLab.Token == "" || cfg.GitHub.Token == "" {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("Tokens can also be supplied through GITLAB_TOKEN and GITHUB_TOKEN."))
	}
	return nil
}

// keyValidator adapts config.ValidateKey for a form field.
func keyValidator(key string) func(string) error {
	return func(s string) error {
		return config.ValidateKey(key, strings.TrimSpace(s))
	}
}

// optional accepts an empty value and otherwise validates key.
func optional(key string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return keyValidator(key)(s)
	}
}

func configForm(cfg *config.Config) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("GitLab URL").
				Value(&cfg.GitLab.URL).
				Validate(keyValidator("gitlab.url")),
			huh.NewInput().
				Title("GitLab namespace").
				Description("Full path of the group or user owning the project").
				Placeholder("e.g., my-group/sub-group").
				Value(&cfg.GitLab.Namespace).
				Validate(keyValidator("gitlab.namespace")),
			huh.NewInput().
				Title("GitLab project").
				Value(&cfg.GitLab.Project).
				Validate(keyValidator("gitlab.project")),
			huh.NewInput().
				Title("GitLab token").
				Description("Leave empty to use GITLAB_TOKEN").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.GitLab.Token),
			huh.NewInput().
				Title("GitLab default branch").
				Value(&cfg.GitLab.MainBranch),
		).Title("Source"),

		huh.NewGroup(
			huh.NewInput().
				Title("GitHub Enterprise URL").
				Description("Leave empty for github.com").
				Value(&cfg.GitHub.URL).
				Validate(optional("github.url")),
			huh.NewInput().
				Title("GitHub owner").
				Value(&cfg.GitHub.Owner).
				Validate(keyValidator("github.owner")),
			huh.NewInput().
				Title("GitHub repository").
				Value(&cfg.GitHub.Repo).
				Validate(keyValidator("github.repo")),
			huh.NewInput().
				Title("GitHub token").
				Description("Leave empty to use GITHUB_TOKEN").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.GitHub.Token),
			huh.NewInput().
				Title("GitHub default branch").
				Value(&cfg.GitHub.DefaultBranch),
		).Title("Destination"),

		huh.NewGroup(
			huh.NewInput().
				Title("Local mirror").
				Description("Clone of the GitLab project whose remote points at GitHub").
				Value(&cfg.Mirror.Path),
			huh.NewInput().
				Title("Remote").
				Value(&cfg.Mirror.Remote),
			huh.NewConfirm().
				Title("Skip TLS verification for GitLab?").
				Description("Only for self-hosted instances with private certificates").
				Value(&cfg.GitLab.InsecureSkipVerify),
		).Title("Branches"),
	)
}
