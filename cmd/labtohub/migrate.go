package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alnlarsen/labtohub/internal/config"
	"github.com/alnlarsen/labtohub/internal/debug"
	"github.com/alnlarsen/labtohub/internal/migrate"
	"github.com/alnlarsen/labtohub/internal/ui"
)

var (
	migrateDryRun            bool
	migrateSkipMergeRequests bool
	migrateMaxRetries        int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate issues, milestones and merge requests to GitHub",
	Long: `Copy every issue of the configured GitLab project to GitHub, then every merge
request as a pull request, pushing branches through the local mirror.

Items already on GitHub are found by the provenance line in their body and
updated in place, so the command can be re-run safely. A pass refused by
either platform (rate limit, forbidden) is retried from scratch after
migration.retry_cooloff.

Examples:
  labtohub migrate --dry-run
  labtohub migrate --skip-merge-requests
  labtohub migrate --max-retries 3`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Report what would change without writing to either platform")
	migrateCmd.Flags().BoolVar(&migrateSkipMergeRequests, "skip-merge-requests", false, "Only migrate issues")
	migrateCmd.Flags().IntVar(&migrateMaxRetries, "max-retries", 0, "Maximum pass retries (overrides migration.max_retries; 0 retries forever)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("max-retries") {
		config.Set("migration.max_retries", migrateMaxRetries)
	}
	cfg, err := loadConfig("gitlab", "github", "labels", "users", "migration", "mirror")
	if err != nil {
		return err
	}
	ctx := commandContext()

	opts := cfg.MigrateOptions()
	opts.DryRun = migrateDryRun
	opts.SkipMergeRequests = migrateSkipMergeRequests

	// Dry runs never invoke git, so they work without a mirror.
	withMirror := !opts.SkipMergeRequests && !opts.DryRun
	engine, err := buildEngine(ctx, cfg, opts, withMirror)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	engine.OnMessage = func(msg string) {
		if !jsonOutput {
			debug.PrintlnNormal(ui.Message(msg))
		}
	}
	engine.OnWarning = func(msg string) { _, _ = fmt.Fprintln(errOut, ui.Warning(msg)) }

	debug.Logf("migrating %s/%s to %s/%s (dry-run=%v)\n",
		cfg.GitLab.Namespace, cfg.GitLab.Project, cfg.GitHub.Owner, cfg.GitHub.Repo, opts.DryRun)

	result, runErr := engine.Run(ctx)
	if result != nil {
		if jsonOutput {
			if err := printJSON(cmd, result); err != nil {
				return err
			}
		} else {
			printSummary(result, opts.DryRun)
		}
	}
	return explain(runErr)
}

func printSummary(r *migrate.Result, dryRun bool) {
	s := r.Stats
	title := fmt.Sprintf("%s/%s", r.Project.Namespace, r.Project.Name)
	if dryRun {
		title += " (dry run)"
	}
	debug.PrintlnNormal()
	debug.PrintNormal("%s", ui.RenderSummary(title, []ui.Row{
		{Label: "issues created", Value: s.IssuesCreated},
		{Label: "issues updated", Value: s.IssuesUpdated},
		{Label: "issues unchanged", Value: s.IssuesUnchanged},
		{Label: "issues announced", Value: s.IssuesAnnounced},
		{Label: "milestones created", Value: s.MilestonesCreated},
		{Label: "pull requests created", Value: s.PullsCreated},
		{Label: "pull requests updated", Value: s.PullsUpdated},
		{Label: "pull requests unchanged", Value: s.PullsUnchanged},
		{Label: "forks skipped", Value: s.PullsSkipped},
		{Label: "rejected by GitHub", Value: s.PullsRejected},
		{Label: "branches pushed", Value: s.BranchesPushed},
		{Label: "mirror failures", Value: s.MirrorFailures},
	}))
	if r.Attempts > 1 {
		debug.PrintlnNormal(ui.RenderMuted(fmt.Sprintf("completed in %d passes", r.Attempts)))
	}
}
