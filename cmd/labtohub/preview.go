package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alnlarsen/labtohub/internal/ui"
)

var previewRaw bool

var previewCmd = &cobra.Command{
	Use:   "preview <iid>",
	Short: "Show the GitHub body a GitLab issue would get",
	Long: `Fetch one GitLab issue and print the body it would have on GitHub, with
mentions renamed and cross-references rewritten against the issues already
migrated. Nothing is written to either platform.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().BoolVar(&previewRaw, "raw", false, "Print markdown without rendering")
}

func runPreview(cmd *cobra.Command, args []string) error {
	iid, err := strconv.Atoi(args[0])
	if err != nil || iid <= 0 {
		return fmt.Errorf("invalid issue iid %q", args[0])
	}
	cfg, err := loadConfig("gitlab", "github", "users")
	if err != nil {
		return err
	}
	ctx := commandContext()
	engine, err := buildEngine(ctx, cfg, cfg.MigrateOptions(), false)
	if err != nil {
		return err
	}

	body, err := engine.Preview(ctx, iid)
	if err != nil {
		return explain(err)
	}

	if jsonOutput {
		return printJSON(cmd, map[string]interface{}{"iid": iid, "body": body})
	}
	if !previewRaw {
		body = ui.RenderMarkdown(body)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), body)
	return err
}
