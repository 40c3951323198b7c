package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alnlarsen/labtohub/internal/ui"
)

var projectsCmd = &cobra.Command{
	Use:   "projects [search]",
	Short: "List GitLab projects matching the configured project name",
	Long: `List GitLab projects in gitlab.namespace whose name matches search
(default: gitlab.project). The project migrate would pick is marked.
With --all, every project the token's user is a member of is searched,
which helps when gitlab.namespace itself is wrong.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProjects,
}

var projectsAll bool

func init() {
	projectsCmd.Flags().BoolVar(&projectsAll, "all", false, "Search every project you are a member of, not just gitlab.namespace")
}

func runProjects(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("gitlab")
	if err != nil {
		return err
	}
	search := cfg.GitLab.Project
	if len(args) == 1 {
		search = args[0]
	}

	namespace := cfg.GitLab.Namespace
	if projectsAll {
		namespace = ""
	}

	projects, err := newSource(cfg).ListProjects(commandContext(), namespace, search)
	if err != nil {
		return fmt.Errorf("failed to fetch projects: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, projects)
	}

	out := cmd.OutOrStdout()
	if len(projects) == 0 {
		_, _ = fmt.Fprintf(out, "No projects matching %q (or no access)\n", search)
		return nil
	}
	for _, p := range projects {
		path := p.Namespace + "/" + p.Name
		if p.Namespace == cfg.GitLab.Namespace && p.Name == cfg.GitLab.Project {
			_, _ = fmt.Fprintf(out, "%s %s %s\n", ui.RenderPass(ui.IconPass), ui.RenderAccent(path), ui.RenderMuted(p.WebURL))
			continue
		}
		_, _ = fmt.Fprintf(out, "  %s %s\n", path, ui.RenderMuted(p.WebURL))
	}
	return nil
}
