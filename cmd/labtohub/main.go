// Package main provides the labtohub CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alnlarsen/labtohub/internal/config"
	"github.com/alnlarsen/labtohub/internal/debug"
	"github.com/alnlarsen/labtohub/internal/telemetry"
	"github.com/alnlarsen/labtohub/internal/ui"
)

var (
	configFile  string
	verboseFlag bool
	quietFlag   bool
	noColorFlag bool
	jsonOutput  bool

	rootCtx       context.Context
	rootCancel    context.CancelFunc
	restoreOutput func()
)

var rootCmd = &cobra.Command{
	Use:   "labtohub",
	Short: "labtohub - Move a GitLab project's issues and merge requests to GitHub",
	Long: `Migrates issues, milestones and merge requests from a GitLab project to a
GitHub repository. Runs are idempotent: re-running converges on the same
destination state without creating duplicates.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupSignalContext()
		restoreOutput = debug.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
		applyVerbosityFlags()
		if noColorFlag {
			ui.DisableColor()
		}
		if err := config.Initialize(configFile); err != nil {
			return err
		}
		if err := telemetry.Init(rootCtx, "labtohub", Version); err != nil {
			WarnError("telemetry disabled: %v", err)
		}
		debug.Logf("config file: %q\n", config.ConfigFileUsed())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		finish()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./labtohub.yaml or ~/.config/labtohub/labtohub.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress progress output (warnings and errors only)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(migrateCmd, projectsCmd, previewCmd, configCmd, versionCmd)
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyVerbosityFlags propagates --verbose and --quiet to the debug package.
func applyVerbosityFlags() {
	debug.SetVerbose(verboseFlag)
	debug.SetQuiet(quietFlag)
}

// finish flushes telemetry and releases the signal context. Cobra skips
// PersistentPostRun when a command fails, so main calls it too.
func finish() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	telemetry.Shutdown(shutdownCtx)
	if rootCancel != nil {
		rootCancel()
	}
	if restoreOutput != nil {
		restoreOutput()
		restoreOutput = nil
	}
}

// commandContext returns the signal-aware root context.
func commandContext() context.Context {
	if rootCtx == nil {
		return context.Background()
	}
	return rootCtx
}

func main() {
	err := rootCmd.Execute()
	finish()
	if err != nil {
		var hinted *hintedError
		if errors.As(err, &hinted) {
			FatalErrorWithHint(hinted.Error(), hinted.hint)
		}
		FatalError("%v", err)
	}
}

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := marshalIndent(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
