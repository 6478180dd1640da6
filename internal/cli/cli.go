// Package cli implements the pagefold command-line interface.
//
// This package provides commands for computing page layouts from
// document files, inspecting the resulting plans, managing stored
// measurement snapshots, and serving a committed plan over HTTP. The
// CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - layout: Compute a layout plan from a document file
//   - inspect: Summarize a plan file
//   - measure: Manage the stored measurement snapshot
//   - serve: Serve the committed plan and accept measurements over HTTP
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers
// are passed through context.Context to allow structured progress
// tracking.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pagefold/pagefold/pkg/buildinfo"
	"github.com/pagefold/pagefold/pkg/store"
)

// appName is the application name used for directories and display.
const appName = "pagefold"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "pagefold",
		Short:        "Pagefold paginates structured content onto multi-column pages",
		Long:         `Pagefold computes page layouts for structured content: it decides which entry lands on which page and column, splits long lists across page boundaries, and reroutes overflowing content forward instead of dropping it.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.measureCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Store Factory
// =============================================================================

// newStore creates the persistence store for CLI use. Persistence
// degrades to disabled when no state directory can be resolved.
func newStore(noStore bool) (store.Store, error) {
	if noStore {
		return store.NewNullStore(), nil
	}
	dir, err := stateDir()
	if err != nil {
		return store.NewNullStore(), nil
	}
	return store.NewFileStore(dir)
}

// =============================================================================
// Paths
// =============================================================================

// stateDir returns the state directory using XDG standard (~/.local/state/pagefold/).
func stateDir() (string, error) {
	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", appName), nil
}
