// Package main is the lantern command, a terminal front end to the editor's
// language server client. It exists for scripting and for poking at language
// servers without the editor in the way.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lanternedit/lantern/internal/lsp"
)

var (
	flagConfig   string
	flagRoot     string
	flagLogLevel string

	rootCmd = &cobra.Command{
		Use:           "lantern",
		Short:         "Talk to language servers from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lantern: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to lantern.toml")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "workspace root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		serversCmd,
		hoverCmd,
		definitionCmd,
		referencesCmd,
		symbolsCmd,
		workspaceSymbolsCmd,
		diagnosticsCmd,
		fmtCmd,
	)
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(flagLogLevel)); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newManager builds a manager from the flags: discovered servers, config
// overrides, workspace root.
func newManager() (*lsp.Manager, error) {
	root := flagRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve workspace root: %w", err)
		}
		root = wd
	}

	m := lsp.NewManager(
		lsp.WithLogger(newLogger()),
		lsp.WithWorkspaceRoot(root),
	)

	if flagConfig != "" {
		cfg, err := lsp.LoadConfig(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg.Apply(m)
	}
	return m, nil
}
