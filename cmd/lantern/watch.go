package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lanternedit/lantern/internal/lsp"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a workspace and stream diagnostics as servers push them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := flagRoot
		if len(args) == 1 {
			root = args[0]
		}
		if root == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			root = wd
		}

		m := lsp.NewManager(
			lsp.WithLogger(newLogger()),
			lsp.WithWorkspaceRoot(root),
			lsp.WithDiagnosticsCallback(func(uri lsp.DocumentURI, diags []lsp.Diagnostic) {
				path := lsp.URIToPath(uri)
				if len(diags) == 0 {
					fmt.Printf("%s: clean\n", path)
					return
				}
				for _, d := range diags {
					fmt.Printf("%s:%d:%d: %s\n",
						path, d.Range.Start.Line+1, d.Range.Start.Character+1, d.Message)
				}
			}),
		)
		if flagConfig != "" {
			cfg, err := lsp.LoadConfig(flagConfig)
			if err != nil {
				return err
			}
			cfg.Apply(m)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		defer m.Shutdown(context.Background())

		for _, lang := range m.Languages() {
			if err := m.StartLanguage(ctx, lang); err != nil {
				fmt.Fprintf(os.Stderr, "lantern: %s: %v\n", lang, err)
			}
		}

		w, err := lsp.NewWatcher(m, newLogger())
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Watch(ctx, root); err != nil {
			return err
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
