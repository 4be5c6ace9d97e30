package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/lanternedit/lantern/internal/lsp"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Show registered language servers and their state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		defer m.Shutdown(context.Background())

		blob, err := lsp.StateJSON(m)
		if err != nil {
			return err
		}
		os.Stdout.Write(pretty.Pretty(blob))
		return nil
	},
}

var hoverCmd = &cobra.Command{
	Use:   "hover <file> <line> <col>",
	Short: "Show hover documentation at a position (zero-based)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenDocument(args[0], func(ctx context.Context, m *lsp.Manager, path string) error {
			pos, err := parsePosition(args[1], args[2])
			if err != nil {
				return err
			}
			hover := m.Hover(ctx, path, pos)
			if hover == nil {
				return nil
			}
			fmt.Println(hover.Text())
			return nil
		})
	},
}

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Show where the symbol at a position is defined",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenDocument(args[0], func(ctx context.Context, m *lsp.Manager, path string) error {
			pos, err := parsePosition(args[1], args[2])
			if err != nil {
				return err
			}
			printLocations(m.Definition(ctx, path, pos))
			return nil
		})
	},
}

var referencesCmd = &cobra.Command{
	Use:   "references <file> <line> <col>",
	Short: "List references to the symbol at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenDocument(args[0], func(ctx context.Context, m *lsp.Manager, path string) error {
			pos, err := parsePosition(args[1], args[2])
			if err != nil {
				return err
			}
			printLocations(m.References(ctx, path, pos, true))
			return nil
		})
	},
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "List the symbols in a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenDocument(args[0], func(ctx context.Context, m *lsp.Manager, path string) error {
			printSymbols(m.DocumentSymbols(ctx, path), 0)
			return nil
		})
	},
}

var workspaceSymbolsCmd = &cobra.Command{
	Use:   "workspace-symbols <query>",
	Short: "Search symbols across the workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		ctx := context.Background()
		defer m.Shutdown(ctx)

		// Workspace queries only reach running servers; start one per
		// registered language first.
		for _, lang := range m.Languages() {
			if err := m.StartLanguage(ctx, lang); err != nil {
				fmt.Fprintf(os.Stderr, "lantern: %s: %v\n", lang, err)
			}
		}
		for _, s := range m.WorkspaceSymbols(ctx, args[0]) {
			fmt.Printf("%s\t%s:%d\n", s.Name, lsp.URIToPath(s.Location.URI), s.Location.Range.Start.Line+1)
		}
		return nil
	},
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics <file>",
	Short: "Show the server's diagnostics for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenDocument(args[0], func(ctx context.Context, m *lsp.Manager, path string) error {
			// Diagnostics are pushed, not requested; give the server a
			// moment to analyze the freshly opened document.
			deadline := time.Now().Add(3 * time.Second)
			var diags []lsp.Diagnostic
			for time.Now().Before(deadline) {
				if diags = m.Diagnostics(path); len(diags) > 0 {
					break
				}
				time.Sleep(100 * time.Millisecond)
			}
			for _, d := range diags {
				fmt.Printf("%s:%d:%d: %s: %s\n",
					path, d.Range.Start.Line+1, d.Range.Start.Character+1,
					severityName(d.Severity), d.Message)
			}
			return nil
		})
	},
}

var fmtCmd = &cobra.Command{
	Use:   "fmt <file>",
	Short: "Print the server's formatting edits for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOpenDocument(args[0], func(ctx context.Context, m *lsp.Manager, path string) error {
			edits := m.Formatting(ctx, path, lsp.FormattingOptions{TabSize: 4, InsertSpaces: false})
			for _, e := range edits {
				fmt.Printf("%d:%d-%d:%d %q\n",
					e.Range.Start.Line+1, e.Range.Start.Character+1,
					e.Range.End.Line+1, e.Range.End.Character+1,
					e.NewText)
			}
			return nil
		})
	},
}

// withOpenDocument builds a manager, opens the file with the right server,
// runs fn, and shuts everything down. A missing server means fn sees empty
// results; that is not an error.
func withOpenDocument(path string, fn func(ctx context.Context, m *lsp.Manager, path string) error) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	m, err := newManager()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer m.Shutdown(ctx)

	m.OpenDocument(ctx, path, string(text))
	return fn(ctx, m, path)
}

func parsePosition(lineArg, colArg string) (lsp.Position, error) {
	line, err := strconv.Atoi(lineArg)
	if err != nil || line < 0 {
		return lsp.Position{}, fmt.Errorf("invalid line %q", lineArg)
	}
	col, err := strconv.Atoi(colArg)
	if err != nil || col < 0 {
		return lsp.Position{}, fmt.Errorf("invalid column %q", colArg)
	}
	return lsp.Position{Line: line, Character: col}, nil
}

func printLocations(locs []lsp.Location) {
	for _, loc := range locs {
		fmt.Printf("%s:%d:%d\n", lsp.URIToPath(loc.URI),
			loc.Range.Start.Line+1, loc.Range.Start.Character+1)
	}
}

func printSymbols(syms []lsp.DocumentSymbol, depth int) {
	for _, s := range syms {
		fmt.Printf("%s%s (line %d)\n", strings.Repeat("  ", depth), s.Name, s.Range.Start.Line+1)
		printSymbols(s.Children, depth+1)
	}
}

func severityName(s lsp.DiagnosticSeverity) string {
	switch s {
	case lsp.SeverityError:
		return "error"
	case lsp.SeverityWarning:
		return "warning"
	case lsp.SeverityInformation:
		return "info"
	case lsp.SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}
