package lsp

import "os/exec"

// Locator finds language servers available on the system. The default probes
// PATH; tests substitute a fixed list.
type Locator interface {
	Locate() []ServerDescriptor
}

// knownServers is the probe table for auto-discovery, ordered by preference
// within each language: the first candidate found on PATH wins.
var knownServers = []ServerDescriptor{
	{Language: "go", Command: "gopls", Args: []string{"serve"}},
	{Language: "rust", Command: "rust-analyzer"},
	{Language: "typescript", Command: "typescript-language-server", Args: []string{"--stdio"}},
	{Language: "typescriptreact", Command: "typescript-language-server", Args: []string{"--stdio"}},
	{Language: "javascript", Command: "typescript-language-server", Args: []string{"--stdio"}},
	{Language: "javascriptreact", Command: "typescript-language-server", Args: []string{"--stdio"}},
	{Language: "python", Command: "pyright-langserver", Args: []string{"--stdio"}},
	{Language: "python", Command: "pylsp"},
	{Language: "c", Command: "clangd"},
	{Language: "cpp", Command: "clangd"},
	{Language: "lua", Command: "lua-language-server"},
	{Language: "ruby", Command: "solargraph", Args: []string{"stdio"}},
	{Language: "java", Command: "jdtls"},
	{Language: "zig", Command: "zls"},
	{Language: "html", Command: "vscode-html-language-server", Args: []string{"--stdio"}},
	{Language: "css", Command: "vscode-css-language-server", Args: []string{"--stdio"}},
	{Language: "json", Command: "vscode-json-language-server", Args: []string{"--stdio"}},
	{Language: "yaml", Command: "yaml-language-server", Args: []string{"--stdio"}},
	{Language: "shellscript", Command: "bash-language-server", Args: []string{"start"}},
	{Language: "php", Command: "intelephense", Args: []string{"--stdio"}},
	{Language: "elixir", Command: "elixir-ls"},
	{Language: "haskell", Command: "haskell-language-server-wrapper", Args: []string{"--lsp"}},
	{Language: "kotlin", Command: "kotlin-language-server"},
	{Language: "swift", Command: "sourcekit-lsp"},
	{Language: "csharp", Command: "omnisharp", Args: []string{"-lsp"}},
	{Language: "scala", Command: "metals"},
	{Language: "ocaml", Command: "ocamllsp"},
	{Language: "markdown", Command: "marksman", Args: []string{"server"}},
	{Language: "toml", Command: "taplo", Args: []string{"lsp", "stdio"}},
	{Language: "dockerfile", Command: "docker-langserver", Args: []string{"--stdio"}},
	{Language: "sql", Command: "sqls"},
}

// ExecLocator probes PATH for the known language servers.
type ExecLocator struct {
	// lookPath is swappable for tests; defaults to exec.LookPath.
	lookPath func(name string) (string, error)
}

// Locate returns a descriptor for each language whose server binary is on
// PATH, keeping the first match per language.
func (l *ExecLocator) Locate() []ServerDescriptor {
	look := l.lookPath
	if look == nil {
		look = exec.LookPath
	}

	found := make([]ServerDescriptor, 0, 8)
	seen := make(map[string]bool, len(knownServers))
	for _, desc := range knownServers {
		if seen[desc.Language] {
			continue
		}
		if _, err := look(desc.Command); err != nil {
			continue
		}
		seen[desc.Language] = true
		found = append(found, desc)
	}
	return found
}

// StaticLocator returns a fixed descriptor list; useful for configuration
// loading and tests.
type StaticLocator []ServerDescriptor

// Locate returns the static list unchanged.
func (l StaticLocator) Locate() []ServerDescriptor {
	return []ServerDescriptor(l)
}
