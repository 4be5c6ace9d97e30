package lsp

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// languageByExt maps lowercase file extensions (without the dot) to LSP
// language ids.
var languageByExt = map[string]string{
	"go":    "go",
	"rs":    "rust",
	"ts":    "typescript",
	"tsx":   "typescriptreact",
	"js":    "javascript",
	"jsx":   "javascriptreact",
	"py":    "python",
	"rb":    "ruby",
	"java":  "java",
	"c":     "c",
	"h":     "c",
	"cpp":   "cpp",
	"cc":    "cpp",
	"cxx":   "cpp",
	"hpp":   "cpp",
	"cs":    "csharp",
	"swift": "swift",
	"kt":    "kotlin",
	"kts":   "kotlin",
	"scala": "scala",
	"php":   "php",
	"lua":   "lua",
	"sh":    "shellscript",
	"bash":  "shellscript",
	"zsh":   "shellscript",
	"json":  "json",
	"yaml":  "yaml",
	"yml":   "yaml",
	"toml":  "toml",
	"xml":   "xml",
	"html":  "html",
	"htm":   "html",
	"css":   "css",
	"md":    "markdown",
	"sql":   "sql",
	"zig":   "zig",
	"ex":    "elixir",
	"exs":   "elixir",
	"hs":    "haskell",
	"ml":    "ocaml",
	"mli":   "ocaml",
	"proto": "protobuf",
}

var (
	langCache sync.Map // path -> language id
	uriCache  sync.Map // path -> DocumentURI
)

// LanguageForPath returns the LSP language id for a file path, or "" when
// the extension is unknown. Lookups are cached per path.
func LanguageForPath(path string) string {
	if v, ok := langCache.Load(path); ok {
		return v.(string)
	}

	lang := ""
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext != "" {
		lang = languageByExt[ext]
	}
	if lang == "" {
		switch strings.ToLower(filepath.Base(path)) {
		case "dockerfile":
			lang = "dockerfile"
		case "makefile", "gnumakefile":
			lang = "makefile"
		}
	}

	langCache.Store(path, lang)
	return lang
}

// PathToURI converts a file path to a file:// URI, caching per path.
func PathToURI(path string) DocumentURI {
	if path == "" {
		return ""
	}
	if v, ok := uriCache.Load(path); ok {
		return v.(DocumentURI)
	}

	abs := path
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	abs = filepath.ToSlash(abs)
	if runtime.GOOS == "windows" && len(abs) >= 2 && abs[1] == ':' {
		abs = "/" + abs
	}

	uri := DocumentURI((&url.URL{Scheme: "file", Path: abs}).String())
	uriCache.Store(path, uri)
	return uri
}

// URIToPath converts a file:// URI back to a platform file path. Non-file
// URIs are returned unchanged.
func URIToPath(uri DocumentURI) string {
	if uri == "" {
		return ""
	}
	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}
	path := u.Path
	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path)
}
