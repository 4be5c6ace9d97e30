package lsp

import (
	"strings"
	"testing"
)

func TestLanguageForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/src/main.go", "go"},
		{"/src/lib.rs", "rust"},
		{"/src/app.ts", "typescript"},
		{"/src/app.tsx", "typescriptreact"},
		{"/src/script.py", "python"},
		{"/src/header.h", "c"},
		{"/src/impl.cpp", "cpp"},
		{"/src/UPPER.GO", "go"},
		{"/src/Dockerfile", "dockerfile"},
		{"/src/Makefile", "makefile"},
		{"/src/GNUmakefile", "makefile"},
		{"/src/readme.md", "markdown"},
		{"/src/noextension", ""},
		{"/src/data.unknownext", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := LanguageForPath(tt.path); got != tt.want {
			t.Errorf("LanguageForPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestPathToURI(t *testing.T) {
	uri := PathToURI("/home/user/project/main.go")
	if uri != "file:///home/user/project/main.go" {
		t.Errorf("PathToURI() = %q", uri)
	}
	if PathToURI("") != "" {
		t.Error("PathToURI(\"\") should be empty")
	}

	// Spaces must be percent-encoded.
	spaced := PathToURI("/home/user/my project/main.go")
	if !strings.Contains(string(spaced), "my%20project") {
		t.Errorf("PathToURI() with spaces = %q", spaced)
	}
}

func TestURIToPath(t *testing.T) {
	tests := []struct {
		uri  DocumentURI
		want string
	}{
		{"file:///home/user/main.go", "/home/user/main.go"},
		{"file:///home/user/my%20project/main.go", "/home/user/my project/main.go"},
		{"untitled:Untitled-1", "untitled:Untitled-1"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := URIToPath(tt.uri); got != tt.want {
			t.Errorf("URIToPath(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestPathURIRoundTrip(t *testing.T) {
	paths := []string{
		"/home/user/project/main.go",
		"/tmp/a b/c.go",
		"/deep/nested/dir/file.rs",
	}
	for _, p := range paths {
		if got := URIToPath(PathToURI(p)); got != p {
			t.Errorf("round trip of %q = %q", p, got)
		}
	}
}
