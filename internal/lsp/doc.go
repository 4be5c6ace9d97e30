// Package lsp implements the editor's Language Server Protocol client: it
// launches language servers as subprocesses, speaks JSON-RPC 2.0 over their
// stdio, and exposes completions, hover, navigation, symbols, formatting,
// and pushed diagnostics to the rest of the editor.
//
// The Manager is the entry point. It maps file paths to languages, starts
// servers lazily from registered or auto-discovered descriptors, and owns
// the diagnostics cache. Every Manager operation degrades to an empty result
// when a server is missing or unhealthy; LSP failures never become editor
// failures.
//
// A Conn is one live server. Its lifecycle is Disconnected, Initializing,
// Connected, and back to Disconnected on process exit or Shutdown. There is
// no automatic restart: a lost connection stays down until explicitly
// restarted.
package lsp
