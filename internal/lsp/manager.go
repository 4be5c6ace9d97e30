package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Manager owns the set of connections keyed by language id. It maps file
// paths to languages, starts servers lazily, and fans document and workspace
// operations out to the right connections. No Manager failure ever surfaces
// as an error at the editor boundary: every operation degrades to an
// empty/nil result instead.
type Manager struct {
	mu          sync.RWMutex
	conns       map[string]*Conn
	descriptors map[string]ServerDescriptor
	rootURI     DocumentURI

	logger   *slog.Logger
	locator  Locator
	diags    *DiagnosticStore
	connOpts []ConnOption
}

// ManagerOption configures a manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger, inherited by its connections.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// withConnOptions appends options to every connection the manager creates;
// tests use it to substitute in-memory servers.
func withConnOptions(opts ...ConnOption) ManagerOption {
	return func(m *Manager) {
		m.connOpts = append(m.connOpts, opts...)
	}
}

// WithLocator replaces PATH-based server discovery; tests substitute a
// fixed source of descriptors.
func WithLocator(loc Locator) ManagerOption {
	return func(m *Manager) {
		m.locator = loc
	}
}

// WithWorkspaceRoot sets the initial workspace root path.
func WithWorkspaceRoot(path string) ManagerOption {
	return func(m *Manager) {
		m.rootURI = PathToURI(path)
	}
}

// WithDiagnosticsCallback registers a callback fired on every diagnostics
// replacement.
func WithDiagnosticsCallback(fn func(uri DocumentURI, diags []Diagnostic)) ManagerOption {
	return func(m *Manager) {
		m.diags.OnUpdate(fn)
	}
}

// NewManager creates a manager and runs server discovery. Descriptors found
// on the system are registered immediately; explicit Register calls replace
// them.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		conns:       make(map[string]*Conn),
		descriptors: make(map[string]ServerDescriptor),
		logger:      slog.Default(),
		locator:     &ExecLocator{},
		diags:       NewDiagnosticStore(),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, desc := range m.locator.Locate() {
		m.descriptors[desc.Language] = desc
		m.logger.Debug("discovered language server", "language", desc.Language, "command", desc.Command)
	}
	return m
}

// Register sets the descriptor for a language, replacing any discovered or
// previously registered one.
func (m *Manager) Register(desc ServerDescriptor) {
	m.mu.Lock()
	m.descriptors[desc.Language] = desc
	m.mu.Unlock()
}

// Languages returns the languages with a registered descriptor.
func (m *Manager) Languages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	langs := make([]string, 0, len(m.descriptors))
	for lang := range m.descriptors {
		langs = append(langs, lang)
	}
	return langs
}

// Diagnostics returns the cached diagnostics for a file. It never blocks on
// the server.
func (m *Manager) Diagnostics(path string) []Diagnostic {
	return m.diags.Get(PathToURI(path))
}

// DiagnosticStore exposes the shared store for collaborators that read
// diagnostics across documents.
func (m *Manager) DiagnosticStore() *DiagnosticStore {
	return m.diags
}

// GetOrStartConn returns the Connected connection for a language, starting
// or restarting one from the registered descriptor if needed. It returns
// nil when no descriptor exists or the start fails; it never returns an
// error to the caller.
func (m *Manager) GetOrStartConn(ctx context.Context, language string) *Conn {
	conn, err := m.getOrStart(ctx, language)
	if err != nil {
		if !errors.Is(err, ErrNoServer) {
			m.logger.Warn("language server start failed", "language", language, "err", err)
		}
		return nil
	}
	return conn
}

// StartLanguage eagerly starts the language's server and reports why it
// cannot: ErrNoServer when nothing is registered, a *LaunchError when the
// process fails. Feature calls never need this; surfaces that show the
// reason to the user do.
func (m *Manager) StartLanguage(ctx context.Context, language string) error {
	_, err := m.getOrStart(ctx, language)
	return err
}

func (m *Manager) getOrStart(ctx context.Context, language string) (*Conn, error) {
	if language == "" {
		return nil, ErrNoServer
	}

	m.mu.RLock()
	conn := m.conns[language]
	m.mu.RUnlock()
	if conn != nil && conn.State() == StateConnected {
		return conn, nil
	}

	m.mu.Lock()
	conn = m.conns[language]
	if conn != nil && conn.State() == StateConnected {
		m.mu.Unlock()
		return conn, nil
	}
	desc, ok := m.descriptors[language]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNoServer
	}
	if conn == nil || !sameDescriptor(conn.desc, desc) {
		opts := append([]ConnOption{
			WithConnLogger(m.logger),
			WithDiagnostics(m.diags),
		}, m.connOpts...)
		conn = NewConn(desc, opts...)
		m.conns[language] = conn
	}
	rootURI := m.rootURI
	m.mu.Unlock()

	if err := conn.Start(ctx, rootURI); err != nil {
		return nil, err
	}
	return conn, nil
}

// sameDescriptor reports whether two descriptors launch the same server.
func sameDescriptor(a, b ServerDescriptor) bool {
	return a.Language == b.Language && a.Command == b.Command && slices.Equal(a.Args, b.Args)
}

// connForFile resolves the connection for a file's language.
func (m *Manager) connForFile(ctx context.Context, path string) *Conn {
	return m.GetOrStartConn(ctx, LanguageForPath(path))
}

// connected returns a snapshot of all Connected connections.
func (m *Manager) connected() []*Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		if c.State() == StateConnected {
			out = append(out, c)
		}
	}
	return out
}

// --- Feature calls ---

// Completion requests completions at a position. Returns nil when the
// language has no server or the request fails.
func (m *Manager) Completion(ctx context.Context, path string, pos Position) *CompletionList {
	conn := m.connForFile(ctx, path)
	if conn == nil || !conn.Capabilities().Supports("completionProvider") {
		return nil
	}

	params := CompletionParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: PathToURI(path)},
			Position:     pos,
		},
		Context: &CompletionContext{TriggerKind: CompletionTriggerInvoked},
	}

	var raw json.RawMessage
	if err := conn.Call(ctx, "textDocument/completion", params, &raw); err != nil {
		m.logger.Debug("completion failed", "path", path, "err", err)
		return nil
	}
	list, err := ParseCompletionResult(raw)
	if err != nil {
		m.logger.Debug("completion result unparseable", "err", err)
		return nil
	}
	return list
}

// Hover returns hover information at a position, or nil.
func (m *Manager) Hover(ctx context.Context, path string, pos Position) *Hover {
	conn := m.connForFile(ctx, path)
	if conn == nil || !conn.Capabilities().Supports("hoverProvider") {
		return nil
	}

	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: PathToURI(path)},
		Position:     pos,
	}

	var hover *Hover
	if err := conn.Call(ctx, "textDocument/hover", params, &hover); err != nil {
		m.logger.Debug("hover failed", "path", path, "err", err)
		return nil
	}
	return hover
}

// Definition returns the definition locations for the symbol at a position.
func (m *Manager) Definition(ctx context.Context, path string, pos Position) []Location {
	conn := m.connForFile(ctx, path)
	if conn == nil || !conn.Capabilities().Supports("definitionProvider") {
		return nil
	}

	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: PathToURI(path)},
		Position:     pos,
	}

	var raw json.RawMessage
	if err := conn.Call(ctx, "textDocument/definition", params, &raw); err != nil {
		m.logger.Debug("definition failed", "path", path, "err", err)
		return nil
	}
	locs, err := ParseLocationResult(raw)
	if err != nil {
		m.logger.Debug("definition result unparseable", "err", err)
		return nil
	}
	return locs
}

// References returns all references to the symbol at a position.
func (m *Manager) References(ctx context.Context, path string, pos Position, includeDecl bool) []Location {
	conn := m.connForFile(ctx, path)
	if conn == nil || !conn.Capabilities().Supports("referencesProvider") {
		return nil
	}

	params := ReferenceParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: PathToURI(path)},
			Position:     pos,
		},
		Context: ReferenceContext{IncludeDeclaration: includeDecl},
	}

	var locs []Location
	if err := conn.Call(ctx, "textDocument/references", params, &locs); err != nil {
		m.logger.Debug("references failed", "path", path, "err", err)
		return nil
	}
	return locs
}

// DocumentSymbols returns the symbols in a document.
func (m *Manager) DocumentSymbols(ctx context.Context, path string) []DocumentSymbol {
	conn := m.connForFile(ctx, path)
	if conn == nil || !conn.Capabilities().Supports("documentSymbolProvider") {
		return nil
	}

	params := DocumentSymbolParams{
		TextDocument: TextDocumentIdentifier{URI: PathToURI(path)},
	}

	var raw json.RawMessage
	if err := conn.Call(ctx, "textDocument/documentSymbol", params, &raw); err != nil {
		m.logger.Debug("documentSymbol failed", "path", path, "err", err)
		return nil
	}
	syms, err := ParseDocumentSymbols(raw)
	if err != nil {
		m.logger.Debug("documentSymbol result unparseable", "err", err)
		return nil
	}
	return syms
}

// WorkspaceSymbols fans the query out to every Connected connection
// concurrently and concatenates non-empty results.
func (m *Manager) WorkspaceSymbols(ctx context.Context, query string) []SymbolInformation {
	conns := m.connected()
	if len(conns) == 0 {
		return nil
	}

	results := make([][]SymbolInformation, len(conns))
	g, gctx := errgroup.WithContext(ctx)
	for i, conn := range conns {
		i, conn := i, conn
		if !conn.Capabilities().Supports("workspaceSymbolProvider") {
			continue
		}
		g.Go(func() error {
			var syms []SymbolInformation
			if err := conn.Call(gctx, "workspace/symbol", WorkspaceSymbolParams{Query: query}, &syms); err != nil {
				m.logger.Debug("workspace symbol query failed", "language", conn.Language(), "err", err)
				return nil // degrade per-connection, never fail the group
			}
			results[i] = syms
			return nil
		})
	}
	_ = g.Wait()

	var out []SymbolInformation
	for _, syms := range results {
		out = append(out, syms...)
	}
	return out
}

// Formatting returns the edits that format a whole document.
func (m *Manager) Formatting(ctx context.Context, path string, opts FormattingOptions) []TextEdit {
	conn := m.connForFile(ctx, path)
	if conn == nil || !conn.Capabilities().Supports("documentFormattingProvider") {
		return nil
	}

	params := DocumentFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: PathToURI(path)},
		Options:      opts,
	}

	var edits []TextEdit
	if err := conn.Call(ctx, "textDocument/formatting", params, &edits); err != nil {
		m.logger.Debug("formatting failed", "path", path, "err", err)
		return nil
	}
	return edits
}

// --- Document lifecycle ---

// OpenDocument notifies the file's server of a newly opened document,
// starting the server if needed. No-op when no server is available.
func (m *Manager) OpenDocument(ctx context.Context, path, text string) {
	conn := m.connForFile(ctx, path)
	if conn == nil {
		return
	}
	if err := conn.OpenDocument(ctx, path, text); err != nil {
		m.logger.Debug("didOpen failed", "path", path, "err", err)
	}
}

// ChangeDocument sends a whole-document replacement. No-op when the file's
// server is unavailable.
func (m *Manager) ChangeDocument(ctx context.Context, path, text string) {
	conn := m.liveConnForFile(path)
	if conn == nil {
		return
	}
	if err := conn.ChangeDocument(ctx, path, text); err != nil {
		m.logger.Debug("didChange failed", "path", path, "err", err)
	}
}

// CloseDocument sends didClose. No-op when the file's server is unavailable.
func (m *Manager) CloseDocument(ctx context.Context, path string) {
	conn := m.liveConnForFile(path)
	if conn == nil {
		return
	}
	if err := conn.CloseDocument(ctx, path); err != nil {
		m.logger.Debug("didClose failed", "path", path, "err", err)
	}
}

// liveConnForFile returns the file's connection only if already Connected;
// lifecycle notifications never start servers on their own except didOpen.
func (m *Manager) liveConnForFile(path string) *Conn {
	language := LanguageForPath(path)
	if language == "" {
		return nil
	}
	m.mu.RLock()
	conn := m.conns[language]
	m.mu.RUnlock()
	if conn == nil || conn.State() != StateConnected {
		return nil
	}
	return conn
}

// --- Workspace ---

// SetWorkspaceRoot changes the workspace root. Connected servers are told
// via workspace/didChangeWorkspaceFolders; disconnected ones are restarted
// against the new root.
func (m *Manager) SetWorkspaceRoot(ctx context.Context, path string) {
	newURI := PathToURI(path)

	m.mu.Lock()
	oldURI := m.rootURI
	m.rootURI = newURI
	langs := make([]string, 0, len(m.descriptors))
	for lang := range m.descriptors {
		langs = append(langs, lang)
	}
	m.mu.Unlock()

	change := DidChangeWorkspaceFoldersParams{
		Event: WorkspaceFoldersChangeEvent{
			Added: []WorkspaceFolder{folderFromURI(newURI)},
		},
	}
	if oldURI != "" {
		change.Event.Removed = []WorkspaceFolder{folderFromURI(oldURI)}
	}

	for _, lang := range langs {
		m.mu.RLock()
		conn := m.conns[lang]
		m.mu.RUnlock()

		if conn != nil && conn.State() == StateConnected {
			if err := conn.Notify(ctx, "workspace/didChangeWorkspaceFolders", change); err != nil {
				m.logger.Debug("workspace folder change failed", "language", lang, "err", err)
			}
			continue
		}
		m.GetOrStartConn(ctx, lang)
	}
}

// NotifyWatchedFiles forwards file events to every Connected connection as
// workspace/didChangeWatchedFiles.
func (m *Manager) NotifyWatchedFiles(ctx context.Context, events []FileEvent) {
	if len(events) == 0 {
		return
	}
	params := DidChangeWatchedFilesParams{Changes: events}
	for _, conn := range m.connected() {
		if err := conn.Notify(ctx, "workspace/didChangeWatchedFiles", params); err != nil {
			m.logger.Debug("watched files notify failed", "language", conn.Language(), "err", err)
		}
	}
}

// Shutdown stops every connection concurrently, best effort.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	conns := make([]*Conn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.conns = make(map[string]*Conn)
	m.mu.Unlock()

	var g errgroup.Group
	for _, conn := range conns {
		conn := conn
		g.Go(func() error {
			conn.Shutdown(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

func folderFromURI(uri DocumentURI) WorkspaceFolder {
	return WorkspaceFolder{URI: uri, Name: filepath.Base(URIToPath(uri))}
}
