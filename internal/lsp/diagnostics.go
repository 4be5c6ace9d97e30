package lsp

import "sync"

// DiagnosticStore caches the latest diagnostics per document URI. Each
// publishDiagnostics notification replaces the document's list wholesale;
// an empty list clears it. Reads never block on the server.
type DiagnosticStore struct {
	mu    sync.RWMutex
	byURI map[DocumentURI][]Diagnostic

	// onUpdate, when set, is invoked after each replacement with the new
	// list (nil when cleared). Called from the connection's reader
	// goroutine, so it must be quick.
	onUpdate func(uri DocumentURI, diags []Diagnostic)
}

// NewDiagnosticStore creates an empty store.
func NewDiagnosticStore() *DiagnosticStore {
	return &DiagnosticStore{byURI: make(map[DocumentURI][]Diagnostic)}
}

// OnUpdate registers a callback fired after each replacement.
func (s *DiagnosticStore) OnUpdate(fn func(uri DocumentURI, diags []Diagnostic)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// Set replaces the diagnostics for a document.
func (s *DiagnosticStore) Set(uri DocumentURI, diags []Diagnostic) {
	s.mu.Lock()
	if len(diags) == 0 {
		delete(s.byURI, uri)
	} else {
		s.byURI[uri] = diags
	}
	fn := s.onUpdate
	s.mu.Unlock()

	if fn != nil {
		fn(uri, diags)
	}
}

// Get returns the current diagnostics for a document, or nil.
func (s *DiagnosticStore) Get(uri DocumentURI) []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byURI[uri]
}

// All returns a snapshot of diagnostics for every document.
func (s *DiagnosticStore) All() map[DocumentURI][]Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[DocumentURI][]Diagnostic, len(s.byURI))
	for uri, diags := range s.byURI {
		out[uri] = diags
	}
	return out
}

// Clear removes all cached diagnostics.
func (s *DiagnosticStore) Clear() {
	s.mu.Lock()
	s.byURI = make(map[DocumentURI][]Diagnostic)
	s.mu.Unlock()
}
