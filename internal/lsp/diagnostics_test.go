package lsp

import "testing"

func TestDiagnosticStore_SetReplacesWholesale(t *testing.T) {
	s := NewDiagnosticStore()
	uri := DocumentURI("file:///a.go")

	s.Set(uri, []Diagnostic{{Message: "one"}, {Message: "two"}})
	if got := len(s.Get(uri)); got != 2 {
		t.Fatalf("Get() = %d diagnostics, want 2", got)
	}

	// A new publish replaces, never merges.
	s.Set(uri, []Diagnostic{{Message: "three"}})
	diags := s.Get(uri)
	if len(diags) != 1 || diags[0].Message != "three" {
		t.Fatalf("Get() after replace = %+v", diags)
	}

	// An empty publish clears the entry.
	s.Set(uri, nil)
	if s.Get(uri) != nil {
		t.Error("Get() after empty publish should be nil")
	}
}

func TestDiagnosticStore_All(t *testing.T) {
	s := NewDiagnosticStore()
	s.Set("file:///a.go", []Diagnostic{{Message: "a"}})
	s.Set("file:///b.go", []Diagnostic{{Message: "b"}})

	all := s.All()
	if len(all) != 2 {
		t.Fatalf("All() = %d entries, want 2", len(all))
	}

	// The snapshot is detached from the store.
	delete(all, "file:///a.go")
	if s.Get("file:///a.go") == nil {
		t.Error("mutating the snapshot affected the store")
	}
}

func TestDiagnosticStore_Clear(t *testing.T) {
	s := NewDiagnosticStore()
	s.Set("file:///a.go", []Diagnostic{{Message: "a"}})
	s.Clear()
	if len(s.All()) != 0 {
		t.Error("Clear() left entries behind")
	}
}

func TestDiagnosticStore_OnUpdate(t *testing.T) {
	s := NewDiagnosticStore()
	var gotURI DocumentURI
	var gotLen int
	s.OnUpdate(func(uri DocumentURI, diags []Diagnostic) {
		gotURI = uri
		gotLen = len(diags)
	})

	s.Set("file:///a.go", []Diagnostic{{Message: "a"}})
	if gotURI != "file:///a.go" || gotLen != 1 {
		t.Errorf("callback got (%q, %d), want (file:///a.go, 1)", gotURI, gotLen)
	}

	// Clearing also notifies, with an empty list.
	s.Set("file:///a.go", nil)
	if gotLen != 0 {
		t.Errorf("callback after clear got len %d, want 0", gotLen)
	}
}
