package lsp

import (
	"encoding/json"
	"testing"
)

func TestParseCompletionResult(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantItems  int
		wantIncomp bool
	}{
		{"list shape", `{"isIncomplete":true,"items":[{"label":"a"},{"label":"b"}]}`, 2, true},
		{"bare array", `[{"label":"a"}]`, 1, false},
		{"null", `null`, 0, false},
		{"empty array", `[]`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := ParseCompletionResult(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("ParseCompletionResult() error = %v", err)
			}
			if len(list.Items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(list.Items), tt.wantItems)
			}
			if list.IsIncomplete != tt.wantIncomp {
				t.Errorf("isIncomplete = %v, want %v", list.IsIncomplete, tt.wantIncomp)
			}
		})
	}

	if _, err := ParseCompletionResult(json.RawMessage(`"garbage"`)); err == nil {
		t.Error("ParseCompletionResult() on garbage should fail")
	}
}

func TestHover_Text(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		want     string
	}{
		{"plain string", `"documentation"`, "documentation"},
		{"markup content", `{"kind":"markdown","value":"**bold**"}`, "**bold**"},
		{"marked string array", `["first",{"language":"go","value":"second"}]`, "first\nsecond"},
		{"empty array", `[]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Hover{Contents: json.RawMessage(tt.contents)}
			if got := h.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}

	var nilHover *Hover
	if nilHover.Text() != "" {
		t.Error("nil Hover should yield empty text")
	}
}

func TestParseLocationResult(t *testing.T) {
	single := `{"uri":"file:///a.go","range":{"start":{"line":1,"character":2},"end":{"line":1,"character":5}}}`

	locs, err := ParseLocationResult(json.RawMessage(single))
	if err != nil {
		t.Fatalf("ParseLocationResult(single) error = %v", err)
	}
	if len(locs) != 1 || locs[0].Range.Start.Character != 2 {
		t.Errorf("single location = %+v", locs)
	}

	locs, err = ParseLocationResult(json.RawMessage(`[` + single + `,` + single + `]`))
	if err != nil {
		t.Fatalf("ParseLocationResult(array) error = %v", err)
	}
	if len(locs) != 2 {
		t.Errorf("array locations = %d, want 2", len(locs))
	}

	locs, err = ParseLocationResult(json.RawMessage(`null`))
	if err != nil || locs != nil {
		t.Errorf("ParseLocationResult(null) = %v, %v", locs, err)
	}
}

func TestParseDocumentSymbols(t *testing.T) {
	hierarchical := `[{
		"name": "Server",
		"kind": 23,
		"range": {"start":{"line":0,"character":0},"end":{"line":10,"character":0}},
		"selectionRange": {"start":{"line":0,"character":5},"end":{"line":0,"character":11}},
		"children": [{
			"name": "Start",
			"kind": 6,
			"range": {"start":{"line":2,"character":0},"end":{"line":4,"character":0}},
			"selectionRange": {"start":{"line":2,"character":5},"end":{"line":2,"character":10}}
		}]
	}]`

	syms, err := ParseDocumentSymbols(json.RawMessage(hierarchical))
	if err != nil {
		t.Fatalf("ParseDocumentSymbols(hierarchical) error = %v", err)
	}
	if len(syms) != 1 || syms[0].Name != "Server" || len(syms[0].Children) != 1 {
		t.Fatalf("hierarchical symbols = %+v", syms)
	}
	if syms[0].Children[0].Kind != SymbolKindMethod {
		t.Errorf("child kind = %d, want method", syms[0].Children[0].Kind)
	}

	flat := `[{
		"name": "Start",
		"kind": 12,
		"location": {"uri":"file:///a.go","range":{"start":{"line":2,"character":0},"end":{"line":4,"character":0}}}
	}]`

	syms, err = ParseDocumentSymbols(json.RawMessage(flat))
	if err != nil {
		t.Fatalf("ParseDocumentSymbols(flat) error = %v", err)
	}
	if len(syms) != 1 || syms[0].Name != "Start" {
		t.Fatalf("flat symbols = %+v", syms)
	}
	if syms[0].Range.Start.Line != 2 || syms[0].SelectionRange.Start.Line != 2 {
		t.Errorf("flat symbol ranges = %+v", syms[0])
	}

	syms, err = ParseDocumentSymbols(json.RawMessage(`null`))
	if err != nil || syms != nil {
		t.Errorf("ParseDocumentSymbols(null) = %v, %v", syms, err)
	}

	syms, err = ParseDocumentSymbols(json.RawMessage(`[]`))
	if err != nil || len(syms) != 0 {
		t.Errorf("ParseDocumentSymbols([]) = %v, %v", syms, err)
	}
}
