package lsp

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// DocumentURI is an LSP document URI (file:// scheme for local files).
type DocumentURI string

// Position is a zero-based line/character position inside a document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [start, end) span inside a document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a range inside a named document.
type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

// --- Text document identifiers ---

type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentPositionParams is the common request shape for position-based
// feature calls.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// --- Initialize handshake ---

// InitializeParams is sent once per connection as the first request.
type InitializeParams struct {
	ProcessID             int                `json:"processId"`
	RootURI               DocumentURI        `json:"rootUri,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions any                `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
}

// InitializeResult carries the server's capabilities, kept opaque.
type InitializeResult struct {
	Capabilities json.RawMessage `json:"capabilities"`
	ServerInfo   *ServerInfo     `json:"serverInfo,omitempty"`
}

// ServerInfo identifies the server implementation.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializedParams is the (empty) payload of the initialized notification.
type InitializedParams struct{}

// ClientCapabilities advertises the subset of the protocol this client
// consumes.
type ClientCapabilities struct {
	Workspace    *WorkspaceClientCapabilities    `json:"workspace,omitempty"`
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
}

type WorkspaceClientCapabilities struct {
	ApplyEdit              bool                 `json:"applyEdit,omitempty"`
	DidChangeConfiguration *DynamicRegistration `json:"didChangeConfiguration,omitempty"`
	DidChangeWatchedFiles  *DynamicRegistration `json:"didChangeWatchedFiles,omitempty"`
	Symbol                 *DynamicRegistration `json:"symbol,omitempty"`
	WorkspaceFolders       bool                 `json:"workspaceFolders,omitempty"`
}

type TextDocumentClientCapabilities struct {
	Synchronization    *SyncClientCapabilities         `json:"synchronization,omitempty"`
	Completion         *CompletionCapabilities         `json:"completion,omitempty"`
	Hover              *HoverCapabilities              `json:"hover,omitempty"`
	SignatureHelp      *DynamicRegistration            `json:"signatureHelp,omitempty"`
	References         *DynamicRegistration            `json:"references,omitempty"`
	DocumentHighlight  *DynamicRegistration            `json:"documentHighlight,omitempty"`
	DocumentSymbol     *DocSymbolCapabilities          `json:"documentSymbol,omitempty"`
	Formatting         *DynamicRegistration            `json:"formatting,omitempty"`
	PublishDiagnostics *PublishDiagnosticsCapabilities `json:"publishDiagnostics,omitempty"`
}

// DynamicRegistration is the minimal capability object most features need.
type DynamicRegistration struct {
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
}

type SyncClientCapabilities struct {
	DidSave bool `json:"didSave,omitempty"`
}

type CompletionCapabilities struct {
	ContextSupport bool                        `json:"contextSupport,omitempty"`
	CompletionItem *CompletionItemCapabilities `json:"completionItem,omitempty"`
}

type CompletionItemCapabilities struct {
	SnippetSupport      bool         `json:"snippetSupport,omitempty"`
	DocumentationFormat []MarkupKind `json:"documentationFormat,omitempty"`
}

type HoverCapabilities struct {
	ContentFormat []MarkupKind `json:"contentFormat,omitempty"`
}

type DocSymbolCapabilities struct {
	HierarchicalDocumentSymbolSupport bool `json:"hierarchicalDocumentSymbolSupport,omitempty"`
}

type PublishDiagnosticsCapabilities struct {
	RelatedInformation bool `json:"relatedInformation,omitempty"`
	VersionSupport     bool `json:"versionSupport,omitempty"`
}

// MarkupKind is a documentation format identifier.
type MarkupKind string

const (
	MarkupKindPlainText MarkupKind = "plaintext"
	MarkupKindMarkdown  MarkupKind = "markdown"
)

// DefaultClientCapabilities returns the capabilities advertised during the
// initialize handshake.
func DefaultClientCapabilities() ClientCapabilities {
	return ClientCapabilities{
		Workspace: &WorkspaceClientCapabilities{
			ApplyEdit:              true,
			DidChangeConfiguration: &DynamicRegistration{},
			DidChangeWatchedFiles:  &DynamicRegistration{},
			Symbol:                 &DynamicRegistration{},
			WorkspaceFolders:       true,
		},
		TextDocument: &TextDocumentClientCapabilities{
			Synchronization: &SyncClientCapabilities{DidSave: true},
			Completion: &CompletionCapabilities{
				ContextSupport: true,
				CompletionItem: &CompletionItemCapabilities{
					SnippetSupport:      false,
					DocumentationFormat: []MarkupKind{MarkupKindMarkdown, MarkupKindPlainText},
				},
			},
			Hover: &HoverCapabilities{
				ContentFormat: []MarkupKind{MarkupKindMarkdown, MarkupKindPlainText},
			},
			SignatureHelp:     &DynamicRegistration{},
			References:        &DynamicRegistration{},
			DocumentHighlight: &DynamicRegistration{},
			DocumentSymbol:    &DocSymbolCapabilities{HierarchicalDocumentSymbolSupport: true},
			Formatting:        &DynamicRegistration{},
			PublishDiagnostics: &PublishDiagnosticsCapabilities{
				RelatedInformation: true,
				VersionSupport:     true,
			},
		},
	}
}

// --- Workspace ---

// WorkspaceFolder names one root directory of the workspace.
type WorkspaceFolder struct {
	URI  DocumentURI `json:"uri"`
	Name string      `json:"name"`
}

type WorkspaceFoldersChangeEvent struct {
	Added   []WorkspaceFolder `json:"added"`
	Removed []WorkspaceFolder `json:"removed"`
}

type DidChangeWorkspaceFoldersParams struct {
	Event WorkspaceFoldersChangeEvent `json:"event"`
}

// FileChangeType classifies a watched-file event.
type FileChangeType int

const (
	FileCreated FileChangeType = 1
	FileChanged FileChangeType = 2
	FileDeleted FileChangeType = 3
)

type FileEvent struct {
	URI  DocumentURI    `json:"uri"`
	Type FileChangeType `json:"type"`
}

type DidChangeWatchedFilesParams struct {
	Changes []FileEvent `json:"changes"`
}

// --- Document synchronization ---

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// TextDocumentContentChangeEvent carries a whole-document replacement.
// Incremental range edits are not used.
type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// --- Completion ---

type CompletionTriggerKind int

const (
	CompletionTriggerInvoked          CompletionTriggerKind = 1
	CompletionTriggerCharacter        CompletionTriggerKind = 2
	CompletionTriggerIncompleteResult CompletionTriggerKind = 3
)

type CompletionContext struct {
	TriggerKind      CompletionTriggerKind `json:"triggerKind"`
	TriggerCharacter string                `json:"triggerCharacter,omitempty"`
}

type CompletionParams struct {
	TextDocumentPositionParams
	Context *CompletionContext `json:"context,omitempty"`
}

// CompletionItem is the consumed subset of an LSP completion item.
type CompletionItem struct {
	Label         string             `json:"label"`
	Kind          CompletionItemKind `json:"kind,omitempty"`
	Detail        string             `json:"detail,omitempty"`
	Documentation json.RawMessage    `json:"documentation,omitempty"`
	SortText      string             `json:"sortText,omitempty"`
	FilterText    string             `json:"filterText,omitempty"`
	InsertText    string             `json:"insertText,omitempty"`
}

type CompletionItemKind int

type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// ParseCompletionResult accepts either a CompletionList or a bare item
// array; servers use both.
func ParseCompletionResult(data json.RawMessage) (*CompletionList, error) {
	if len(data) == 0 || string(data) == "null" {
		return &CompletionList{}, nil
	}

	var list CompletionList
	if err := json.Unmarshal(data, &list); err == nil && (list.Items != nil || list.IsIncomplete) {
		return &list, nil
	}

	var items []CompletionItem
	if err := json.Unmarshal(data, &items); err == nil {
		return &CompletionList{Items: items}, nil
	}

	return nil, fmt.Errorf("unrecognized completion result shape")
}

// --- Hover ---

// Hover keeps the contents opaque; servers reply with a plain string, a
// MarkupContent object, or an array of marked strings.
type Hover struct {
	Contents json.RawMessage `json:"contents"`
	Range    *Range          `json:"range,omitempty"`
}

// Text flattens the hover contents to plain text regardless of shape.
func (h *Hover) Text() string {
	if h == nil || len(h.Contents) == 0 {
		return ""
	}
	v := gjson.ParseBytes(h.Contents)
	switch v.Type {
	case gjson.String:
		return v.String()
	case gjson.JSON:
		if v.IsArray() {
			var out string
			for _, el := range v.Array() {
				s := el.String()
				if el.IsObject() {
					s = el.Get("value").String()
				}
				if s == "" {
					continue
				}
				if out != "" {
					out += "\n"
				}
				out += s
			}
			return out
		}
		return v.Get("value").String()
	default:
		return ""
	}
}

// --- References ---

type ReferenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

type ReferenceParams struct {
	TextDocumentPositionParams
	Context ReferenceContext `json:"context"`
}

// ParseLocationResult accepts a single location or an array.
func ParseLocationResult(data json.RawMessage) ([]Location, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var loc Location
	if err := json.Unmarshal(data, &loc); err == nil && loc.URI != "" {
		return []Location{loc}, nil
	}

	var locs []Location
	if err := json.Unmarshal(data, &locs); err == nil {
		return locs, nil
	}

	return nil, fmt.Errorf("unrecognized location result shape")
}

// --- Symbols ---

type DocumentSymbolParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DocumentSymbol is a hierarchical symbol within one document.
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           SymbolKind       `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// SymbolInformation is the flat symbol shape used by workspace/symbol and by
// servers without hierarchical support.
type SymbolInformation struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	Location      Location   `json:"location"`
	ContainerName string     `json:"containerName,omitempty"`
}

// ParseDocumentSymbols accepts either hierarchical DocumentSymbol arrays or
// flat SymbolInformation arrays, normalizing the latter.
func ParseDocumentSymbols(data json.RawMessage) ([]DocumentSymbol, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	// Hierarchical symbols carry selectionRange; flat ones carry location.
	if gjson.GetBytes(data, "0.selectionRange").Exists() || string(data) == "[]" {
		var syms []DocumentSymbol
		if err := json.Unmarshal(data, &syms); err != nil {
			return nil, err
		}
		return syms, nil
	}

	var flat []SymbolInformation
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("unrecognized symbol result shape: %w", err)
	}
	syms := make([]DocumentSymbol, len(flat))
	for i, s := range flat {
		syms[i] = DocumentSymbol{
			Name:           s.Name,
			Kind:           s.Kind,
			Range:          s.Location.Range,
			SelectionRange: s.Location.Range,
		}
	}
	return syms, nil
}

type WorkspaceSymbolParams struct {
	Query string `json:"query"`
}

// SymbolKind identifies the kind of a symbol.
type SymbolKind int

const (
	SymbolKindFile          SymbolKind = 1
	SymbolKindModule        SymbolKind = 2
	SymbolKindNamespace     SymbolKind = 3
	SymbolKindPackage       SymbolKind = 4
	SymbolKindClass         SymbolKind = 5
	SymbolKindMethod        SymbolKind = 6
	SymbolKindProperty      SymbolKind = 7
	SymbolKindField         SymbolKind = 8
	SymbolKindConstructor   SymbolKind = 9
	SymbolKindEnum          SymbolKind = 10
	SymbolKindInterface     SymbolKind = 11
	SymbolKindFunction      SymbolKind = 12
	SymbolKindVariable      SymbolKind = 13
	SymbolKindConstant      SymbolKind = 14
	SymbolKindString        SymbolKind = 15
	SymbolKindNumber        SymbolKind = 16
	SymbolKindBoolean       SymbolKind = 17
	SymbolKindArray         SymbolKind = 18
	SymbolKindObject        SymbolKind = 19
	SymbolKindKey           SymbolKind = 20
	SymbolKindNull          SymbolKind = 21
	SymbolKindEnumMember    SymbolKind = 22
	SymbolKindStruct        SymbolKind = 23
	SymbolKindEvent         SymbolKind = 24
	SymbolKindOperator      SymbolKind = 25
	SymbolKindTypeParameter SymbolKind = 26
)

// --- Formatting ---

// FormattingOptions are the editor's whitespace settings.
type FormattingOptions struct {
	TabSize      int  `json:"tabSize"`
	InsertSpaces bool `json:"insertSpaces"`
}

type DocumentFormattingParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Options      FormattingOptions      `json:"options"`
}

// TextEdit replaces a range with new text.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// --- Diagnostics ---

// DiagnosticSeverity orders diagnostics from error (1) to hint (4).
type DiagnosticSeverity int

const (
	SeverityError       DiagnosticSeverity = 1
	SeverityWarning     DiagnosticSeverity = 2
	SeverityInformation DiagnosticSeverity = 3
	SeverityHint        DiagnosticSeverity = 4
)

// Diagnostic is one issue pushed by the server.
type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity,omitempty"`
	Code     any                `json:"code,omitempty"`
	Source   string             `json:"source,omitempty"`
	Message  string             `json:"message"`
}

// PublishDiagnosticsParams is the payload of textDocument/publishDiagnostics.
type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Version     int          `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}
