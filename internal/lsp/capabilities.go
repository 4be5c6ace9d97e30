package lsp

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Capabilities is the server's capability object from the initialize
// response, stored opaquely and queried by path. An empty value reports
// every capability as present so that feature calls are not gated before
// the handshake result is known.
type Capabilities struct {
	raw json.RawMessage
}

// NewCapabilities wraps a raw capabilities blob.
func NewCapabilities(raw json.RawMessage) Capabilities {
	return Capabilities{raw: raw}
}

// Raw returns the unparsed capabilities blob.
func (c Capabilities) Raw() json.RawMessage {
	return c.raw
}

// Supports reports whether the named provider capability is enabled. LSP
// encodes capabilities as absent, false, true, or an options object; an
// object counts as enabled.
func (c Capabilities) Supports(path string) bool {
	if len(c.raw) == 0 {
		return true
	}
	v := gjson.GetBytes(c.raw, path)
	if !v.Exists() {
		return false
	}
	if v.Type == gjson.False {
		return false
	}
	return true
}

// SyncKind returns the negotiated textDocumentSync change kind: 0 none,
// 1 full, 2 incremental. The field is a bare number or an options object.
func (c Capabilities) SyncKind() int {
	if len(c.raw) == 0 {
		return 1
	}
	v := gjson.GetBytes(c.raw, "textDocumentSync")
	if !v.Exists() {
		return 0
	}
	if v.Type == gjson.Number {
		return int(v.Int())
	}
	if change := v.Get("change"); change.Exists() {
		return int(change.Int())
	}
	return 1
}
