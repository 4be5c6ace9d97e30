// Package jsonrpc implements the JSON-RPC 2.0 base protocol used by the
// Language Server Protocol: Content-Length framed messages over a byte
// stream, plus the request/response/notification envelope types.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version sent with every message.
const Version = "2.0"

// Request is an outgoing JSON-RPC message. When ID is nil the message is a
// notification and no response is expected.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewRequest creates a request carrying the given id.
func NewRequest(id int64, method string, params any) *Request {
	return &Request{JSONRPC: Version, ID: &id, Method: method, Params: params}
}

// NewNotification creates a fire-and-forget notification (no id).
func NewNotification(method string, params any) *Request {
	return &Request{JSONRPC: Version, Method: method, Params: params}
}

// Response is an incoming reply correlated to a request by id.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification is an incoming server-initiated message without an id.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ServerRequest is an incoming message carrying both a method and an id:
// the server expects a reply. The client subsystem does not answer these;
// they are surfaced so the caller can log and drop them.
type ServerRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Message is implemented by Response, Notification, and ServerRequest.
type Message interface {
	isMessage()
}

func (*Response) isMessage()      {}
func (*Notification) isMessage()  {}
func (*ServerRequest) isMessage() {}

// Error is a JSON-RPC 2.0 error object reported by the server.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// LSP-specific error codes.
const (
	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
	CodeRequestFailed        = -32803
)

// DecodeMessage classifies a well-framed payload by shape. A message with an
// id plus result or error is a Response; a method without an id is a
// Notification; a method with an id is a ServerRequest. Invalid JSON or an
// unrecognized shape yields a *ParseError.
func DecodeMessage(data []byte) (Message, error) {
	var probe struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &ParseError{Err: err}
	}

	switch {
	case probe.Method != "" && len(probe.ID) == 0:
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, &ParseError{Err: err}
		}
		return &n, nil

	case probe.Method != "":
		var r ServerRequest
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, &ParseError{Err: err}
		}
		return &r, nil

	case len(probe.ID) > 0 && (len(probe.Result) > 0 || probe.Error != nil):
		var r Response
		if err := json.Unmarshal(data, &r); err != nil {
			// Non-integer ids cannot match a pending request of ours.
			return nil, &ParseError{Err: err}
		}
		return &r, nil

	default:
		return nil, &ParseError{Err: fmt.Errorf("message has neither method nor result/error")}
	}
}
