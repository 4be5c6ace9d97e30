package lsp

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/lanternedit/lantern/internal/jsonrpc"
)

// defaultCaps is the capability blob the fake server returns from initialize.
const defaultCaps = `{
	"textDocumentSync": 1,
	"completionProvider": {"triggerCharacters": ["."]},
	"hoverProvider": true,
	"definitionProvider": true,
	"referencesProvider": true,
	"documentSymbolProvider": true,
	"workspaceSymbolProvider": true,
	"documentFormattingProvider": true
}`

// inboundMessage is the fake server's view of one client message.
type inboundMessage struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// fakeServer is an in-memory language server speaking framed JSON-RPC over
// io.Pipe. Request handlers run on the server's read goroutine; unhandled
// requests get a default reply, notifications are recorded.
type fakeServer struct {
	t     *testing.T
	codec *jsonrpc.Codec
	caps  string

	mu       sync.Mutex
	onReq    map[string]func(id int64, params json.RawMessage)
	notifs   []inboundMessage
	notified chan string

	toClient   *io.PipeWriter
	fromClient *io.PipeReader
	closeOnce  sync.Once
}

// spawnFakeServer builds one fake server over fresh pipes and returns it with
// the client's endpoints. configure, when non-nil, runs before the server
// starts reading, so initialize can be intercepted.
func spawnFakeServer(t *testing.T, configure func(*fakeServer)) (s *fakeServer, clientReads io.Reader, clientWrites io.WriteCloser, stop func()) {
	t.Helper()

	cr, serverWrites := io.Pipe()
	serverReads, cw := io.Pipe()

	s = &fakeServer{
		t:          t,
		codec:      jsonrpc.NewCodec(serverReads, serverWrites),
		caps:       defaultCaps,
		onReq:      make(map[string]func(id int64, params json.RawMessage)),
		notified:   make(chan string, 64),
		toClient:   serverWrites,
		fromClient: serverReads,
	}
	if configure != nil {
		configure(s)
	}
	go s.serve()
	t.Cleanup(s.close)

	stop = func() {
		cw.Close()
		cr.Close()
	}
	return s, cr, cw, stop
}

// newFakeServer wires a single fake server to a dial option for NewConn.
func newFakeServer(t *testing.T) (*fakeServer, ConnOption) {
	t.Helper()
	s, clientReads, clientWrites, stop := spawnFakeServer(t, nil)
	dial := withDial(func() (io.Reader, io.Writer, func(), error) {
		return clientReads, clientWrites, stop, nil
	})
	return s, dial
}

// newFakeServerFactory returns a dial option that spins up a fresh fake
// server on every Start, plus an accessor for the most recent one. configure
// runs on each new server before it serves.
func newFakeServerFactory(t *testing.T, configure func(*fakeServer)) (latest func() *fakeServer, opt ConnOption) {
	t.Helper()
	var mu sync.Mutex
	var cur *fakeServer

	dial := withDial(func() (io.Reader, io.Writer, func(), error) {
		s, clientReads, clientWrites, stop := spawnFakeServer(t, configure)
		mu.Lock()
		cur = s
		mu.Unlock()
		return clientReads, clientWrites, stop, nil
	})
	get := func() *fakeServer {
		mu.Lock()
		defer mu.Unlock()
		return cur
	}
	return get, dial
}

func (s *fakeServer) serve() {
	for {
		data, err := s.codec.ReadMessage()
		if err != nil {
			return
		}
		var in inboundMessage
		if err := json.Unmarshal(data, &in); err != nil {
			continue
		}

		if in.ID == nil {
			s.mu.Lock()
			s.notifs = append(s.notifs, in)
			s.mu.Unlock()
			select {
			case s.notified <- in.Method:
			default:
			}
			continue
		}

		s.mu.Lock()
		h := s.onReq[in.Method]
		s.mu.Unlock()
		if h != nil {
			h(*in.ID, in.Params)
			continue
		}

		switch in.Method {
		case "initialize":
			s.respondRaw(*in.ID, json.RawMessage(`{"capabilities":`+s.caps+`}`))
		default:
			s.respondRaw(*in.ID, json.RawMessage(`null`))
		}
	}
}

// handleRequest installs a handler for one request method.
func (s *fakeServer) handleRequest(method string, h func(id int64, params json.RawMessage)) {
	s.mu.Lock()
	s.onReq[method] = h
	s.mu.Unlock()
}

// respondRaw sends a result reply for the given request id.
func (s *fakeServer) respondRaw(id int64, result json.RawMessage) {
	err := s.codec.WriteMessage(map[string]any{
		"jsonrpc": jsonrpc.Version,
		"id":      id,
		"result":  result,
	})
	if err != nil {
		s.t.Logf("fake server write: %v", err)
	}
}

// respondError sends an error reply for the given request id.
func (s *fakeServer) respondError(id int64, code int, msg string) {
	err := s.codec.WriteMessage(map[string]any{
		"jsonrpc": jsonrpc.Version,
		"id":      id,
		"error":   map[string]any{"code": code, "message": msg},
	})
	if err != nil {
		s.t.Logf("fake server write: %v", err)
	}
}

// notify pushes a server-initiated notification to the client.
func (s *fakeServer) notify(method string, params any) {
	err := s.codec.WriteMessage(map[string]any{
		"jsonrpc": jsonrpc.Version,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		s.t.Logf("fake server write: %v", err)
	}
}

// notifications returns a snapshot of notifications received so far.
func (s *fakeServer) notifications() []inboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inboundMessage, len(s.notifs))
	copy(out, s.notifs)
	return out
}

// sawNotification reports whether a notification with the method arrived.
func (s *fakeServer) sawNotification(method string) bool {
	for _, n := range s.notifications() {
		if n.Method == method {
			return true
		}
	}
	return false
}

// close simulates the server process dying: the client's reader sees EOF.
func (s *fakeServer) close() {
	s.closeOnce.Do(func() {
		s.toClient.Close()
		s.fromClient.Close()
	})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
