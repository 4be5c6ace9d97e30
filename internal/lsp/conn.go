package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lanternedit/lantern/internal/jsonrpc"
)

// Request timeouts are fixed and uniform; they are deliberately not
// caller-configurable. The initialize handshake gets a longer window because
// servers index the workspace before answering.
const (
	requestTimeout    = 5 * time.Second
	initializeTimeout = 15 * time.Second
)

// State is the lifecycle state of a connection.
type State int32

const (
	// StateDisconnected means no live process. The connection must be
	// explicitly restarted before reuse; there is no automatic retry.
	StateDisconnected State = iota
	// StateInitializing means the process is up and the initialize
	// handshake is in flight.
	StateInitializing
	// StateConnected means the handshake completed and requests may flow.
	StateConnected
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateInitializing:
		return "initializing"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ServerDescriptor describes how to launch one language server. Descriptors
// are immutable once registered; registering a language again replaces the
// previous descriptor.
type ServerDescriptor struct {
	Language string
	Command  string
	Args     []string
}

// NotificationHandler receives a server notification's method and raw params.
type NotificationHandler func(method string, params json.RawMessage)

// dialFunc produces the server's read/write streams and a stop function that
// terminates the underlying process and closes the streams.
type dialFunc func() (stdout io.Reader, stdin io.Writer, stop func(), err error)

// Conn is one connection to one language server subprocess. It frames I/O
// through the jsonrpc codec, assigns request ids, and correlates responses
// to callers. Exactly one background reader goroutine runs while the
// connection is live; writes are serialized by the codec so frames never
// interleave.
type Conn struct {
	desc     ServerDescriptor
	id       uuid.UUID
	logger   *slog.Logger
	diags    *DiagnosticStore
	handlers map[string]NotificationHandler // read-only after construction
	dial     dialFunc

	nextID atomic.Int64
	state  atomic.Int32

	// mu guards everything below: the pending table (insert by callers,
	// removal by the reader, the timeout path, and connection loss), the
	// codec/stop handles, and the per-period done channel.
	mu      sync.Mutex
	pending map[int64]chan *jsonrpc.Response
	codec   *jsonrpc.Codec
	stop    func()
	done    chan struct{}
	rootURI DocumentURI
	caps    Capabilities
	docs    map[DocumentURI]int
}

// ConnOption configures a connection.
type ConnOption func(*Conn)

// WithConnLogger sets the connection's logger.
func WithConnLogger(l *slog.Logger) ConnOption {
	return func(c *Conn) {
		c.logger = l
	}
}

// WithDiagnostics routes publishDiagnostics notifications into the given
// store instead of a private one.
func WithDiagnostics(store *DiagnosticStore) ConnOption {
	return func(c *Conn) {
		c.diags = store
	}
}

// WithNotificationHandler registers a handler for a server notification
// method. Must be set before Start.
func WithNotificationHandler(method string, h NotificationHandler) ConnOption {
	return func(c *Conn) {
		c.handlers[method] = h
	}
}

// withDial replaces process spawning; used by tests to talk to an
// in-memory fake server.
func withDial(d dialFunc) ConnOption {
	return func(c *Conn) {
		c.dial = d
	}
}

// NewConn creates a connection in the Disconnected state.
func NewConn(desc ServerDescriptor, opts ...ConnOption) *Conn {
	c := &Conn{
		desc:     desc,
		id:       uuid.New(),
		logger:   slog.Default(),
		diags:    NewDiagnosticStore(),
		handlers: make(map[string]NotificationHandler),
	}
	c.dial = c.spawn
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("language", desc.Language, "conn", c.id.String())
	return c
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Language returns the language this connection serves.
func (c *Conn) Language() string {
	return c.desc.Language
}

// Capabilities returns the server's opaque capability blob.
func (c *Conn) Capabilities() Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps
}

// Diagnostics returns the connection's diagnostic store.
func (c *Conn) Diagnostics() *DiagnosticStore {
	return c.diags
}

// Start spawns the server process, launches the reader, and performs the
// initialize handshake synchronously. It blocks until the handshake
// completes or its timeout elapses. On failure the connection is left
// Disconnected with the process reaped.
func (c *Conn) Start(ctx context.Context, rootURI DocumentURI) error {
	c.mu.Lock()
	if c.State() != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state.Store(int32(StateInitializing))

	stdout, stdin, stop, err := c.dial()
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		c.mu.Unlock()
		return &LaunchError{Language: c.desc.Language, Err: err}
	}

	c.codec = jsonrpc.NewCodec(stdout, stdin)
	c.stop = stop
	c.pending = make(map[int64]chan *jsonrpc.Response)
	c.done = make(chan struct{})
	c.rootURI = rootURI
	c.docs = make(map[DocumentURI]int)
	codec, done := c.codec, c.done
	c.mu.Unlock()

	go c.readLoop(codec, done)

	if err := c.initialize(ctx); err != nil {
		c.teardownPeriod(done, nil)
		return &LaunchError{Language: c.desc.Language, Err: err}
	}

	c.state.Store(int32(StateConnected))
	c.logger.Info("language server connected", "command", c.desc.Command)
	return nil
}

// initialize performs the handshake: initialize request, capability capture,
// initialized notification.
func (c *Conn) initialize(ctx context.Context) error {
	params := InitializeParams{
		ProcessID:    os.Getpid(),
		RootURI:      c.rootURI,
		Capabilities: DefaultClientCapabilities(),
	}
	if c.rootURI != "" {
		params.WorkspaceFolders = []WorkspaceFolder{{
			URI:  c.rootURI,
			Name: filepath.Base(URIToPath(c.rootURI)),
		}}
	}

	var result InitializeResult
	if err := c.call(ctx, "initialize", params, &result, initializeTimeout); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	c.mu.Lock()
	c.caps = NewCapabilities(result.Capabilities)
	c.mu.Unlock()

	if err := c.notify("initialized", InitializedParams{}); err != nil {
		return fmt.Errorf("initialized: %w", err)
	}
	return nil
}

// Call sends a request and blocks until the response arrives, the fixed
// timeout elapses (ErrTimeout), or the connection is lost
// (ErrConnectionLost). Safe for concurrent use: each call owns its own
// pending slot.
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	return c.call(ctx, method, params, result, requestTimeout)
}

func (c *Conn) call(ctx context.Context, method string, params, result any, timeout time.Duration) error {
	id := c.nextID.Add(1)
	ch := make(chan *jsonrpc.Response, 1)

	c.mu.Lock()
	if c.done == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	select {
	case <-c.done:
		c.mu.Unlock()
		return ErrConnectionLost
	default:
	}
	c.pending[id] = ch
	codec, done := c.codec, c.done
	c.mu.Unlock()

	// The slot is removed exactly once: here on timeout/cancel/loss, or by
	// the reader on delivery (in which case this delete is a no-op).
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := codec.WriteMessage(jsonrpc.NewRequest(id, method, params)); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrConnectionLost
	case <-timer.C:
		c.logger.Warn("request timed out", "method", method, "id", id)
		return ErrTimeout
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 && string(resp.Result) != "null" {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Notify sends a fire-and-forget notification. It never waits for a reply.
func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	return c.notify(method, params)
}

func (c *Conn) notify(method string, params any) error {
	c.mu.Lock()
	codec := c.codec
	c.mu.Unlock()
	if codec == nil {
		return ErrNotConnected
	}
	return codec.WriteMessage(jsonrpc.NewNotification(method, params))
}

// Shutdown performs the best-effort stop sequence: shutdown request, exit
// notification, reader stop, process termination, stream close. Every step
// runs even if an earlier one fails. A second call is a no-op.
func (c *Conn) Shutdown(ctx context.Context) {
	if c.State() == StateDisconnected {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	_ = c.call(shutdownCtx, "shutdown", nil, nil, requestTimeout)
	cancel()
	_ = c.notify("exit", nil)

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	c.teardownPeriod(done, nil)
	c.logger.Info("language server stopped")
}

// teardownPeriod ends one connected period: flips the state to
// Disconnected, fails every pending request with ErrConnectionLost (via the
// done channel), and terminates the process. It is a no-op when the period
// identified by done has already ended, so a stale reader can never tear
// down a restarted connection.
func (c *Conn) teardownPeriod(done chan struct{}, cause error) {
	if done == nil {
		return
	}

	c.mu.Lock()
	if c.done != done {
		c.mu.Unlock()
		return
	}
	select {
	case <-done:
		c.mu.Unlock()
		return
	default:
	}
	close(done)
	c.state.Store(int32(StateDisconnected))
	c.pending = make(map[int64]chan *jsonrpc.Response)
	stop := c.stop
	c.stop = nil
	c.codec = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if cause != nil {
		c.logger.Warn("connection lost", "err", cause)
	}
}

// readLoop is the sole background task for one connected period. It decodes
// one message at a time: responses go to their pending slot, notifications
// to handlers, anything else is logged and dropped. Message-local framing or
// parse errors are skipped; stream-level errors end the period.
func (c *Conn) readLoop(codec *jsonrpc.Codec, done chan struct{}) {
	for {
		data, err := codec.ReadMessage()
		if err != nil {
			if jsonrpc.IsRecoverable(err) {
				c.logger.Warn("dropping malformed message", "err", err)
				continue
			}
			c.teardownPeriod(done, err)
			return
		}

		msg, err := jsonrpc.DecodeMessage(data)
		if err != nil {
			c.logger.Warn("dropping unparseable message", "err", err)
			continue
		}

		switch m := msg.(type) {
		case *jsonrpc.Response:
			c.deliver(m)
		case *jsonrpc.Notification:
			c.dispatchNotification(m)
		case *jsonrpc.ServerRequest:
			c.logger.Debug("dropping server-to-client request", "method", m.Method)
		}
	}
}

// deliver routes a response to its pending slot, or drops it when the slot
// is gone (timed out or never existed).
func (c *Conn) deliver(resp *jsonrpc.Response) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("dropping response with no pending request", "id", resp.ID)
		return
	}
	ch <- resp
}

func (c *Conn) dispatchNotification(n *jsonrpc.Notification) {
	switch n.Method {
	case "textDocument/publishDiagnostics":
		var p PublishDiagnosticsParams
		if err := json.Unmarshal(n.Params, &p); err != nil {
			c.logger.Warn("dropping malformed diagnostics", "err", err)
			return
		}
		c.diags.Set(p.URI, p.Diagnostics)

	case "window/logMessage", "window/showMessage":
		c.logger.Debug("server message", "params", string(n.Params))

	default:
		if h := c.handlers[n.Method]; h != nil {
			h(n.Method, n.Params)
			return
		}
		c.logger.Debug("dropping unhandled notification", "method", n.Method)
	}
}

// --- Document synchronization ---

// OpenDocument sends didOpen and starts version tracking. Opening an
// already-open document is a no-op.
func (c *Conn) OpenDocument(ctx context.Context, path, text string) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	uri := PathToURI(path)

	c.mu.Lock()
	if _, open := c.docs[uri]; open {
		c.mu.Unlock()
		return nil
	}
	c.docs[uri] = 1
	c.mu.Unlock()

	return c.notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: c.desc.Language,
			Version:    1,
			Text:       text,
		},
	})
}

// ChangeDocument sends a whole-document replacement with a bumped version.
func (c *Conn) ChangeDocument(ctx context.Context, path, text string) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	uri := PathToURI(path)

	c.mu.Lock()
	version, open := c.docs[uri]
	if !open {
		c.mu.Unlock()
		return nil
	}
	version++
	c.docs[uri] = version
	c.mu.Unlock()

	return c.notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: text}},
	})
}

// CloseDocument sends didClose and stops version tracking.
func (c *Conn) CloseDocument(ctx context.Context, path string) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	uri := PathToURI(path)

	c.mu.Lock()
	if _, open := c.docs[uri]; !open {
		c.mu.Unlock()
		return nil
	}
	delete(c.docs, uri)
	c.mu.Unlock()

	return c.notify("textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// --- Process management ---

// spawn launches the descriptor's command with stdio pipes. Server stderr is
// drained to the logger at debug level.
func (c *Conn) spawn() (io.Reader, io.Writer, func(), error) {
	cmd := exec.Command(c.desc.Command, c.desc.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		return nil, nil, nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, nil, nil, fmt.Errorf("start %s: %w", c.desc.Command, err)
	}

	go func() {
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			c.logger.Debug("server stderr", "line", sc.Text())
		}
	}()

	stop := func() {
		stdin.Close()
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		go func() { _ = cmd.Wait() }()
	}

	return stdout, stdin, stop, nil
}

// pendingCount reports the number of outstanding requests; used by tests.
func (c *Conn) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
