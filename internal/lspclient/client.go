// Package lspclient wraps powernap to run one LSP server per language and
// deliver its diagnostics and request responses through the editor's async
// message bridge (spec §4.M, §5), instead of blocking the caller on them.
package lspclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	powernap "github.com/charmbracelet/x/powernap/pkg/lsp"
	"github.com/charmbracelet/x/powernap/pkg/lsp/protocol"
	"github.com/rs/zerolog/log"
)

// Severity constants matching LSP DiagnosticSeverity.
const (
	SeverityError   = 1
	SeverityWarning = 2
)

// AsyncKind tags one message on the editor's shared async-message channel
// that originated from an LSP client (spec §5: "all such helpers
// communicate with the main loop via a single typed AsyncMessage channel").
type AsyncKind int

const (
	// AsyncDiagnostics carries a fresh per-URI diagnostics set from a
	// textDocument/publishDiagnostics notification.
	AsyncDiagnostics AsyncKind = iota
	// AsyncRequestResult carries the result of a plugin-issued
	// sendLspRequest, keyed by the CallbackID the plugin host allocated.
	AsyncRequestResult
)

// AsyncMessage is one LSP-originated event for the main loop to drain.
type AsyncMessage struct {
	Kind AsyncKind

	Language string
	URI      string
	Diags    []protocol.Diagnostic

	CallbackID int
	Result     interface{}
	Err        error
}

// Client wraps one powernap LSP server connection and forwards its
// notifications onto a shared async channel rather than a local
// debounce-and-wait loop.
type Client struct {
	inner    *powernap.Client
	language string
	async    chan<- AsyncMessage

	mu       sync.Mutex
	versions map[string]int // uri -> document version

	nextID int64
}

// newClient spawns an LSP server and wires its notifications to async.
func newClient(language string, cfg powernap.ClientConfig, async chan<- AsyncMessage) (*Client, error) {
	inner, err := powernap.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("lspclient: start %s: %w", language, err)
	}

	c := &Client{
		inner:    inner,
		language: language,
		async:    async,
		versions: make(map[string]int),
	}

	inner.RegisterNotificationHandler(
		"textDocument/publishDiagnostics",
		func(_ context.Context, _ string, params json.RawMessage) {
			var p protocol.PublishDiagnosticsParams
			if err := json.Unmarshal(params, &p); err != nil {
				log.Error().Err(err).Str("language", language).Msg("lspclient: unmarshal diagnostics")
				return
			}
			c.async <- AsyncMessage{
				Kind:     AsyncDiagnostics,
				Language: language,
				URI:      string(p.URI),
				Diags:    p.Diagnostics,
			}
		},
	)

	// Stub handlers so the server doesn't error on common requests the
	// editor doesn't act on.
	inner.RegisterHandler("window/workDoneProgress/create",
		func(_ context.Context, _ string, _ json.RawMessage) (any, error) { return nil, nil },
	)
	inner.RegisterNotificationHandler("$/progress",
		func(_ context.Context, _ string, _ json.RawMessage) {},
	)
	inner.RegisterNotificationHandler("window/logMessage",
		func(_ context.Context, _ string, _ json.RawMessage) {},
	)
	inner.RegisterHandler("client/registerCapability",
		func(_ context.Context, _ string, _ json.RawMessage) (any, error) { return nil, nil },
	)

	return c, nil
}

func (c *Client) initialize(ctx context.Context) error {
	return c.inner.Initialize(ctx, false)
}

// openFile reads path from disk and sends didOpen, or didChange if the
// document is already tracked.
func (c *Client) openFile(ctx context.Context, absPath string) error {
	uri := string(protocol.URIFromPath(absPath))

	c.mu.Lock()
	_, alreadyOpen := c.versions[uri]
	c.mu.Unlock()
	if alreadyOpen {
		return c.notifyChange(ctx, absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("lspclient: read %s: %w", absPath, err)
	}
	lang := powernap.DetectLanguage(absPath)

	c.mu.Lock()
	c.versions[uri] = 0
	c.mu.Unlock()

	return c.inner.NotifyDidOpenTextDocument(ctx, uri, string(lang), 0, string(data))
}

func (c *Client) notifyChange(ctx context.Context, absPath string) error {
	uri := string(protocol.URIFromPath(absPath))

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("lspclient: read %s: %w", absPath, err)
	}

	c.mu.Lock()
	v := c.versions[uri] + 1
	c.versions[uri] = v
	c.mu.Unlock()

	change := protocol.TextDocumentContentChangeEvent{
		Value: protocol.TextDocumentContentChangeWholeDocument{Text: string(data)},
	}
	return c.inner.NotifyDidChangeTextDocument(ctx, uri, v, []protocol.TextDocumentContentChangeEvent{change})
}

// genericCaller is implemented by LSP client types that can issue an
// arbitrary JSON-RPC request by method name. powernap's documented surface
// in this repo only covers the fixed document-sync/lifecycle calls the
// teacher already used (Initialize, NotifyDidOpenTextDocument, Shutdown,
// Exit, ...); a generic pass-through call is asserted for rather than
// assumed, the same honesty the pidProvider check in manager.go uses.
type genericCaller interface {
	Call(ctx context.Context, method string, params interface{}, result interface{}) error
}

// sendRequest issues an arbitrary JSON-RPC request (spec: plugin
// `sendLspRequest(language, method, params)`) and delivers its result on
// the async channel tagged with callbackID, instead of returning it
// synchronously — the caller is a goroutine dedicated to this one request.
func (c *Client) sendRequest(ctx context.Context, method string, params interface{}, callbackID int) {
	atomic.AddInt64(&c.nextID, 1) // local trace counter; the wire id is powernap's own

	gc, ok := any(c.inner).(genericCaller)
	if !ok {
		c.async <- AsyncMessage{
			Kind: AsyncRequestResult, Language: c.language, CallbackID: callbackID,
			Err: fmt.Errorf("lspclient: %s does not support generic requests", c.language),
		}
		return
	}

	var result interface{}
	err := gc.Call(ctx, method, params, &result)
	c.async <- AsyncMessage{
		Kind:       AsyncRequestResult,
		Language:   c.language,
		CallbackID: callbackID,
		Result:     result,
		Err:        err,
	}
}

// close gracefully shuts down the LSP server: shutdown, then exit, killing
// the process if shutdown itself fails (spec §4.M: "shutdown then exit,
// then kills").
func (c *Client) close(ctx context.Context) error {
	if err := c.inner.Shutdown(ctx); err != nil {
		c.inner.Kill()
		return fmt.Errorf("lspclient: shutdown %s: %w", c.language, err)
	}
	return c.inner.Exit()
}
