// Package plugin embeds the JS/TS plugin host: a goja runtime exposing a
// read-only state snapshot, a typed command channel the host writes to, and
// a callback-id bridge for Promise/Thenable-kind API methods (spec §4.J).
// No teacher file hosts a JS runtime — the teacher drives an external LLM
// process instead, out of this spec's scope — so the binding style here is
// grounded on github.com/dop251/goja itself (attested in the retrieval
// pack's `valVk-resterm` and `wwsheng009-yao` manifests): native Go closures
// registered as JS-callable functions on a single `editor` object, the same
// "proc-style binding generator" shape the spec describes. GenerateDTS (see
// dts.go) renders the paired `.d.ts` declaration from the apiSpecs table in
// api_table.go. buildAPI is a separate hand-written map; its method names
// are checked against apiSpecs by TestBuildAPIMatchesSpecTable, while
// parameter and return types are not cross-checked between the two.
package plugin

import (
	"sync"

	"github.com/dop251/goja"

	"github.com/realagiorganization/fresh/internal/cursor"
	"github.com/realagiorganization/fresh/internal/fresherr"
	"github.com/realagiorganization/fresh/internal/piecetree"
	"github.com/realagiorganization/fresh/internal/workspace"
)

// BufferMeta is one buffer's snapshot-visible metadata.
type BufferMeta struct {
	ID       workspace.BufferID
	Name     string
	Path     string
	Modified bool
	Length   int
}

// Snapshot is the read-only editor state a plugin observes, refreshed once
// per tick (spec §4.J "Plugins read editor state through a read-only
// snapshot").
type Snapshot struct {
	Buffers        []BufferMeta
	PrimaryCursor  cursor.ViewPosition
	CursorsByBuffer map[workspace.BufferID][]cursor.Cursor
	EditorMode     string
	UserConfig     map[string]interface{}
	ActiveSplitID  workspace.SplitID
	ActiveBufferID workspace.BufferID
}

// CommandKind tags a PluginCommand (spec §4.J state/command boundary).
type CommandKind int

const (
	CmdInsertText CommandKind = iota
	CmdDeleteRange
	CmdOpenFile
	CmdShowBuffer
	CmdCloseBuffer
	CmdAddOverlay
	CmdClearNamespace
	CmdClearAllOverlays
	CmdSetStatus
	CmdSetClipboard
	CmdRegisterCommand
	CmdUnregisterCommand
	CmdSetEditorMode
	CmdExecuteAction
	CmdSpawnProcess
	CmdSpawnBackgroundProcess
	CmdSendLspRequest
	CmdCreateVirtualBufferInSplit
	CmdDelay
	CmdCancelCallback
	CmdSetContext
	CmdSetLineIndicator
	CmdClearLineIndicators
	CmdStartPrompt
	CmdSetPromptSuggestions
	CmdDefineMode
	CmdSetVirtualBufferContent
	CmdSetSplitBuffer
	CmdSetSplitScroll
	CmdFocusSplit
	CmdCloseSplit
	CmdSetBufferCursor
	CmdApplyTheme
	CmdRefreshLines
)

// Command is a single message a plugin emits to the editor loop, drained
// once per tick between input processing and render.
type Command struct {
	Kind CommandKind

	BufferID workspace.BufferID
	Position int
	Text     string
	Range    piecetree.Range

	Path string

	OverlayNamespace string
	OverlayRange     piecetree.Range
	OverlayText      string

	StatusMessage string
	ClipboardText string

	CommandName        string
	CommandDescription string
	HandlerName         string
	Context             string

	ActionName string

	Mode string

	// CallbackID is set for commands whose result resolves or rejects a
	// pending JS promise (spec: "the plugin allocates a callback_id").
	CallbackID int

	ProcessCmd  string
	ProcessArgs []string
	ProcessCwd  string

	Language string
	Method   string
	Params   interface{}

	DelayMillis int

	ContextName  string
	ContextValue bool

	Line              int
	IndicatorKind     string
	PromptText        string
	PromptKind        string
	PromptSuggestions []string

	ModeName   string
	ModeKeymap interface{}

	SplitID    workspace.SplitID
	ScrollLine int

	CursorID int
	ToByte   int

	Theme string

	StartLine, EndLine int
}

type pendingCall struct {
	resolve func(goja.Value)
	reject  func(goja.Value)
}

// Host is one loaded plugin: its goja runtime, the shared command channel
// it writes to, and its pending-callback / event-handler bookkeeping.
type Host struct {
	Name string

	vm       *goja.Runtime
	commands chan<- Command
	getSnap  func() Snapshot
	logf     func(plugin, msg string)

	mu             sync.Mutex
	nextCallbackID int
	pending        map[int]pendingCall
	handlers       map[string][]string // event name -> JS handler function names
	registered     map[string]Command  // command name -> its RegisterCommand Command
}

// LoadPlugin bundles and transpiles source, then evaluates it in a fresh
// goja runtime wrapped in an IIFE with a name-scoped getEditor() (spec
// §4.J "Isolation"). commands is shared across every loaded plugin; the
// editor loop drains it. getSnap is called lazily, once per sync API call
// that needs state, rather than once per tick, since the host has no tick
// loop of its own.
func LoadPlugin(name, entryPath, entrySource string, resolve Resolver, commands chan<- Command, getSnap func() Snapshot, logf func(plugin, msg string)) (*Host, error) {
	bundled, err := Bundle(entryPath, entrySource, resolve)
	if err != nil {
		return nil, err
	}

	h := &Host{
		Name:       name,
		vm:         goja.New(),
		commands:   commands,
		getSnap:    getSnap,
		logf:       logf,
		pending:    map[int]pendingCall{},
		handlers:   map[string][]string{},
		registered: map[string]Command{},
	}

	if err := h.vm.Set("__editor", h.buildAPI()); err != nil {
		return nil, fresherr.Wrap(fresherr.KindPluginExecutionError, "bind editor API", err)
	}
	if err := h.vm.Set("__nativeLog", func(call goja.FunctionCall) goja.Value {
		if h.logf != nil {
			h.logf(h.Name, call.Argument(0).String())
		}
		return goja.Undefined()
	}); err != nil {
		return nil, fresherr.Wrap(fresherr.KindPluginExecutionError, "bind logger", err)
	}

	wrapped := "(function(){\n" +
		"function getEditor(){\n" +
		"  var e = Object.create(__editor);\n" +
		"  e.log = function(){ __nativeLog(Array.prototype.slice.call(arguments).join(' ')); };\n" +
		"  return e;\n" +
		"}\n" +
		"globalThis.__resolveHandler = function(n){ try { return eval(n); } catch (e) { return undefined; } };\n" +
		bundled +
		"\n})();"

	if _, err := h.vm.RunString(wrapped); err != nil {
		return nil, fresherr.Wrap(fresherr.KindPluginExecutionError, "evaluate plugin "+name, err)
	}
	return h, nil
}

// Emit calls every handler registered for event with data (spec §4.J
// "editor.emit(event, data) calls each handler; handler exceptions are
// logged and do not affect other handlers"). Handler names are resolved
// inside the plugin's IIFE scope, so the bundle's top-level functions are
// found; a name that resolves to nothing callable is skipped.
func (h *Host) Emit(event string, data interface{}) {
	h.mu.Lock()
	names := append([]string(nil), h.handlers[event]...)
	h.mu.Unlock()

	resolve, _ := goja.AssertFunction(h.vm.Get("__resolveHandler"))
	for _, name := range names {
		var fnVal goja.Value
		if resolve != nil {
			fnVal, _ = resolve(goja.Undefined(), h.vm.ToValue(name))
		}
		if fnVal == nil {
			continue
		}
		fn, ok := goja.AssertFunction(fnVal)
		if !ok {
			continue
		}
		if _, err := fn(goja.Undefined(), h.vm.ToValue(data)); err != nil {
			if h.logf != nil {
				h.logf(h.Name, "handler "+name+" for event "+event+" panicked: "+err.Error())
			}
		}
	}
}

// ResolveCallback fulfills the pending promise for callbackID with result.
// Called by the editor loop when an async-bridge message for that callback
// arrives (spec: "the editor calls _resolveCallback(id, result)").
func (h *Host) ResolveCallback(callbackID int, result interface{}) {
	h.mu.Lock()
	p, ok := h.pending[callbackID]
	if ok {
		delete(h.pending, callbackID)
	}
	h.mu.Unlock()
	if ok {
		p.resolve(h.vm.ToValue(result))
	}
}

// RejectCallback rejects the pending promise for callbackID with reason.
func (h *Host) RejectCallback(callbackID int, reason string) {
	h.mu.Lock()
	p, ok := h.pending[callbackID]
	if ok {
		delete(h.pending, callbackID)
	}
	h.mu.Unlock()
	if ok {
		p.reject(h.vm.ToValue(reason))
	}
}

// RegisteredCommands returns every command registered via registerCommand,
// for wiring into the command palette and keymap (spec §4.J: "appear in the
// command palette ... and can be bound in keymaps as PluginAction(name)").
func (h *Host) RegisteredCommands() map[string]Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]Command, len(h.registered))
	for k, v := range h.registered {
		out[k] = v
	}
	return out
}

func (h *Host) allocCallbackID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextCallbackID++
	return h.nextCallbackID
}

func (h *Host) send(cmd Command) {
	h.commands <- cmd
}

// newPromise allocates a callback id, sends buildCmd(id) on the command
// channel, and returns a goja Promise value the plugin's Promise-kind API
// methods hand back to JS.
func (h *Host) newPromise(buildCmd func(callbackID int) Command) goja.Value {
	id := h.allocCallbackID()
	promise, resolve, reject := h.vm.NewPromise()
	h.mu.Lock()
	h.pending[id] = pendingCall{resolve: resolve, reject: reject}
	h.mu.Unlock()
	h.send(buildCmd(id))
	return h.vm.ToValue(promise)
}

// newThenable is like newPromise but returns an object that also carries a
// .kill() method sending a cancellation command for the same callback id
// (spec: "Thenable-kind methods expose .kill() which sends a cancellation
// command using the same callback_id").
func (h *Host) newThenable(buildCmd func(callbackID int) Command) goja.Value {
	id := h.allocCallbackID()
	promise, resolve, reject := h.vm.NewPromise()
	h.mu.Lock()
	h.pending[id] = pendingCall{resolve: resolve, reject: reject}
	h.mu.Unlock()
	h.send(buildCmd(id))

	obj := h.vm.ToValue(promise).ToObject(h.vm)
	obj.Set("kill", func(call goja.FunctionCall) goja.Value {
		h.send(Command{Kind: CmdCancelCallback, CallbackID: id})
		return goja.Undefined()
	})
	return obj
}
