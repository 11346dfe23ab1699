package plugin

import (
	"os"
	"path/filepath"

	"github.com/dop251/goja"

	"github.com/realagiorganization/fresh/internal/piecetree"
	"github.com/realagiorganization/fresh/internal/workspace"
)

// buildAPI returns the `editor` object's method table: one entry per name
// in apiSpecs (api_table.go), every name the "Editor API (plugin-facing)"
// vocabulary lists. Each entry is a plain Go function; goja marshals JS
// call arguments into its parameter types and marshals its return value
// back to JS, the same reflection-based binding goja's own examples use in
// place of hand-written argument unpacking. TestBuildAPIMatchesSpecTable
// keeps this map and apiSpecs (the source GenerateDTS walks to emit the
// paired .d.ts) from drifting apart.
func (h *Host) buildAPI() map[string]interface{} {
	return map[string]interface{}{
		// --- sync: buffer/cursor queries ---
		"getActiveBufferId": func() int { return int(h.getSnap().ActiveBufferID) },
		"getActiveSplitId":  func() int { return int(h.getSnap().ActiveSplitID) },
		"getCursorPosition": func() map[string]int {
			p := h.getSnap().PrimaryCursor
			return map[string]int{"line": p.ViewLine, "column": p.Column}
		},
		"getBufferPath": func(bufferID int) string {
			for _, b := range h.getSnap().Buffers {
				if int(b.ID) == bufferID {
					return b.Path
				}
			}
			return ""
		},
		"getBufferLength": func(bufferID int) int {
			for _, b := range h.getSnap().Buffers {
				if int(b.ID) == bufferID {
					return b.Length
				}
			}
			return 0
		},
		"isBufferModified": func(bufferID int) bool {
			for _, b := range h.getSnap().Buffers {
				if int(b.ID) == bufferID {
					return b.Modified
				}
			}
			return false
		},
		"getEditorMode": func() string { return h.getSnap().EditorMode },

		// --- sync: state-mutating commands ---
		"insertText": func(bufferID, position int, text string) {
			h.send(Command{Kind: CmdInsertText, BufferID: workspace.BufferID(bufferID), Position: position, Text: text})
		},
		"deleteRange": func(bufferID, start, end int) {
			h.send(Command{Kind: CmdDeleteRange, BufferID: workspace.BufferID(bufferID), Range: piecetree.Range{Start: start, End: end}})
		},
		"insertAtCursor": func(text string) {
			snap := h.getSnap()
			h.send(Command{Kind: CmdInsertText, BufferID: snap.ActiveBufferID, Position: snap.PrimaryCursor.SourceByte, Text: text})
		},
		"openFile": func(path string) {
			h.send(Command{Kind: CmdOpenFile, Path: path})
		},
		"showBuffer": func(bufferID int) {
			h.send(Command{Kind: CmdShowBuffer, BufferID: workspace.BufferID(bufferID)})
		},
		"closeBuffer": func(bufferID int) {
			h.send(Command{Kind: CmdCloseBuffer, BufferID: workspace.BufferID(bufferID)})
		},
		"addOverlay": func(namespace string, start, end int, text string) {
			h.send(Command{Kind: CmdAddOverlay, OverlayNamespace: namespace, OverlayRange: piecetree.Range{Start: start, End: end}, OverlayText: text})
		},
		"clearNamespace": func(namespace string) {
			h.send(Command{Kind: CmdClearNamespace, OverlayNamespace: namespace})
		},
		"clearAllOverlays": func() {
			h.send(Command{Kind: CmdClearAllOverlays})
		},
		"setStatus": func(msg string) {
			h.send(Command{Kind: CmdSetStatus, StatusMessage: msg})
		},
		"setClipboard": func(text string) {
			h.send(Command{Kind: CmdSetClipboard, ClipboardText: text})
		},
		"setEditorMode": func(mode string) {
			h.send(Command{Kind: CmdSetEditorMode, Mode: mode})
		},
		"executeAction": func(name string) {
			h.send(Command{Kind: CmdExecuteAction, ActionName: name})
		},
		"setContext": func(name string, value bool) {
			h.send(Command{Kind: CmdSetContext, ContextName: name, ContextValue: value})
		},
		"setLineIndicator": func(bufferID, line int, kind string) {
			h.send(Command{Kind: CmdSetLineIndicator, BufferID: workspace.BufferID(bufferID), Line: line, IndicatorKind: kind})
		},
		"clearLineIndicators": func(bufferID int) {
			h.send(Command{Kind: CmdClearLineIndicators, BufferID: workspace.BufferID(bufferID)})
		},
		"startPrompt": func(prompt, kind string) {
			h.send(Command{Kind: CmdStartPrompt, PromptText: prompt, PromptKind: kind})
		},
		"setPromptSuggestions": func(items []string) {
			h.send(Command{Kind: CmdSetPromptSuggestions, PromptSuggestions: items})
		},
		"defineMode": func(name string, keymap interface{}) {
			h.send(Command{Kind: CmdDefineMode, ModeName: name, ModeKeymap: keymap})
		},
		"setVirtualBufferContent": func(bufferID int, content string) {
			h.send(Command{Kind: CmdSetVirtualBufferContent, BufferID: workspace.BufferID(bufferID), Text: content})
		},
		"setSplitBuffer": func(splitID, bufferID int) {
			h.send(Command{Kind: CmdSetSplitBuffer, SplitID: workspace.SplitID(splitID), BufferID: workspace.BufferID(bufferID)})
		},
		"setSplitScroll": func(splitID, topLine int) {
			h.send(Command{Kind: CmdSetSplitScroll, SplitID: workspace.SplitID(splitID), ScrollLine: topLine})
		},
		"focusSplit": func(splitID int) {
			h.send(Command{Kind: CmdFocusSplit, SplitID: workspace.SplitID(splitID)})
		},
		"closeSplit": func(splitID int) {
			h.send(Command{Kind: CmdCloseSplit, SplitID: workspace.SplitID(splitID)})
		},
		"setBufferCursor": func(bufferID, cursorID, toByte int) {
			h.send(Command{Kind: CmdSetBufferCursor, BufferID: workspace.BufferID(bufferID), CursorID: cursorID, ToByte: toByte})
		},
		"applyTheme": func(theme string) {
			h.send(Command{Kind: CmdApplyTheme, Theme: theme})
		},
		"refreshLines": func(bufferID, startLine, endLine int) {
			h.send(Command{Kind: CmdRefreshLines, BufferID: workspace.BufferID(bufferID), StartLine: startLine, EndLine: endLine})
		},

		// --- sync: path/env/FS helpers ---
		"joinPath": func(parts ...string) string { return filepath.Join(parts...) },
		"dirname":  func(path string) string { return filepath.Dir(path) },
		"basename": func(path string) string { return filepath.Base(path) },
		"getEnv":   func(name string) string { return os.Getenv(name) },
		"readFile": func(path string) string {
			b, err := os.ReadFile(path)
			if err != nil {
				return ""
			}
			return string(b)
		},
		"writeFile": func(path, content string) bool {
			return os.WriteFile(path, []byte(content), 0o644) == nil
		},
		"listDir": func(path string) []string {
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil
			}
			names := make([]string, len(entries))
			for i, e := range entries {
				names[i] = e.Name()
			}
			return names
		},

		// --- sync: events and command registration ---
		"on": func(event, handlerName string) {
			h.mu.Lock()
			h.handlers[event] = append(h.handlers[event], handlerName)
			h.mu.Unlock()
		},
		"off": func(event, handlerName string) {
			h.mu.Lock()
			names := h.handlers[event]
			for i, n := range names {
				if n == handlerName {
					h.handlers[event] = append(names[:i], names[i+1:]...)
					break
				}
			}
			h.mu.Unlock()
		},
		"registerCommand": func(name, description, handlerName, context string) {
			cmd := Command{Kind: CmdRegisterCommand, CommandName: name, CommandDescription: description, HandlerName: handlerName, Context: context}
			h.mu.Lock()
			h.registered[name] = cmd
			h.mu.Unlock()
			h.send(cmd)
		},
		"unregisterCommand": func(name string) {
			h.mu.Lock()
			delete(h.registered, name)
			h.mu.Unlock()
			h.send(Command{Kind: CmdUnregisterCommand, CommandName: name})
		},

		// --- Promise-kind ---
		"delay": func(ms int) goja.Value {
			return h.newPromise(func(id int) Command {
				return Command{Kind: CmdDelay, CallbackID: id, DelayMillis: ms}
			})
		},
		"sendLspRequest": func(language, method string, params interface{}) goja.Value {
			return h.newPromise(func(id int) Command {
				return Command{Kind: CmdSendLspRequest, CallbackID: id, Language: language, Method: method, Params: params}
			})
		},
		"createVirtualBufferInSplit": func(opts map[string]interface{}) goja.Value {
			return h.newPromise(func(id int) Command {
				name, _ := opts["name"].(string)
				content, _ := opts["content"].(string)
				return Command{Kind: CmdCreateVirtualBufferInSplit, CallbackID: id, Path: name, Text: content}
			})
		},

		// --- Thenable (cancellable) ---
		"spawnProcess": func(cmd string, args []string, cwd string) goja.Value {
			return h.newThenable(func(id int) Command {
				return Command{Kind: CmdSpawnProcess, CallbackID: id, ProcessCmd: cmd, ProcessArgs: args, ProcessCwd: cwd}
			})
		},
		"spawnBackgroundProcess": func(cmd string, args []string, cwd string) goja.Value {
			return h.newThenable(func(id int) Command {
				return Command{Kind: CmdSpawnBackgroundProcess, CallbackID: id, ProcessCmd: cmd, ProcessArgs: args, ProcessCwd: cwd}
			})
		},
	}
}
