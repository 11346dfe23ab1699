package plugin

// apiKind tags which calling convention a method follows (spec §4.J: "a
// large, documented surface. Methods split into sync, Promise, and
// cancellable Thenable kinds").
type apiKind int

const (
	apiSync apiKind = iota
	apiPromise
	apiThenable
)

// apiParam is one method parameter's name and TypeScript type, as it
// appears in the generated `.d.ts`.
type apiParam struct {
	Name string
	Type string
}

// apiMethodSpec is the declarative description of one Editor API method:
// its name, parameters, return type, and calling convention. buildAPI's
// native bindings and GenerateDTS's declaration file are both meant to
// agree with this table; TestBuildAPIMatchesSpecTable checks the native
// side actually does.
type apiMethodSpec struct {
	Name    string
	Params  []apiParam
	Returns string
	Kind    apiKind
	Doc     string
}

// apiSpecs is every name spec §6's "Editor API (plugin-facing)" table
// lists, the normative vocabulary a `.d.ts` consumer (and a plugin author)
// sees.
var apiSpecs = []apiMethodSpec{
	{Name: "getActiveBufferId", Returns: "number", Doc: "ID of the buffer shown in the active split."},
	{Name: "getActiveSplitId", Returns: "number", Doc: "ID of the focused split."},
	{Name: "getCursorPosition", Returns: "{ line: number; column: number }", Doc: "Primary cursor's view position."},
	{Name: "getBufferPath", Params: []apiParam{{"bufferId", "number"}}, Returns: "string", Doc: "File path backing a buffer, empty if unsaved."},
	{Name: "getBufferLength", Params: []apiParam{{"bufferId", "number"}}, Returns: "number", Doc: "Buffer content length in bytes."},
	{Name: "isBufferModified", Params: []apiParam{{"bufferId", "number"}}, Returns: "boolean"},
	{Name: "getEditorMode", Returns: "string"},
	{Name: "insertText", Params: []apiParam{{"bufferId", "number"}, {"position", "number"}, {"text", "string"}}, Returns: "void"},
	{Name: "deleteRange", Params: []apiParam{{"bufferId", "number"}, {"start", "number"}, {"end", "number"}}, Returns: "void"},
	{Name: "insertAtCursor", Params: []apiParam{{"text", "string"}}, Returns: "void"},
	{Name: "openFile", Params: []apiParam{{"path", "string"}}, Returns: "void"},
	{Name: "showBuffer", Params: []apiParam{{"bufferId", "number"}}, Returns: "void"},
	{Name: "closeBuffer", Params: []apiParam{{"bufferId", "number"}}, Returns: "void"},
	{Name: "on", Params: []apiParam{{"event", "string"}, {"handlerName", "string"}}, Returns: "void"},
	{Name: "off", Params: []apiParam{{"event", "string"}, {"handlerName", "string"}}, Returns: "void"},
	{Name: "registerCommand", Params: []apiParam{{"name", "string"}, {"description", "string"}, {"handlerName", "string"}, {"context", "string"}}, Returns: "void"},
	{Name: "unregisterCommand", Params: []apiParam{{"name", "string"}}, Returns: "void"},
	{Name: "setContext", Params: []apiParam{{"name", "string"}, {"value", "boolean"}}, Returns: "void", Doc: "Governs when a registered command's context is active."},
	{Name: "executeAction", Params: []apiParam{{"name", "string"}}, Returns: "void"},
	{Name: "setStatus", Params: []apiParam{{"message", "string"}}, Returns: "void"},
	{Name: "setClipboard", Params: []apiParam{{"text", "string"}}, Returns: "void"},
	{Name: "addOverlay", Params: []apiParam{{"namespace", "string"}, {"start", "number"}, {"end", "number"}, {"text", "string"}}, Returns: "void"},
	{Name: "clearNamespace", Params: []apiParam{{"namespace", "string"}}, Returns: "void"},
	{Name: "clearAllOverlays", Returns: "void"},
	{Name: "setLineIndicator", Params: []apiParam{{"bufferId", "number"}, {"line", "number"}, {"kind", "string"}}, Returns: "void"},
	{Name: "clearLineIndicators", Params: []apiParam{{"bufferId", "number"}}, Returns: "void"},
	{Name: "startPrompt", Params: []apiParam{{"prompt", "string"}, {"kind", "string"}}, Returns: "void", Doc: "Opens a modal text prompt; the answer arrives via the promptSubmit event."},
	{Name: "setPromptSuggestions", Params: []apiParam{{"items", "string[]"}}, Returns: "void"},
	{Name: "defineMode", Params: []apiParam{{"name", "string"}, {"keymap", "object"}}, Returns: "void"},
	{Name: "setVirtualBufferContent", Params: []apiParam{{"bufferId", "number"}, {"content", "string"}}, Returns: "void"},
	{Name: "setSplitBuffer", Params: []apiParam{{"splitId", "number"}, {"bufferId", "number"}}, Returns: "void"},
	{Name: "setSplitScroll", Params: []apiParam{{"splitId", "number"}, {"topLine", "number"}}, Returns: "void"},
	{Name: "focusSplit", Params: []apiParam{{"splitId", "number"}}, Returns: "void"},
	{Name: "closeSplit", Params: []apiParam{{"splitId", "number"}}, Returns: "void"},
	{Name: "setBufferCursor", Params: []apiParam{{"bufferId", "number"}, {"cursorId", "number"}, {"toByte", "number"}}, Returns: "void"},
	{Name: "applyTheme", Params: []apiParam{{"theme", "string"}}, Returns: "void"},
	{Name: "refreshLines", Params: []apiParam{{"bufferId", "number"}, {"startLine", "number"}, {"endLine", "number"}}, Returns: "void"},
	{Name: "setEditorMode", Params: []apiParam{{"mode", "string"}}, Returns: "void"},
	{Name: "joinPath", Params: []apiParam{{"parts", "...string[]"}}, Returns: "string"},
	{Name: "dirname", Params: []apiParam{{"path", "string"}}, Returns: "string"},
	{Name: "basename", Params: []apiParam{{"path", "string"}}, Returns: "string"},
	{Name: "getEnv", Params: []apiParam{{"name", "string"}}, Returns: "string"},
	{Name: "readFile", Params: []apiParam{{"path", "string"}}, Returns: "string"},
	{Name: "writeFile", Params: []apiParam{{"path", "string"}, {"content", "string"}}, Returns: "boolean"},
	{Name: "listDir", Params: []apiParam{{"path", "string"}}, Returns: "string[]"},

	{Name: "delay", Params: []apiParam{{"ms", "number"}}, Returns: "void", Kind: apiPromise},
	{Name: "sendLspRequest", Params: []apiParam{{"language", "string"}, {"method", "string"}, {"params", "unknown"}}, Returns: "unknown", Kind: apiPromise},
	{Name: "createVirtualBufferInSplit", Params: []apiParam{{"opts", "{ name?: string; content?: string }"}}, Returns: "number", Kind: apiPromise},

	{Name: "spawnProcess", Params: []apiParam{{"cmd", "string"}, {"args", "string[]"}, {"cwd", "string"}}, Returns: "string", Kind: apiThenable},
	{Name: "spawnBackgroundProcess", Params: []apiParam{{"cmd", "string"}, {"args", "string[]"}, {"cwd", "string"}}, Returns: "string", Kind: apiThenable},
}
