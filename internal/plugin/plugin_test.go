package plugin

import (
	"testing"

	"github.com/dop251/goja"
)

func TestTranspileTSStripsAnnotationsAndInterfaces(t *testing.T) {
	src := `interface Point { x: number; y: number }
export function add(a: number, b: number): number {
  return a + b;
}
const p = {x:1} as Point;
`
	out := TranspileTS(src)
	if contains(out, "interface") {
		t.Fatalf("output still contains an interface block: %q", out)
	}
	if contains(out, ": number") {
		t.Fatalf("output still contains a type annotation: %q", out)
	}
	if contains(out, "export") {
		t.Fatalf("output still contains export keyword: %q", out)
	}
	if contains(out, " as Point") {
		t.Fatalf("output still contains an as-cast: %q", out)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestBundleResolvesImportsBeforeEntryInOrder(t *testing.T) {
	sources := map[string]string{
		"/plugin/a.ts": "import { b } from './b';\nfunction main(){ return b(); }\n",
		"/plugin/b.ts": "function b(){ return 1; }\n",
	}
	resolve := func(from, imp string) (string, string, error) {
		path := "/plugin/b.ts"
		return path, sources[path], nil
	}

	out, err := Bundle("/plugin/a.ts", sources["/plugin/a.ts"], resolve)
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	aIdx := indexOf(out, "function main")
	bIdx := indexOf(out, "function b(")
	if aIdx < 0 || bIdx < 0 || bIdx > aIdx {
		t.Fatalf("expected b's module before a's in output, got:\n%s", out)
	}
	if contains(out, "import {") {
		t.Fatalf("import line not stripped: %q", out)
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestBundleDetectsImportCycle(t *testing.T) {
	sources := map[string]string{
		"/plugin/a.ts": "import { b } from './b';\n",
		"/plugin/b.ts": "import { a } from './a';\n",
	}
	resolve := func(from, imp string) (string, string, error) {
		if imp == "./b" {
			return "/plugin/b.ts", sources["/plugin/b.ts"], nil
		}
		return "/plugin/a.ts", sources["/plugin/a.ts"], nil
	}

	if _, err := Bundle("/plugin/a.ts", sources["/plugin/a.ts"], resolve); err == nil {
		t.Fatal("Bundle should report an import cycle")
	}
}

func noResolve(from, imp string) (string, string, error) { return "", "", nil }

func testSnapshot() Snapshot {
	return Snapshot{
		ActiveBufferID: 1,
		ActiveSplitID:  2,
		Buffers:        []BufferMeta{{ID: 1, Path: "/tmp/f.go", Length: 10, Modified: true}},
	}
}

func TestLoadPluginRegisterCommandIsRecordedAndSent(t *testing.T) {
	commands := make(chan Command, 4)
	src := `
var ed = getEditor();
ed.registerCommand("hello.world", "says hello", "helloHandler", "global");
function helloHandler(){ ed.setStatus("hi"); }
`
	h, err := LoadPlugin("demo", "/plugin/main.ts", src, noResolve, commands, testSnapshot, nil)
	if err != nil {
		t.Fatalf("LoadPlugin: %v", err)
	}

	regs := h.RegisteredCommands()
	if _, ok := regs["hello.world"]; !ok {
		t.Fatalf("RegisteredCommands() = %+v, want \"hello.world\"", regs)
	}

	select {
	case cmd := <-commands:
		if cmd.Kind != CmdRegisterCommand || cmd.CommandName != "hello.world" || cmd.HandlerName != "helloHandler" {
			t.Fatalf("command = %+v, want RegisterCommand hello.world/helloHandler", cmd)
		}
	default:
		t.Fatal("expected a RegisterCommand command on the channel")
	}
}

func TestHostEmitCallsHandlerAndToleratesMissingOrThrowing(t *testing.T) {
	commands := make(chan Command, 4)
	src := `
var ed = getEditor();
ed.on("click", "onClick");
ed.on("click", "onClickThrows");
function onClick(data){ ed.setStatus("clicked:" + data); }
function onClickThrows(data){ throw new Error("boom"); }
`
	h, err := LoadPlugin("demo", "/plugin/main.ts", src, noResolve, commands, testSnapshot, func(string, string) {})
	if err != nil {
		t.Fatalf("LoadPlugin: %v", err)
	}

	h.Emit("click", "foo")

	select {
	case cmd := <-commands:
		if cmd.Kind != CmdSetStatus || cmd.StatusMessage != "clicked:foo" {
			t.Fatalf("command = %+v, want SetStatus \"clicked:foo\"", cmd)
		}
	default:
		t.Fatal("expected onClick's setStatus command on the channel")
	}
}

func TestHostPromiseResolvesAndClearsPending(t *testing.T) {
	commands := make(chan Command, 4)
	h := &Host{
		vm:         goja.New(),
		commands:   commands,
		getSnap:    testSnapshot,
		pending:    map[int]pendingCall{},
		handlers:   map[string][]string{},
		registered: map[string]Command{},
	}

	resolved := false
	var resolvedArg goja.Value
	pv := h.newPromise(func(id int) Command { return Command{Kind: CmdDelay, CallbackID: id, DelayMillis: 5} })

	var cmd Command
	select {
	case cmd = <-commands:
	default:
		t.Fatal("expected a Delay command on the channel")
	}
	if cmd.Kind != CmdDelay || cmd.CallbackID == 0 {
		t.Fatalf("command = %+v, want Delay with a nonzero callback id", cmd)
	}

	obj := pv.ToObject(h.vm)
	then, ok := goja.AssertFunction(obj.Get("then"))
	if !ok {
		t.Fatal("promise value has no callable then")
	}
	if _, err := then(pv, h.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		resolved = true
		resolvedArg = call.Argument(0)
		return goja.Undefined()
	})); err != nil {
		t.Fatalf("then: %v", err)
	}

	if len(h.pending) != 1 {
		t.Fatalf("len(pending) = %d, want 1 before resolution", len(h.pending))
	}
	h.ResolveCallback(cmd.CallbackID, "done")
	if len(h.pending) != 0 {
		t.Fatalf("len(pending) = %d, want 0 after resolution", len(h.pending))
	}
	if !resolved || resolvedArg.String() != "done" {
		t.Fatalf("resolved = %v, arg = %v, want true/\"done\"", resolved, resolvedArg)
	}
}

func TestHostThenableKillSendsCancelCommand(t *testing.T) {
	commands := make(chan Command, 4)
	h := &Host{
		vm:         goja.New(),
		commands:   commands,
		getSnap:    testSnapshot,
		pending:    map[int]pendingCall{},
		handlers:   map[string][]string{},
		registered: map[string]Command{},
	}

	pv := h.newThenable(func(id int) Command {
		return Command{Kind: CmdSpawnProcess, CallbackID: id, ProcessCmd: "echo"}
	})
	<-commands // drain the SpawnProcess command

	obj := pv.ToObject(h.vm)
	kill, ok := goja.AssertFunction(obj.Get("kill"))
	if !ok {
		t.Fatal("thenable value has no callable kill")
	}
	if _, err := kill(pv); err != nil {
		t.Fatalf("kill: %v", err)
	}

	select {
	case cmd := <-commands:
		if cmd.Kind != CmdCancelCallback {
			t.Fatalf("command = %+v, want CancelCallback", cmd)
		}
	default:
		t.Fatal("expected a CancelCallback command on the channel")
	}
}
