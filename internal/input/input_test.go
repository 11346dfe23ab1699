package input

import (
	"testing"
	"time"

	"github.com/realagiorganization/fresh/internal/action"
)

func TestResolveSingleKeyBinding(t *testing.T) {
	r := NewRouter()
	km := NewKeymap()
	km.Bind("left", Binding{Action: action.Action{Kind: action.MoveLeft}})
	r.SetKeymap(ModeNormal, km)

	res := r.Resolve("left", time.Now())
	if !res.Matched || res.Binding.Action.Kind != action.MoveLeft {
		t.Fatalf("Resolve(\"left\") = %+v, want MoveLeft match", res)
	}
}

func TestResolveUnboundKeyMisses(t *testing.T) {
	r := NewRouter()
	r.SetKeymap(ModeNormal, NewKeymap())
	res := r.Resolve("left", time.Now())
	if res.Matched {
		t.Fatal("Resolve on empty keymap matched, want no match")
	}
}

func TestResolveChordCompletes(t *testing.T) {
	r := NewRouter()
	km := NewKeymap()
	km.BindChord("ctrl+k", "ctrl+s", Binding{Action: action.Action{Kind: action.Undo}})
	r.SetKeymap(ModeNormal, km)

	now := time.Now()
	first := r.Resolve("ctrl+k", now)
	if !first.Pending {
		t.Fatalf("first key of chord = %+v, want Pending", first)
	}
	second := r.Resolve("ctrl+s", now.Add(10*time.Millisecond))
	if !second.Matched || second.Binding.Action.Kind != action.Undo {
		t.Fatalf("chord completion = %+v, want Undo match", second)
	}
}

func TestResolveChordTimeoutFallsBackToStandalone(t *testing.T) {
	r := NewRouter()
	km := NewKeymap()
	km.Bind("ctrl+k", Binding{Action: action.Action{Kind: action.MoveBufferStart}})
	km.BindChord("ctrl+k", "ctrl+s", Binding{Action: action.Action{Kind: action.Undo}})
	r.SetKeymap(ModeNormal, km)

	now := time.Now()
	first := r.Resolve("ctrl+k", now)
	if !first.Pending {
		t.Fatalf("first key of chord = %+v, want Pending", first)
	}
	res := r.ResolveTimeout()
	if !res.Matched || res.Binding.Action.Kind != action.MoveBufferStart {
		t.Fatalf("timeout resolution = %+v, want standalone MoveBufferStart", res)
	}
}

func TestModeStackFallsThroughToLowerMode(t *testing.T) {
	r := NewRouter()
	normal := NewKeymap()
	normal.Bind("esc", Binding{Action: action.Action{Kind: action.MoveLineStart}})
	insert := NewKeymap()
	insert.Bind("enter", Binding{Action: action.Action{Kind: action.InsertNewline}})
	r.SetKeymap(ModeNormal, normal)
	r.SetKeymap(ModeInsert, insert)
	r.PushMode(ModeInsert)

	if got := r.CurrentMode(); got != ModeInsert {
		t.Fatalf("CurrentMode() = %v, want ModeInsert", got)
	}

	// "esc" is only bound in Normal, but the stack should fall through.
	res := r.Resolve("esc", time.Now())
	if !res.Matched || res.Binding.Action.Kind != action.MoveLineStart {
		t.Fatalf("fallthrough resolve = %+v, want MoveLineStart", res)
	}

	r.PopMode()
	if got := r.CurrentMode(); got != ModeNormal {
		t.Fatalf("CurrentMode() after pop = %v, want ModeNormal", got)
	}
}

func TestPopModeNeverEmptiesStack(t *testing.T) {
	r := NewRouter()
	r.PopMode()
	r.PopMode()
	if got := r.CurrentMode(); got != ModeNormal {
		t.Fatalf("CurrentMode() = %v, want ModeNormal (stack protected)", got)
	}
}

func TestPluginBindingRoutesByEventName(t *testing.T) {
	r := NewRouter()
	km := NewKeymap()
	km.Bind("ctrl+p", Binding{PluginEvent: "commandPalette.open"})
	r.SetKeymap(ModeNormal, km)

	res := r.Resolve("ctrl+p", time.Now())
	if !res.Matched || res.Binding.PluginEvent != "commandPalette.open" {
		t.Fatalf("Resolve(\"ctrl+p\") = %+v, want PluginEvent commandPalette.open", res)
	}
}
