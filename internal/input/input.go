// Package input translates raw key presses into Actions (spec §4.H): a
// mode-scoped keymap stack resolves a key, or a chord of keys typed within
// a short window, to either a core action.Action or a PluginAction routed
// to the plugin runtime. Keys are matched by their bubbletea v2 string
// representation ("ctrl+a", "shift+up", ...), the same representation the
// teacher's editor.Model switches on directly in internal/tui/editor.go;
// here the switch is data (a map per mode) instead of code, so modes and
// chords can be added without touching Go source.
package input

import (
	"strings"
	"time"

	"github.com/realagiorganization/fresh/internal/action"
)

// Mode names a keymap scope. Modes stack: a lookup checks the top of the
// stack first, falling through to lower modes on a miss, so e.g. a
// plugin-defined mode can add bindings on top of Normal without having to
// repeat all of Normal's bindings.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeInsert Mode = "insert"
	ModeSearch Mode = "search"
)

// Binding is what a key or chord resolves to.
type Binding struct {
	Action      action.Action
	PluginEvent string // non-empty routes to the plugin runtime instead
}

// chordWindow bounds how long the router waits for a chord's second key
// before treating the first key as a standalone binding.
const chordWindow = 700 * time.Millisecond

// Keymap is one mode's key -> Binding table, plus any multi-key chords
// ("ctrl+k ctrl+s" style) registered for that mode.
type Keymap struct {
	bindings map[string]Binding
	chords   map[string]map[string]Binding // first key -> second key -> binding
}

// NewKeymap creates an empty Keymap.
func NewKeymap() *Keymap {
	return &Keymap{bindings: map[string]Binding{}, chords: map[string]map[string]Binding{}}
}

// Bind registers a single-key binding.
func (k *Keymap) Bind(key string, b Binding) {
	k.bindings[key] = b
}

// BindChord registers a two-key chord.
func (k *Keymap) BindChord(first, second string, b Binding) {
	if k.chords[first] == nil {
		k.chords[first] = map[string]Binding{}
	}
	k.chords[first][second] = b
}

// Router holds a stack of mode keymaps and in-progress chord state.
type Router struct {
	keymaps map[Mode]*Keymap
	stack   []Mode

	pendingFirst string
	pendingSince time.Time
}

// NewRouter creates a Router with the given mode keymaps, starting in
// ModeNormal.
func NewRouter() *Router {
	return &Router{keymaps: map[Mode]*Keymap{}, stack: []Mode{ModeNormal}}
}

// SetKeymap installs (or replaces) the keymap for a mode.
func (r *Router) SetKeymap(m Mode, k *Keymap) { r.keymaps[m] = k }

// PushMode adds a mode to the top of the stack.
func (r *Router) PushMode(m Mode) { r.stack = append(r.stack, m) }

// PopMode removes the top mode, unless it is the only one left.
func (r *Router) PopMode() {
	if len(r.stack) > 1 {
		r.stack = r.stack[:len(r.stack)-1]
	}
}

// CurrentMode returns the active (topmost) mode.
func (r *Router) CurrentMode() Mode { return r.stack[len(r.stack)-1] }

// Resolution is the result of feeding a key through the router.
type Resolution struct {
	Binding Binding
	Matched bool
	Pending bool // waiting on a possible chord continuation; nothing to do yet
}

// Resolve feeds one key through the router at time now, checking the mode
// stack top-down, and returns what it resolved to. Call Resolve again with
// the chord's second key when Pending is true; if chordWindow elapses
// without a second key, the caller should call ResolveTimeout instead.
func (r *Router) Resolve(key string, now time.Time) Resolution {
	key = normalizeKey(key)

	if r.pendingFirst != "" {
		first := r.pendingFirst
		r.pendingFirst = ""
		if now.Sub(r.pendingSince) <= chordWindow {
			if b, ok := r.lookupChord(first, key); ok {
				return Resolution{Binding: b, Matched: true}
			}
		}
		// Chord didn't complete: resolve the first key standalone, then
		// fall through to resolve this key fresh.
		if b, ok := r.lookup(first); ok {
			res := r.Resolve(key, now)
			if res.Matched || res.Pending {
				return res
			}
			return Resolution{Binding: b, Matched: true}
		}
	}

	if r.startsChord(key) {
		r.pendingFirst = key
		r.pendingSince = now
		return Resolution{Pending: true}
	}

	if b, ok := r.lookup(key); ok {
		return Resolution{Binding: b, Matched: true}
	}
	return Resolution{}
}

// ResolveTimeout is called when chordWindow elapses with no second key; it
// resolves the pending first key standalone, if bound.
func (r *Router) ResolveTimeout() Resolution {
	if r.pendingFirst == "" {
		return Resolution{}
	}
	first := r.pendingFirst
	r.pendingFirst = ""
	if b, ok := r.lookup(first); ok {
		return Resolution{Binding: b, Matched: true}
	}
	return Resolution{}
}

func (r *Router) startsChord(key string) bool {
	for i := len(r.stack) - 1; i >= 0; i-- {
		km := r.keymaps[r.stack[i]]
		if km == nil {
			continue
		}
		if _, ok := km.chords[key]; ok {
			return true
		}
	}
	return false
}

func (r *Router) lookupChord(first, second string) (Binding, bool) {
	for i := len(r.stack) - 1; i >= 0; i-- {
		km := r.keymaps[r.stack[i]]
		if km == nil {
			continue
		}
		if seconds, ok := km.chords[first]; ok {
			if b, ok := seconds[second]; ok {
				return b, true
			}
		}
	}
	return Binding{}, false
}

func (r *Router) lookup(key string) (Binding, bool) {
	for i := len(r.stack) - 1; i >= 0; i-- {
		km := r.keymaps[r.stack[i]]
		if km == nil {
			continue
		}
		if b, ok := km.bindings[key]; ok {
			return b, true
		}
	}
	return Binding{}, false
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
