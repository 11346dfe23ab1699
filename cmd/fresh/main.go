// Command fresh is the terminal entry point: it wires a Workspace, the
// filesystem/config/recovery/LSP/limits services, and the input/action/
// layout pipeline into a single Bubble Tea program (spec §1/§9).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	bcursor "charm.land/bubbles/v2/cursor"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/realagiorganization/fresh/internal/action"
	cursorpkg "github.com/realagiorganization/fresh/internal/cursor"
	"github.com/realagiorganization/fresh/internal/diffbuffer"
	"github.com/realagiorganization/fresh/internal/editlog"
	"github.com/realagiorganization/fresh/internal/fresherr"
	"github.com/realagiorganization/fresh/internal/fsconfig"
	"github.com/realagiorganization/fresh/internal/fsops"
	"github.com/realagiorganization/fresh/internal/gitgutter"
	"github.com/realagiorganization/fresh/internal/highlight"
	"github.com/realagiorganization/fresh/internal/input"
	"github.com/realagiorganization/fresh/internal/layout"
	"github.com/realagiorganization/fresh/internal/limits"
	"github.com/realagiorganization/fresh/internal/lspclient"
	"github.com/realagiorganization/fresh/internal/modal"
	"github.com/realagiorganization/fresh/internal/piecetree"
	"github.com/realagiorganization/fresh/internal/recovery"
	"github.com/realagiorganization/fresh/internal/terminal"
	"github.com/realagiorganization/fresh/internal/viewport"
	"github.com/realagiorganization/fresh/internal/workspace"
)

func main() {
	var (
		logPath   = flag.String("log-file", "", "path to write debug logs to (defaults to $XDG_STATE_HOME/fresh/fresh.log)")
		configDir = flag.String("config-dir", "", "directory holding config.json (defaults to $XDG_CONFIG_HOME/fresh)")
		noLSP     = flag.Bool("no-lsp", false, "disable LSP client startup")
	)
	flag.Parse()

	closeLog := setupFileLogging(*logPath)
	defer closeLog()

	if err := run(flag.Args(), *configDir, *noLSP); err != nil {
		log.Error().Err(err).Msg("fresh exited with error")
		fmt.Fprintln(os.Stderr, "fresh:", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a fresherr.Kind to the process exit code spec §9 assigns
// it: 2 for a usage/config problem, 1 for everything else the editor itself
// raised, 0 only on a clean Quit (never reaches here).
func exitCodeFor(err error) int {
	switch fresherr.Of(err) {
	case fresherr.KindConfigInvalid:
		return 2
	default:
		return 1
	}
}

// setupFileLogging routes zerolog to a file instead of stderr, since stderr
// is the terminal the TUI owns. Mirrors the teacher's own file-logging
// bootstrap in cmd/symb/main.go.
func setupFileLogging(path string) func() {
	if path == "" {
		stateDir := os.Getenv("XDG_STATE_HOME")
		if stateDir == "" {
			home, _ := os.UserHomeDir()
			stateDir = filepath.Join(home, ".local", "state")
		}
		dir := filepath.Join(stateDir, "fresh")
		_ = os.MkdirAll(dir, 0o755)
		path = filepath.Join(dir, "fresh.log")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return func() {}
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return func() { f.Close() }
}

// applyConfigDefaults fills in the zero values fsconfig.Load leaves
// untouched for a missing or partial config file.
func applyConfigDefaults(cfg *fsconfig.Config) {
	if cfg.Editor.TabSize == 0 {
		cfg.Editor.TabSize = 4
	}
	if cfg.Editor.LargeFileThresholdBytes == 0 {
		cfg.Editor.LargeFileThresholdBytes = 10 * 1024 * 1024
	}
	if cfg.Editor.EstimatedLineLength == 0 {
		cfg.Editor.EstimatedLineLength = 80
	}
	if cfg.Theme == "" {
		cfg.Theme = "monokai"
	}
}

func defaultConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "fresh")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fresh")
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "fresh")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "fresh")
}

func run(args []string, configDir string, noLSP bool) error {
	if configDir == "" {
		configDir = defaultConfigDir()
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fresherr.Wrap(fresherr.KindConfigInvalid, "create config dir", err)
	}
	configPath := filepath.Join(configDir, "config.json")
	cfg, err := fsconfig.Load(configPath)
	if err != nil {
		return fresherr.Wrap(fresherr.KindConfigInvalid, "load config", err)
	}
	applyConfigDefaults(cfg)

	cacheDir := defaultCacheDir()
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fresherr.Wrap(fresherr.KindFsUnsupported, "create cache dir", err)
	}
	recStore, err := recovery.Open(filepath.Join(cacheDir, "recovery.db"))
	if err != nil {
		return fresherr.Wrap(fresherr.KindFsUnsupported, "open recovery store", err)
	}

	limitsCfg := limits.DefaultConfig()

	async := make(chan lspclient.AsyncMessage, 64)
	var lspMgr *lspclient.Manager
	if !noLSP {
		lspMgr = lspclient.NewManager(async, limitsCfg)
	}

	fsys := fsops.Local{}
	ws := workspace.New()

	if len(args) == 0 {
		// Keep the workspace's initial scratch buffer.
	}
	for _, path := range args {
		abs, err := filepath.Abs(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("resolve path")
			continue
		}
		content, err := fsys.ReadFile(abs)
		if err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("read file")
			continue
		}
		buf := ws.OpenBuffer(filepath.Base(abs), abs, content)
		if _, ok, _ := recStore.Load(recovery.BufferID(abs)); ok {
			log.Info().Str("path", abs).Msg("recovery snapshot found; leaving on-disk content authoritative")
		}
		ws.SplitActive(workspace.OrientationLeaf, buf)
	}

	m := newModel(ws, fsys, cfg, recStore, lspMgr, limitsCfg, async)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	m.ctx = ctx

	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err = p.Run()
	if lspMgr != nil {
		lspMgr.StopAll(context.Background())
	}
	recStore.Close()
	return err
}

// recoveryTickMsg fires periodically so the active buffer's content and
// cursors are snapshotted to the recovery store even if the editor is
// killed before a clean save (spec §6).
type recoveryTickMsg time.Time

func recoveryTick() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg { return recoveryTickMsg(t) })
}

// chordTimeoutMsg fires chordWindow after a chord's first key if no second
// key followed, so the router can resolve the first key standalone (spec
// §4.H). It carries the time the chord started so a stale timer firing
// after a newer keypress already resolved it is a no-op.
type chordTimeoutMsg time.Time

func chordTimeout(since time.Time) tea.Cmd {
	return tea.Tick(710*time.Millisecond, func(time.Time) tea.Msg { return chordTimeoutMsg(since) })
}

// asyncDrainMsg carries one message drained from the LSP manager's async
// channel (spec §5).
type asyncDrainMsg lspclient.AsyncMessage

func waitForAsync(ch <-chan lspclient.AsyncMessage) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return asyncDrainMsg(msg)
	}
}

// termOutputMsg names the split whose terminal.Terminal produced output
// since the last render, so View picks up the fresh grid snapshot.
type termOutputMsg workspace.SplitID

func waitForTermOutput(ch <-chan workspace.SplitID) tea.Cmd {
	return func() tea.Msg {
		id, ok := <-ch
		if !ok {
			return nil
		}
		return termOutputMsg(id)
	}
}

// splitView caches per-split render state: the layout, viewport, and gutter
// markers, so they only rebuild when the underlying buffer or size changes.
type splitView struct {
	lay      *layout.Layout
	vp       *viewport.Viewport
	gutter   map[int]gitgutter.Mark
	dirtyLay bool
}

type model struct {
	ctx context.Context

	ws       *workspace.Workspace
	fsys     fsops.FileSystem
	cfg      *fsconfig.Config
	recStore *recovery.Store
	lspMgr   *lspclient.Manager
	limits   limits.Config
	async    <-chan lspclient.AsyncMessage

	router *input.Router
	views  map[workspace.SplitID]*splitView

	blink bcursor.Model

	// switcher is the active ctrl+p/ctrl+o modal (buffer switcher or command
	// palette), nil when no modal is open. switcherKind distinguishes which
	// one so handleSwitcherSelect knows how to interpret its ActionSelect.
	switcher     *modal.Model
	switcherKind string

	// terminals and diffs let a split display something other than a plain
	// workspace.Buffer: a PTY-backed shell (internal/terminal) or a
	// composite diff view (internal/diffbuffer), keyed by the split showing
	// them. termOutput carries a split ID whenever that split's terminal
	// produced output asynchronously, so Update can trigger a re-render.
	terminals  map[workspace.SplitID]*terminal.Terminal
	diffs      map[workspace.SplitID]*diffbuffer.CompositeBuffer
	termOutput chan workspace.SplitID

	width, height  int
	status         string
	diagnostics    map[string]int // uri -> worst severity, spec §4.M
	pendingChordAt time.Time
}

func newModel(ws *workspace.Workspace, fsys fsops.FileSystem, cfg *fsconfig.Config, recStore *recovery.Store, lspMgr *lspclient.Manager, limitsCfg limits.Config, async chan lspclient.AsyncMessage) *model {
	blink := bcursor.New()
	blink.SetMode(bcursor.CursorBlink)
	blink.Focus()
	return &model{
		ws:          ws,
		fsys:        fsys,
		cfg:         cfg,
		recStore:    recStore,
		lspMgr:      lspMgr,
		limits:      limitsCfg,
		async:       async,
		router:      buildRouter(),
		views:       map[workspace.SplitID]*splitView{},
		diagnostics: map[string]int{},
		blink:       blink,
		terminals:   map[workspace.SplitID]*terminal.Terminal{},
		diffs:       map[workspace.SplitID]*diffbuffer.CompositeBuffer{},
		termOutput:  make(chan workspace.SplitID, 64),
	}
}

// buildRouter installs the default Normal/Insert keymaps (spec §4.H). A
// plugin or user config can layer additional modes on top at runtime; this
// is the built-in baseline the teacher's editor.Model switched on directly.
func buildRouter() *input.Router {
	r := input.NewRouter()

	normal := input.NewKeymap()
	normal.Bind("left", input.Binding{Action: action.Action{Kind: action.MoveLeft}})
	normal.Bind("right", input.Binding{Action: action.Action{Kind: action.MoveRight}})
	normal.Bind("up", input.Binding{Action: action.Action{Kind: action.MoveUp}})
	normal.Bind("down", input.Binding{Action: action.Action{Kind: action.MoveDown}})
	normal.Bind("home", input.Binding{Action: action.Action{Kind: action.MoveLineStart}})
	normal.Bind("end", input.Binding{Action: action.Action{Kind: action.MoveLineEnd}})
	normal.Bind("ctrl+home", input.Binding{Action: action.Action{Kind: action.MoveBufferStart}})
	normal.Bind("ctrl+end", input.Binding{Action: action.Action{Kind: action.MoveBufferEnd}})
	normal.Bind("shift+left", input.Binding{Action: action.Action{Kind: action.ExtendLeft}})
	normal.Bind("shift+right", input.Binding{Action: action.Action{Kind: action.ExtendRight}})
	normal.Bind("shift+up", input.Binding{Action: action.Action{Kind: action.ExtendUp}})
	normal.Bind("shift+down", input.Binding{Action: action.Action{Kind: action.ExtendDown}})
	normal.Bind("backspace", input.Binding{Action: action.Action{Kind: action.DeleteBackward}})
	normal.Bind("delete", input.Binding{Action: action.Action{Kind: action.DeleteForward}})
	normal.Bind("enter", input.Binding{Action: action.Action{Kind: action.InsertNewline}})
	normal.Bind("ctrl+z", input.Binding{Action: action.Action{Kind: action.Undo}})
	normal.Bind("ctrl+y", input.Binding{Action: action.Action{Kind: action.Redo}})
	normal.Bind("ctrl+d", input.Binding{Action: action.Action{Kind: action.AddCursorNextMatch}})
	normal.Bind("pgup", input.Binding{Action: action.Action{Kind: action.Scroll, ScrollDelta: -10}})
	normal.Bind("pgdown", input.Binding{Action: action.Action{Kind: action.Scroll, ScrollDelta: 10}})
	normal.BindChord("ctrl+k", "ctrl+s", input.Binding{PluginEvent: "save"})
	normal.Bind("ctrl+p", input.Binding{PluginEvent: "switchBuffer"})
	normal.Bind("ctrl+o", input.Binding{PluginEvent: "commandPalette"})
	r.SetKeymap(input.ModeNormal, normal)

	insert := input.NewKeymap()
	insert.Bind("esc", input.Binding{PluginEvent: "exitInsert"})
	r.SetKeymap(input.ModeInsert, insert)

	return r
}

func (m *model) Init() tea.Cmd {
	m.blink.Focus()
	return tea.Batch(recoveryTick(), waitForAsync(m.async), waitForTermOutput(m.termOutput), m.blink.Blink())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var blinkCmd tea.Cmd
	m.blink, blinkCmd = m.blink.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.invalidateAllLayouts()
		return m, blinkCmd

	case tea.KeyPressMsg:
		if m.switcher != nil {
			return m.handleSwitcherKey(msg, blinkCmd)
		}
		if term := m.activeTerminal(); term != nil {
			return m.handleTerminalKey(term, msg, blinkCmd)
		}
		model, cmd := m.handleKey(msg)
		return model, tea.Batch(cmd, blinkCmd, m.blink.Blink())

	case chordTimeoutMsg:
		if time.Time(msg) != m.pendingChordAt {
			return m, blinkCmd // a newer key arrived since this timeout was scheduled
		}
		m.applyResolution(m.router.ResolveTimeout())
		return m, blinkCmd

	case recoveryTickMsg:
		m.snapshotActiveBuffer()
		return m, tea.Batch(recoveryTick(), blinkCmd)

	case asyncDrainMsg:
		m.handleAsync(lspclient.AsyncMessage(msg))
		return m, tea.Batch(waitForAsync(m.async), blinkCmd)

	case termOutputMsg:
		return m, tea.Batch(waitForTermOutput(m.termOutput), blinkCmd)

	default:
		// The modal's own debounce timer arrives as an unexported message
		// type this package can't name; forward anything unrecognized to an
		// open switcher so its search stays live.
		if m.switcher != nil {
			_, cmd := m.switcher.HandleMsg(msg)
			return m, tea.Batch(cmd, blinkCmd)
		}
	}
	return m, blinkCmd
}

func (m *model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	now := time.Now()
	res := m.router.Resolve(msg.Keystroke(), now)
	if res.Pending {
		m.pendingChordAt = now
		return m, chordTimeout(now)
	}
	if !res.Matched {
		if msg.Text != "" {
			m.applyAction(action.Action{Kind: action.InsertText, Text: []byte(msg.Text)})
		}
		return m, nil
	}
	m.applyResolution(res)
	return m, nil
}

// applyResolution carries out whatever a Resolve/ResolveTimeout call
// decided, whether it arrived from a direct keypress or a chord timing out.
func (m *model) applyResolution(res input.Resolution) {
	if !res.Matched {
		return
	}
	switch res.Binding.PluginEvent {
	case "save":
		m.saveActiveBuffer()
		return
	case "switchBuffer":
		m.openBufferSwitcher()
		return
	case "commandPalette":
		m.openCommandPalette()
		return
	}
	switch res.Binding.Action.Kind {
	case action.Undo:
		if buf := m.activeBuffer(); buf != nil {
			if err := buf.Log.Undo(); err != nil {
				editlog.WarnInconsistent("undo", err)
			}
			m.invalidateActiveLayout()
		}
	case action.Redo:
		if buf := m.activeBuffer(); buf != nil {
			if err := buf.Log.Redo(); err != nil {
				editlog.WarnInconsistent("redo", err)
			}
			m.invalidateActiveLayout()
		}
	default:
		m.applyAction(res.Binding.Action)
	}
}

func (m *model) activeBuffer() *workspace.Buffer {
	split := m.ws.Split(m.ws.ActiveSplit())
	if split == nil {
		return nil
	}
	return m.ws.Buffer(split.BufferID)
}

// activeTerminal returns the terminal.Terminal hosted in the active split,
// or nil if the active split is a plain buffer view.
func (m *model) activeTerminal() *terminal.Terminal {
	return m.terminals[m.ws.ActiveSplit()]
}

// activeDiff returns the diffbuffer.CompositeBuffer hosted in the active
// split, or nil if the active split is a plain buffer view.
func (m *model) activeDiff() *diffbuffer.CompositeBuffer {
	return m.diffs[m.ws.ActiveSplit()]
}

// modalColors derives the buffer switcher / command palette's color scheme
// from the active theme's background, the same lookup View already does for
// syntax highlighting.
func (m *model) modalColors() modal.Colors {
	bg := highlight.ThemeBg(m.cfg.Theme)
	if bg == "" {
		bg = "#1e1e1e"
	}
	return modal.Colors{
		Fg:     "#e0e0e0",
		Bg:     bg,
		Dim:    "#808080",
		SelFg:  bg,
		SelBg:  "#e0e0e0",
		Border: "#808080",
	}
}

// openBufferSwitcher opens a ctrl+p modal listing every buffer currently
// registered in the workspace, including ones not visible in any split.
func (m *model) openBufferSwitcher() {
	var sources []modal.BufferSource
	for id, b := range m.ws.AllBuffers() {
		sources = append(sources, modal.BufferSource{ID: int(id), Name: b.Name, Path: b.Path})
	}
	md := modal.New(modal.BufferSearchFunc(sources), "buffer> ", m.modalColors())
	m.switcher = &md
	m.switcherKind = "buffer"
}

// commandPaletteItems is the fixed action list a ctrl+o command palette
// offers; each Name is matched back to a handler in handleSwitcherSelect.
func commandPaletteItems() []modal.Item {
	return []modal.Item{
		{Name: "Save", Desc: "write the active buffer to disk"},
		{Name: "Open Terminal", Desc: "spawn a shell in a new split"},
		{Name: "Diff Buffers", Desc: "compare the active buffer against another open buffer"},
	}
}

// openCommandPalette opens a ctrl+o modal listing the editor's named
// commands.
func (m *model) openCommandPalette() {
	md := modal.New(modal.CommandSearchFunc(commandPaletteItems()), "command> ", m.modalColors())
	m.switcher = &md
	m.switcherKind = "command"
}

// handleSwitcherKey forwards a keypress to the open switcher modal and
// carries out whatever Action it returns.
func (m *model) handleSwitcherKey(msg tea.KeyPressMsg, blinkCmd tea.Cmd) (tea.Model, tea.Cmd) {
	act, cmd := m.switcher.HandleMsg(msg)
	switch a := act.(type) {
	case modal.ActionClose:
		m.switcher = nil
		m.switcherKind = ""
	case modal.ActionSelect:
		m.handleSwitcherSelect(a.Item)
		m.switcher = nil
		m.switcherKind = ""
	}
	return m, tea.Batch(cmd, blinkCmd)
}

// handleSwitcherSelect carries out the chosen Item for whichever switcher
// kind was open.
func (m *model) handleSwitcherSelect(item modal.Item) {
	switch m.switcherKind {
	case "buffer":
		id, ok := modal.ParseBufferDesc(item.Desc)
		if !ok {
			return
		}
		buf := m.ws.Buffer(workspace.BufferID(id))
		if buf == nil {
			return
		}
		m.ws.SetSplitBuffer(m.ws.ActiveSplit(), buf)
		m.invalidateActiveLayout()
	case "command":
		switch item.Name {
		case "Save":
			m.saveActiveBuffer()
		case "Open Terminal":
			m.openTerminalSplit()
		case "Diff Buffers":
			m.openDiffSplit()
		}
	}
}

// openTerminalSplit spawns a shell into a new split so internal/terminal is
// reachable as a buffer in the running editor, not just library code
// exercised by its own tests.
func (m *model) openTerminalSplit() {
	placeholder := m.ws.OpenBuffer("[terminal]", "", nil)
	id := m.ws.SplitActive(workspace.OrientationHorizontal, placeholder)

	rows, cols := m.contentHeight(), m.contentWidth()
	term, err := terminal.Spawn("", rows, cols, m.limits, func() {
		select {
		case m.termOutput <- id:
		default:
		}
	})
	if err != nil {
		m.status = fmt.Sprintf("terminal spawn failed: %v", err)
		return
	}
	m.terminals[id] = term
	m.invalidateLayout(id)
}

// openDiffSplit builds a composite diff buffer from the active buffer and
// any other open buffer into a new split, so internal/diffbuffer is
// reachable as a buffer in the running editor.
func (m *model) openDiffSplit() {
	active := m.activeBuffer()
	if active == nil {
		return
	}
	var other *workspace.Buffer
	for _, b := range m.ws.AllBuffers() {
		if b.ID != active.ID {
			other = b
			break
		}
	}
	if other == nil {
		m.status = "need at least two open buffers to diff"
		return
	}

	cb := diffbuffer.NewCompositeBuffer(
		diffbuffer.SourcePane{Buffer: active, Label: active.Name},
		diffbuffer.SourcePane{Buffer: other, Label: other.Name},
		diffbuffer.SideBySide,
	)

	placeholder := m.ws.OpenBuffer("[diff]", "", nil)
	id := m.ws.SplitActive(workspace.OrientationHorizontal, placeholder)
	m.diffs[id] = cb
	m.invalidateLayout(id)
}

// handleTerminalKey routes a keypress straight to the active split's PTY
// instead of through the normal Normal/Insert router, while the split is
// focused on a terminal. ctrl+q returns focus to ordinary buffer editing
// without killing the shell.
func (m *model) handleTerminalKey(term *terminal.Terminal, msg tea.KeyPressMsg, blinkCmd tea.Cmd) (tea.Model, tea.Cmd) {
	switch msg.Keystroke() {
	case "ctrl+q":
		for id := workspace.SplitID(0); m.ws.Split(id) != nil; id++ {
			if s := m.ws.Split(id); s.Orientation == workspace.OrientationLeaf && m.terminals[id] == nil && m.diffs[id] == nil {
				m.ws.Focus(id)
				break
			}
		}
		m.status = "left terminal (still running)"
		return m, blinkCmd
	case "enter":
		term.Write([]byte("\r"))
	case "backspace":
		term.Write([]byte{0x7f})
	case "tab":
		term.Write([]byte("\t"))
	case "up":
		term.Write([]byte("\x1b[A"))
	case "down":
		term.Write([]byte("\x1b[B"))
	case "right":
		term.Write([]byte("\x1b[C"))
	case "left":
		term.Write([]byte("\x1b[D"))
	case "esc":
		term.Write([]byte{0x1b})
	default:
		if msg.Text != "" {
			term.Write([]byte(msg.Text))
		}
	}
	return m, blinkCmd
}

// applyAction runs act through the pure action.Translate step and commits
// every resulting event to the active buffer (spec §4.G/§4.B): the only
// path by which buffer content ever changes.
func (m *model) applyAction(act action.Action) {
	buf := m.activeBuffer()
	if buf == nil {
		return
	}
	view := m.viewFor(m.ws.ActiveSplit())
	events := action.Translate(buf.Content, buf.Cursors, view.lay, act, m.cfg.Editor.TabSize)
	for _, e := range events {
		if err := buf.Commit(e); err != nil {
			log.Warn().Err(err).Msg("commit event")
		}
	}
	if len(events) > 0 {
		m.invalidateActiveLayout()
		if m.lspMgr != nil && buf.Path != "" {
			m.lspMgr.TouchFile(m.ctx, buf.Path)
		}
	}
}

func (m *model) invalidateActiveLayout() {
	m.invalidateLayout(m.ws.ActiveSplit())
}

func (m *model) invalidateLayout(id workspace.SplitID) {
	if v, ok := m.views[id]; ok {
		v.dirtyLay = true
	}
}

func (m *model) invalidateAllLayouts() {
	for _, v := range m.views {
		v.dirtyLay = true
	}
}

// viewFor returns (building or rebuilding as needed) the splitView for id.
func (m *model) viewFor(id workspace.SplitID) *splitView {
	v, ok := m.views[id]
	if !ok {
		v = &splitView{vp: viewport.New(m.contentHeight()), dirtyLay: true}
		m.views[id] = v
	}
	split := m.ws.Split(id)
	if split == nil {
		return v
	}
	buf := m.ws.Buffer(split.BufferID)
	if buf == nil {
		return v
	}
	if v.dirtyLay {
		v.lay = layout.Build(buf.Content, m.contentWidth(), m.cfg.Editor.TabSize)
		v.vp.StabilizeAfterLayoutChange(v.lay)
		v.dirtyLay = false
		if buf.Path != "" {
			v.gutter = gitgutter.FileMarkers(m.ctx, buf.Path)
		}
	}
	if c := buf.Cursors.Primary(); c != nil {
		v.vp.EnsureVisible(v.lay, c.SourceByte)
	}
	return v
}

// fileURI converts an absolute path to the file:// URI form the LSP
// protocol keys diagnostics by.
func fileURI(path string) string {
	return "file://" + path
}

func (m *model) contentWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width - 1 // reserve one column for the gutter marker
}

func (m *model) contentHeight() int {
	if m.height <= 1 {
		return 24
	}
	return m.height - 1 // reserve the status line
}

func (m *model) saveActiveBuffer() {
	buf := m.activeBuffer()
	if buf == nil || buf.Path == "" {
		m.status = "no file to save"
		return
	}
	content, err := buf.Content.SliceBytes(piecetree.Range{Start: 0, End: buf.Content.Len()})
	if err != nil {
		m.status = fmt.Sprintf("save failed: %v", err)
		return
	}
	if err := m.fsys.WriteFile(buf.Path, content); err != nil {
		m.status = fmt.Sprintf("save failed: %v", err)
		return
	}
	buf.Log.MarkSaved()
	_ = m.recStore.Delete(recovery.BufferID(buf.Path))
	m.status = "saved " + buf.Path
}

// snapshotActiveBuffer writes the active buffer's content and cursor set to
// the recovery store if it has unsaved edits since the last snapshot (spec
// §6: "recovery-dirty flag ... cleared on snapshot, set on any edit").
func (m *model) snapshotActiveBuffer() {
	buf := m.activeBuffer()
	if buf == nil || !buf.Log.RecoveryDirty() {
		return
	}
	content, err := buf.Content.SliceBytes(piecetree.Range{Start: 0, End: buf.Content.Len()})
	if err != nil {
		return
	}
	id := recovery.BufferID(buf.Path)
	if buf.Path == "" {
		id = m.recStore.AllocateID()
	}
	var cursors []recovery.CursorSnapshot
	for _, c := range buf.Cursors.All() {
		snap := recovery.CursorSnapshot{ActiveByte: c.SourceByte}
		if c.Selection != nil {
			snap.AnchorByte = c.Selection.Anchor
		} else {
			snap.AnchorByte = c.SourceByte
		}
		cursors = append(cursors, snap)
	}
	if err := m.recStore.Save(id, recovery.Snapshot{Path: buf.Path, Content: string(content), Cursors: cursors}); err != nil {
		log.Warn().Err(err).Msg("recovery snapshot")
		return
	}
	buf.Log.ClearRecoveryDirty()
}

// handleAsync applies one LSP-originated message (spec §5): diagnostics are
// folded into a per-file worst-severity map the status line surfaces;
// request results are out of scope until a plugin registers for them.
func (m *model) handleAsync(msg lspclient.AsyncMessage) {
	switch msg.Kind {
	case lspclient.AsyncDiagnostics:
		worst := 0
		for _, d := range msg.Diags {
			if int(d.Severity) > worst {
				worst = int(d.Severity)
			}
		}
		if worst == 0 {
			delete(m.diagnostics, msg.URI)
		} else {
			m.diagnostics[msg.URI] = worst
		}
	case lspclient.AsyncRequestResult:
		// No plugin is loaded by default; nothing claims this callback id.
	}
}

func (m *model) View() string {
	if m.width == 0 {
		return ""
	}

	var body string
	switch {
	case m.activeTerminal() != nil:
		body = m.renderTerminal(m.activeTerminal())
	case m.activeDiff() != nil:
		body = m.renderDiff(m.activeDiff())
	default:
		body = m.renderBuffer()
	}

	if m.switcher != nil {
		return m.switcher.View(m.width, m.height)
	}
	return body
}

// renderTerminal draws the active split's PTY grid, one styled cell per
// column, with the PTY's own cursor position reversed rather than the
// editor's blinking text cursor (spec §4.K: the terminal owns its own
// cursor rendering independent of the buffer cursor model).
func (m *model) renderTerminal(term *terminal.Terminal) string {
	grid, curCol, curRow := term.Snapshot()
	var b strings.Builder
	for r, row := range grid {
		for c, cell := range row {
			ch := cell.Char
			if ch == 0 {
				ch = ' '
			}
			style := lipgloss.NewStyle()
			if !cell.Fg.Default {
				style = style.Foreground(lipgloss.Color(hexColor(cell.Fg)))
			}
			if !cell.Bg.Default {
				style = style.Background(lipgloss.Color(hexColor(cell.Bg)))
			}
			if cell.Bold {
				style = style.Bold(true)
			}
			if cell.Italic {
				style = style.Italic(true)
			}
			if cell.Underline {
				style = style.Underline(true)
			}
			if r == curRow && c == curCol {
				style = style.Reverse(true)
			}
			b.WriteString(style.Render(string(ch)))
		}
		b.WriteByte('\n')
	}
	b.WriteString("-- terminal (ctrl+q to leave, still running) --")
	return b.String()
}

func hexColor(c terminal.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// renderDiff draws the active split's composite diff buffer as a side-by-
// side view: one row per aligned line, a hunk-kind marker in the gutter.
func (m *model) renderDiff(cb *diffbuffer.CompositeBuffer) string {
	half := m.contentWidth() / 2
	if half < 1 {
		half = 1
	}

	var b strings.Builder
	for i := 0; i < cb.RowCount(); i++ {
		row := cb.Alignment.Row(i)
		marker := " "
		switch row.Kind {
		case diffbuffer.RowAddition:
			marker = "+"
		case diffbuffer.RowDeletion:
			marker = "-"
		case diffbuffer.RowModification:
			marker = "~"
		}
		b.WriteString(marker)
		b.WriteString(padRight(lineText(cb.Old.Buffer, row.OldLine), half))
		b.WriteString(" | ")
		b.WriteString(lineText(cb.New.Buffer, row.NewLine))
		b.WriteByte('\n')
	}
	b.WriteString(fmt.Sprintf("-- diff: %s vs %s --", cb.Old.Label, cb.New.Label))
	return b.String()
}

// lineText returns buf's nth line's text, or "" for a filler row (n < 0) or
// a line past the buffer's end.
func lineText(buf *workspace.Buffer, n int) string {
	if n < 0 {
		return ""
	}
	line, err := buf.Content.GetLine(n)
	if err != nil {
		return ""
	}
	return line.Content
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func (m *model) renderBuffer() string {
	buf := m.activeBuffer()
	if buf == nil {
		return "(no buffer)\n"
	}
	view := m.viewFor(m.ws.ActiveSplit())

	theme := m.cfg.Theme
	if theme == "" {
		theme = "monokai"
	}
	bg := highlight.ThemeBg(theme)
	lang := highlight.DetectLanguage(buf.Path)

	cursorStyle := lipgloss.NewStyle()
	if bg != "" {
		cursorStyle = cursorStyle.Background(lipgloss.Color(bg))
	}
	hasCursor := false
	var cursorPos cursorpkg.ViewPosition
	if c := buf.Cursors.Primary(); c != nil {
		hasCursor = true
		cursorPos = layout.SourceByteToViewPosition(view.lay, c.SourceByte)
	}

	var b strings.Builder
	top, bottom := view.vp.TopRow(), view.vp.BottomRow()
	for row := top; row <= bottom && row < view.lay.RowCount(); row++ {
		line := view.lay.Lines[row]
		marker := " "
		if view.gutter != nil {
			switch view.gutter[line.SourceLine] {
			case gitgutter.MarkAdd:
				marker = "+"
			case gitgutter.MarkChange:
				marker = "~"
			case gitgutter.MarkDelete:
				marker = "-"
			}
		}
		text := line.Text
		var highlighted string
		if lang != "" {
			highlighted = highlight.Highlight(text, lang, theme, bg)
			text = highlighted
		}
		if hasCursor && row == cursorPos.ViewLine {
			text = m.spliceCursor(line.Text, highlighted, cursorPos.Column, cursorStyle)
		}
		b.WriteString(marker)
		b.WriteString(text)
		b.WriteByte('\n')
	}
	for row := view.lay.RowCount(); row <= bottom; row++ {
		b.WriteString("~\n")
	}

	b.WriteString(m.statusLine(buf))
	return b.String()
}

// spliceCursor drops the blinking cursor glyph into plainText at the rune
// offset col, rendering the rest of the line from highlighted (if non-empty)
// so the splice doesn't lose syntax colors. Mirrors the teacher's
// editor.Model.renderSegment cut-and-splice around m.cursor.View().
func (m *model) spliceCursor(plainText, highlighted string, col int, style lipgloss.Style) string {
	runes := []rune(plainText)
	if col < 0 {
		col = 0
	}
	if col > len(runes) {
		col = len(runes)
	}
	cursorChar := " "
	if col < len(runes) {
		cursorChar = string(runes[col])
	}

	var before, after string
	if highlighted != "" {
		before = ansi.Cut(highlighted, 0, col)
		after = ansi.Cut(highlighted, col+1, len(runes))
	} else {
		before = string(runes[:col])
		if col < len(runes) {
			after = string(runes[col+1:])
		}
	}

	m.blink.SetChar(cursorChar)
	m.blink.TextStyle = style
	return before + m.blink.View() + after
}

func (m *model) statusLine(buf *workspace.Buffer) string {
	name := buf.Name
	if name == "" {
		name = "[scratch]"
	}
	modified := ""
	if buf.Log.Modified() {
		modified = " [+]"
	}
	pos := ""
	if c := buf.Cursors.Primary(); c != nil {
		line, _ := buf.Content.ByteToLine(c.SourceByte)
		pos = fmt.Sprintf(" %d:%d", line+1, c.SourceByte)
	}
	msg := m.status
	if msg != "" {
		msg = " | " + msg
	}
	if buf.Path != "" {
		if sev, ok := m.diagnostics[fileURI(buf.Path)]; ok && sev == lspclient.SeverityError {
			msg += " | errors"
		}
	}
	return fmt.Sprintf("%s%s%s%s", name, modified, pos, msg)
}
