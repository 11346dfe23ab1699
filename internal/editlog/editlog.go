// Package editlog implements the event-sourced edit/undo model of spec
// §4.B: every mutation to a buffer or its cursors is recorded as an
// EditEvent, and undo/redo simply replays the log backwards/forwards rather
// than snapshotting buffer state. Style follows the teacher's delta.Tracker
// (mutex-guarded, zerolog for warnings on recoverable inconsistencies).
package editlog

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/realagiorganization/fresh/internal/fresherr"
	"github.com/realagiorganization/fresh/internal/piecetree"
)

// Kind tags which variant of the EditEvent union a value holds.
type Kind int

const (
	KindInsert Kind = iota
	KindDelete
	KindMoveCursor
	KindAddCursor
	KindRemoveCursor
	KindScroll
	KindBatch
)

// recentEventCap bounds the debug ring buffer (ported from the original
// editor's event_debug_actions feature) so it never grows unbounded.
const recentEventCap = 200

// Event is the tagged union. Only the fields relevant to Kind are set.
type Event struct {
	Kind Kind

	CursorID int

	// Insert/Delete
	Position int
	Text     []byte          // Insert
	Range    piecetree.Range // Delete
	Removed  []byte          // Delete: bytes that were removed, for undo

	// MoveCursor/AddCursor/RemoveCursor
	FromByte int
	ToByte   int

	// Scroll
	ScrollDeltaLines int

	// Batch
	Batch []Event
}

// Applier performs the buffer/cursor-side effect of a single Event. EventLog
// is agnostic to what owns the content; it only sequences events and calls
// back into Applier to apply or invert them.
type Applier interface {
	Apply(e Event) error
	Invert(e Event) (Event, error)
}

// EventLog records events and tracks the undo/redo position.
type EventLog struct {
	mu sync.Mutex

	applier Applier

	events     []Event // append-only audit trail, index 0..len-1
	undoCursor int     // number of events currently "applied" from events[:undoCursor]

	savedIndex    int // undoCursor value at last save; 0 (the empty log) until the first save
	recoveryDirty bool

	recent []Event // bounded ring buffer for debugging, oldest first

	batching   bool
	batchStart int
}

// New creates an EventLog that applies/inverts events through applier.
func New(applier Applier) *EventLog {
	return &EventLog{applier: applier, savedIndex: 0}
}

// Record appends e to the log, applying batch-coalescing where eligible, and
// marks the buffer modified and, for content-touching events, recovery-dirty.
// Any events beyond the
// current undo cursor (i.e. previously-undone redo history) are discarded,
// per the standard linear-undo-history rule.
func (l *EventLog) Record(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = l.events[:l.undoCursor]

	if l.tryCoalesce(e) {
		l.undoCursor = len(l.events)
		if touchesContent(e) {
			l.recoveryDirty = true
		}
		l.pushRecent(e)
		return
	}

	l.events = append(l.events, e)
	l.undoCursor = len(l.events)
	if touchesContent(e) {
		l.recoveryDirty = true
	}
	l.pushRecent(e)
}

// touchesContent reports whether e changes buffer text; only such events
// raise the recovery-dirty flag.
func touchesContent(e Event) bool {
	return e.Kind == KindInsert || e.Kind == KindDelete || e.Kind == KindBatch
}

// tryCoalesce merges e into the last recorded event when both are inserts
// by the same cursor and e starts where the last insert's text ends (any
// text length), or both are deletes by the same cursor and e ends where the
// last delete starts (backspacing), so a burst of typing collapses to one
// undo step. It never merges into the event the log was saved at, so an
// edit after a save still marks the buffer modified. Reports whether it
// merged.
func (l *EventLog) tryCoalesce(e Event) bool {
	if len(l.events) == 0 || l.undoCursor != len(l.events) {
		return false
	}
	if l.savedIndex == len(l.events) {
		return false
	}
	last := &l.events[len(l.events)-1]
	switch e.Kind {
	case KindInsert:
		if last.Kind != KindInsert || last.CursorID != e.CursorID {
			return false
		}
		if last.Position+len(last.Text) != e.Position {
			return false
		}
		last.Text = append(last.Text, e.Text...)
		return true
	case KindDelete:
		if last.Kind != KindDelete || last.CursorID != e.CursorID {
			return false
		}
		// Coalesce consecutive backward (backspace) deletes only: each new
		// delete's end must abut the previous delete's start.
		if e.Range.End != last.Range.Start {
			return false
		}
		last.Range.Start = e.Range.Start
		last.Removed = append(append([]byte{}, e.Removed...), last.Removed...)
		return true
	default:
		return false
	}
}

func (l *EventLog) pushRecent(e Event) {
	l.recent = append(l.recent, e)
	if len(l.recent) > recentEventCap {
		l.recent = l.recent[len(l.recent)-recentEventCap:]
	}
}

// BeginBatch groups subsequent Record calls into a single KindBatch event
// until EndBatch, so e.g. a multi-cursor edit or a plugin-driven
// find-and-replace undoes as one step.
func (l *EventLog) BeginBatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.batching {
		return
	}
	l.batching = true
	l.batchStart = len(l.events[:l.undoCursor])
}

// EndBatch closes a batch started by BeginBatch, collapsing every event
// recorded since into one KindBatch entry. A batch of zero or one events
// collapses to nothing extra.
func (l *EventLog) EndBatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.batching {
		return
	}
	l.batching = false
	l.events = l.events[:l.undoCursor]
	tail := l.events[l.batchStart:]
	if len(tail) <= 1 {
		return
	}
	batched := append([]Event{}, tail...)
	l.events = append(l.events[:l.batchStart], Event{Kind: KindBatch, Batch: batched})
	l.undoCursor = len(l.events)
}

// Modified reports whether the log's undo position differs from the
// position it was at when MarkSaved was last called (or from the start, if
// never saved).
func (l *EventLog) Modified() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.undoCursor != l.savedIndex
}

// MarkSaved records the current undo position as the "saved" baseline.
func (l *EventLog) MarkSaved() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.savedIndex = l.undoCursor
}

// RecoveryDirty reports whether content-touching events have been recorded,
// undone or redone since the last ClearRecoveryDirty call.
func (l *EventLog) RecoveryDirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recoveryDirty
}

// ClearRecoveryDirty resets the recovery-dirty flag after a snapshot has
// been persisted.
func (l *EventLog) ClearRecoveryDirty() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recoveryDirty = false
}

// CanUndo reports whether Undo would have any effect.
func (l *EventLog) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.undoCursor > 0
}

// CanRedo reports whether Redo would have any effect.
func (l *EventLog) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.undoCursor < len(l.events)
}

// Undo inverts and applies the most recently applied event, moving the undo
// cursor back by one. Returns fresherr.KindInconsistentUndo if the log is
// already at the beginning.
func (l *EventLog) Undo() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.undoCursor == 0 {
		return fresherr.New(fresherr.KindInconsistentUndo, "nothing to undo")
	}
	e := l.events[l.undoCursor-1]
	inv, err := l.invert(e)
	if err != nil {
		return err
	}
	if err := l.apply(inv); err != nil {
		return err
	}
	l.undoCursor--
	if touchesContent(e) {
		l.recoveryDirty = true
	}
	return nil
}

// Redo re-applies the event immediately after the current undo cursor.
func (l *EventLog) Redo() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.undoCursor >= len(l.events) {
		return fresherr.New(fresherr.KindInconsistentUndo, "nothing to redo")
	}
	e := l.events[l.undoCursor]
	if err := l.apply(e); err != nil {
		return err
	}
	l.undoCursor++
	if touchesContent(e) {
		l.recoveryDirty = true
	}
	return nil
}

func (l *EventLog) apply(e Event) error {
	if e.Kind == KindBatch {
		for _, sub := range e.Batch {
			if err := l.applier.Apply(sub); err != nil {
				return err
			}
		}
		return nil
	}
	return l.applier.Apply(e)
}

func (l *EventLog) invert(e Event) (Event, error) {
	if e.Kind == KindBatch {
		inverted := make([]Event, len(e.Batch))
		for i := len(e.Batch) - 1; i >= 0; i-- {
			inv, err := l.applier.Invert(e.Batch[i])
			if err != nil {
				return Event{}, err
			}
			inverted[len(e.Batch)-1-i] = inv
		}
		return Event{Kind: KindBatch, Batch: inverted}, nil
	}
	return l.applier.Invert(e)
}

// RecentEvents returns a snapshot of the bounded debug ring buffer, oldest
// first, regardless of undo/redo position. Intended for the in-editor event
// log view, not for persistence.
func (l *EventLog) RecentEvents() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.recent))
	copy(out, l.recent)
	return out
}

// WarnInconsistent logs a recoverable undo/redo inconsistency without
// aborting, matching the teacher's log.Warn().Err(err) pattern for
// best-effort recovery paths.
func WarnInconsistent(context string, err error) {
	log.Warn().Err(err).Str("context", context).Msg("editlog: inconsistent undo state")
}
