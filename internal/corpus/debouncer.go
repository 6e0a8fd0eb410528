package corpus

import (
	"log/slog"
	"sync"
	"time"
)

// Op is a file change kind.
type Op int

const (
	// OpCreate is a new corpus file.
	OpCreate Op = iota
	// OpModify is a rewritten corpus file.
	OpModify
	// OpDelete is a removed or renamed-away corpus file.
	OpDelete
)

// String returns the operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Event is one change to a corpus file.
type Event struct {
	Path string
	Op   Op
}

// Debouncer coalesces bursts of file events so an editor save that writes a
// file several times triggers one rebuild. Events for one path merge as:
//   - CREATE + MODIFY = CREATE
//   - CREATE + DELETE = nothing
//   - MODIFY + DELETE = DELETE
//   - DELETE + CREATE = MODIFY
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingEvent
	order   []string
	output  chan []Event
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event   Event
	firstOp Op
}

// NewDebouncer creates a debouncer that flushes window after the last event.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []Event, 10),
	}
}

// Add queues an event.
func (d *Debouncer) Add(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[event.Path]; ok {
		merged, keep := coalesce(existing, event)
		if keep {
			existing.event = merged
		} else {
			delete(d.pending, event.Path)
		}
	} else {
		d.pending[event.Path] = &pendingEvent{event: event, firstOp: event.Op}
		d.order = append(d.order, event.Path)
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func coalesce(existing *pendingEvent, next Event) (Event, bool) {
	switch existing.firstOp {
	case OpCreate:
		switch next.Op {
		case OpModify:
			return existing.event, true
		case OpDelete:
			return Event{}, false
		}
	case OpDelete:
		if next.Op == OpCreate {
			next.Op = OpModify
			return next, true
		}
	}
	return next, true
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		d.order = d.order[:0]
		return
	}

	// First-seen order, so a batch replays the way it happened.
	events := make([]Event, 0, len(d.pending))
	for _, path := range d.order {
		if pe, ok := d.pending[path]; ok {
			events = append(events, pe.event)
			delete(d.pending, path)
		}
	}
	d.order = d.order[:0]

	select {
	case d.output <- events:
	default:
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(events)))
	}
}

// Output delivers coalesced batches.
func (d *Debouncer) Output() <-chan []Event {
	return d.output
}

// Stop discards pending events and closes Output. Safe to call twice.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
