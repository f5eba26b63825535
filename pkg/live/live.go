// Package live schedules editor updates at two rates: cheap previews,
// throttled while a control is being dragged, and full rebuilds, debounced
// and forced on drag release.
package live

import (
	"slices"
	"sync"
	"time"

	"github.com/chazu/lagoon/pkg/logging"
	"github.com/samber/lo"
)

// Target receives the scheduled work. Calls are serialized: the scheduler
// never invokes two Target methods at once.
type Target interface {
	// Preview applies a cheap in-place update for the dirty parameters and
	// returns the ones it handled.
	Preview(dirty []string) (consumed []string)
	// ResetPreview undoes temporary preview state before a rebuild.
	ResetPreview()
	// Rebuild regenerates everything from the current parameters.
	Rebuild()
}

// State is the scheduler's observable state.
type State int

const (
	Idle State = iota
	Dragging
	PreviewTicking
	RebuildPending
	Rebuilding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case PreviewTicking:
		return "preview-ticking"
	case RebuildPending:
		return "rebuild-pending"
	case Rebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// Options sets the two rates.
type Options struct {
	// PreviewInterval is the minimum time between preview ticks.
	PreviewInterval time.Duration
	// RebuildDelay is the quiet period before a debounced rebuild.
	RebuildDelay time.Duration
}

// DefaultOptions previews at 20 Hz and rebuilds after 200 ms of quiet.
func DefaultOptions() Options {
	return Options{
		PreviewInterval: 50 * time.Millisecond,
		RebuildDelay:    200 * time.Millisecond,
	}
}

// Scheduler tracks dirty parameters and drives a Target.
type Scheduler struct {
	mu    sync.Mutex
	run   sync.Mutex // serializes Target calls
	tgt   Target
	clock Clock
	opts  Options

	dragging    bool
	touched     bool // something changed since the last rebuild
	dirty       map[string]struct{}
	lastPreview time.Time
	previewT    Timer
	rebuildT    Timer
	previewing  bool
	rebuilding  bool
	again       bool
	closed      bool

	// Timer sequence numbers; a callback whose number is stale lost a race
	// with Stop and does nothing.
	previewSeq  uint64
	debounceSeq uint64
}

// New returns a scheduler driving tgt. A nil clock uses RealClock; zero
// option fields take their defaults.
func New(tgt Target, clock Clock, opts Options) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	d := DefaultOptions()
	if opts.PreviewInterval <= 0 {
		opts.PreviewInterval = d.PreviewInterval
	}
	if opts.RebuildDelay <= 0 {
		opts.RebuildDelay = d.RebuildDelay
	}
	return &Scheduler{
		tgt:   tgt,
		clock: clock,
		opts:  opts,
		dirty: make(map[string]struct{}),
	}
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.rebuilding:
		return Rebuilding
	case s.previewing:
		return PreviewTicking
	case s.dragging:
		return Dragging
	case s.rebuildT != nil:
		return RebuildPending
	default:
		return Idle
	}
}

// Dirty returns the dirty parameter names, sorted.
func (s *Scheduler) Dirty() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

func (s *Scheduler) dirtyLocked() []string {
	names := lo.Keys(s.dirty)
	slices.Sort(names)
	return names
}

// MarkDirty records a parameter change. While dragging it also schedules a
// throttled preview tick. Either way the rebuild debounce restarts.
func (s *Scheduler) MarkDirty(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.dirty[name] = struct{}{}
	s.touched = true
	if s.dragging {
		s.schedulePreviewLocked()
	}
	s.restartDebounceLocked()
}

// BeginDrag enters the dragging state.
func (s *Scheduler) BeginDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.dragging = true
	if len(s.dirty) > 0 {
		s.schedulePreviewLocked()
	}
}

// EndDrag leaves the dragging state and, if anything changed during or
// before the drag, rebuilds immediately without waiting for the debounce.
// Previewed changes count: a preview is never a commit.
func (s *Scheduler) EndDrag() {
	s.mu.Lock()
	if !s.dragging {
		s.mu.Unlock()
		return
	}
	s.dragging = false
	s.stopTimersLocked()
	pending := s.touched
	s.mu.Unlock()
	if pending {
		s.rebuild()
	}
}

// RebuildNow cancels pending timers and rebuilds synchronously.
func (s *Scheduler) RebuildNow() {
	s.mu.Lock()
	s.stopTimersLocked()
	s.mu.Unlock()
	s.rebuild()
}

// Close stops all timers. Later calls are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimersLocked()
}

func (s *Scheduler) schedulePreviewLocked() {
	if s.previewT != nil {
		return
	}
	wait := s.opts.PreviewInterval - s.clock.Now().Sub(s.lastPreview)
	if wait < 0 {
		wait = 0
	}
	s.previewSeq++
	seq := s.previewSeq
	s.previewT = s.clock.AfterFunc(wait, func() { s.onPreview(seq) })
}

func (s *Scheduler) restartDebounceLocked() {
	if s.rebuildT != nil {
		s.rebuildT.Stop()
	}
	s.debounceSeq++
	seq := s.debounceSeq
	s.rebuildT = s.clock.AfterFunc(s.opts.RebuildDelay, func() { s.onDebounce(seq) })
}

func (s *Scheduler) stopTimersLocked() {
	s.previewSeq++
	s.debounceSeq++
	if s.previewT != nil {
		s.previewT.Stop()
		s.previewT = nil
	}
	if s.rebuildT != nil {
		s.rebuildT.Stop()
		s.rebuildT = nil
	}
}

func (s *Scheduler) onPreview(seq uint64) {
	s.mu.Lock()
	if seq != s.previewSeq {
		s.mu.Unlock()
		return
	}
	s.previewT = nil
	if s.closed || !s.dragging || s.rebuilding || len(s.dirty) == 0 {
		s.mu.Unlock()
		return
	}
	keys := s.dirtyLocked()
	s.previewing = true
	s.lastPreview = s.clock.Now()
	s.mu.Unlock()

	s.run.Lock()
	consumed := s.tgt.Preview(keys)
	s.run.Unlock()

	s.mu.Lock()
	s.previewing = false
	for _, k := range consumed {
		delete(s.dirty, k)
	}
	s.mu.Unlock()
}

func (s *Scheduler) onDebounce(seq uint64) {
	s.mu.Lock()
	if seq != s.debounceSeq {
		s.mu.Unlock()
		return
	}
	s.rebuildT = nil
	if s.closed || s.dragging {
		// A drag in progress rebuilds on release instead.
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.rebuild()
}

// rebuild runs Target.Rebuild to completion. A request arriving while one
// is running is folded into a single follow-up run.
func (s *Scheduler) rebuild() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.rebuilding {
		s.again = true
		s.mu.Unlock()
		return
	}
	s.rebuilding = true
	s.touched = false
	clear(s.dirty)
	s.mu.Unlock()

	for runs := 1; ; runs++ {
		s.run.Lock()
		s.tgt.ResetPreview()
		s.tgt.Rebuild()
		s.run.Unlock()

		s.mu.Lock()
		if !s.again || s.closed {
			s.rebuilding = false
			s.again = false
			s.mu.Unlock()
			if runs > 1 {
				logging.Logger().Debug("coalesced rebuilds", "runs", runs)
			}
			return
		}
		s.again = false
		s.touched = false
		clear(s.dirty)
		s.mu.Unlock()
	}
}
