package playback

import (
	"sync"
	"time"

	"musichelper/core/chords"
	"musichelper/logger"
	"musichelper/model"
)

// DefaultPollInterval is the chord sync polling cadence.
const DefaultPollInterval = 100 * time.Millisecond

// Player is a playback source the synchronizer can poll.
type Player interface {
	State() PlayerState
}

// Seeker is the optional seek capability of a player.
type Seeker interface {
	Seek(seconds float64) error
}

// ChordChange is emitted whenever the active chord index moves.
type ChordChange struct {
	Index    int               `json:"index"`
	Previous *model.ChordEvent `json:"previous"`
	Current  *model.ChordEvent `json:"current"`
	Next     *model.ChordEvent `json:"next"`
}

// Synchronizer polls a playback source and maps its position onto a chord
// timeline, notifying a callback when the active chord changes. All polls run
// on a single goroutine, so they never overlap, and Stop waits for that
// goroutine so no position read or callback happens after it returns.
type Synchronizer struct {
	interval time.Duration
	onChange func(ChordChange)

	mu           sync.Mutex
	player       Player
	timeline     *model.ChordTimeline
	currentIndex int
	hasIndex     bool

	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSynchronizer creates a synchronizer. A non-positive interval falls back
// to DefaultPollInterval.
func NewSynchronizer(interval time.Duration, onChange func(ChordChange)) *Synchronizer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Synchronizer{
		interval: interval,
		onChange: onChange,
	}
}

// Attach binds the synchronizer to a playback source. A nil player is logged
// and ignored; the loop simply stays idle until a player shows up.
func (s *Synchronizer) Attach(player Player) {
	if player == nil {
		logger.Warn("Playback synchronizer attach called without a player, staying idle")
		return
	}
	s.mu.Lock()
	s.player = player
	s.mu.Unlock()
}

// SetTimeline loads (or replaces) the chord timeline. The active index is
// reset so the next poll re-evaluates from scratch.
func (s *Synchronizer) SetTimeline(timeline *model.ChordTimeline) {
	s.mu.Lock()
	s.timeline = timeline
	s.currentIndex = 0
	s.hasIndex = false
	s.mu.Unlock()
}

// CurrentIndex returns the active chord index. The second value is false
// before the first successful poll and for empty timelines.
func (s *Synchronizer) CurrentIndex() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex, s.hasIndex
}

// Start begins the polling loop. Calling Start on a running synchronizer is
// a no-op.
func (s *Synchronizer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
}

func (s *Synchronizer) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

// Stop halts the polling loop and waits for the in-flight poll, if any, to
// finish. Safe to call when not started and safe to call repeatedly.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

// poll reads the player position once and emits a change notification when
// the active chord index moved. Missing player, missing timeline and unknown
// position are all quiet no-ops.
func (s *Synchronizer) poll() {
	s.mu.Lock()
	player := s.player
	timeline := s.timeline
	prevIndex, hadIndex := s.currentIndex, s.hasIndex
	s.mu.Unlock()

	if player == nil || timeline == nil {
		return
	}

	position, ok := ResolvePosition(player.State())
	if !ok {
		return
	}

	var index int
	var found bool
	if hadIndex {
		index, found = chords.ActiveIndexFrom(timeline, prevIndex, position)
	} else {
		index, found = chords.ActiveIndex(timeline, position)
	}
	if !found {
		return
	}
	if hadIndex && index == prevIndex {
		return
	}

	s.mu.Lock()
	// The timeline may have been swapped while this poll was computing;
	// drop the stale result instead of reporting an index into the old one.
	if s.timeline != timeline {
		s.mu.Unlock()
		return
	}
	s.currentIndex = index
	s.hasIndex = true
	s.mu.Unlock()

	if s.onChange != nil {
		previous, current, next := chords.Neighbors(timeline, index)
		s.onChange(ChordChange{
			Index:    index,
			Previous: previous,
			Current:  current,
			Next:     next,
		})
	}
}

// Seek forwards a seek request to the attached player when it supports one.
// Absent player or capability is a logged, non-fatal no-op.
func (s *Synchronizer) Seek(seconds float64) {
	s.mu.Lock()
	player := s.player
	s.mu.Unlock()

	if player == nil {
		logger.Warn("Seek requested without an attached player", logger.Float64("seconds", seconds))
		return
	}
	seeker, ok := player.(Seeker)
	if !ok {
		logger.Warn("Attached player has no seek capability, ignoring", logger.Float64("seconds", seconds))
		return
	}
	if err := seeker.Seek(seconds); err != nil {
		logger.Warn("Seek request failed", logger.Float64("seconds", seconds), logger.ErrorField(err))
	}
}
