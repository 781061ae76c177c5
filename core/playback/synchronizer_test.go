package playback

import (
	"sync"
	"testing"
	"time"

	"musichelper/model"
)

// fakePlayer is a position-settable playback source for synchronizer tests.
type fakePlayer struct {
	mu       sync.Mutex
	position float64
	seeks    []float64
}

func (p *fakePlayer) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := p.position
	return PlayerState{Position: &pos}
}

func (p *fakePlayer) setPosition(pos float64) {
	p.mu.Lock()
	p.position = pos
	p.mu.Unlock()
}

func (p *fakePlayer) Seek(seconds float64) error {
	p.mu.Lock()
	p.seeks = append(p.seeks, seconds)
	p.mu.Unlock()
	return nil
}

func testChordTimeline() *model.ChordTimeline {
	return &model.ChordTimeline{
		Duration: 30,
		Events: []model.ChordEvent{
			{Time: 0, Chord: "C"},
			{Time: 10, Chord: "G"},
			{Time: 20, Chord: "Am"},
		},
	}
}

func waitForChange(t *testing.T, changes <-chan ChordChange) ChordChange {
	t.Helper()
	select {
	case change := <-changes:
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a chord change")
		return ChordChange{}
	}
}

func TestSynchronizerEmitsChanges(t *testing.T) {
	changes := make(chan ChordChange, 16)
	s := NewSynchronizer(2*time.Millisecond, func(c ChordChange) { changes <- c })
	defer s.Stop()

	player := &fakePlayer{}
	s.Attach(player)
	s.SetTimeline(testChordTimeline())
	s.Start()

	// First poll establishes the initial chord.
	first := waitForChange(t, changes)
	if first.Index != 0 || first.Current == nil || first.Current.Chord != "C" {
		t.Fatalf("first change = %+v, want index 0 chord C", first)
	}
	if first.Previous != nil {
		t.Error("first chord should have no previous")
	}

	// Crossing a boundary emits exactly one change.
	player.setPosition(12)
	second := waitForChange(t, changes)
	if second.Index != 1 || second.Current.Chord != "G" {
		t.Fatalf("second change = %+v, want index 1 chord G", second)
	}
	if second.Previous == nil || second.Previous.Chord != "C" {
		t.Errorf("previous = %+v, want C", second.Previous)
	}
	if second.Next == nil || second.Next.Chord != "Am" {
		t.Errorf("next = %+v, want Am", second.Next)
	}

	// Holding position inside one span stays silent.
	select {
	case extra := <-changes:
		t.Fatalf("unexpected extra change %+v while position unchanged", extra)
	case <-time.After(50 * time.Millisecond):
	}

	if idx, ok := s.CurrentIndex(); !ok || idx != 1 {
		t.Errorf("CurrentIndex = (%d, %v), want (1, true)", idx, ok)
	}
}

func TestSynchronizerBackwardSeek(t *testing.T) {
	changes := make(chan ChordChange, 16)
	s := NewSynchronizer(2*time.Millisecond, func(c ChordChange) { changes <- c })
	defer s.Stop()

	player := &fakePlayer{}
	player.setPosition(25)
	s.Attach(player)
	s.SetTimeline(testChordTimeline())
	s.Start()

	if change := waitForChange(t, changes); change.Index != 2 {
		t.Fatalf("initial index = %d, want 2", change.Index)
	}

	player.setPosition(5)
	if change := waitForChange(t, changes); change.Index != 0 {
		t.Fatalf("after backward seek index = %d, want 0", change.Index)
	}
}

func TestSynchronizerStopHaltsCallbacks(t *testing.T) {
	var mu sync.Mutex
	var count int
	s := NewSynchronizer(2*time.Millisecond, func(ChordChange) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	player := &fakePlayer{}
	s.Attach(player)
	s.SetTimeline(testChordTimeline())
	s.Start()

	// Wait until at least one callback fired.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		fired := count > 0
		mu.Unlock()
		if fired {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no callback before deadline")
		}
		time.Sleep(time.Millisecond)
	}

	s.Stop()
	mu.Lock()
	after := count
	mu.Unlock()

	// Move into another chord span; a live loop would now emit.
	player.setPosition(25)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	final := count
	mu.Unlock()
	if final != after {
		t.Errorf("callbacks after Stop: count went %d -> %d", after, final)
	}

	// Stop again must not panic or block.
	s.Stop()
}

func TestSynchronizerWithoutPlayerStaysIdle(t *testing.T) {
	changes := make(chan ChordChange, 1)
	s := NewSynchronizer(2*time.Millisecond, func(c ChordChange) { changes <- c })
	defer s.Stop()

	s.Attach(nil)
	s.SetTimeline(testChordTimeline())
	s.Start()

	select {
	case c := <-changes:
		t.Fatalf("unexpected change %+v with no player attached", c)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestSynchronizerTimelineSwapResets(t *testing.T) {
	changes := make(chan ChordChange, 16)
	s := NewSynchronizer(2*time.Millisecond, func(c ChordChange) { changes <- c })
	defer s.Stop()

	player := &fakePlayer{}
	player.setPosition(25)
	s.Attach(player)
	s.SetTimeline(testChordTimeline())
	s.Start()

	if change := waitForChange(t, changes); change.Index != 2 {
		t.Fatalf("initial index = %d, want 2", change.Index)
	}

	// A replacement timeline re-evaluates from scratch, even at the same
	// playback position.
	s.SetTimeline(&model.ChordTimeline{
		Duration: 60,
		Events:   []model.ChordEvent{{Time: 0, Chord: "F"}},
	})
	change := waitForChange(t, changes)
	if change.Index != 0 || change.Current.Chord != "F" {
		t.Fatalf("after swap change = %+v, want index 0 chord F", change)
	}
}

func TestSynchronizerSeek(t *testing.T) {
	s := NewSynchronizer(time.Hour, nil)
	player := &fakePlayer{}
	s.Attach(player)

	s.Seek(42.5)

	player.mu.Lock()
	defer player.mu.Unlock()
	if len(player.seeks) != 1 || player.seeks[0] != 42.5 {
		t.Errorf("seeks = %v, want [42.5]", player.seeks)
	}
}

// seeklessPlayer has no seek capability.
type seeklessPlayer struct{}

func (seeklessPlayer) State() PlayerState { return PlayerState{} }

func TestSynchronizerSeekWithoutCapability(t *testing.T) {
	s := NewSynchronizer(time.Hour, nil)
	s.Attach(seeklessPlayer{})

	// Must not panic.
	s.Seek(10)
}
