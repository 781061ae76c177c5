package chords

import (
	"testing"

	"musichelper/model"
)

func sampleTimeline() *model.ChordTimeline {
	return &model.ChordTimeline{
		Duration: 30,
		Events: []model.ChordEvent{
			{Time: 0.5, Chord: "C", Confidence: 0.9},
			{Time: 10, Chord: "G", Confidence: 0.8},
			{Time: 20, Chord: "Am", Confidence: 0.7},
		},
	}
}

func TestActiveIndex(t *testing.T) {
	timeline := sampleTimeline()

	tests := []struct {
		name      string
		at        float64
		wantIndex int
		wantOK    bool
	}{
		{"before first event resolves to earliest chord", 0.0, 0, true},
		{"exactly at first event", 0.5, 0, true},
		{"inside first chord span", 9.99, 0, true},
		{"exactly at boundary", 10, 1, true},
		{"inside middle chord span", 15, 1, true},
		{"last chord holds to the end", 25, 2, true},
		{"past the timeline duration", 1000, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ActiveIndex(timeline, tt.at)
			if got != tt.wantIndex || ok != tt.wantOK {
				t.Errorf("ActiveIndex(%v) = (%d, %v), want (%d, %v)", tt.at, got, ok, tt.wantIndex, tt.wantOK)
			}
		})
	}
}

func TestActiveIndexEmptyTimeline(t *testing.T) {
	if _, ok := ActiveIndex(&model.ChordTimeline{}, 5); ok {
		t.Error("empty timeline should report no active index")
	}
	if _, ok := ActiveIndex(nil, 5); ok {
		t.Error("nil timeline should report no active index")
	}
}

func TestActiveIndexFrom(t *testing.T) {
	timeline := sampleTimeline()

	// Forward advance from a hint.
	got, ok := ActiveIndexFrom(timeline, 0, 15)
	if !ok || got != 1 {
		t.Errorf("ActiveIndexFrom(hint=0, at=15) = (%d, %v), want (1, true)", got, ok)
	}

	// Position still inside the hinted span.
	got, ok = ActiveIndexFrom(timeline, 1, 12)
	if !ok || got != 1 {
		t.Errorf("ActiveIndexFrom(hint=1, at=12) = (%d, %v), want (1, true)", got, ok)
	}

	// Backward seek behind the hint falls back to a full scan.
	got, ok = ActiveIndexFrom(timeline, 2, 3)
	if !ok || got != 0 {
		t.Errorf("ActiveIndexFrom(hint=2, at=3) = (%d, %v), want (0, true)", got, ok)
	}

	// Out-of-range hints are ignored.
	got, ok = ActiveIndexFrom(timeline, 99, 25)
	if !ok || got != 2 {
		t.Errorf("ActiveIndexFrom(hint=99, at=25) = (%d, %v), want (2, true)", got, ok)
	}
}

func TestActiveIndexFromMatchesFullScan(t *testing.T) {
	timeline := sampleTimeline()

	// Walking the timeline monotonically must produce the same answers as a
	// fresh scan at every step.
	hint := 0
	for at := 0.0; at <= 30; at += 0.1 {
		want, _ := ActiveIndex(timeline, at)
		got, ok := ActiveIndexFrom(timeline, hint, at)
		if !ok || got != want {
			t.Fatalf("at %.1f: ActiveIndexFrom = (%d, %v), full scan = %d", at, got, ok, want)
		}
		hint = got
	}
}

func TestNeighbors(t *testing.T) {
	timeline := sampleTimeline()

	prev, cur, next := Neighbors(timeline, 0)
	if prev != nil {
		t.Error("first event should have no previous")
	}
	if cur == nil || cur.Chord != "C" {
		t.Errorf("current at 0 = %v, want C", cur)
	}
	if next == nil || next.Chord != "G" {
		t.Errorf("next at 0 = %v, want G", next)
	}

	prev, cur, next = Neighbors(timeline, 2)
	if prev == nil || prev.Chord != "G" {
		t.Errorf("previous at 2 = %v, want G", prev)
	}
	if cur == nil || cur.Chord != "Am" {
		t.Errorf("current at 2 = %v, want Am", cur)
	}
	if next != nil {
		t.Error("last event should have no next")
	}

	if prev, cur, next := Neighbors(timeline, 5); prev != nil || cur != nil || next != nil {
		t.Error("out-of-range index should return all nils")
	}
}
