package chords

import "musichelper/model"

// ActiveIndex returns the index of the last event whose time is at or before
// the playback position, mirroring the reference behavior of scanning from
// the end. A position before the first event still resolves to index 0: the
// earliest chord is considered active rather than leaving a gap. The second
// return value is false only for an empty timeline.
func ActiveIndex(t *model.ChordTimeline, at float64) (int, bool) {
	if t == nil || len(t.Events) == 0 {
		return 0, false
	}

	for i := len(t.Events) - 1; i >= 0; i-- {
		if at >= t.Events[i].Time {
			return i, true
		}
	}
	return 0, true
}

// ActiveIndexFrom behaves like ActiveIndex but uses the previous result as a
// lower bound, so a monotonic playback scan advances in O(1) amortized time
// instead of rescanning the whole timeline every poll. A position behind the
// hint (a backward seek) falls back to a full scan.
func ActiveIndexFrom(t *model.ChordTimeline, hint int, at float64) (int, bool) {
	if t == nil || len(t.Events) == 0 {
		return 0, false
	}
	if hint < 0 || hint >= len(t.Events) || at < t.Events[hint].Time {
		return ActiveIndex(t, at)
	}

	i := hint
	for i+1 < len(t.Events) && at >= t.Events[i+1].Time {
		i++
	}
	return i, true
}

// Neighbors returns the previous, current and next events around index i.
// Previous and next are nil at the sequence boundaries; current is nil when
// the index is out of range.
func Neighbors(t *model.ChordTimeline, i int) (previous, current, next *model.ChordEvent) {
	if t == nil || i < 0 || i >= len(t.Events) {
		return nil, nil, nil
	}

	current = &t.Events[i]
	if i > 0 {
		previous = &t.Events[i-1]
	}
	if i+1 < len(t.Events) {
		next = &t.Events[i+1]
	}
	return previous, current, next
}
