package model

// ChordEvent is one timed chord label inside a timeline.
type ChordEvent struct {
	Time       float64 `json:"time"`       // Offset in seconds from track start, non-negative
	Chord      string  `json:"chord"`      // Chord label, e.g. "Am7"
	Confidence float64 `json:"confidence"` // Detection confidence in [0,1]
}

// ChordTimeline is the ordered sequence of chord events for one upload,
// non-decreasing by Time, plus the track duration. It is produced as a whole
// by the analysis tool and replaced as a whole by regeneration.
type ChordTimeline struct {
	Duration float64      `json:"duration"`
	Events   []ChordEvent `json:"events"`
	// PrimaryStem records which stem the analysis ran against ("other" by
	// default, "all" for the combined mix). Informational only.
	PrimaryStem string `json:"primary_stem,omitempty"`
}
