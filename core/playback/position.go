package playback

import (
	"strconv"
	"strings"
)

// PlayerState is a snapshot of whatever the attached playback source exposes.
// Different player builds expose different subsets, so every field is
// optional and position resolution goes through ordered strategies.
type PlayerState struct {
	// Position is the player's own position counter in seconds, when exposed.
	Position *float64 `json:"position,omitempty"`
	// Playing plus the audio-clock pair allow deriving the position while the
	// transport is running: clock - startTime.
	Playing        bool     `json:"playing,omitempty"`
	AudioClockTime *float64 `json:"audioClockTime,omitempty"`
	StartTime      *float64 `json:"startTime,omitempty"`
	// TimeDisplay is the textual transport readout ("mm:ss.mmm"), the
	// last-resort fallback.
	TimeDisplay string `json:"timeDisplay,omitempty"`
}

// positionStrategy extracts a playback position from a player state snapshot,
// reporting false when the shape it understands is absent.
type positionStrategy func(PlayerState) (float64, bool)

// positionStrategies are tried in fixed priority order; first hit wins.
var positionStrategies = []positionStrategy{
	directPosition,
	clockPosition,
	displayPosition,
}

// ResolvePosition returns the current playback position in seconds, or false
// when no strategy can derive one from the snapshot.
func ResolvePosition(state PlayerState) (float64, bool) {
	for _, strategy := range positionStrategies {
		if pos, ok := strategy(state); ok {
			return pos, true
		}
	}
	return 0, false
}

func directPosition(state PlayerState) (float64, bool) {
	if state.Position == nil {
		return 0, false
	}
	return *state.Position, true
}

func clockPosition(state PlayerState) (float64, bool) {
	if !state.Playing || state.AudioClockTime == nil || state.StartTime == nil {
		return 0, false
	}
	elapsed := *state.AudioClockTime - *state.StartTime
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, true
}

func displayPosition(state PlayerState) (float64, bool) {
	return parseTimeDisplay(state.TimeDisplay)
}

// parseTimeDisplay parses a "mm:ss" or "mm:ss.mmm" transport readout.
func parseTimeDisplay(display string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(display), ":")
	if len(parts) != 2 {
		return 0, false
	}

	minutes, err := strconv.Atoi(parts[0])
	if err != nil || minutes < 0 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return float64(minutes)*60 + seconds, true
}
