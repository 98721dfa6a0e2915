// Package resume decides when a playback sample counts as watched and what resume point to keep.
package resume

import (
	"math"

	"github.com/treefix50/streamit/internal/watchstate"
)

const (
	// NearEndFloor is the minimum remaining time, in seconds, that still counts as watched.
	NearEndFloor = 180.0
	// NearEndRatio is the share of the runtime at the end that counts as watched.
	NearEndRatio = 0.05
	// minReliableDuration is the duration at or under which duration is ignored.
	minReliableDuration = 1.0
)

// Decision is what a playback sample should persist.
type Decision struct {
	Watched       bool
	TimeToPersist int64
}

// ReliableDuration reports whether duration can be used for threshold decisions.
func ReliableDuration(duration float64) bool {
	return !math.IsNaN(duration) && !math.IsInf(duration, 0) && duration > minReliableDuration
}

// Threshold is the remaining time under which a video of the given duration counts as watched.
func Threshold(duration float64) float64 {
	return math.Max(NearEndFloor, duration*NearEndRatio)
}

// Classify turns a playback sample into a persistence decision. ended marks an explicit end
// of playback and always wins; without a reliable duration nothing else marks content watched.
func Classify(currentTime, duration float64, ended bool) Decision {
	if ended {
		return Decision{Watched: true}
	}
	if ReliableDuration(duration) && !math.IsNaN(currentTime) {
		if duration-currentTime <= Threshold(duration) {
			return Decision{Watched: true}
		}
	}
	return Decision{TimeToPersist: watchstate.NormalizeTime(currentTime)}
}

// ResumeOffset is where to seek for a stored resume time, never past one second before the end.
func ResumeOffset(stored int64, duration float64) float64 {
	if stored <= 0 {
		return 0
	}
	offset := float64(stored)
	if math.IsNaN(duration) || math.IsInf(duration, 0) {
		return offset
	}
	return math.Max(0, math.Min(offset, duration-1))
}
