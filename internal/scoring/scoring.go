package scoring

import "math"

const (
	// MaxAward is the points for a correct answer locked inside the grace window.
	MaxAward = 20
	// GraceSeconds is how long a team can take before the award starts decaying.
	GraceSeconds = 4
)

// Score converts a team's locked answer into points. Wrong or missing answers
// score zero. Correct answers earn MaxAward when locked within GraceSeconds,
// decaying by one point per started second afterwards, floored at zero.
//
// The decay constants are fixed; the question's time budget only bounds how
// long the lock window stays open, never the award curve.
func Score(correct bool, lockedElapsedMs int64, timeBudgetSec int) int {
	if !correct {
		return 0
	}

	elapsedSec := float64(lockedElapsedMs) / 1000.0
	if elapsedSec < 0 {
		elapsedSec = 0
	}
	if elapsedSec <= GraceSeconds {
		return MaxAward
	}

	secondsLate := int(math.Ceil(elapsedSec - GraceSeconds))
	if pts := MaxAward - secondsLate; pts > 0 {
		return pts
	}
	return 0
}
