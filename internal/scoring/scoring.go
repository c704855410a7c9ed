// Package scoring maps answer correctness and response time to points.
//
// The same function runs on participant clients (immediate feedback) and,
// when the host is configured for server-side scoring, on the host.
package scoring

import "time"

const (
	// BasePoints is awarded for any correct answer.
	BasePoints = 1000
	// TimeWindow is the span over which the speed bonus decays to zero.
	TimeWindow = 10 * time.Second
	// msPerBonusPoint is the inverse of the bonus rate (0.1 point per millisecond left).
	msPerBonusPoint = 10
)

// ScoreMillis returns the points for an answer given the elapsed response time in ms.
// Incorrect answers score 0; correct answers score between BasePoints and 2*BasePoints.
func ScoreMillis(correct bool, elapsedMs int64) int {
	if !correct {
		return 0
	}
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	left := TimeWindow.Milliseconds() - elapsedMs
	if left < 0 {
		left = 0
	}
	return BasePoints + int(left/msPerBonusPoint)
}

// Score is ScoreMillis for a time.Duration.
func Score(correct bool, elapsed time.Duration) int {
	return ScoreMillis(correct, elapsed.Milliseconds())
}

// Elapsed is the time from votingStartedAt to at, never negative.
func Elapsed(votingStartedAt, at time.Time) time.Duration {
	d := at.Sub(votingStartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Remaining is the voting time left at now for a window anchored at votingStartedAt,
// clamped to [0, window].
func Remaining(votingStartedAt time.Time, window time.Duration, now time.Time) time.Duration {
	left := votingStartedAt.Add(window).Sub(now)
	if left < 0 {
		return 0
	}
	if left > window {
		return window
	}
	return left
}
