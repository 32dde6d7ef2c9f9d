package workout

import (
	"math"
	"time"

	"github.com/meltforce/liftlog/internal/models"
)

// Elapsed returns the active workout time in whole seconds. While paused the
// value is frozen at the moment of the pause and does not depend on now.
func Elapsed(startedAt time.Time, status models.Status, lastPausedAt *time.Time, accumulatedPauseSeconds int, now time.Time) int {
	end := now
	if status == models.StatusPaused && lastPausedAt != nil {
		end = *lastPausedAt
	}
	elapsed := int(end.Sub(startedAt)/time.Second) - accumulatedPauseSeconds
	return max(0, elapsed)
}

// SessionElapsed is Elapsed for a stored session. A completed session reports
// the duration recorded at completion.
func SessionElapsed(s *models.Session, now time.Time) int {
	if s.Status == models.StatusCompleted && s.DurationSeconds != nil {
		return *s.DurationSeconds
	}
	return Elapsed(s.StartedAt, s.Status, s.LastPausedAt, s.AccumulatedPauseSeconds, now)
}

// pauseSeconds rounds a pause to the nearest second.
func pauseSeconds(pausedAt, now time.Time) int {
	secs := int(math.Round(now.Sub(pausedAt).Seconds()))
	return max(0, secs)
}
