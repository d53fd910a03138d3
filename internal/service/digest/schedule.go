package digest

import (
	"time"

	"github.com/bugtally/notify-engine/internal/model"
)

// NextRun computes the next digest slot strictly after now.
//
// Hourly digests fire at the top of the next hour. Daily digests fire the
// next calendar day at the configured hour. Weekly digests fire at the next
// occurrence of the configured weekday and hour; when that slot is today
// but already passed, the schedule rolls a full seven days, never a
// same-day re-trigger.
func NextRun(now time.Time, p *model.DigestPreference) time.Time {
	switch p.Frequency {
	case model.FrequencyHourly:
		return now.Truncate(time.Hour).Add(time.Hour)

	case model.FrequencyDaily:
		return time.Date(now.Year(), now.Month(), now.Day()+1, p.TimeOfDay, 0, 0, 0, now.Location())

	case model.FrequencyWeekly:
		// DayOfWeek is 1=Monday .. 7=Sunday; time.Weekday has Sunday=0.
		target := time.Weekday(p.DayOfWeek % 7)
		next := time.Date(now.Year(), now.Month(), now.Day(), p.TimeOfDay, 0, 0, 0, now.Location())
		for next.Weekday() != target || !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next

	default:
		return now.Add(time.Hour)
	}
}
