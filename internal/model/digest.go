package model

import (
	"fmt"

	"github.com/lib/pq"
)

// DigestFrequency is the cadence a user's digest fires on.
type DigestFrequency string

const (
	FrequencyHourly DigestFrequency = "hourly"
	FrequencyDaily  DigestFrequency = "daily"
	FrequencyWeekly DigestFrequency = "weekly"
)

// DigestPreference holds one user's digest settings. NextDigestScheduled is
// written only by the digest scheduler after each run; once set it is always
// in the future, except transiently right before a run fires.
type DigestPreference struct {
	UserID              int64           `json:"user_id" db:"user_id"`
	Enabled             bool            `json:"enabled" db:"enabled"`
	Frequency           DigestFrequency `json:"frequency" db:"frequency"`
	TimeOfDay           int             `json:"time_of_day" db:"time_of_day"`
	DayOfWeek           int             `json:"day_of_week" db:"day_of_week"`
	MinNotifications    int             `json:"min_notifications" db:"min_notifications"`
	IncludeChannels     pq.StringArray  `json:"include_channels" db:"include_channels"`
	LastDigestSent      *int64          `json:"last_digest_sent,omitempty" db:"last_digest_sent"`
	NextDigestScheduled *int64          `json:"next_digest_scheduled,omitempty" db:"next_digest_scheduled"`
}

// Validate checks the schedule fields before an upsert.
func (p *DigestPreference) Validate() error {
	switch p.Frequency {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly:
	default:
		return fmt.Errorf("unsupported digest frequency: %s", p.Frequency)
	}
	if p.TimeOfDay < 0 || p.TimeOfDay > 23 {
		return fmt.Errorf("time_of_day must be 0-23, got %d", p.TimeOfDay)
	}
	if p.DayOfWeek < 1 || p.DayOfWeek > 7 {
		return fmt.Errorf("day_of_week must be 1-7, got %d", p.DayOfWeek)
	}
	if p.MinNotifications < 1 {
		return fmt.Errorf("min_notifications must be at least 1, got %d", p.MinNotifications)
	}
	return nil
}
