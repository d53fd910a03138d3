package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bugtally/notify-engine/internal/model"
)

func TestNextRunHourly(t *testing.T) {
	pref := &model.DigestPreference{Frequency: model.FrequencyHourly}

	now := time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC), NextRun(now, pref))

	// Exactly on the hour still moves to the next hour.
	now = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC), NextRun(now, pref))
}

func TestNextRunDaily(t *testing.T) {
	pref := &model.DigestPreference{Frequency: model.FrequencyDaily, TimeOfDay: 8}

	// Always the next calendar day, even when today's slot has not passed.
	now := time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 16, 8, 0, 0, 0, time.UTC), NextRun(now, pref))

	now = time.Date(2024, 3, 15, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 16, 8, 0, 0, 0, time.UTC), NextRun(now, pref))

	// Month boundary rolls over.
	now = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC), NextRun(now, pref))
}

func TestNextRunWeekly(t *testing.T) {
	// 2024-03-15 is a Friday.
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	// Monday (1) is three days out.
	pref := &model.DigestPreference{Frequency: model.FrequencyWeekly, DayOfWeek: 1, TimeOfDay: 9}
	assert.Equal(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC), NextRun(now, pref))

	// Friday (5) at an hour already passed rolls a full week.
	pref = &model.DigestPreference{Frequency: model.FrequencyWeekly, DayOfWeek: 5, TimeOfDay: 9}
	assert.Equal(t, time.Date(2024, 3, 22, 9, 0, 0, 0, time.UTC), NextRun(now, pref))

	// Friday at a later hour fires today.
	pref = &model.DigestPreference{Frequency: model.FrequencyWeekly, DayOfWeek: 5, TimeOfDay: 17}
	assert.Equal(t, time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC), NextRun(now, pref))

	// Sunday (7) maps to time.Sunday.
	pref = &model.DigestPreference{Frequency: model.FrequencyWeekly, DayOfWeek: 7, TimeOfDay: 0}
	got := NextRun(now, pref)
	assert.Equal(t, time.Sunday, got.Weekday())
	assert.Equal(t, time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), got)
}

func TestNextRunIsAlwaysInTheFuture(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	for _, pref := range []*model.DigestPreference{
		{Frequency: model.FrequencyHourly},
		{Frequency: model.FrequencyDaily, TimeOfDay: 10},
		{Frequency: model.FrequencyWeekly, DayOfWeek: 5, TimeOfDay: 10},
	} {
		assert.True(t, NextRun(now, pref).After(now), "frequency %s", pref.Frequency)
	}
}
