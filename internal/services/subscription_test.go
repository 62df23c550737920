package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionDueDate_DayExists(t *testing.T) {
	got := SubscriptionDueDate(date(2024, time.April, 1), 30)
	assert.Equal(t, date(2024, time.April, 30), got)
}

func TestSubscriptionDueDate_FallbackWhenDayMissing(t *testing.T) {
	// Day 31 does not exist in April, so the charge falls back to the 28th.
	got := SubscriptionDueDate(date(2024, time.April, 1), 31)
	assert.Equal(t, date(2024, time.April, 28), got)

	got = SubscriptionDueDate(date(2023, time.February, 1), 30)
	assert.Equal(t, date(2023, time.February, 28), got)
}

func TestSubscriptionDueDate_InvalidDayDefaultsToFirst(t *testing.T) {
	got := SubscriptionDueDate(date(2024, time.June, 1), 0)
	assert.Equal(t, date(2024, time.June, 1), got)
}
