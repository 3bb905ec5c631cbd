package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsWithinWindow(t *testing.T) {
	now := int64(1_700_000_000)

	tests := []struct {
		name     string
		ts       int64
		window   time.Duration
		expected bool
	}{
		{"Created just now", now, time.Minute, true},
		{"Created inside window", now - 59, time.Minute, true},
		{"Created at window edge", now - 60, time.Minute, true},
		{"Created outside window", now - 61, time.Minute, false},
		{"Zero window only accepts now", now - 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsWithinWindow(tt.ts, now, tt.window))
		})
	}
}

func TestEpochSeconds(t *testing.T) {
	pinned := time.Date(2024, 10, 24, 0, 0, 0, 0, time.UTC)
	clock := ClockFunc(func() time.Time { return pinned })

	assert.Equal(t, int64(1729728000), EpochSeconds(clock))
}

func TestSystemClock(t *testing.T) {
	before := time.Now()
	got := SystemClock{}.Now()
	assert.False(t, got.Before(before))
}
