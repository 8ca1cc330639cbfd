package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateStanding(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name     string
		user     User
		standing Standing
		days     int
	}{
		{
			name:     "far from expiry",
			user:     User{ExpirationDate: now.Add(10 * day)},
			standing: StandingActive,
		},
		{
			name:     "three days left",
			user:     User{ExpirationDate: now.Add(3 * day)},
			standing: StandingWarning,
			days:     3,
		},
		{
			name:     "partial day rounds down",
			user:     User{ExpirationDate: now.Add(3*day + 23*time.Hour)},
			standing: StandingWarning,
			days:     3,
		},
		{
			name:     "exactly seven days warns",
			user:     User{ExpirationDate: now.Add(7 * day)},
			standing: StandingWarning,
			days:     7,
		},
		{
			name:     "just over seven days",
			user:     User{ExpirationDate: now.Add(7*day + time.Second)},
			standing: StandingActive,
		},
		{
			name:     "under one day warns zero",
			user:     User{ExpirationDate: now.Add(time.Hour)},
			standing: StandingWarning,
			days:     0,
		},
		{
			name:     "expires exactly now",
			user:     User{ExpirationDate: now},
			standing: StandingExpired,
		},
		{
			name:     "expired one second ago",
			user:     User{ExpirationDate: now.Add(-time.Second)},
			standing: StandingExpired,
		},
		{
			name:     "blocked beats active subscription",
			user:     User{IsBlocked: true, ExpirationDate: now.Add(100 * day)},
			standing: StandingExpired,
		},
		{
			name:     "blocked beats warning",
			user:     User{IsBlocked: true, ExpirationDate: now.Add(2 * day)},
			standing: StandingExpired,
		},
		{
			name:     "blocked and expired",
			user:     User{IsBlocked: true, ExpirationDate: now.Add(-day)},
			standing: StandingExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			standing, days := EvaluateStanding(tt.user, now)
			assert.Equal(t, tt.standing, standing)
			assert.Equal(t, tt.days, days)
		})
	}
}
