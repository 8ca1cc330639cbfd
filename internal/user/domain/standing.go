package domain

import (
	"time"

	"github.com/AlibekovAA/devicehub/internal/common/constants"
)

type Standing int

const (
	StandingActive Standing = iota
	StandingWarning
	StandingExpired
)

func (s Standing) String() string {
	switch s {
	case StandingWarning:
		return "warning"
	case StandingExpired:
		return "expired"
	default:
		return "active"
	}
}

// EvaluateStanding applies the subscription policy at now. Blocked wins over
// expiry, expiry over the warning window. For StandingWarning the second value
// is the number of whole days left, rounded down.
func EvaluateStanding(u User, now time.Time) (Standing, int) {
	if u.IsBlocked {
		return StandingExpired, 0
	}

	remaining := u.ExpirationDate.Sub(now)
	if remaining <= 0 {
		return StandingExpired, 0
	}

	window := time.Duration(constants.WarningWindowDays*constants.HoursPerDay) * time.Hour
	if remaining <= window {
		return StandingWarning, int(remaining / (constants.HoursPerDay * time.Hour))
	}

	return StandingActive, 0
}
