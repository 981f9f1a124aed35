package utils

import (
	"time"
)

// NewYorkLocation is the timezone for US equity markets.
var NewYorkLocation *time.Location

func init() {
	var err error
	NewYorkLocation, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback to UTC-5
		NewYorkLocation = time.FixedZone("EST", -5*60*60)
	}
}

// MarketStatus represents the current trading session.
type MarketStatus string

const (
	MarketClosed     MarketStatus = "closed"
	MarketPreMarket  MarketStatus = "pre-market"
	MarketOpen       MarketStatus = "open"
	MarketAfterHours MarketStatus = "after-hours"
)

// MarketStatusAt returns the US equity session for the given instant.
// Regular hours are 9:30-16:00 New York time on weekdays; pre-market runs
// from 4:00 and after-hours until 20:00. Exchange holidays are not modeled.
func MarketStatusAt(t time.Time) MarketStatus {
	now := t.In(NewYorkLocation)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return MarketClosed
	}

	timeMinutes := now.Hour()*60 + now.Minute()

	switch {
	case timeMinutes >= 4*60 && timeMinutes < 9*60+30:
		return MarketPreMarket
	case timeMinutes >= 9*60+30 && timeMinutes < 16*60:
		return MarketOpen
	case timeMinutes >= 16*60 && timeMinutes < 20*60:
		return MarketAfterHours
	default:
		return MarketClosed
	}
}

// GetMarketStatus returns the current session.
func GetMarketStatus() MarketStatus {
	return MarketStatusAt(time.Now())
}

// IsMarketOpen returns true if regular trading is in session.
func IsMarketOpen() bool {
	return GetMarketStatus() == MarketOpen
}

// NextMarketOpen returns the next regular-session opening time.
func NextMarketOpen() time.Time {
	now := time.Now().In(NewYorkLocation)

	next := time.Date(now.Year(), now.Month(), now.Day(), 9, 30, 0, 0, NewYorkLocation)
	if now.After(next) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// TodayMarketClose returns today's regular-session close time.
func TodayMarketClose() time.Time {
	now := time.Now().In(NewYorkLocation)
	return time.Date(now.Year(), now.Month(), now.Day(), 16, 0, 0, 0, NewYorkLocation)
}

// TimeUntilMarketClose returns the duration until today's close.
func TimeUntilMarketClose() time.Duration {
	return time.Until(TodayMarketClose())
}
