package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// GenerateRandomBytes returns securely generated random bytes.
// It will return an error if the system's secure random
// number generator fails to function correctly, in which
// case the caller should not continue.
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateRandomString returns a URL-safe, base64 encoded
// securely generated random string.
func GenerateRandomString(s int) (string, error) {
	b, err := GenerateRandomBytes(s)
	return base64.URLEncoding.EncodeToString(b), err
}

// DayOf drops the time-of-day part, i.e. truncates the given
// timestamp to midnight of the same day, keeping its location.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WeekStartOf returns the Monday (at midnight) of the week the
// given timestamp falls in.
func WeekStartOf(t time.Time) time.Time {
	day := DayOf(t)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // sunday
	}
	return day.AddDate(0, 0, -(weekday - 1))
}
