package services

import "time"

// Clock supplies the current time to everything that compares deadlines
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}

// IsExpired reports whether a deadline has passed. A nil deadline never expires.
func IsExpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && !expiresAt.After(now)
}
