package auth

import (
	"strconv"
	"time"
)

// fallbackExpiry is used when an expiry string cannot be understood.
const fallbackExpiry = 7 * 24 * time.Hour

// ParseExpiry converts a compact expiry string such as "15m" or "7d" into a
// duration. The unit is the final character: s, m, h, or d. Unlike
// time.ParseDuration it supports days and never fails; an unparsable value
// or unknown unit falls back to 7 days so a misconfigured expiry yields a
// bounded token lifetime rather than a startup error.
func ParseExpiry(s string) time.Duration {
	if len(s) < 2 {
		return fallbackExpiry
	}

	value, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || value < 0 {
		return fallbackExpiry
	}

	switch s[len(s)-1] {
	case 's':
		return time.Duration(value) * time.Second
	case 'm':
		return time.Duration(value) * time.Minute
	case 'h':
		return time.Duration(value) * time.Hour
	case 'd':
		return time.Duration(value) * 24 * time.Hour
	default:
		return fallbackExpiry
	}
}

// ExpiryTime returns the absolute expiry timestamp for a token issued now
// with the given expiry string.
func ExpiryTime(s string) time.Time {
	return time.Now().UTC().Add(ParseExpiry(s))
}
