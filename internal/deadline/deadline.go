// Package deadline holds the due-date arithmetic for pending charges.
package deadline

import (
    "fmt"
    "strconv"
    "strings"
    "time"
)

// DueAt returns the instant a pending charge attempted at 'attempt' stops being eligible.
func DueAt(attempt time.Time, ttl time.Duration) time.Time {
    return attempt.Add(ttl).UTC()
}

// IsOverdue reports whether 'at' is strictly after 'due'.
func IsOverdue(due, at time.Time) bool {
    return at.After(due)
}

// Horizon is the latest due instant matched by a lookahead of 'window' from 'now'.
func Horizon(now time.Time, window time.Duration) time.Time {
    return now.Add(window)
}

// ParseWindow accepts Go durations ("36h", "90m") plus a day suffix ("2d", "1d12h").
// Negative windows are rejected.
func ParseWindow(in string) (time.Duration, error) {
    s := strings.TrimSpace(strings.ToLower(in))
    if s == "" {
        return 0, fmt.Errorf("window must not be empty")
    }

    var days time.Duration
    if i := strings.IndexByte(s, 'd'); i >= 0 {
        n, err := strconv.Atoi(s[:i])
        if err != nil || n < 0 {
            return 0, fmt.Errorf("window days must be a non-negative integer")
        }
        days = time.Duration(n) * 24 * time.Hour
        s = s[i+1:]
        if s == "" {
            return days, nil
        }
    }

    d, err := time.ParseDuration(s)
    if err != nil {
        return 0, fmt.Errorf("window must be a duration like 24h or 2d: %w", err)
    }
    if d < 0 {
        return 0, fmt.Errorf("window must not be negative")
    }
    return days + d, nil
}
