// internal/history/timeperiod.go - relative and absolute time period parsing
package history

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const absoluteLayout = "2006-01-02 15:04:05"

// TimePeriod is a configured window, e.g. {From: "now-1h", To: "now"}.
type TimePeriod struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

type TimeRange struct {
	From time.Time
	To   time.Time
}

// Resolve evaluates the period against now.
func (p TimePeriod) Resolve(now time.Time) (TimeRange, error) {
	from, err := ParseTime(p.From, now)
	if err != nil {
		return TimeRange{}, fmt.Errorf("invalid time period start: %w", err)
	}
	to, err := ParseTime(p.To, now)
	if err != nil {
		return TimeRange{}, fmt.Errorf("invalid time period end: %w", err)
	}
	if from.After(to) {
		return TimeRange{}, fmt.Errorf("time period start %q is after end %q", p.From, p.To)
	}
	return TimeRange{From: from, To: to}, nil
}

// ParseTime accepts "now", "now-<N><unit>" with unit one of s m h d w M y,
// and absolute "YYYY-MM-DD hh:mm:ss" in now's location.
func ParseTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}

	if !strings.HasPrefix(s, "now") {
		t, err := time.ParseInLocation(absoluteLayout, s, now.Location())
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid absolute time %q", s)
		}
		return t, nil
	}

	rest := s[len("now"):]
	if rest == "" {
		return now, nil
	}
	if rest[0] != '-' && rest[0] != '+' {
		return time.Time{}, fmt.Errorf("invalid relative time %q", s)
	}
	sign := 1
	if rest[0] == '-' {
		sign = -1
	}
	rest = rest[1:]
	if len(rest) < 2 {
		return time.Time{}, fmt.Errorf("invalid relative time %q", s)
	}

	n, err := strconv.Atoi(rest[:len(rest)-1])
	if err != nil || n < 0 {
		return time.Time{}, fmt.Errorf("invalid relative time %q", s)
	}
	n *= sign

	switch rest[len(rest)-1] {
	case 's':
		return now.Add(time.Duration(n) * time.Second), nil
	case 'm':
		return now.Add(time.Duration(n) * time.Minute), nil
	case 'h':
		return now.Add(time.Duration(n) * time.Hour), nil
	case 'd':
		return now.AddDate(0, 0, n), nil
	case 'w':
		return now.AddDate(0, 0, 7*n), nil
	case 'M':
		return now.AddDate(0, n, 0), nil
	case 'y':
		return now.AddDate(n, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("invalid relative time unit in %q", s)
	}
}
