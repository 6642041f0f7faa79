// Package scheduler keeps the per-question inactivity deadlines, delayed
// one-shot actions and recurring maintenance jobs, with file-lock overlap
// prevention and channel-based concurrency caps.
package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CronExpr is a parsed 5-field cron expression:
// minute, hour, day-of-month, month, day-of-week.
type CronExpr struct {
	Minute     []int
	Hour       []int
	DayOfMonth []int
	Month      []int
	DayOfWeek  []int
}

// ParseCron parses a standard 5-field cron expression. Supported forms per
// field: *, */N, N, N-M, N-M/S and comma-separated lists of those.
func ParseCron(expr string) (*CronExpr, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d", len(fields))
	}

	specs := []struct {
		name     string
		min, max int
		dst      *[]int
	}{
		{"minute", 0, 59, nil},
		{"hour", 0, 23, nil},
		{"day-of-month", 1, 31, nil},
		{"month", 1, 12, nil},
		{"day-of-week", 0, 6, nil},
	}
	c := &CronExpr{}
	specs[0].dst = &c.Minute
	specs[1].dst = &c.Hour
	specs[2].dst = &c.DayOfMonth
	specs[3].dst = &c.Month
	specs[4].dst = &c.DayOfWeek

	for i, spec := range specs {
		vals, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("cron: %s: %w", spec.name, err)
		}
		*spec.dst = vals
	}
	return c, nil
}

// Matches reports whether t falls within the expression.
func (c *CronExpr) Matches(t time.Time) bool {
	return contains(c.Minute, t.Minute()) &&
		contains(c.Hour, t.Hour()) &&
		contains(c.DayOfMonth, t.Day()) &&
		contains(c.Month, int(t.Month())) &&
		contains(c.DayOfWeek, int(t.Weekday()))
}

// Next returns the first matching time after t, searching up to two years
// ahead. The zero time means no match in that window.
func (c *CronExpr) Next(t time.Time) time.Time {
	candidate := t.Truncate(time.Minute).Add(time.Minute)
	limit := t.Add(2 * 365 * 24 * time.Hour)

	for candidate.Before(limit) {
		switch {
		case !contains(c.Month, int(candidate.Month())):
			candidate = time.Date(candidate.Year(), candidate.Month()+1, 1, 0, 0, 0, 0, candidate.Location())
		case !contains(c.DayOfMonth, candidate.Day()) || !contains(c.DayOfWeek, int(candidate.Weekday())):
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day()+1, 0, 0, 0, 0, candidate.Location())
		case !contains(c.Hour, candidate.Hour()):
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), candidate.Hour()+1, 0, 0, 0, candidate.Location())
		case !contains(c.Minute, candidate.Minute()):
			candidate = candidate.Add(time.Minute)
		default:
			return candidate
		}
	}
	return time.Time{}
}

// parseField expands one cron field into a sorted, de-duplicated value list.
func parseField(field string, min, max int) ([]int, error) {
	if field == "*" {
		return seq(min, max, 1), nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		vals, err := parsePart(part, min, max)
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			seen[v] = true
		}
	}

	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out, nil
}

// parsePart expands one list element: *, */N, N, N-M or N-M/S.
func parsePart(part string, min, max int) ([]int, error) {
	if strings.HasPrefix(part, "*/") {
		step, err := strconv.Atoi(part[2:])
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step %q", part)
		}
		return seq(min, max, step), nil
	}

	if strings.Contains(part, "-") {
		rangeAndStep := strings.SplitN(part, "/", 2)
		bounds := strings.SplitN(rangeAndStep[0], "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid range %q", part)
		}
		lo, err := strconv.Atoi(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("invalid range start %q", bounds[0])
		}
		hi, err := strconv.Atoi(bounds[1])
		if err != nil {
			return nil, fmt.Errorf("invalid range end %q", bounds[1])
		}
		if lo < min || hi > max || lo > hi {
			return nil, fmt.Errorf("range %d-%d out of bounds [%d,%d]", lo, hi, min, max)
		}
		step := 1
		if len(rangeAndStep) == 2 {
			step, err = strconv.Atoi(rangeAndStep[1])
			if err != nil || step <= 0 {
				return nil, fmt.Errorf("invalid step in %q", part)
			}
		}
		return seq(lo, hi, step), nil
	}

	val, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q", part)
	}
	if val < min || val > max {
		return nil, fmt.Errorf("value %d out of bounds [%d,%d]", val, min, max)
	}
	return []int{val}, nil
}

func seq(min, max, step int) []int {
	out := make([]int, 0, (max-min)/step+1)
	for i := min; i <= max; i += step {
		out = append(out, i)
	}
	return out
}

func contains(set []int, val int) bool {
	for _, v := range set {
		if v == val {
			return true
		}
	}
	return false
}
