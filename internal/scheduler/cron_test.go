package scheduler

import (
	"testing"
	"time"
)

func TestParseCron(t *testing.T) {
	valid := []string{
		"* * * * *",
		"*/5 * * * *",
		"0 */12 * * *",
		"30 4 1,15 * *",
		"0-30/5 9-17 * * 1-5",
	}
	for _, expr := range valid {
		if _, err := ParseCron(expr); err != nil {
			t.Errorf("ParseCron(%q): %v", expr, err)
		}
	}

	invalid := []string{
		"",
		"* * *",
		"60 * * * *",
		"* 25 * * *",
		"* * 32 * *",
		"* * * 13 *",
		"* * * * 7",
		"*/0 * * * *",
		"abc * * * *",
	}
	for _, expr := range invalid {
		if _, err := ParseCron(expr); err == nil {
			t.Errorf("ParseCron(%q) accepted an invalid expression", expr)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		expr string
		at   time.Time
		want bool
	}{
		{"* * * * *", time.Date(2026, 2, 15, 10, 30, 0, 0, time.UTC), true},
		{"*/5 * * * *", time.Date(2026, 2, 15, 10, 15, 0, 0, time.UTC), true},
		{"*/5 * * * *", time.Date(2026, 2, 15, 10, 13, 0, 0, time.UTC), false},
		{"0 */12 * * *", time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC), true},
		{"0 */12 * * *", time.Date(2026, 2, 15, 13, 0, 0, 0, time.UTC), false},
		{"30 4 1,15 * *", time.Date(2026, 3, 1, 4, 30, 0, 0, time.UTC), true},
		{"30 4 1,15 * *", time.Date(2026, 3, 2, 4, 30, 0, 0, time.UTC), false},
		// Monday inside working hours vs Saturday.
		{"0-30/5 9-17 * * 1-5", time.Date(2026, 2, 16, 10, 15, 0, 0, time.UTC), true},
		{"0-30/5 9-17 * * 1-5", time.Date(2026, 2, 14, 10, 15, 0, 0, time.UTC), false},
	}
	for _, tc := range tests {
		c, err := ParseCron(tc.expr)
		if err != nil {
			t.Fatalf("ParseCron(%q): %v", tc.expr, err)
		}
		if got := c.Matches(tc.at); got != tc.want {
			t.Errorf("Matches(%q, %v) = %v, want %v", tc.expr, tc.at, got, tc.want)
		}
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		expr string
		from time.Time
		want time.Time
	}{
		{
			"* * * * *",
			time.Date(2026, 2, 15, 10, 30, 45, 0, time.UTC),
			time.Date(2026, 2, 15, 10, 31, 0, 0, time.UTC),
		},
		{
			"*/5 * * * *",
			time.Date(2026, 2, 15, 10, 12, 0, 0, time.UTC),
			time.Date(2026, 2, 15, 10, 15, 0, 0, time.UTC),
		},
		{
			"0 */12 * * *",
			time.Date(2026, 2, 15, 12, 1, 0, 0, time.UTC),
			time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			"0 0 * * *",
			time.Date(2026, 2, 15, 23, 59, 0, 0, time.UTC),
			time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range tests {
		c, err := ParseCron(tc.expr)
		if err != nil {
			t.Fatalf("ParseCron(%q): %v", tc.expr, err)
		}
		if got := c.Next(tc.from); !got.Equal(tc.want) {
			t.Errorf("Next(%q, %v) = %v, want %v", tc.expr, tc.from, got, tc.want)
		}
	}
}
