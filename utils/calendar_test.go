package utils

import (
	"testing"
	"time"
)

func TestDateOfResolvesByTimezone(t *testing.T) {
	// 2026-03-10 02:30 UTC is still 2026-03-09 in New York.
	instant := time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		tz   string
		want Date
	}{
		{"utc explicit", "UTC", Date{2026, time.March, 10}},
		{"empty falls back to utc", "", Date{2026, time.March, 10}},
		{"unknown falls back to utc", "Mars/Olympus_Mons", Date{2026, time.March, 10}},
		{"new york is previous day", "America/New_York", Date{2026, time.March, 9}},
		{"tokyo is same day", "Asia/Tokyo", Date{2026, time.March, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DateOf(instant, tt.tz)
			if got != tt.want {
				t.Errorf("DateOf(%v, %q) = %v, want %v", instant, tt.tz, got, tt.want)
			}
		})
	}
}

func TestDelta(t *testing.T) {
	tests := []struct {
		name string
		a, b Date
		want int
	}{
		{"same day", Date{2026, time.May, 1}, Date{2026, time.May, 1}, 0},
		{"next day", Date{2026, time.May, 1}, Date{2026, time.May, 2}, 1},
		{"negative", Date{2026, time.May, 2}, Date{2026, time.May, 1}, -1},
		{"across month", Date{2026, time.April, 30}, Date{2026, time.May, 2}, 2},
		{"across year", Date{2025, time.December, 31}, Date{2026, time.January, 1}, 1},
		{"leap february", Date{2028, time.February, 28}, Date{2028, time.March, 1}, 2},
		{"long gap", Date{2026, time.January, 1}, Date{2026, time.December, 31}, 364},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Delta(tt.a, tt.b); got != tt.want {
				t.Errorf("Delta(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAddDaysAndBefore(t *testing.T) {
	d := Date{2026, time.August, 30}
	if got := d.AddDays(2); got != (Date{2026, time.September, 1}) {
		t.Errorf("AddDays(2) = %v", got)
	}
	if got := d.AddDays(-30); got != (Date{2026, time.July, 31}) {
		t.Errorf("AddDays(-30) = %v", got)
	}
	if !d.AddDays(-1).Before(d) {
		t.Error("yesterday should be before today")
	}
	if d.Before(d) {
		t.Error("a date is not before itself")
	}
}

func TestDateStringSortsChronologically(t *testing.T) {
	// The maintenance sweeps compare dates as text in SQL; the ISO rendering
	// must sort the same way the calendar does.
	earlier := Date{2026, time.September, 9}
	later := Date{2026, time.October, 1}
	if !(earlier.String() < later.String()) {
		t.Errorf("%q should sort before %q", earlier, later)
	}
}

func TestParseDateRoundTrip(t *testing.T) {
	d := Date{2026, time.February, 5}
	parsed, err := ParseDate(d.String())
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", d.String(), err)
	}
	if parsed != d {
		t.Errorf("round trip: got %v, want %v", parsed, d)
	}

	zero, err := ParseDate("")
	if err != nil || !zero.IsZero() {
		t.Errorf("ParseDate(\"\") = %v, %v; want zero date", zero, err)
	}

	if _, err := ParseDate("not-a-date"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan("2026-08-30"); err != nil {
		t.Fatalf("Scan string: %v", err)
	}
	if d != (Date{2026, time.August, 30}) {
		t.Errorf("Scan string = %v", d)
	}

	if err := d.Scan(nil); err != nil {
		t.Fatalf("Scan nil: %v", err)
	}
	if !d.IsZero() {
		t.Errorf("Scan nil should yield zero date, got %v", d)
	}

	if err := d.Scan(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)); err != nil {
		t.Fatalf("Scan time: %v", err)
	}
	if d != (Date{2026, time.January, 2}) {
		t.Errorf("Scan time = %v", d)
	}
}
