package database

import "time"

// DateLayout is the storage format of published_at.
const DateLayout = "2006-01-02"

// DateOf returns t's UTC calendar date as YYYY-MM-DD.
func DateOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DaysAgo returns the date n days before now as YYYY-MM-DD.
func DaysAgo(now time.Time, n int) string {
	return DateOf(now.UTC().AddDate(0, 0, -n))
}

// FormatDateDisplay formats a YYYY-MM-DD date for human-readable display,
// e.g. "Feb 06, 2026". Unparseable input is returned unchanged.
func FormatDateDisplay(date string) string {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return d.Format("Jan 02, 2006")
}

// FormatRunAt formats a digest run timestamp for display.
func FormatRunAt(runAt string) string {
	t, err := time.Parse(runAtLayout, runAt)
	if err != nil {
		return runAt
	}
	return t.Format("Jan 02, 2006 15:04 UTC")
}

// runAtLayout matches SQLite's datetime('now').
const runAtLayout = "2006-01-02 15:04:05"

// RunAtOf formats t the way run_at is stored.
func RunAtOf(t time.Time) string {
	return t.UTC().Format(runAtLayout)
}
