package calendar

import "time"

// Date truncates t to a UTC calendar date, keeping its year/month/day as seen in t's location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsBusinessDay reports whether d is neither a weekend day nor a Colombian holiday.
func IsBusinessDay(d time.Time) bool {
	d = Date(d)
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !IsHoliday(d)
}

// AdjustForward returns the earliest business day on or after d.
func AdjustForward(d time.Time) time.Time {
	d = Date(d)
	for !IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// AdjustBackward returns the latest business day on or before d.
func AdjustBackward(d time.Time) time.Time {
	d = Date(d)
	for !IsBusinessDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
