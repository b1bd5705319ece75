package fiscal

import (
	"fmt"
	"time"
)

// readDateFormat is permissive on read and accepts single-digit month/day
// ("2024-7-1" as well as "2024-07-01").
const readDateFormat = "2006-1-2"

// DateFormat is the canonical ISO-8601 representation used on write.
const DateFormat = "2006-01-02"

// Date is a civil calendar date with day granularity and no timezone. All
// fiscal year/period arithmetic is done on this type so a record ingested
// from any locale lands in the same fiscal bucket.
type Date struct {
	y int
	m time.Month
	d int
}

// time returns the canonical time.Time for the date (midnight UTC).
func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// NewDate returns a normalized Date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// Year returns the calendar year.
func (d Date) Year() int { return d.y }

// Month returns the calendar month.
func (d Date) Month() time.Month { return d.m }

// Day returns the day of the month.
func (d Date) Day() int { return d.d }

// String formats the date in its canonical ISO-8601 form.
func (d Date) String() string { return d.time().Format(DateFormat) }

// ParseDate parses a civil date, rejecting strings that are not real
// calendar dates ("2024-02-30" fails even though it scans).
func ParseDate(str string) (Date, error) {
	on, err := time.Parse(readDateFormat, str)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want format %q: %w", str, DateFormat, err)
	}
	return NewDate(on.Date()), nil
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	// day 0 of the next month normalizes to the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
