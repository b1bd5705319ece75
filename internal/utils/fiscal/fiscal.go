package fiscal

import "time"

// Config describes where the portal's fiscal year begins. The zero value is
// not valid; use DefaultConfig or Clamped.
type Config struct {
	StartMonth int
	StartDay   int
}

// DefaultConfig is a calendar-aligned fiscal year starting January 1.
func DefaultConfig() Config {
	return Config{StartMonth: 1, StartDay: 1}
}

// Clamped returns a Config with out-of-range values replaced by the
// January 1 defaults. Misconfigured portal settings degrade to
// calendar-year behavior instead of failing the ingestion run.
func Clamped(startMonth, startDay int) Config {
	if startMonth < 1 || startMonth > 12 {
		startMonth = 1
	}
	if startDay < 1 || startDay > 31 {
		startDay = 1
	}
	return Config{StartMonth: startMonth, StartDay: startDay}
}

// calendarAligned reports whether the fiscal year coincides with the
// calendar year.
func (c Config) calendarAligned() bool {
	return c.StartMonth == 1 && c.StartDay == 1
}

// afterStart reports whether (month, day) falls on or after the fiscal
// year boundary within its calendar year.
func (c Config) afterStart(month time.Month, day int) bool {
	if int(month) != c.StartMonth {
		return int(month) > c.StartMonth
	}
	return day >= c.StartDay
}

// YearOf returns the fiscal year the date belongs to. Fiscal years are named
// for the calendar year in which they end: with a July 1 start, 2024-07-01
// opens fiscal 2025 while 2024-06-30 closes fiscal 2024. A January 1 start
// degenerates to the calendar year.
func (c Config) YearOf(d Date) int {
	if c.calendarAligned() {
		return d.Year()
	}
	if c.afterStart(d.Month(), d.Day()) {
		return d.Year() + 1
	}
	return d.Year()
}

// PeriodOf returns the 1-based month ordinal of the date within its fiscal
// year. A mid-month start day shifts the effective month boundary: with a
// start on the 15th, the 10th of a month still counts against the prior
// period.
func (c Config) PeriodOf(d Date) int {
	effMonth := int(d.Month())
	if d.Day() < c.StartDay {
		effMonth--
		if effMonth == 0 {
			effMonth = 12
		}
	}
	return ((effMonth-c.StartMonth)+12)%12 + 1
}

// AnchorDate synthesizes a civil date for a year and month by anchoring to
// the configured start day, clamped to the last day of that month. Used when
// a record carries only a "YYYY-MM" period string.
func (c Config) AnchorDate(year int, month time.Month) Date {
	day := c.StartDay
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}
