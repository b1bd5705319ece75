package fiscal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-07-01")
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.July, d.Month())
	assert.Equal(t, 1, d.Day())

	// single-digit month/day accepted on read
	d, err = ParseDate("2024-7-1")
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01", d.String())

	_, err = ParseDate("not-a-date")
	assert.Error(t, err)

	_, err = ParseDate("2024-02-30")
	assert.Error(t, err, "impossible calendar dates must be rejected")

	_, err = ParseDate("07/01/2024")
	assert.Error(t, err, "only ISO-style dates are accepted")
}

func TestYearOf_CalendarAligned(t *testing.T) {
	cfg := Clamped(1, 1)
	for _, d := range []Date{
		NewDate(2024, time.January, 1),
		NewDate(2024, time.June, 15),
		NewDate(2024, time.December, 31),
	} {
		assert.Equal(t, d.Year(), cfg.YearOf(d), "date %s", d)
	}
}

func TestYearOf_JulyStart(t *testing.T) {
	cfg := Clamped(7, 1)
	assert.Equal(t, 2024, cfg.YearOf(NewDate(2024, time.June, 30)))
	assert.Equal(t, 2025, cfg.YearOf(NewDate(2024, time.July, 1)))
	assert.Equal(t, 2025, cfg.YearOf(NewDate(2024, time.December, 31)))
	assert.Equal(t, 2025, cfg.YearOf(NewDate(2025, time.June, 30)))
}

func TestYearOf_MidMonthStart(t *testing.T) {
	cfg := Clamped(7, 15)
	assert.Equal(t, 2024, cfg.YearOf(NewDate(2024, time.July, 14)))
	assert.Equal(t, 2025, cfg.YearOf(NewDate(2024, time.July, 15)))
}

func TestYearOf_Deterministic(t *testing.T) {
	cfg := Clamped(10, 1)
	d := NewDate(2023, time.October, 1)
	assert.Equal(t, cfg.YearOf(d), cfg.YearOf(d))
}

func TestPeriodOf(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		date   Date
		period int
	}{
		{"january start, january", Clamped(1, 1), NewDate(2024, time.January, 5), 1},
		{"january start, december", Clamped(1, 1), NewDate(2024, time.December, 5), 12},
		{"july start, july", Clamped(7, 1), NewDate(2024, time.July, 1), 1},
		{"july start, june", Clamped(7, 1), NewDate(2024, time.June, 30), 12},
		{"july start, january", Clamped(7, 1), NewDate(2025, time.January, 10), 7},
		{"mid-month start, before boundary", Clamped(7, 15), NewDate(2024, time.August, 10), 1},
		{"mid-month start, after boundary", Clamped(7, 15), NewDate(2024, time.August, 15), 2},
		{"mid-month start, january wrap", Clamped(7, 15), NewDate(2024, time.January, 10), 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.period, tt.cfg.PeriodOf(tt.date))
		})
	}
}

func TestClamped(t *testing.T) {
	assert.Equal(t, Config{StartMonth: 1, StartDay: 1}, Clamped(0, 0))
	assert.Equal(t, Config{StartMonth: 1, StartDay: 1}, Clamped(13, 45))
	assert.Equal(t, Config{StartMonth: 7, StartDay: 1}, Clamped(7, 0))
	assert.Equal(t, Config{StartMonth: 1, StartDay: 15}, Clamped(-2, 15))
	assert.Equal(t, Config{StartMonth: 10, StartDay: 31}, Clamped(10, 31))
}

func TestAnchorDate(t *testing.T) {
	cfg := Clamped(1, 31)
	// anchor day clamped to the end of short months
	assert.Equal(t, NewDate(2024, time.February, 29), cfg.AnchorDate(2024, time.February))
	assert.Equal(t, NewDate(2023, time.February, 28), cfg.AnchorDate(2023, time.February))
	assert.Equal(t, NewDate(2024, time.April, 30), cfg.AnchorDate(2024, time.April))
	assert.Equal(t, NewDate(2024, time.March, 31), cfg.AnchorDate(2024, time.March))

	cfg = Clamped(7, 1)
	assert.Equal(t, NewDate(2024, time.June, 1), cfg.AnchorDate(2024, time.June))
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, DaysIn(2024, time.February))
	assert.Equal(t, 28, DaysIn(2023, time.February))
	assert.Equal(t, 31, DaysIn(2024, time.January))
	assert.Equal(t, 30, DaysIn(2024, time.September))
}
