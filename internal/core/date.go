package core

import (
	"strings"
	"time"
)

const (
	// DateLayout is the year-month-day form used on the wire and in the date input.
	DateLayout = "2006-01-02"
	// DisplayLayout is the Italian short form, day/month/year without padding.
	DisplayLayout = "2/1/2006"
)

// Date is a calendar date. The time part is always midnight UTC.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// Today returns the local calendar date of now.
func Today(now time.Time) Date {
	y, m, d := now.Date()
	return NewDate(y, int(m), d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String returns the YYYY-MM-DD form, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// FormatDisplayDate renders a wire date as day/month/year. The value is read
// as a calendar date so no timezone can shift it. Timestamps are accepted
// too; anything else is returned verbatim.
func FormatDisplayDate(raw string) string {
	if d, err := ParseDate(raw); err == nil {
		return d.Format(DisplayLayout)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format(DisplayLayout)
	}
	if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return t.Format(DisplayLayout)
	}
	return raw
}
