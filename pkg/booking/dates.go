package booking

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage layout of a calendar day.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time component, anchored at UTC midnight.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to the calendar day it falls on in its own location.
func DateOf(instant time.Time) Date {
	year, month, day := instant.Date()
	return NewDate(year, month, day)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(raw string) (Date, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	return DateOf(parsed), nil
}

// Time returns the UTC midnight instant of the day.
func (date Date) Time() time.Time {
	return date.t
}

// IsZero reports whether the date was never set.
func (date Date) IsZero() bool {
	return date.t.IsZero()
}

// AddDays returns the date shifted by n days.
func (date Date) AddDays(n int) Date {
	return Date{t: date.t.AddDate(0, 0, n)}
}

// Before reports whether date is strictly before other.
func (date Date) Before(other Date) bool {
	return date.t.Before(other.t)
}

// After reports whether date is strictly after other.
func (date Date) After(other Date) bool {
	return date.t.After(other.t)
}

// Equal reports whether both dates are the same day.
func (date Date) Equal(other Date) bool {
	return date.t.Equal(other.t)
}

// DaysUntil returns the number of days from date to other.
func (date Date) DaysUntil(other Date) int {
	return int(other.t.Sub(date.t).Hours() / 24)
}

// String formats the date as YYYY-MM-DD.
func (date Date) String() string {
	return date.t.Format(DateLayout)
}

// StayRange is a half-open [CheckIn, CheckOut) run of nights.
type StayRange struct {
	checkIn  Date
	checkOut Date
}

// NewStayRange validates that check-out falls after check-in.
func NewStayRange(checkIn Date, checkOut Date) (StayRange, error) {
	if checkIn.IsZero() || checkOut.IsZero() {
		return StayRange{}, fmt.Errorf("%w: missing boundary", ErrInvalidDateRange)
	}
	if !checkOut.After(checkIn) {
		return StayRange{}, fmt.Errorf("%w: check-out %s is not after check-in %s", ErrInvalidDateRange, checkOut, checkIn)
	}
	return StayRange{checkIn: checkIn, checkOut: checkOut}, nil
}

// CheckIn returns the first night.
func (stay StayRange) CheckIn() Date {
	return stay.checkIn
}

// CheckOut returns the exclusive end.
func (stay StayRange) CheckOut() Date {
	return stay.checkOut
}

// Nights returns the number of nights in the range.
func (stay StayRange) Nights() int {
	return stay.checkIn.DaysUntil(stay.checkOut)
}

// Dates enumerates every night in the range.
func (stay StayRange) Dates() []Date {
	nights := make([]Date, 0, stay.Nights())
	for current := stay.checkIn; current.Before(stay.checkOut); current = current.AddDays(1) {
		nights = append(nights, current)
	}
	return nights
}

// String formats the range as [check-in, check-out).
func (stay StayRange) String() string {
	return fmt.Sprintf("[%s, %s)", stay.checkIn, stay.checkOut)
}
