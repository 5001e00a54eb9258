package core

import (
	"errors"
	"time"
)

type (
	// Date is a calendar date with no time component.
	Date struct {
		time.Time
	}

	// User is an account row. Password is stored and compared verbatim.
	User struct {
		ID       int64
		Username string
		Email    string
		Password string
		FullName string
	}

	// Category is one of the fixed spending categories seeded at migration time.
	Category struct {
		ID   int64
		Name string
	}

	// Expense is a dated amount owned by a user. CategoryName is joined in
	// for display and is not an independent fact.
	Expense struct {
		ID           int64
		UserID       int64
		CategoryID   int64
		Amount       Money
		Description  string
		Date         Date
		CategoryName string
	}

	// CategoryTotal is a summed amount for one category name. A slice of
	// these preserves the store's group ordering, which a map would not.
	CategoryTotal struct {
		Name   string
		Amount Money
	}
)

var (
	// ErrNotFound marks a lookup or ownership-scoped mutation that matched
	// zero rows. It is a normal outcome, not a store failure.
	ErrNotFound = errors.New("not found")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

// DateLayout is the wire and storage format for expense dates.
const DateLayout = "2006-01-02"

// NewDate builds a Date from its parts, normalized to UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// Year returns the calendar year.
func (d Date) Year() int {
	return d.Time.Year()
}

// Month returns the month as 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}
