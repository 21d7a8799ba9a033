// Package clock evaluates "today" as a calendar date in the library's timezone.
package clock

import (
	"time"

	"cloud.google.com/go/civil"
)

type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed always reports the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// Today returns the calendar date of c.Now() in loc.
func Today(c Clock, loc *time.Location) civil.Date {
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(c.Now().In(loc))
}

// ToTime converts d to midnight UTC, the form pgx writes to a DATE column.
func ToTime(d civil.Date) time.Time {
	return d.In(time.UTC)
}

// FromTime reads a DATE column value back as a calendar date.
func FromTime(t time.Time) civil.Date {
	return civil.DateOf(t)
}

// FromTimePtr is FromTime for nullable columns.
func FromTimePtr(t *time.Time) *civil.Date {
	if t == nil {
		return nil
	}
	d := civil.DateOf(*t)
	return &d
}

// AddMonths shifts d by n calendar months. Day overflow rolls into the next
// month the way time.AddDate does.
func AddMonths(d civil.Date, n int) civil.Date {
	return civil.DateOf(ToTime(d).AddDate(0, n, 0))
}
