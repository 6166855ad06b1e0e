package cqrs

import (
	"fmt"
	"time"
)

// Period is a named date range relative to the time of the request.
type Period string

const (
	PeriodAll        Period = "all"
	PeriodToday      Period = "today"
	PeriodYesterday  Period = "yesterday"
	PeriodLast7Days  Period = "last-7-days"
	PeriodLast30Days Period = "last-30-days"
	PeriodThisMonth  Period = "this-month"
	PeriodLastMonth  Period = "last-month"
)

var periods = map[Period]struct{}{
	PeriodAll: {}, PeriodToday: {}, PeriodYesterday: {}, PeriodLast7Days: {},
	PeriodLast30Days: {}, PeriodThisMonth: {}, PeriodLastMonth: {},
}

// ParsePeriod maps a query-string value onto a Period. An empty value means all.
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return PeriodAll, nil
	}
	p := Period(s)
	if _, ok := periods[p]; !ok {
		return "", fmt.Errorf("unknown period %q", s)
	}
	return p, nil
}

// DateRange is a half-open interval [From, To). Nil bounds are unbounded.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && !t.Before(*r.To) {
		return false
	}
	return true
}

// Range resolves the period against now. Calendar boundaries use now's location.
func (p Period) Range(now time.Time) DateRange {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	switch p {
	case PeriodToday:
		return DateRange{From: &startOfDay}
	case PeriodYesterday:
		from := startOfDay.AddDate(0, 0, -1)
		return DateRange{From: &from, To: &startOfDay}
	case PeriodLast7Days:
		from := now.AddDate(0, 0, -7)
		return DateRange{From: &from}
	case PeriodLast30Days:
		from := now.AddDate(0, 0, -30)
		return DateRange{From: &from}
	case PeriodThisMonth:
		return DateRange{From: &startOfMonth}
	case PeriodLastMonth:
		from := startOfMonth.AddDate(0, -1, 0)
		return DateRange{From: &from, To: &startOfMonth}
	default:
		return DateRange{}
	}
}
