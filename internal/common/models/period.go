package models

import (
	"fmt"
	"time"
)

// Period is a history window selector shared by KPI and field history queries
type Period string

const (
	Period1h  Period = "1h"
	Period6h  Period = "6h"
	Period24h Period = "24h"
	Period7d  Period = "7d"
	Period30d Period = "30d"
	Period90d Period = "90d"
	Period6m  Period = "6m"
	Period1y  Period = "1y"
	PeriodAll Period = "all"
)

// Interval is the label granularity suggested for a chart over a period
type Interval string

const (
	IntervalHourly  Interval = "hourly"
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

var periodDurations = map[Period]time.Duration{
	Period1h:  time.Hour,
	Period6h:  6 * time.Hour,
	Period24h: 24 * time.Hour,
	Period7d:  7 * 24 * time.Hour,
	Period30d: 30 * 24 * time.Hour,
	Period90d: 90 * 24 * time.Hour,
	Period6m:  182 * 24 * time.Hour,
	Period1y:  365 * 24 * time.Hour,
}

// ParsePeriod defaults an empty value to 30d
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return Period30d, nil
	}
	p := Period(s)
	if p == PeriodAll {
		return p, nil
	}
	if _, ok := periodDurations[p]; !ok {
		return "", fmt.Errorf("invalid period %q", s)
	}
	return p, nil
}

// Since returns the window start for the period, zero time for "all"
func (p Period) Since(now time.Time) time.Time {
	d, ok := periodDurations[p]
	if !ok {
		return time.Time{}
	}
	return now.Add(-d)
}

func (p Period) Interval() Interval {
	switch p {
	case Period1h, Period6h, Period24h:
		return IntervalHourly
	case Period7d, Period30d:
		return IntervalDaily
	case Period90d, Period6m:
		return IntervalWeekly
	default:
		return IntervalMonthly
	}
}
