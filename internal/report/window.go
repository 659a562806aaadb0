// Package report computes the date ranges covered by scheduled health
// reports, used as presets for the dashboard's range picker.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"diskdash/internal/model"
	"diskdash/internal/settings"
)

// Period names a report cadence.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

var ErrUnknownPeriod = errors.New("unknown report period")

// Schedule is the time-of-day and day selection for each cadence.
type Schedule struct {
	DailyTime   string
	WeeklyDay   int // 0 = Sunday
	WeeklyTime  string
	MonthlyDay  int
	MonthlyTime string
}

// ScheduleFromSettings extracts the report schedule from user settings.
func ScheduleFromSettings(s *settings.Settings) Schedule {
	return Schedule{
		DailyTime:   s.Metrics.ReportDailyTime,
		WeeklyDay:   s.Metrics.ReportWeeklyDay,
		WeeklyTime:  s.Metrics.ReportWeeklyTime,
		MonthlyDay:  s.Metrics.ReportMonthlyDay,
		MonthlyTime: s.Metrics.ReportMonthlyTime,
	}
}

var weekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Window returns the range covered by the most recent report of period:
// from the previous scheduled run to the latest run at or before now.
func Window(period Period, sched Schedule, now time.Time) (model.Range, error) {
	r, err := rule(period, sched, now)
	if err != nil {
		return model.Range{}, err
	}

	end := r.Before(now, true)
	if end.IsZero() {
		return model.Range{}, fmt.Errorf("%s report: no run at or before %s", period, now.Format(time.RFC3339))
	}
	start := r.Before(end, false)
	if start.IsZero() {
		return model.Range{}, fmt.Errorf("%s report: no run before %s", period, end.Format(time.RFC3339))
	}
	return model.Range{Start: start, End: end}, nil
}

func rule(period Period, sched Schedule, now time.Time) (*rrule.RRule, error) {
	opt := rrule.ROption{Bysecond: []int{0}}
	var timeStr string
	var lookback time.Time

	switch period {
	case Daily:
		opt.Freq = rrule.DAILY
		timeStr = sched.DailyTime
		lookback = now.AddDate(0, 0, -3)
	case Weekly:
		opt.Freq = rrule.WEEKLY
		day := sched.WeeklyDay
		if day < 0 || day > 6 {
			day = 1
		}
		opt.Byweekday = []rrule.Weekday{weekdays[day]}
		timeStr = sched.WeeklyTime
		lookback = now.AddDate(0, 0, -15)
	case Monthly:
		opt.Freq = rrule.MONTHLY
		day := sched.MonthlyDay
		if day < 1 || day > 31 {
			day = 1
		}
		opt.Bymonthday = []int{day}
		timeStr = sched.MonthlyTime
		// Long enough to see two months that have day 31.
		lookback = now.AddDate(-1, 0, 0)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}

	h, m := parseTimeOfDay(timeStr)
	opt.Byhour = []int{h}
	opt.Byminute = []int{m}
	opt.Dtstart = time.Date(lookback.Year(), lookback.Month(), lookback.Day(), 0, 0, 0, 0, now.Location())

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%s report rule: %w", period, err)
	}
	return r, nil
}

// parseTimeOfDay reads "HH:MM", falling back to 08:00.
func parseTimeOfDay(s string) (int, int) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 8, 0
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 8, 0
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 8, 0
	}
	return h, m
}
