package daterange

import (
	"time"

	"diskdash/internal/model"
)

// DayClass is a calendar cell's position relative to the range.
type DayClass string

const (
	DayUnclassified DayClass = ""
	DayBoth         DayClass = "both-endpoint"
	DayStart        DayClass = "start-endpoint"
	DayEnd          DayClass = "end-endpoint"
	DayWithin       DayClass = "within-range"
)

// PickDay handles a click on a calendar day. The date of the endpoint
// named by Next is replaced (its time of day kept), ordering is enforced,
// and Next flips so clicks alternate between start and end.
func (m *Model) PickDay(day time.Time) model.Change {
	which := m.next
	cur := m.endpoint(which)
	picked := time.Date(day.Year(), day.Month(), day.Day(),
		cur.Hour(), cur.Minute(), cur.Second(), cur.Nanosecond(), cur.Location())

	m.next = which.Other()
	req := model.UpdateRequest{Start: m.rng.Start, End: m.rng.End, Which: which}
	if which == model.EndpointStart {
		req.Start = picked
	} else {
		req.End = picked
	}
	return m.ApplyUserEdit(req)
}

// Classify places a calendar day (only its year, month and day are used)
// against the current range.
func (m *Model) Classify(day time.Time) DayClass {
	d := dateKey(day)
	start := dateKey(m.rng.Start)
	end := dateKey(m.rng.End)

	switch {
	case d == start && d == end:
		return DayBoth
	case d == start:
		return DayStart
	case d == end:
		return DayEnd
	case d > start && d < end:
		return DayWithin
	default:
		return DayUnclassified
	}
}

// Enabled reports whether a day may be clicked. While an end date is
// awaited, days before the start date are disabled.
func (m *Model) Enabled(day time.Time) bool {
	return !(m.next == model.EndpointEnd && dateKey(day) < dateKey(m.rng.Start))
}

// ActiveMonths returns the first day of the two displayed months.
func (m *Model) ActiveMonths() (time.Time, time.Time) {
	return m.month1, m.month1.AddDate(0, 1, 0)
}

// PrevMonth scrolls both month grids back by one month.
func (m *Model) PrevMonth() {
	m.month1 = m.month1.AddDate(0, -1, 0)
}

// NextMonth scrolls both month grids forward by one month.
func (m *Model) NextMonth() {
	m.month1 = m.month1.AddDate(0, 1, 0)
}

// MonthLabel returns "January 2006" for grid 1, or the following month for
// any other value.
func (m *Model) MonthLabel(grid int) string {
	first, second := m.ActiveMonths()
	if grid == 1 {
		return first.Format("January 2006")
	}
	return second.Format("January 2006")
}

// Cell is one day of a month grid.
type Cell struct {
	Date    string   `json:"date"`
	Day     int      `json:"day"`
	Weekday int      `json:"weekday"`
	Class   DayClass `json:"class,omitempty"`
	Enabled bool     `json:"enabled"`
}

// MonthGrid lists the days of grid 1 or 2 with their classification.
func (m *Model) MonthGrid(grid int) []Cell {
	first, second := m.ActiveMonths()
	if grid != 1 {
		first = second
	}
	cells := make([]Cell, 0, 31)
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		cells = append(cells, Cell{
			Date:    d.Format(time.DateOnly),
			Day:     d.Day(),
			Weekday: int(d.Weekday()),
			Class:   m.Classify(d),
			Enabled: m.Enabled(d),
		})
	}
	return cells
}

func (m *Model) resetMonths() {
	s := m.rng.Start
	m.month1 = time.Date(s.Year(), s.Month(), 1, 0, 0, 0, 0, s.Location())
}

// dateKey orders calendar days as yyyymmdd in t's own location.
func dateKey(t time.Time) int {
	y, mo, d := t.Date()
	return y*10000 + int(mo)*100 + d
}
