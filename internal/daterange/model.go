// Package daterange holds the state behind the dashboard's two-month
// date-range picker: a (start, end) pair that always satisfies
// start <= end, plus the calendar and time-field gestures that edit it.
//
// A Model is owned by one caller and is not safe for concurrent use.
package daterange

import (
	"time"

	"diskdash/internal/model"
)

const (
	DefaultDateLayout = "02/01/2006"
	layout12h         = "03:04PM"
	layout24h         = "15:04"
)

// Model is the mutable date-range state.
type Model struct {
	rng       model.Range
	next      model.Endpoint
	timeRange bool

	dateLayout string
	timeLayout string
	loc        *time.Location
	now        func() time.Time

	// month1 is the first day of the left-hand month grid; the right-hand
	// grid always shows the following month.
	month1 time.Time
}

// Option configures a Model at construction.
type Option func(*Model)

// WithLocation sets the display timezone. Every instant fed into the model
// is converted into it.
func WithLocation(loc *time.Location) Option {
	return func(m *Model) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithClock overrides time.Now for the initial range.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTimeFormat selects "12" (03:04PM) or any other value for 24-hour
// (15:04) time text.
func WithTimeFormat(format string) Option {
	return func(m *Model) {
		if format == "12" {
			m.timeLayout = layout12h
		} else {
			m.timeLayout = layout24h
		}
	}
}

// WithDateLayout sets the Go layout used by Display for dates.
func WithDateLayout(layout string) Option {
	return func(m *Model) {
		if layout != "" {
			m.dateLayout = layout
		}
	}
}

// New returns a model covering today 00:00 through the end of tomorrow,
// with the next calendar pick targeting the start endpoint.
func New(opts ...Option) *Model {
	m := &Model{
		next:       model.EndpointStart,
		timeRange:  true,
		dateLayout: DefaultDateLayout,
		timeLayout: layout12h,
		loc:        time.Local,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	today := m.now().In(m.loc)
	m.rng = model.Range{
		Start: startOfDay(today),
		End:   endOfDay(today.AddDate(0, 0, 1)),
	}
	m.resetMonths()
	return m
}

// Range returns the current range.
func (m *Model) Range() model.Range {
	return m.rng
}

// Next reports which endpoint the next calendar pick will set.
func (m *Model) Next() model.Endpoint {
	return m.next
}

// Location returns the display timezone.
func (m *Model) Location() *time.Location {
	return m.loc
}

// SetEndpoint makes t the new value of one endpoint and repairs the other
// if the pair would be out of order. The repaired endpoint moves to t's
// date while keeping its own time of day; if that is still not strictly
// ordered it collapses onto t.
func (m *Model) SetEndpoint(which model.Endpoint, t time.Time) model.Range {
	t = t.In(m.loc)

	switch which {
	case model.EndpointStart:
		prevEnd := m.rng.End
		m.rng.Start = t
		if m.rng.Start.After(prevEnd) {
			candidate := withClockOf(t, prevEnd)
			if m.rng.Start.Before(candidate) {
				m.rng.End = candidate
			} else {
				m.rng.End = t
			}
		}
	case model.EndpointEnd:
		prevStart := m.rng.Start
		m.rng.End = t
		if prevStart.After(m.rng.End) {
			candidate := withClockOf(t, prevStart)
			if m.rng.End.After(candidate) {
				m.rng.Start = candidate
			} else {
				m.rng.Start = t
			}
		}
	}
	return m.rng
}

// SetBoth overwrites both endpoints. An end before start collapses onto
// start; no time of day is preserved.
func (m *Model) SetBoth(start, end time.Time) model.Range {
	start = start.In(m.loc)
	end = end.In(m.loc)

	m.rng.Start = start
	if start.Before(end) {
		m.rng.End = end
	} else {
		m.rng.End = start
	}
	return m.rng
}

// Apply routes req to SetEndpoint or SetBoth.
func (m *Model) Apply(req model.UpdateRequest) model.Range {
	switch req.Which {
	case model.EndpointStart:
		return m.SetEndpoint(model.EndpointStart, req.Start)
	case model.EndpointEnd:
		return m.SetEndpoint(model.EndpointEnd, req.End)
	default:
		return m.SetBoth(req.Start, req.End)
	}
}

// ApplyExternal applies a value pushed in by the owner of the bound form
// (initial load, reset). The returned Change has Notify unset.
func (m *Model) ApplyExternal(req model.UpdateRequest) model.Change {
	r := m.Apply(req)
	m.resetMonths()
	return model.NewChange(r, false)
}

// ApplyUserEdit applies a gesture made in the picker itself. The returned
// Change should be dispatched to subscribers.
func (m *Model) ApplyUserEdit(req model.UpdateRequest) model.Change {
	r := m.Apply(req)
	m.resetMonths()
	return model.NewChange(r, true)
}

// SetTimeRange toggles whether the range carries a time of day. Turning it
// off snaps start to the start of its day and end to the end of its day;
// the returned Change is marked for notification only in that case.
func (m *Model) SetTimeRange(enabled bool) model.Change {
	if m.timeRange == enabled {
		return model.NewChange(m.rng, false)
	}
	m.timeRange = enabled
	if enabled {
		return model.NewChange(m.rng, false)
	}
	return m.ApplyUserEdit(model.UpdateRequest{
		Start: startOfDay(m.rng.Start),
		End:   endOfDay(m.rng.End),
	})
}

// TimeRange reports whether time-of-day editing is enabled.
func (m *Model) TimeRange() bool {
	return m.timeRange
}

// Display is the textual form shown in the picker's input fields.
type Display struct {
	StartDate string `json:"start_date"`
	StartTime string `json:"start_time,omitempty"`
	EndDate   string `json:"end_date"`
	EndTime   string `json:"end_time,omitempty"`
}

// Display formats the current range. Times are empty when the time range
// is switched off.
func (m *Model) Display() Display {
	d := Display{
		StartDate: m.rng.Start.Format(m.dateLayout),
		EndDate:   m.rng.End.Format(m.dateLayout),
	}
	if m.timeRange {
		d.StartTime = m.FormatTime(model.EndpointStart)
		d.EndTime = m.FormatTime(model.EndpointEnd)
	}
	return d
}

func (m *Model) endpoint(which model.Endpoint) time.Time {
	if which == model.EndpointEnd {
		return m.rng.End
	}
	return m.rng.Start
}

// withClockOf returns date's calendar day with clock's hour, minute and
// second. date's sub-second part and location are kept.
func withClockOf(date, clock time.Time) time.Time {
	clock = clock.In(date.Location())
	return time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), date.Nanosecond(), date.Location())
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// endOfDay is the last millisecond of t's day.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}
