package daterange

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"diskdash/internal/model"
)

// ErrInvalidTime is matched (via errors.Is) by every *InvalidTimeError.
var ErrInvalidTime = errors.New("invalid time of day")

// InvalidTimeError reports rejected time text. Display holds the last valid
// formatted value the input field should revert to.
type InvalidTimeError struct {
	Which   model.Endpoint
	Text    string
	Display string
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("%s time %q: %v", e.Which, e.Text, ErrInvalidTime)
}

func (e *InvalidTimeError) Is(target error) bool {
	return target == ErrInvalidTime
}

var timeText = regexp.MustCompile(`(?i)^(0[0-9]|1[0-9]|2[0-4]|[0-9]):([0-5][0-9])(A|AM|P|PM)?$`)

// ParseTime parses "H:MM", "HH:MM" or the same followed by A, AM, P or PM
// (any case). Hour 24 means midnight. A meridiem is ignored on hours above 12.
func ParseTime(text string) (hour, minute int, err error) {
	parts := timeText.FindStringSubmatch(strings.TrimSpace(text))
	if parts == nil {
		return 0, 0, ErrInvalidTime
	}
	hour, _ = strconv.Atoi(parts[1])
	minute, _ = strconv.Atoi(parts[2])

	switch meridiem := strings.ToUpper(parts[3]); {
	case hour > 12 || meridiem == "":
	case strings.HasPrefix(meridiem, "P"):
		hour = hour%12 + 12
	default:
		hour %= 12
	}
	return hour % 24, minute, nil
}

// FormatTime renders an endpoint's time of day in the configured layout.
func (m *Model) FormatTime(which model.Endpoint) string {
	return m.endpoint(which).Format(m.timeLayout)
}

// SetTimeOfDay replaces hour and minute on one endpoint, keeping its date.
// If that would cross the other endpoint, the other endpoint's hour and
// minute are borrowed instead. Ordering is then enforced as in SetEndpoint.
func (m *Model) SetTimeOfDay(which model.Endpoint, hour, minute int) model.Range {
	if !which.Valid() {
		return m.rng
	}
	cur := m.endpoint(which)
	candidate := time.Date(cur.Year(), cur.Month(), cur.Day(),
		hour, minute, cur.Second(), cur.Nanosecond(), cur.Location())

	switch which {
	case model.EndpointStart:
		if candidate.After(m.rng.End) {
			candidate = withHourMinute(candidate, m.rng.End)
		}
	case model.EndpointEnd:
		if candidate.Before(m.rng.Start) {
			candidate = withHourMinute(candidate, m.rng.Start)
		}
	}
	return m.SetEndpoint(which, candidate)
}

// EditTime applies time text typed into one of the picker's time fields.
// Malformed text leaves the range untouched and returns an
// *InvalidTimeError carrying the text to redisplay.
func (m *Model) EditTime(which model.Endpoint, text string) (model.Change, error) {
	if !which.Valid() {
		return model.Change{}, fmt.Errorf("edit time: unknown endpoint %q", which)
	}
	hour, minute, err := ParseTime(text)
	if err != nil {
		return model.NewChange(m.rng, false), &InvalidTimeError{
			Which:   which,
			Text:    text,
			Display: m.FormatTime(which),
		}
	}
	m.SetTimeOfDay(which, hour, minute)
	m.resetMonths()
	return model.NewChange(m.rng, true), nil
}

func withHourMinute(t, clock time.Time) time.Time {
	clock = clock.In(t.Location())
	return time.Date(t.Year(), t.Month(), t.Day(),
		clock.Hour(), clock.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
