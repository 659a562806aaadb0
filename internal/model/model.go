package model

import "time"

// Endpoint names one boundary of a date range.
type Endpoint string

const (
	// EndpointNone in an UpdateRequest means both endpoints are replaced
	// atomically.
	EndpointNone  Endpoint = ""
	EndpointStart Endpoint = "start"
	EndpointEnd   Endpoint = "end"
)

// Other returns the opposite endpoint. EndpointNone maps to EndpointStart.
func (e Endpoint) Other() Endpoint {
	if e == EndpointStart {
		return EndpointEnd
	}
	return EndpointStart
}

// Valid reports whether e is one of the two named endpoints.
func (e Endpoint) Valid() bool {
	return e == EndpointStart || e == EndpointEnd
}

// Range is a closed [Start, End] interval of instants. Model operations
// keep Start at or before End.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the ordering invariant holds.
func (r Range) Valid() bool {
	return !r.Start.After(r.End)
}

// UpdateRequest carries a candidate range and which endpoint is
// authoritative. With Which == EndpointNone both values are taken as given.
type UpdateRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Which Endpoint  `json:"which_date,omitempty"`
}

// ISOLayout matches the millisecond UTC form emitted to range subscribers.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// Change is the notification produced by a range mutation. Notify is false
// for externally applied values so bound consumers are not told about
// changes they made themselves.
type Change struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Notify bool   `json:"-"`
}

// NewChange formats r in UTC ISO-8601.
func NewChange(r Range, notify bool) Change {
	return Change{
		Start:  r.Start.UTC().Format(ISOLayout),
		End:    r.End.UTC().Format(ISOLayout),
		Notify: notify,
	}
}
