package web

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"diskdash/internal/daterange"
	appLog "diskdash/internal/log"
	"diskdash/internal/model"
	"diskdash/internal/report"
)

// rangeSession is one open date-range picker. The model is single-owner,
// so every request on the session holds mu.
type rangeSession struct {
	id string

	mu      sync.Mutex
	model   *daterange.Model
	touched time.Time
}

// rangeResponse is the JSON view of a session after a request.
type rangeResponse struct {
	ID        string            `json:"id"`
	Start     string            `json:"start"`
	End       string            `json:"end"`
	Notify    bool              `json:"notify"`
	Next      model.Endpoint    `json:"next"`
	TimeRange bool              `json:"time_range"`
	Display   daterange.Display `json:"display"`
	Months    [2]string         `json:"months"`
}

func (rs *rangeSession) response(c model.Change) rangeResponse {
	m := rs.model
	return rangeResponse{
		ID:        rs.id,
		Start:     c.Start,
		End:       c.End,
		Notify:    c.Notify,
		Next:      m.Next(),
		TimeRange: m.TimeRange(),
		Display:   m.Display(),
		Months:    [2]string{m.MonthLabel(1), m.MonthLabel(2)},
	}
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, rs *rangeSession)

// withSession resolves {id}, locks the session for the duration of the
// handler and refreshes its idle timer.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s.sessMu.RLock()
		rs := s.sessions[id]
		s.sessMu.RUnlock()
		if rs == nil {
			writeError(w, http.StatusNotFound, "range session not found")
			return
		}

		rs.mu.Lock()
		defer rs.mu.Unlock()
		if s.now().Sub(rs.touched) > s.cfg.SessionTTL() {
			s.dropSession(id)
			writeError(w, http.StatusNotFound, "range session expired")
			return
		}
		rs.touched = s.now()
		h(w, r, rs)
	}
}

func (s *Server) newModel() *daterange.Model {
	return daterange.New(
		daterange.WithLocation(s.cfg.Location()),
		daterange.WithTimeFormat(s.cfg.TimeFormat),
		daterange.WithDateLayout(s.cfg.DateFormat),
		daterange.WithClock(s.now),
	)
}

type createRangeRequest struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// handleCreateRange opens a session. A body with start and end seeds the
// range as an external value.
func (s *Server) handleCreateRange(w http.ResponseWriter, r *http.Request) {
	var req createRangeRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid range body: "+err.Error())
		return
	}
	if (req.Start == nil) != (req.End == nil) {
		writeError(w, http.StatusBadRequest, "start and end must be given together")
		return
	}

	rs := &rangeSession{
		id:      uuid.NewString(),
		model:   s.newModel(),
		touched: s.now(),
	}
	change := model.NewChange(rs.model.Range(), false)
	if req.Start != nil {
		change = rs.model.ApplyExternal(model.UpdateRequest{Start: *req.Start, End: *req.End})
	}

	s.sweepSessions()
	s.sessMu.Lock()
	s.sessions[rs.id] = rs
	s.sessMu.Unlock()

	appLog.Debug("range session opened", "id", rs.id)
	writeJSON(w, http.StatusCreated, rs.response(change))
}

func (s *Server) handleGetRange(w http.ResponseWriter, _ *http.Request, rs *rangeSession) {
	writeJSON(w, http.StatusOK, rs.response(model.NewChange(rs.model.Range(), false)))
}

// handleUpdateRange applies a user edit. With which_date empty both start
// and end are required.
func (s *Server) handleUpdateRange(w http.ResponseWriter, r *http.Request, rs *rangeSession) {
	var req model.UpdateRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid range body: "+err.Error())
		return
	}
	switch req.Which {
	case model.EndpointStart:
		if req.Start.IsZero() {
			writeError(w, http.StatusBadRequest, "start is required")
			return
		}
	case model.EndpointEnd:
		if req.End.IsZero() {
			writeError(w, http.StatusBadRequest, "end is required")
			return
		}
	case model.EndpointNone:
		if req.Start.IsZero() || req.End.IsZero() {
			writeError(w, http.StatusBadRequest, "start and end are required")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "which_date must be start, end or empty")
		return
	}
	writeJSON(w, http.StatusOK, rs.response(rs.model.ApplyUserEdit(req)))
}

func (s *Server) handleDeleteRange(w http.ResponseWriter, r *http.Request) {
	if !s.dropSession(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "range session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pickRequest struct {
	Day string `json:"day"`
}

func (s *Server) handlePickDay(w http.ResponseWriter, r *http.Request, rs *rangeSession) {
	var req pickRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid pick body: "+err.Error())
		return
	}
	day, err := time.ParseInLocation(time.DateOnly, req.Day, rs.model.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}
	if !rs.model.Enabled(day) {
		writeError(w, http.StatusConflict, "day is before the start date")
		return
	}
	writeJSON(w, http.StatusOK, rs.response(rs.model.PickDay(day)))
}

type timeRequest struct {
	Which model.Endpoint `json:"which"`
	Text  string         `json:"text"`
}

type timeRejected struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Display string `json:"display"`
}

// handleEditTime applies time-field text. Rejected text answers 422 with
// the value the field should revert to.
func (s *Server) handleEditTime(w http.ResponseWriter, r *http.Request, rs *rangeSession) {
	var req timeRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid time body: "+err.Error())
		return
	}
	if !req.Which.Valid() {
		writeError(w, http.StatusBadRequest, "which must be start or end")
		return
	}

	change, err := rs.model.EditTime(req.Which, req.Text)
	var invalid *daterange.InvalidTimeError
	if errors.As(err, &invalid) {
		writeJSON(w, http.StatusUnprocessableEntity, timeRejected{
			Error:   invalid.Error(),
			Display: invalid.Display,
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rs.response(change))
}

type timeRangeRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleTimeRange(w http.ResponseWriter, r *http.Request, rs *rangeSession) {
	var req timeRangeRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rs.response(rs.model.SetTimeRange(req.Enabled)))
}

type navigateRequest struct {
	Direction string `json:"direction"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request, rs *rangeSession) {
	var req navigateRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	switch req.Direction {
	case "prev":
		rs.model.PrevMonth()
	case "next":
		rs.model.NextMonth()
	default:
		writeError(w, http.StatusBadRequest, "direction must be prev or next")
		return
	}
	writeJSON(w, http.StatusOK, rs.response(model.NewChange(rs.model.Range(), false)))
}

type presetRequest struct {
	Period report.Period `json:"period"`
}

// handlePreset replaces the range with the window of the latest scheduled
// report. Choosing a preset counts as a user edit.
func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request, rs *rangeSession) {
	var req presetRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	win, status, err := s.reportWindow(r, req.Period)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	change := rs.model.ApplyUserEdit(model.UpdateRequest{Start: win.Start, End: win.End})
	writeJSON(w, http.StatusOK, rs.response(change))
}

type calendarResponse struct {
	Label string           `json:"label"`
	Days  []daterange.Cell `json:"days"`
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request, rs *rangeSession) {
	grid := 1
	if v := r.URL.Query().Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || (n != 1 && n != 2) {
			writeError(w, http.StatusBadRequest, "month must be 1 or 2")
			return
		}
		grid = n
	}
	writeJSON(w, http.StatusOK, calendarResponse{
		Label: rs.model.MonthLabel(grid),
		Days:  rs.model.MonthGrid(grid),
	})
}

type reportWindowResponse struct {
	Period report.Period `json:"period"`
	Start  string        `json:"start"`
	End    string        `json:"end"`
}

func (s *Server) handleReportWindow(w http.ResponseWriter, r *http.Request) {
	period := report.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = report.Daily
	}
	win, status, err := s.reportWindow(r, period)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	c := model.NewChange(win, false)
	writeJSON(w, http.StatusOK, reportWindowResponse{Period: period, Start: c.Start, End: c.End})
}

func (s *Server) reportWindow(r *http.Request, period report.Period) (model.Range, int, error) {
	st, err := s.cache.Settings(r.Context())
	if err != nil {
		appLog.Error("api report window: settings unavailable", err)
		return model.Range{}, http.StatusBadGateway, errors.New("failed to load settings")
	}
	win, err := report.Window(period, report.ScheduleFromSettings(st), s.now().In(s.cfg.Location()))
	if errors.Is(err, report.ErrUnknownPeriod) {
		return model.Range{}, http.StatusBadRequest, err
	}
	if err != nil {
		return model.Range{}, http.StatusInternalServerError, err
	}
	return win, http.StatusOK, nil
}

func (s *Server) dropSession(id string) bool {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// sweepSessions removes sessions idle longer than the configured TTL.
// Sessions currently locked by a request are skipped.
func (s *Server) sweepSessions() {
	ttl := s.cfg.SessionTTL()
	now := s.now()

	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	for id, rs := range s.sessions {
		if !rs.mu.TryLock() {
			continue
		}
		expired := now.Sub(rs.touched) > ttl
		rs.mu.Unlock()
		if expired {
			delete(s.sessions, id)
		}
	}
}
