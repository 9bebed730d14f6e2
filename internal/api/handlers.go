package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/serve.report/internal/httputil"
	"github.com/banshee-data/serve.report/internal/motion/biomech"
	"github.com/banshee-data/serve.report/internal/motion/feedback"
	"github.com/banshee-data/serve.report/internal/motion/phases"
	"github.com/banshee-data/serve.report/internal/motion/report"
	sqlite "github.com/banshee-data/serve.report/internal/motion/storage/sqlite"
	"github.com/banshee-data/serve.report/internal/units"
	"github.com/banshee-data/serve.report/internal/version"
)

const maxSessionsLimit = 1000

// SessionDetail is everything stored for one session except its snapshots.
type SessionDetail struct {
	*sqlite.Session
	Events   []sqlite.StoredEvent       `json:"events"`
	Feedback []feedback.FeedbackItem    `json:"feedback"`
	Analyses []feedback.QualityAnalysis `json:"analyses"`
}

// SnapshotsResponse carries snapshots with calibrated wrist velocities in
// Units.
type SnapshotsResponse struct {
	SessionID string                    `json:"session_id"`
	Units     string                    `json:"units"`
	Snapshots []biomech.MetricsSnapshot `json:"snapshots"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"units":       s.units,
		"speed_units": units.ValidSpeedUnits,
	})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, version.Get())
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 || v > maxSessionsLimit {
			httputil.BadRequest(w, fmt.Sprintf("Invalid 'limit' parameter (1-%d)", maxSessionsLimit))
			return
		}
		limit = v
	}

	sessions, err := s.store.ListSessions(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []*sqlite.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getSession(w, r)
	case http.MethodDelete:
		s.deleteSession(w, r)
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.lookup(w, id)
	if !ok {
		return
	}

	detail := SessionDetail{Session: sess}
	var err error
	if detail.Events, err = s.store.ListPhaseEvents(id); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load phase events: %v", err))
		return
	}
	if detail.Feedback, err = s.store.ListFeedback(id); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load feedback: %v", err))
		return
	}
	if detail.Analyses, err = s.store.ListAnalyses(id); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load analyses: %v", err))
		return
	}
	httputil.WriteJSONOK(w, detail)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.store.DeleteSession(id)
	switch {
	case errors.Is(err, sqlite.ErrSessionNotFound):
		httputil.NotFound(w, fmt.Sprintf("session %s not found", id))
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("Failed to delete session: %v", err))
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	speedUnits := s.units
	if u := r.URL.Query().Get("units"); u != "" {
		if !units.IsValidSpeed(u) {
			httputil.BadRequest(w, fmt.Sprintf("Invalid 'units' parameter, expected one of %v", units.ValidSpeedUnits))
			return
		}
		speedUnits = u
	}

	id := r.PathValue("id")
	if _, ok := s.lookup(w, id); !ok {
		return
	}
	snaps, err := s.store.ListSnapshots(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load snapshots: %v", err))
		return
	}
	for i := range snaps {
		snaps[i] = convertVelocities(snaps[i], speedUnits)
	}
	if snaps == nil {
		snaps = []biomech.MetricsSnapshot{}
	}
	httputil.WriteJSONOK(w, SnapshotsResponse{SessionID: id, Units: speedUnits, Snapshots: snaps})
}

// convertVelocities converts calibrated wrist speeds from m/s. Uncalibrated
// speeds are in model units and are left alone.
func convertVelocities(m biomech.MetricsSnapshot, speedUnits string) biomech.MetricsSnapshot {
	if !m.Calibrated {
		return m
	}
	if m.LeftWristVelocity != nil {
		m.LeftWristVelocity = biomech.Float(units.ConvertSpeed(*m.LeftWristVelocity, speedUnits))
	}
	if m.RightWristVelocity != nil {
		m.RightWristVelocity = biomech.Float(units.ConvertSpeed(*m.RightWristVelocity, speedUnits))
	}
	return m
}

func (s *Server) sessionChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	id := r.PathValue("id")
	snaps, events, ok := s.timeline(w, id)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.RenderHTML(&buf, "Serve session "+id, snaps, events); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	httputil.WriteHTML(w, buf.Bytes())
}

func (s *Server) sessionTimelinePNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	id := r.PathValue("id")
	snaps, _, ok := s.timeline(w, id)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if _, err := report.WritePNG(&buf, "Serve session "+id, snaps); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) timeline(w http.ResponseWriter, id string) ([]biomech.MetricsSnapshot, []phases.PhaseEvent, bool) {
	if _, ok := s.lookup(w, id); !ok {
		return nil, nil, false
	}
	snaps, err := s.store.ListSnapshots(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load snapshots: %v", err))
		return nil, nil, false
	}
	stored, err := s.store.ListPhaseEvents(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load phase events: %v", err))
		return nil, nil, false
	}
	events := make([]phases.PhaseEvent, len(stored))
	for i, ev := range stored {
		events[i] = ev.PhaseEvent
	}
	return snaps, events, true
}

// lookup writes a 404 or 500 and reports false when the session cannot be
// loaded.
func (s *Server) lookup(w http.ResponseWriter, id string) (*sqlite.Session, bool) {
	sess, err := s.store.GetSession(id)
	if errors.Is(err, sqlite.ErrSessionNotFound) {
		httputil.NotFound(w, fmt.Sprintf("session %s not found", id))
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load session: %v", err))
		return nil, false
	}
	return sess, true
}
