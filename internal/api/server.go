// Package api serves stored serve-analysis sessions over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/serve.report/internal/monitoring"
	"github.com/banshee-data/serve.report/internal/motion/biomech"
	"github.com/banshee-data/serve.report/internal/motion/feedback"
	sqlite "github.com/banshee-data/serve.report/internal/motion/storage/sqlite"
	"github.com/banshee-data/serve.report/internal/timeutil"
	"github.com/banshee-data/serve.report/internal/units"
)

// ANSI escape codes for request log colouring
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// SessionStore is the read side of the session database the API needs.
type SessionStore interface {
	ListSessions(limit int) ([]*sqlite.Session, error)
	GetSession(sessionID string) (*sqlite.Session, error)
	DeleteSession(sessionID string) error
	ListSnapshots(sessionID string) ([]biomech.MetricsSnapshot, error)
	ListPhaseEvents(sessionID string) ([]sqlite.StoredEvent, error)
	ListFeedback(sessionID string) ([]feedback.FeedbackItem, error)
	ListAnalyses(sessionID string) ([]feedback.QualityAnalysis, error)
}

type Server struct {
	store SessionStore
	units string
}

// NewServer creates a server whose default speed unit is units. Unknown
// units fall back to m/s.
func NewServer(store SessionStore, speedUnits string) *Server {
	if !units.IsValidSpeed(speedUnits) {
		speedUnits = units.MPS
	}
	return &Server{store: store, units: speedUnits}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs status, method, URI and duration of each request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return loggingMiddleware(timeutil.RealClock{}, next)
}

func loggingMiddleware(clock timeutil.Clock, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := clock.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(clock.Since(start)/time.Microsecond)/1e3,
		)
	})
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/{id}", s.session)
	mux.HandleFunc("/api/sessions/{id}/snapshots", s.listSnapshots)
	mux.HandleFunc("/sessions/{id}/chart", s.sessionChart)
	mux.HandleFunc("/sessions/{id}/timeline.png", s.sessionTimelinePNG)
	return mux
}
