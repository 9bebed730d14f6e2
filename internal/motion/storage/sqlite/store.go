package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banshee-data/serve.report/internal/motion/biomech"
	"github.com/banshee-data/serve.report/internal/motion/feedback"
	"github.com/banshee-data/serve.report/internal/motion/phases"
	"github.com/banshee-data/serve.report/internal/timeutil"
)

// ErrSessionNotFound is returned when a session ID does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Session is the stored header of one analysis session.
type Session struct {
	SessionID   string   `json:"session_id"`
	Source      string   `json:"source"`
	UserHeightM *float64 `json:"user_height_m,omitempty"`
	Scale       *float64 `json:"scale,omitempty"`
	Frames      int      `json:"frames"`
	CreatedAt   int64    `json:"created_at"`
	FinishedAt  *int64   `json:"finished_at,omitempty"`
}

// StoredEvent is a phase event with its sequence number in the session.
type StoredEvent struct {
	Seq int `json:"seq"`
	phases.PhaseEvent
}

// SessionStore reads and writes sessions in the serve.report database.
type SessionStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewSessionStore creates a store on an already migrated database.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db, clock: timeutil.RealClock{}}
}

// WithClock replaces the clock used to stamp records.
func (s *SessionStore) WithClock(c timeutil.Clock) *SessionStore {
	s.clock = c
	return s
}

// CreateSession inserts a new session header. CreatedAt is set from the
// store clock when zero.
func (s *SessionStore) CreateSession(sess *Session) error {
	if sess.CreatedAt == 0 {
		sess.CreatedAt = s.clock.Now().UnixNano()
	}
	_, err := s.db.Exec(`
		INSERT INTO sessions (session_id, source, user_height_m, scale, frames, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.SessionID, sess.Source, sess.UserHeightM, sess.Scale, sess.Frames, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.SessionID, err)
	}
	return nil
}

// FinishSession records the final frame count and calibration and stamps
// the finish time.
func (s *SessionStore) FinishSession(sessionID string, frames int, cal biomech.Calibration) error {
	res, err := s.db.Exec(`
		UPDATE sessions SET frames = ?, user_height_m = ?, scale = ?, finished_at = ?
		WHERE session_id = ?`,
		frames, cal.UserHeight, cal.Scale, s.clock.Now().UnixNano(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetSession returns one session header.
func (s *SessionStore) GetSession(sessionID string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT session_id, source, user_height_m, scale, frames, created_at, finished_at
		FROM sessions WHERE session_id = ?`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// ListSessions returns the most recent sessions first, at most limit.
func (s *SessionStore) ListSessions(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT session_id, source, user_height_m, scale, frames, created_at, finished_at
		FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and, by cascade, everything recorded
// for it.
func (s *SessionStore) DeleteSession(sessionID string) error {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var height, scale sql.NullFloat64
	var finished sql.NullInt64
	if err := row.Scan(&sess.SessionID, &sess.Source, &height, &scale, &sess.Frames, &sess.CreatedAt, &finished); err != nil {
		return nil, err
	}
	sess.UserHeightM = nullFloat(height)
	sess.Scale = nullFloat(scale)
	if finished.Valid {
		sess.FinishedAt = &finished.Int64
	}
	return &sess, nil
}

// RecordSnapshot stores one metrics snapshot.
func (s *SessionStore) RecordSnapshot(sessionID string, m biomech.MetricsSnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO metric_snapshots (
			session_id, ts,
			left_knee_angle, right_knee_angle, left_elbow_angle, right_elbow_angle,
			shoulder_rotation, hip_rotation,
			left_wrist_height, right_wrist_height, left_wrist_velocity, right_wrist_velocity,
			calibrated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, m.Timestamp,
		m.LeftKneeAngle, m.RightKneeAngle, m.LeftElbowAngle, m.RightElbowAngle,
		m.ShoulderRotation, m.HipRotation,
		m.LeftWristHeight, m.RightWristHeight, m.LeftWristVelocity, m.RightWristVelocity,
		m.Calibrated,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns a session's snapshots in timestamp order.
func (s *SessionStore) ListSnapshots(sessionID string) ([]biomech.MetricsSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT ts,
		       left_knee_angle, right_knee_angle, left_elbow_angle, right_elbow_angle,
		       shoulder_rotation, hip_rotation,
		       left_wrist_height, right_wrist_height, left_wrist_velocity, right_wrist_velocity,
		       calibrated
		FROM metric_snapshots
		WHERE session_id = ?
		ORDER BY ts, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []biomech.MetricsSnapshot
	for rows.Next() {
		var m biomech.MetricsSnapshot
		var f [10]sql.NullFloat64
		if err := rows.Scan(&m.Timestamp,
			&f[0], &f[1], &f[2], &f[3], &f[4], &f[5], &f[6], &f[7], &f[8], &f[9],
			&m.Calibrated,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		m.LeftKneeAngle, m.RightKneeAngle = nullFloat(f[0]), nullFloat(f[1])
		m.LeftElbowAngle, m.RightElbowAngle = nullFloat(f[2]), nullFloat(f[3])
		m.ShoulderRotation, m.HipRotation = nullFloat(f[4]), nullFloat(f[5])
		m.LeftWristHeight, m.RightWristHeight = nullFloat(f[6]), nullFloat(f[7])
		m.LeftWristVelocity, m.RightWristVelocity = nullFloat(f[8]), nullFloat(f[9])
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordPhaseEvent upserts a phase event by (session, seq) so the duration
// backfilled on a later transition replaces the original row.
func (s *SessionStore) RecordPhaseEvent(sessionID string, seq int, ev phases.PhaseEvent) error {
	snap, err := json.Marshal(ev.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal event snapshot: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO phase_events (session_id, seq, phase, ts, duration, snapshot_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, seq) DO UPDATE SET
			phase = excluded.phase,
			ts = excluded.ts,
			duration = excluded.duration,
			snapshot_json = excluded.snapshot_json`,
		sessionID, seq, string(ev.Phase), ev.Timestamp, ev.Duration, string(snap),
	)
	if err != nil {
		return fmt.Errorf("upsert phase event %d: %w", seq, err)
	}
	return nil
}

// ListPhaseEvents returns a session's phase events in sequence order.
func (s *SessionStore) ListPhaseEvents(sessionID string) ([]StoredEvent, error) {
	rows, err := s.db.Query(`
		SELECT seq, phase, ts, duration, snapshot_json
		FROM phase_events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query phase events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var phase, snap string
		var dur sql.NullFloat64
		if err := rows.Scan(&ev.Seq, &phase, &ev.Timestamp, &dur, &snap); err != nil {
			return nil, fmt.Errorf("scan phase event: %w", err)
		}
		if ev.Phase, err = phases.ParsePhase(phase); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(snap), &ev.Snapshot); err != nil {
			return nil, fmt.Errorf("decode event %d snapshot: %w", ev.Seq, err)
		}
		ev.Duration = nullFloat(dur)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RecordFeedback stores a batch of feedback items in one transaction.
func (s *SessionStore) RecordFeedback(sessionID string, items []feedback.FeedbackItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin feedback tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO feedback_items (
			item_id, session_id, severity, category, message, suggestion,
			impact, current_value, ideal_range, ts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare feedback insert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.Exec(
			it.ID, sessionID, string(it.Severity), string(it.Category), it.Message, it.Suggestion,
			it.Impact, it.CurrentValue, it.IdealRange, it.Timestamp,
		); err != nil {
			return fmt.Errorf("insert feedback %s: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

// ListFeedback returns a session's feedback in the order it was produced.
func (s *SessionStore) ListFeedback(sessionID string) ([]feedback.FeedbackItem, error) {
	rows, err := s.db.Query(`
		SELECT item_id, severity, category, message, suggestion, impact, current_value, ideal_range, ts
		FROM feedback_items WHERE session_id = ? ORDER BY ts, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var out []feedback.FeedbackItem
	for rows.Next() {
		var it feedback.FeedbackItem
		var severity, category string
		var impact, ideal sql.NullString
		var value sql.NullFloat64
		if err := rows.Scan(&it.ID, &severity, &category, &it.Message, &it.Suggestion,
			&impact, &value, &ideal, &it.Timestamp); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		it.Severity = feedback.Severity(severity)
		it.Category = feedback.Category(category)
		it.Impact = nullString(impact)
		it.CurrentValue = nullFloat(value)
		it.IdealRange = nullString(ideal)
		out = append(out, it)
	}
	return out, rows.Err()
}

// RecordAnalysis stores one quality analysis.
func (s *SessionStore) RecordAnalysis(sessionID string, qa feedback.QualityAnalysis) error {
	_, err := s.db.Exec(`
		INSERT INTO quality_analyses (
			session_id, loading_quality, contact_quality, overall_quality,
			loading_at, contact_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, qa.LoadingQuality, qa.ContactQuality, qa.OverallQuality,
		qa.LoadingAt, qa.ContactAt, s.clock.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// ListAnalyses returns a session's quality analyses in serve order.
func (s *SessionStore) ListAnalyses(sessionID string) ([]feedback.QualityAnalysis, error) {
	rows, err := s.db.Query(`
		SELECT loading_quality, contact_quality, overall_quality, loading_at, contact_at
		FROM quality_analyses WHERE session_id = ? ORDER BY contact_at, analysis_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []feedback.QualityAnalysis
	for rows.Next() {
		var qa feedback.QualityAnalysis
		var loading, contact, overall sql.NullFloat64
		if err := rows.Scan(&loading, &contact, &overall, &qa.LoadingAt, &qa.ContactAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		qa.LoadingQuality = nullFloat(loading)
		qa.ContactQuality = nullFloat(contact)
		qa.OverallQuality = nullFloat(overall)
		out = append(out, qa)
	}
	return out, rows.Err()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
