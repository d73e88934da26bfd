package domain

import "time"

// GateState is the verification state of one session.
type GateState string

const (
	GateIdle       GateState = "idle"
	GateChallenged GateState = "challenged"
	GateVerified   GateState = "verified"
	GateFailed     GateState = "failed"
)

// VerificationChallenge is the single active one-time-code challenge of a
// session. It has no expiry of its own; it lives as long as the session.
type VerificationChallenge struct {
	TargetPatientID string        `json:"target_patient_id"`
	ExpectedCode    string        `json:"expected_code"`
	MatchedRecord   PatientRecord `json:"matched_record"`
	IssuedAt        time.Time     `json:"issued_at"`
	FailedAttempts  int           `json:"failed_attempts"`
}

// Session is the per-operator context passed to every stateful operation.
// Nothing about a session is shared with other sessions.
type Session struct {
	ID             string                 `json:"id"`
	CreatedAt      time.Time              `json:"created_at"`
	LastActivity   time.Time              `json:"last_activity"`
	LastAssessment *PendingAssessment     `json:"last_assessment,omitempty"`
	Challenge      *VerificationChallenge `json:"challenge,omitempty"`
	GateState      GateState              `json:"gate_state"`
}

// NewSession returns an idle session.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		GateState:    GateIdle,
	}
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.LastAssessment != nil {
		la := *s.LastAssessment
		c.LastAssessment = &la
	}
	if s.Challenge != nil {
		ch := *s.Challenge
		c.Challenge = &ch
	}
	return &c
}

// Touch records activity on the session.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}
