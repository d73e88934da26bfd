package service

import (
	"context"

	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/session"
	"github.com/cardiocare-risk-server/internal/verification"
)

// Workflow binds the assessment service and the verification gate to stored
// sessions, so transports only deal in session IDs.
type Workflow struct {
	sessions    session.Store
	assessments *AssessmentService
	gate        *verification.Gate
}

// NewWorkflow creates a workflow.
func NewWorkflow(sessions session.Store, assessments *AssessmentService, gate *verification.Gate) *Workflow {
	return &Workflow{
		sessions:    sessions,
		assessments: assessments,
		gate:        gate,
	}
}

// Assessments exposes the underlying assessment service.
func (w *Workflow) Assessments() *AssessmentService {
	return w.assessments
}

// StartSession creates a new session.
func (w *Workflow) StartSession(ctx context.Context) (*domain.Session, error) {
	return w.sessions.Create(ctx)
}

// Session returns a copy of the session's current state.
func (w *Workflow) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return w.sessions.Get(ctx, sessionID)
}

// EndSession discards the session.
func (w *Workflow) EndSession(ctx context.Context, sessionID string) error {
	return w.sessions.Delete(ctx, sessionID)
}

// Assess runs an assessment within the session.
func (w *Workflow) Assess(ctx context.Context, sessionID string, input domain.ClinicalInput) (*domain.AssessmentResult, error) {
	var result *domain.AssessmentResult
	_, err := w.sessions.Update(ctx, sessionID, func(sess *domain.Session) error {
		var err error
		result, err = w.assessments.Assess(ctx, sess, input)
		return err
	})
	return result, err
}

// SaveRecord saves the session's pending assessment.
func (w *Workflow) SaveRecord(ctx context.Context, sessionID string, req SaveRequest) (*domain.PatientRecord, error) {
	var rec *domain.PatientRecord
	_, err := w.sessions.Update(ctx, sessionID, func(sess *domain.Session) error {
		var err error
		rec, err = w.assessments.SaveRecord(ctx, sess, req)
		return err
	})
	return rec, err
}

// ListRecords returns all stored records.
func (w *Workflow) ListRecords(ctx context.Context) ([]*domain.PatientRecord, error) {
	return w.assessments.ListRecords(ctx)
}

// RequestAccess issues a verification challenge for patientID and returns
// the demo code.
func (w *Workflow) RequestAccess(ctx context.Context, sessionID, patientID string) (string, error) {
	var code string
	_, err := w.sessions.Update(ctx, sessionID, func(sess *domain.Session) error {
		var err error
		code, err = w.gate.Challenge(ctx, sess, patientID)
		return err
	})
	return code, err
}

// VerifyAccess checks code against the session's challenge and reveals the
// matched record on success.
func (w *Workflow) VerifyAccess(ctx context.Context, sessionID, code string) (*domain.PatientRecord, error) {
	var rec *domain.PatientRecord
	_, err := w.sessions.Update(ctx, sessionID, func(sess *domain.Session) error {
		var err error
		rec, err = w.gate.Verify(ctx, sess, code)
		return err
	})
	return rec, err
}
