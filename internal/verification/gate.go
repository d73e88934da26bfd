// Package verification implements the one-time-code gate that guards the
// reveal of a stored patient record.
//
// The code is handed back to the caller for display. This is a demonstration
// of the flow, not an identity check: nothing is delivered out of band, and
// anyone holding the session can read the code.
package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/metrics"
)

// DemoNotice accompanies every code handed to a caller.
const DemoNotice = "Demonstration only: the code is shown to the requester and does not verify identity."

// RecordFinder is the part of the record store the gate needs.
type RecordFinder interface {
	FindFirstByID(ctx context.Context, patientID string) (*domain.PatientRecord, bool, error)
}

// Gate runs challenge and verify against a session. It holds no per-session
// state of its own; callers persist the session after each call.
type Gate struct {
	records RecordFinder
	codes   CodeGenerator
	logger  *logrus.Logger
	now     func() time.Time
}

// NewGate creates a gate. A nil generator means RandomCodes.
func NewGate(records RecordFinder, codes CodeGenerator, logger *logrus.Logger) *Gate {
	if codes == nil {
		codes = RandomCodes{}
	}
	return &Gate{
		records: records,
		codes:   codes,
		logger:  logger,
		now:     time.Now,
	}
}

// Challenge looks up the first record for patientID and, on a hit, issues a
// new code that replaces any earlier challenge of the session. On a miss the
// session is left as it was.
func (g *Gate) Challenge(ctx context.Context, sess *domain.Session, patientID string) (string, error) {
	if strings.TrimSpace(patientID) == "" {
		return "", domain.NewValidationError("patient_id", "is required", patientID)
	}

	rec, found, err := g.records.FindFirstByID(ctx, patientID)
	if err != nil {
		return "", fmt.Errorf("looking up patient %s: %w", patientID, err)
	}
	if !found {
		metrics.VerificationAttempts.WithLabelValues(metrics.OutcomeNotFound).Inc()
		g.logger.WithFields(logrus.Fields{
			"session_id": sess.ID,
			"patient_id": patientID,
		}).Info("Record lookup found no match")
		return "", fmt.Errorf("patient %s: %w", patientID, domain.ErrRecordNotFound)
	}

	code, err := g.codes.NewCode()
	if err != nil {
		return "", err
	}

	sess.Challenge = &domain.VerificationChallenge{
		TargetPatientID: patientID,
		ExpectedCode:    code,
		MatchedRecord:   *rec,
		IssuedAt:        g.now(),
	}
	sess.GateState = domain.GateChallenged

	metrics.VerificationAttempts.WithLabelValues(metrics.OutcomeChallenged).Inc()
	g.logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"patient_id": patientID,
	}).Info("Verification challenge issued")

	return code, nil
}

// Verify compares code with the session's active challenge. A match reveals
// the matched record and clears the challenge; a mismatch keeps it so the
// operator can retry.
func (g *Gate) Verify(ctx context.Context, sess *domain.Session, code string) (*domain.PatientRecord, error) {
	ch := sess.Challenge
	if ch == nil {
		return nil, domain.ErrNoActiveChallenge
	}

	if code != ch.ExpectedCode {
		ch.FailedAttempts++
		sess.GateState = domain.GateFailed
		metrics.VerificationAttempts.WithLabelValues(metrics.OutcomeMismatch).Inc()
		g.logger.WithFields(logrus.Fields{
			"session_id":      sess.ID,
			"patient_id":      ch.TargetPatientID,
			"failed_attempts": ch.FailedAttempts,
		}).Warn("Verification code mismatch")
		return nil, domain.ErrVerificationMismatch
	}

	rec := ch.MatchedRecord
	sess.Challenge = nil
	sess.GateState = domain.GateIdle

	metrics.VerificationAttempts.WithLabelValues(metrics.OutcomeVerified).Inc()
	g.logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"patient_id": rec.PatientID,
	}).Info("Record access verified")

	return &rec, nil
}
