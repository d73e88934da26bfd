package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/metrics"
	"github.com/cardiocare-risk-server/internal/records"
)

// SaveRequest carries the identity fields an operator adds when saving the
// pending assessment.
type SaveRequest struct {
	PatientID   string `json:"patient_id" binding:"required"`
	PatientName string `json:"patient_name" binding:"required"`
	ContactInfo string `json:"contact_info" binding:"required"`
}

// Validate requires all three fields. Whitespace-only values count as missing.
func (r SaveRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.PatientID) == "":
		return domain.NewValidationError("patient_id", "is required", r.PatientID)
	case strings.TrimSpace(r.PatientName) == "":
		return domain.NewValidationError("patient_name", "is required", r.PatientName)
	case strings.TrimSpace(r.ContactInfo) == "":
		return domain.NewValidationError("contact_info", "is required", r.ContactInfo)
	}
	return nil
}

// AssessmentService runs assessments and turns them into stored records.
// Session state is passed in; the service keeps none of its own.
type AssessmentService struct {
	adapter *RiskAdapter
	store   records.Store
	logger  *logrus.Logger
	now     func() time.Time
}

// NewAssessmentService creates an assessment service.
func NewAssessmentService(adapter *RiskAdapter, store records.Store, logger *logrus.Logger) *AssessmentService {
	return &AssessmentService{
		adapter: adapter,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// ModelStatus reports classifier availability.
func (s *AssessmentService) ModelStatus() (bool, string) {
	return s.adapter.Available(), s.adapter.Status()
}

// Assess validates and encodes the input, runs the classifier, and keeps the
// result on the session as its pending assessment. A failed assessment
// leaves any earlier pending assessment in place.
func (s *AssessmentService) Assess(ctx context.Context, sess *domain.Session, input domain.ClinicalInput) (*domain.AssessmentResult, error) {
	if err := input.Validate(); err != nil {
		metrics.PredictionErrors.WithLabelValues(domain.ErrCodeValidation).Inc()
		return nil, err
	}

	result, err := s.adapter.Predict(ctx, Encode(input))
	if err != nil {
		metrics.PredictionErrors.WithLabelValues(domain.ErrorCode(err)).Inc()
		s.logger.WithError(err).WithField("session_id", sess.ID).Error("Risk assessment failed")
		return nil, err
	}

	sess.LastAssessment = &domain.PendingAssessment{
		Age:        input.Age,
		Sex:        input.Sex,
		Result:     *result,
		AssessedAt: s.now(),
	}

	metrics.Predictions.WithLabelValues(string(result.RiskLabel)).Inc()
	s.logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"risk_label": result.RiskLabel,
		"confidence": result.FormattedConfidence(),
	}).Info("Risk assessment completed")

	return result, nil
}

// SaveRecord persists the session's pending assessment under the given
// patient identity and clears it. The stored confidence is the displayed one.
func (s *AssessmentService) SaveRecord(ctx context.Context, sess *domain.Session, req SaveRequest) (*domain.PatientRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	pending := sess.LastAssessment
	if pending == nil {
		return nil, domain.ErrNoPendingAssessment
	}

	rec := &domain.PatientRecord{
		PatientID:        req.PatientID,
		PatientName:      req.PatientName,
		ContactInfo:      req.ContactInfo,
		Age:              pending.Age,
		Sex:              pending.Sex,
		PredictionResult: pending.Result.RiskLabel,
		ConfidenceScore:  pending.Result.FormattedConfidence(),
	}

	if err := s.store.Append(ctx, rec); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"session_id": sess.ID,
			"patient_id": rec.PatientID,
		}).Error("Failed to save patient record")
		return nil, err
	}
	sess.LastAssessment = nil

	s.logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"patient_id": rec.PatientID,
	}).Info("Patient record saved")

	return rec, nil
}

// ListRecords returns every stored record in insertion order.
func (s *AssessmentService) ListRecords(ctx context.Context) ([]*domain.PatientRecord, error) {
	return s.store.All(ctx)
}
