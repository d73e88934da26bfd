package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/metrics"
)

// RiskAdapter turns a black-box binary classifier into an AssessmentResult.
// An adapter without a model fails every prediction with ErrModelUnavailable.
type RiskAdapter struct {
	model  domain.Model
	cause  error
	logger *logrus.Logger
}

// NewRiskAdapter creates an adapter around a loaded model.
func NewRiskAdapter(model domain.Model, logger *logrus.Logger) *RiskAdapter {
	if model == nil {
		return NewUnavailableRiskAdapter(fmt.Errorf("no model supplied"), logger)
	}
	metrics.ModelAvailable.Set(1)
	return &RiskAdapter{model: model, logger: logger}
}

// NewUnavailableRiskAdapter creates an adapter for a model that could not be
// loaded. cause is kept for status reporting.
func NewUnavailableRiskAdapter(cause error, logger *logrus.Logger) *RiskAdapter {
	metrics.ModelAvailable.Set(0)
	logger.WithError(cause).Error("Classifier unavailable, predictions are disabled")
	return &RiskAdapter{cause: cause, logger: logger}
}

// Available reports whether predictions can be served.
func (a *RiskAdapter) Available() bool {
	return a.model != nil
}

// Status describes the adapter state for health endpoints.
func (a *RiskAdapter) Status() string {
	if a.Available() {
		return "available"
	}
	return fmt.Sprintf("unavailable: %v", a.cause)
}

// Predict runs the classifier once on the vector.
func (a *RiskAdapter) Predict(ctx context.Context, vector domain.FeatureVector) (*domain.AssessmentResult, error) {
	if a.model == nil {
		if errors.Is(a.cause, domain.ErrModelUnavailable) {
			return nil, a.cause
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, a.cause)
	}

	positive, err := positiveClassIndex(a.model.Classes())
	if err != nil {
		return nil, err
	}

	row := vector.Row()
	label, err := a.model.Predict(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("predicting label: %w", err)
	}

	proba, err := a.model.PredictProba(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("predicting probabilities: %w", err)
	}
	if len(proba) != len(a.model.Classes()) {
		return nil, domain.NewModelContractError(
			"%d probabilities for %d classes", len(proba), len(a.model.Classes()))
	}

	p := proba[positive]
	if math.IsNaN(p) || p < 0 || p > 1 {
		return nil, domain.NewModelContractError("class-1 probability %v outside [0,1]", p)
	}

	result := &domain.AssessmentResult{
		RiskLabel:       domain.RiskLow,
		ConfidenceScore: p * 100,
	}
	if label == domain.PositiveClass {
		result.RiskLabel = domain.RiskHigh
	}

	a.logger.WithFields(logrus.Fields{
		"risk_label": result.RiskLabel,
		"confidence": result.ConfidenceScore,
	}).Debug("Risk prediction completed")

	return result, nil
}

// positiveClassIndex finds label 1 in the model's class set.
func positiveClassIndex(classes []int) (int, error) {
	for i, c := range classes {
		if c == domain.PositiveClass {
			return i, nil
		}
	}
	return -1, domain.NewModelContractError("class set %v does not contain label %d", classes, domain.PositiveClass)
}
