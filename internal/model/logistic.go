// Package model provides the classifier implementations behind
// domain.Model: a logistic regression read from a JSON artifact, or a remote
// model server.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/cardiocare-risk-server/internal/domain"
)

// Artifact is the JSON export of a fitted binary logistic regression.
// Probabilities follow the fitted convention: the sigmoid of the decision
// function is the probability of Classes[1].
type Artifact struct {
	Classes      []int     `json:"classes"`
	FeatureNames []string  `json:"feature_names"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Scaler       *Scaler   `json:"scaler,omitempty"`
	Version      string    `json:"version,omitempty"`
}

// Scaler is an optional standardization applied before the linear model.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LogisticModel evaluates an Artifact. It is immutable and safe for
// concurrent use.
type LogisticModel struct {
	artifact Artifact
}

// NewLogisticModel checks a against the encoder's feature layout.
func NewLogisticModel(a Artifact) (*LogisticModel, error) {
	if len(a.Classes) != 2 || a.Classes[0] == a.Classes[1] {
		return nil, domain.NewModelContractError("binary model needs two distinct classes, got %v", a.Classes)
	}
	if len(a.FeatureNames) != domain.FeatureCount {
		return nil, domain.NewModelContractError("artifact lists %d features, encoder produces %d", len(a.FeatureNames), domain.FeatureCount)
	}
	for i, name := range a.FeatureNames {
		if name != domain.FeatureNames[i] {
			return nil, domain.NewModelContractError("feature %d is %q, encoder produces %q", i, name, domain.FeatureNames[i])
		}
	}
	if len(a.Coefficients) != domain.FeatureCount {
		return nil, domain.NewModelContractError("artifact has %d coefficients, want %d", len(a.Coefficients), domain.FeatureCount)
	}
	if s := a.Scaler; s != nil {
		if len(s.Mean) != domain.FeatureCount || len(s.Scale) != domain.FeatureCount {
			return nil, domain.NewModelContractError("scaler needs %d means and scales", domain.FeatureCount)
		}
		for i, v := range s.Scale {
			if v == 0 {
				return nil, domain.NewModelContractError("scaler scale for %s is zero", domain.FeatureNames[i])
			}
		}
	}
	return &LogisticModel{artifact: a}, nil
}

// DecodeArtifact reads an Artifact and builds the model.
func DecodeArtifact(r io.Reader) (*LogisticModel, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding model artifact: %w", err)
	}
	return NewLogisticModel(a)
}

// Classes returns the class labels in probability order.
func (m *LogisticModel) Classes() []int {
	return append([]int(nil), m.artifact.Classes...)
}

// Version returns the artifact's version tag, if any.
func (m *LogisticModel) Version() string {
	return m.artifact.Version
}

// Predict returns Classes[1] when the decision function is positive.
func (m *LogisticModel) Predict(ctx context.Context, row []float64) (int, error) {
	z, err := m.decision(row)
	if err != nil {
		return 0, err
	}
	if z > 0 {
		return m.artifact.Classes[1], nil
	}
	return m.artifact.Classes[0], nil
}

// PredictProba returns the probabilities of Classes[0] and Classes[1].
func (m *LogisticModel) PredictProba(ctx context.Context, row []float64) ([]float64, error) {
	z, err := m.decision(row)
	if err != nil {
		return nil, err
	}
	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

func (m *LogisticModel) decision(row []float64) (float64, error) {
	if len(row) != domain.FeatureCount {
		return 0, domain.NewModelContractError("expected %d features, got %d", domain.FeatureCount, len(row))
	}
	z := m.artifact.Intercept
	for i, x := range row {
		if s := m.artifact.Scaler; s != nil {
			x = (x - s.Mean[i]) / s.Scale[i]
		}
		z += m.artifact.Coefficients[i] * x
	}
	return z, nil
}

// sigmoid is evaluated in the form that cannot overflow for large |z|.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
