// Package domain contains the core entities of the heart-disease risk assessment
// subsystem: clinical inputs, the encoded feature vector, assessment results,
// persisted patient records and the per-session verification state.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Sex of the patient as collected at the input boundary.
type Sex string

const (
	SexMale   Sex = "Male"
	SexFemale Sex = "Female"
)

// IsValid reports whether s is one of the known labels.
func (s Sex) IsValid() bool {
	switch s {
	case SexMale, SexFemale:
		return true
	default:
		return false
	}
}

// ChestPainType is the reported chest pain category.
type ChestPainType string

const (
	ChestPainTypicalAngina  ChestPainType = "Typical Angina"
	ChestPainAtypicalAngina ChestPainType = "Atypical Angina"
	ChestPainNonAnginal     ChestPainType = "Non-Anginal Pain"
	ChestPainAsymptomatic   ChestPainType = "Asymptomatic"
)

// IsValid reports whether c is one of the known labels.
func (c ChestPainType) IsValid() bool {
	switch c {
	case ChestPainTypicalAngina, ChestPainAtypicalAngina, ChestPainNonAnginal, ChestPainAsymptomatic:
		return true
	default:
		return false
	}
}

// RestingECG is the resting electrocardiogram finding.
type RestingECG string

const (
	RestingECGNormal                     RestingECG = "Normal"
	RestingECGSTTAbnormality             RestingECG = "ST-T Wave Abnormality"
	RestingECGLeftVentricularHypertrophy RestingECG = "Left Ventricular Hypertrophy"
)

// IsValid reports whether r is one of the known labels.
func (r RestingECG) IsValid() bool {
	switch r {
	case RestingECGNormal, RestingECGSTTAbnormality, RestingECGLeftVentricularHypertrophy:
		return true
	default:
		return false
	}
}

// STSlope is the slope of the peak exercise ST segment.
type STSlope string

const (
	STSlopeUpsloping   STSlope = "Upsloping"
	STSlopeFlat        STSlope = "Flat"
	STSlopeDownsloping STSlope = "Downsloping"
)

// IsValid reports whether s is one of the known labels.
func (s STSlope) IsValid() bool {
	switch s {
	case STSlopeUpsloping, STSlopeFlat, STSlopeDownsloping:
		return true
	default:
		return false
	}
}

// YesNo is a boolean flag that also accepts the "Yes"/"No" labels used by
// the intake forms.
type YesNo bool

// UnmarshalJSON accepts true/false as well as "Yes"/"No" (case-insensitive).
func (y *YesNo) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*y = YesNo(b)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("yes/no flag must be a boolean or \"Yes\"/\"No\": %s", string(data))
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true":
		*y = true
	case "no", "false":
		*y = false
	default:
		return fmt.Errorf("yes/no flag must be \"Yes\" or \"No\", got %q", s)
	}
	return nil
}

// String returns the form label.
func (y YesNo) String() string {
	if y {
		return "Yes"
	}
	return "No"
}

// ClinicalInput is one assessment request. It is discarded after encoding.
type ClinicalInput struct {
	Age                  int           `json:"age"`
	Sex                  Sex           `json:"sex"`
	ChestPainType        ChestPainType `json:"chest_pain_type"`
	RestingBloodPressure int           `json:"resting_blood_pressure"`
	Cholesterol          int           `json:"cholesterol"`
	FastingBloodSugar    YesNo         `json:"fasting_blood_sugar"`
	RestingECG           RestingECG    `json:"resting_ecg"`
	MaxHeartRate         int           `json:"max_heart_rate"`
	ExerciseAngina       YesNo         `json:"exercise_angina"`
	Oldpeak              float64       `json:"oldpeak"`
	STSlope              STSlope       `json:"st_slope"`
	MajorVessels         int           `json:"major_vessels"`
	Thalassemia          int           `json:"thalassemia"`
}

// FeatureCount is the width of the classifier input row.
const FeatureCount = 13

// FeatureVector is the ordered numeric row consumed by the classifier.
// The order must match the order the classifier was fitted with.
type FeatureVector [FeatureCount]float64

// FeatureNames lists the feature vector columns in order, using the column
// names of the training data set.
var FeatureNames = [FeatureCount]string{
	"age", "sex", "cp", "trestbps", "chol", "fbs", "restecg",
	"thalach", "exang", "oldpeak", "slope", "ca", "thal",
}

// Row returns the vector as a slice for model calls.
func (v FeatureVector) Row() []float64 {
	row := make([]float64, FeatureCount)
	copy(row, v[:])
	return row
}

// RiskLabel is the binary outcome shown to the operator.
type RiskLabel string

const (
	RiskHigh RiskLabel = "High Risk"
	RiskLow  RiskLabel = "Low Risk"
)

// IsValid reports whether r is High or Low.
func (r RiskLabel) IsValid() bool {
	return r == RiskHigh || r == RiskLow
}

// PositiveClass is the classifier label meaning "disease present".
const PositiveClass = 1

// AssessmentResult is the classifier verdict for one input.
// ConfidenceScore is always P(class 1) scaled to [0,100], whatever the label.
type AssessmentResult struct {
	RiskLabel       RiskLabel `json:"risk_label"`
	ConfidenceScore float64   `json:"confidence_score"`
}

// DisplayedConfidence is the confidence in the label that is shown: the
// class-1 probability for High results, its complement for Low results.
func (r AssessmentResult) DisplayedConfidence() float64 {
	if r.RiskLabel == RiskHigh {
		return r.ConfidenceScore
	}
	return 100 - r.ConfidenceScore
}

// FormattedConfidence renders the displayed confidence as stored in records.
func (r AssessmentResult) FormattedConfidence() string {
	return FormatPercent(r.DisplayedConfidence())
}

// FormatPercent renders a percentage with two decimals, e.g. "82.00%".
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// PatientRecord is one saved assessment. Records are never mutated or deleted
// and PatientID is not unique.
type PatientRecord struct {
	PatientID        string    `json:"patient_id"`
	PatientName      string    `json:"patient_name"`
	ContactInfo      string    `json:"contact_info"`
	Age              int       `json:"age"`
	Sex              Sex       `json:"sex"`
	PredictionResult RiskLabel `json:"prediction_result"`
	ConfidenceScore  string    `json:"confidence_score"`
}

// RecordColumns is the persisted column contract, in order. External readers
// of the record file depend on these exact names.
var RecordColumns = []string{
	"Patient ID",
	"Patient Name",
	"Contact Info",
	"Age",
	"Sex",
	"Prediction Result",
	"Confidence Score",
}

// PendingAssessment is the last prediction of a session, waiting to be saved.
type PendingAssessment struct {
	Age        int              `json:"age"`
	Sex        Sex              `json:"sex"`
	Result     AssessmentResult `json:"result"`
	AssessedAt time.Time        `json:"assessed_at"`
}
