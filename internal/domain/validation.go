package domain

import (
	"errors"
	"fmt"
	"math"
)

// Input ranges accepted at the intake boundary.
const (
	MinAge                  = 1
	MaxAge                  = 100
	MinRestingBloodPressure = 90
	MaxRestingBloodPressure = 200
	MinCholesterol          = 120
	MaxCholesterol          = 570
	MinMaxHeartRate         = 70
	MaxMaxHeartRate         = 220
	MinOldpeak              = 0.0
	MaxOldpeak              = 6.2
	MaxMajorVessels         = 4
	MaxThalassemia          = 3
)

// Validate checks every field against its range or label set. All problems
// are reported, joined with errors.Join; each one is a *ValidationError.
func (in ClinicalInput) Validate() error {
	var errs []error

	intRange := func(field string, v, lo, hi int) {
		if v < lo || v > hi {
			errs = append(errs, NewValidationError(field, rangeMessage(lo, hi), v))
		}
	}

	intRange("age", in.Age, MinAge, MaxAge)
	if !in.Sex.IsValid() {
		errs = append(errs, NewValidationError("sex", "must be Male or Female", in.Sex))
	}
	if !in.ChestPainType.IsValid() {
		errs = append(errs, NewValidationError("chest_pain_type", "unknown chest pain type", in.ChestPainType))
	}
	intRange("resting_blood_pressure", in.RestingBloodPressure, MinRestingBloodPressure, MaxRestingBloodPressure)
	intRange("cholesterol", in.Cholesterol, MinCholesterol, MaxCholesterol)
	if !in.RestingECG.IsValid() {
		errs = append(errs, NewValidationError("resting_ecg", "unknown resting ECG finding", in.RestingECG))
	}
	intRange("max_heart_rate", in.MaxHeartRate, MinMaxHeartRate, MaxMaxHeartRate)
	if err := validateOldpeak(in.Oldpeak); err != nil {
		errs = append(errs, err)
	}
	if !in.STSlope.IsValid() {
		errs = append(errs, NewValidationError("st_slope", "unknown ST segment slope", in.STSlope))
	}
	intRange("major_vessels", in.MajorVessels, 0, MaxMajorVessels)
	intRange("thalassemia", in.Thalassemia, 0, MaxThalassemia)

	return errors.Join(errs...)
}

// validateOldpeak enforces the 0.0..6.2 range in 0.1 steps.
func validateOldpeak(v float64) error {
	if math.IsNaN(v) || v < MinOldpeak || v > MaxOldpeak+1e-9 {
		return NewValidationError("oldpeak", "must be between 0.0 and 6.2", v)
	}
	tenths := v * 10
	if math.Abs(tenths-math.Round(tenths)) > 1e-6 {
		return NewValidationError("oldpeak", "must be a multiple of 0.1", v)
	}
	return nil
}

func rangeMessage(lo, hi int) string {
	return fmt.Sprintf("must be between %d and %d", lo, hi)
}
