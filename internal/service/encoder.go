package service

import (
	"github.com/cardiocare-risk-server/internal/domain"
)

// Categorical encodings. They reproduce the encoding the classifier was
// fitted with; changing any value silently corrupts every prediction.
var (
	sexCodes = map[domain.Sex]float64{
		domain.SexMale:   1,
		domain.SexFemale: 0,
	}

	chestPainCodes = map[domain.ChestPainType]float64{
		domain.ChestPainTypicalAngina:  0,
		domain.ChestPainAtypicalAngina: 1,
		domain.ChestPainNonAnginal:     2,
		domain.ChestPainAsymptomatic:   3,
	}

	restingECGCodes = map[domain.RestingECG]float64{
		domain.RestingECGNormal:                     0,
		domain.RestingECGSTTAbnormality:             1,
		domain.RestingECGLeftVentricularHypertrophy: 2,
	}

	slopeCodes = map[domain.STSlope]float64{
		domain.STSlopeUpsloping:   0,
		domain.STSlopeFlat:        1,
		domain.STSlopeDownsloping: 2,
	}
)

// Encode maps a validated clinical input onto the classifier feature vector,
// in the order of domain.FeatureNames. It is pure; callers validate the input
// first (see domain.ClinicalInput.Validate).
func Encode(in domain.ClinicalInput) domain.FeatureVector {
	return domain.FeatureVector{
		float64(in.Age),
		sexCodes[in.Sex],
		chestPainCodes[in.ChestPainType],
		float64(in.RestingBloodPressure),
		float64(in.Cholesterol),
		flag(in.FastingBloodSugar),
		restingECGCodes[in.RestingECG],
		float64(in.MaxHeartRate),
		flag(in.ExerciseAngina),
		in.Oldpeak,
		slopeCodes[in.STSlope],
		float64(in.MajorVessels),
		float64(in.Thalassemia),
	}
}

func flag(v domain.YesNo) float64 {
	if v {
		return 1
	}
	return 0
}
