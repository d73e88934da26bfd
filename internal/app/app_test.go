package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/service"
)

func testConfig(t *testing.T, modelPath string) *domain.Config {
	dir := t.TempDir()
	return &domain.Config{
		Records: domain.RecordsConfig{
			Backend: domain.RecordsBackendCSV,
			CSVPath: filepath.Join(dir, "patient_records.csv"),
		},
		Model: domain.ModelConfig{
			Source: domain.ModelSourceFile,
			Path:   modelPath,
		},
		Session: domain.SessionConfig{
			Backend:     domain.SessionBackendMemory,
			MaxSessions: 4,
			IdleTTL:     time.Minute,
		},
	}
}

func highRiskInput() domain.ClinicalInput {
	return domain.ClinicalInput{
		Age:                  67,
		Sex:                  domain.SexMale,
		ChestPainType:        domain.ChestPainAsymptomatic,
		RestingBloodPressure: 160,
		Cholesterol:          286,
		FastingBloodSugar:    false,
		RestingECG:           domain.RestingECGLeftVentricularHypertrophy,
		MaxHeartRate:         108,
		ExerciseAngina:       true,
		Oldpeak:              1.5,
		STSlope:              domain.STSlopeFlat,
		MajorVessels:         3,
		Thalassemia:          3,
	}
}

func TestBuild_WithShippedModel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	a, err := Build(ctx, testConfig(t, "../../models/heart_logistic.json"), logger)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.Adapter.Available())
	assert.Equal(t, domain.RecordsBackendCSV, a.Records.Backend())

	sess, err := a.Workflow.StartSession(ctx)
	require.NoError(t, err)

	result, err := a.Workflow.Assess(ctx, sess.ID, highRiskInput())
	require.NoError(t, err)
	assert.Equal(t, domain.RiskHigh, result.RiskLabel)

	rec, err := a.Workflow.SaveRecord(ctx, sess.ID, service.SaveRequest{
		PatientID: "P100", PatientName: "John Roe", ContactInfo: "555-0199",
	})
	require.NoError(t, err)
	assert.Equal(t, 67, rec.Age)

	code, err := a.Workflow.RequestAccess(ctx, sess.ID, "P100")
	require.NoError(t, err)
	revealed, err := a.Workflow.VerifyAccess(ctx, sess.ID, code)
	require.NoError(t, err)
	assert.Equal(t, rec, revealed)
}

func TestBuild_MissingModelStartsUnavailable(t *testing.T) {
	logger, hook := test.NewNullLogger()
	ctx := context.Background()

	a, err := Build(ctx, testConfig(t, filepath.Join(t.TempDir(), "absent.json")), logger)
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.Adapter.Available())
	assert.Contains(t, a.Adapter.Status(), "unavailable")
	assert.NotEmpty(t, hook.AllEntries())

	sess, err := a.Workflow.StartSession(ctx)
	require.NoError(t, err)
	_, err = a.Workflow.Assess(ctx, sess.ID, highRiskInput())
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)

	recs, err := a.Workflow.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestBuild_UnknownSessionBackend(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t, "")
	cfg.Session.Backend = "memcached"

	_, err := Build(context.Background(), cfg, logger)
	assert.Error(t, err)
}
