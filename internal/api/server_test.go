package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardiocare-risk-server/internal/app"
	"github.com/cardiocare-risk-server/internal/config"
	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/middleware"
	"github.com/cardiocare-risk-server/internal/verification"
)

const highRiskJSON = `{
	"age": 67, "sex": "Male", "chest_pain_type": "Asymptomatic",
	"resting_blood_pressure": 160, "cholesterol": 286, "fasting_blood_sugar": "No",
	"resting_ecg": "Left Ventricular Hypertrophy", "max_heart_rate": 108,
	"exercise_angina": "Yes", "oldpeak": 1.5, "st_slope": "Flat",
	"major_vessels": 3, "thalassemia": 3
}`

func newTestServer(t *testing.T, modelPath string) (*Server, *app.App) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	cfg := &domain.Config{
		Records: domain.RecordsConfig{
			Backend: domain.RecordsBackendCSV,
			CSVPath: filepath.Join(t.TempDir(), "patient_records.csv"),
		},
		Model: domain.ModelConfig{Source: domain.ModelSourceFile, Path: modelPath},
		Session: domain.SessionConfig{
			Backend:     domain.SessionBackendMemory,
			MaxSessions: 8,
			IdleTTL:     time.Minute,
		},
	}
	a, err := app.Build(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	s := NewServer(newConfigManager(t, "environment: test\n"), a)
	gin.SetMode(gin.TestMode)
	return s, a
}

func newConfigManager(t *testing.T, content string) *config.Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	m, err := config.NewManager(path)
	require.NoError(t, err)
	return m
}

func newServer(t *testing.T) *Server {
	s, _ := newTestServer(t, "../../models/heart_logistic.json")
	return s
}

func do(t *testing.T, s *Server, method, path, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(middleware.SessionIDHeader, sessionID)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func startSession(t *testing.T, s *Server) string {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/v1/sessions", "", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.SessionID)
	assert.Equal(t, body.SessionID, w.Header().Get(middleware.SessionIDHeader))
	return body.SessionID
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) domain.APIError {
	t.Helper()
	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	return apiErr
}

func saveRecord(t *testing.T, s *Server, sid, patientID string) {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/v1/assessments", sid, highRiskJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := fmt.Sprintf(`{"patient_id":%q,"patient_name":"John Roe","contact_info":"555-0199"}`, patientID)
	w = do(t, s, http.MethodPost, "/api/v1/records", sid, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	w := do(t, s, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["model_available"])
	assert.Equal(t, "csv", body["records_backend"])
	assert.Equal(t, false, body["production"])
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestHealth_DegradedWithoutModel(t *testing.T) {
	s, _ := newTestServer(t, filepath.Join(t.TempDir(), "missing.json"))

	w := do(t, s, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	assert.Contains(t, w.Body.String(), `"model_available":false`)
}

func TestNewServer_GinModeFollowsEnvironment(t *testing.T) {
	_, a := newTestServer(t, "../../models/heart_logistic.json")
	t.Cleanup(func() { gin.SetMode(gin.TestMode) })

	tests := []struct {
		name    string
		content string
		mode    string
	}{
		{"production", "environment: production\n", gin.ReleaseMode},
		{"development with debug logging", "environment: development\nlogging:\n  level: debug\n", gin.DebugMode},
		{"development", "environment: development\n", gin.ReleaseMode},
		{"staging", "environment: staging\nlogging:\n  level: debug\n", gin.ReleaseMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(newConfigManager(t, tt.content), a)

			assert.Equal(t, tt.mode, gin.Mode())
			assert.Equal(t, tt.name == "production", s.configManager.IsProduction())
		})
	}
}

func TestNewServer_UsesServerConfig(t *testing.T) {
	_, a := newTestServer(t, "../../models/heart_logistic.json")
	t.Cleanup(func() { gin.SetMode(gin.TestMode) })

	s := NewServer(newConfigManager(t, "server:\n  host: 127.0.0.1\n  port: 9191\n"), a)

	assert.Equal(t, "127.0.0.1", s.config.Host)
	assert.Equal(t, 9191, s.config.Port)
}

func TestRecordPaths_WithoutModel(t *testing.T) {
	s, a := newTestServer(t, filepath.Join(t.TempDir(), "missing.json"))
	ctx := context.Background()
	require.NoError(t, a.Records.Append(ctx, &domain.PatientRecord{
		PatientID:        "P1",
		PatientName:      "Jane Doe",
		ContactInfo:      "jane@example.com",
		Age:              58,
		Sex:              domain.SexFemale,
		PredictionResult: domain.RiskLow,
		ConfidenceScore:  "72.40%",
	}))
	sid := startSession(t, s)

	w := do(t, s, http.MethodGet, "/api/v1/records", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list RecordList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "P1", list.Records[0].PatientID)

	w = do(t, s, http.MethodPost, "/api/v1/records/lookup", sid, `{"patient_id":"P1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var lookup LookupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lookup))

	w = do(t, s, http.MethodPost, "/api/v1/records/verify", sid, fmt.Sprintf(`{"code":%q}`, lookup.VerificationCode))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rec domain.PatientRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "Jane Doe", rec.PatientName)
	assert.Equal(t, "jane@example.com", rec.ContactInfo)

	// Saving still needs an assessment, which cannot be produced
	w = do(t, s, http.MethodPost, "/api/v1/records", sid,
		`{"patient_id":"P2","patient_name":"Ann Roe","contact_info":"555-0100"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ErrCodeNoPendingAssessment, decodeError(t, w).Code)
}

func TestAssessSaveAndList(t *testing.T) {
	s := newServer(t)
	sid := startSession(t, s)

	w := do(t, s, http.MethodPost, "/api/v1/assessments", sid, highRiskJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result AssessmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, domain.RiskHigh, result.RiskLabel)
	assert.Greater(t, result.ConfidenceScore, 50.0)
	assert.Equal(t, result.ConfidenceScore, result.DisplayedConfidence)
	assert.True(t, strings.HasSuffix(result.FormattedConfidence, "%"))

	w = do(t, s, http.MethodPost, "/api/v1/records", sid,
		`{"patient_id":"P100","patient_name":"John Roe","contact_info":"555-0199"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var rec domain.PatientRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "P100", rec.PatientID)
	assert.Equal(t, 67, rec.Age)
	assert.Equal(t, domain.SexMale, rec.Sex)
	assert.Equal(t, result.FormattedConfidence, rec.ConfidenceScore)

	w = do(t, s, http.MethodGet, "/api/v1/records", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list RecordList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "P100", list.Records[0].PatientID)

	// The pending assessment was consumed by the save
	w = do(t, s, http.MethodPost, "/api/v1/records", sid,
		`{"patient_id":"P101","patient_name":"Ann Roe","contact_info":"555-0100"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ErrCodeNoPendingAssessment, decodeError(t, w).Code)
}

func TestAssess_Errors(t *testing.T) {
	s := newServer(t)
	sid := startSession(t, s)

	tests := []struct {
		name      string
		sessionID string
		body      string
		status    int
		code      string
	}{
		{"missing session header", "", highRiskJSON, http.StatusBadRequest, domain.ErrCodeValidation},
		{"unknown session", "nope", highRiskJSON, http.StatusNotFound, domain.ErrCodeSessionNotFound},
		{"malformed body", sid, `{"age":`, http.StatusBadRequest, domain.ErrCodeValidation},
		{"bad yes/no flag", sid, strings.Replace(highRiskJSON, `"exercise_angina": "Yes"`, `"exercise_angina": "Maybe"`, 1), http.StatusBadRequest, domain.ErrCodeValidation},
		{"out of range", sid, strings.Replace(highRiskJSON, `"age": 67`, `"age": 101`, 1), http.StatusBadRequest, domain.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/v1/assessments", tt.sessionID, tt.body)

			assert.Equal(t, tt.status, w.Code)
			apiErr := decodeError(t, w)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.NotEmpty(t, apiErr.RequestID)
		})
	}
}

func TestAssess_ModelUnavailable(t *testing.T) {
	s, _ := newTestServer(t, filepath.Join(t.TempDir(), "missing.json"))
	sid := startSession(t, s)

	w := do(t, s, http.MethodPost, "/api/v1/assessments", sid, highRiskJSON)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, domain.ErrCodeModelUnavailable, decodeError(t, w).Code)
}

func TestSaveRecord_RequiresAllFields(t *testing.T) {
	s := newServer(t)
	sid := startSession(t, s)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/assessments", sid, highRiskJSON).Code)

	w := do(t, s, http.MethodPost, "/api/v1/records", sid, `{"patient_id":"P1","patient_name":"A"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Details, "contact_info")

	w = do(t, s, http.MethodPost, "/api/v1/records", sid, `{"patient_id":"P1","patient_name":"   ","contact_info":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Details, "patient_name")
}

func TestVerify_RequiresCode(t *testing.T) {
	s := newServer(t)
	sid := startSession(t, s)

	w := do(t, s, http.MethodPost, "/api/v1/records/verify", sid, `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := decodeError(t, w)
	assert.Equal(t, domain.ErrCodeValidation, apiErr.Code)
	assert.Contains(t, apiErr.Details, "'code'")
}

func TestLookupAndVerify(t *testing.T) {
	s := newServer(t)
	sid := startSession(t, s)
	saveRecord(t, s, sid, "P200")

	w := do(t, s, http.MethodPost, "/api/v1/records/verify", sid, `{"code":"123456"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ErrCodeNoActiveChallenge, decodeError(t, w).Code)

	w = do(t, s, http.MethodPost, "/api/v1/records/lookup", sid, `{"patient_id":"P999"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ErrCodeRecordNotFound, decodeError(t, w).Code)

	w = do(t, s, http.MethodPost, "/api/v1/records/lookup", sid, `{"patient_id":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/records/lookup", sid, `{"patient_id":"P200"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var lookup LookupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lookup))
	assert.Regexp(t, `^[1-9][0-9]{5}$`, lookup.VerificationCode)
	assert.Equal(t, verification.DemoNotice, lookup.Notice)

	// Random codes are never below 100000
	w = do(t, s, http.MethodPost, "/api/v1/records/verify", sid, `{"code":"000000"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, domain.ErrCodeVerificationMismatch, decodeError(t, w).Code)

	// The challenge survives a mismatch
	w = do(t, s, http.MethodPost, "/api/v1/records/verify", sid, fmt.Sprintf(`{"code":%q}`, lookup.VerificationCode))
	require.Equal(t, http.StatusOK, w.Code)
	var rec domain.PatientRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "P200", rec.PatientID)
	assert.Equal(t, "John Roe", rec.PatientName)

	// and is cleared by success
	w = do(t, s, http.MethodPost, "/api/v1/records/verify", sid, fmt.Sprintf(`{"code":%q}`, lookup.VerificationCode))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestExportRecords(t *testing.T) {
	s := newServer(t)
	sid := startSession(t, s)
	saveRecord(t, s, sid, "P300")

	w := do(t, s, http.MethodGet, "/api/v1/records/export?format=csv", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(domain.RecordColumns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "P300,John Roe,555-0199,67,Male,High Risk,"))

	w = do(t, s, http.MethodGet, "/api/v1/records/export", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count": 1`)

	w = do(t, s, http.MethodGet, "/api/v1/records/export?format=xml", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEndSession(t *testing.T) {
	s := newServer(t)
	sid := startSession(t, s)

	w := do(t, s, http.MethodDelete, "/api/v1/sessions", sid, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/assessments", sid, highRiskJSON)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	sid := startSession(t, s)
	saveRecord(t, s, sid, "P400")

	w := do(t, s, http.MethodGet, "/metrics", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cardiocare_predictions_total")
	assert.Contains(t, w.Body.String(), "cardiocare_records_appended_total")
	assert.Contains(t, w.Body.String(), "cardiocare_model_available")
}

func TestRecordStream(t *testing.T) {
	s, a := newTestServer(t, "../../models/heart_logistic.json")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/records/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return a.Records.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	sid := startSession(t, s)
	saveRecord(t, s, sid, "P500")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event RecordEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "record.appended", event.Type)
	require.NotNil(t, event.Record)
	assert.Equal(t, "P500", event.Record.PatientID)

	conn.Close()
	assert.Eventually(t, func() bool { return a.Records.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(domain.NewValidationError("f", "m", nil)))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(domain.NewModelContractError("bad")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(domain.NewPersistenceError("append", errors.New("disk"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("other")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(fmt.Errorf("wrap: %w", domain.ErrNoPendingAssessment)))
}
