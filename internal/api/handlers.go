package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/middleware"
	"github.com/cardiocare-risk-server/internal/records"
	"github.com/cardiocare-risk-server/internal/service"
	"github.com/cardiocare-risk-server/internal/verification"
)

// AssessmentResponse is the assessment result with its displayed confidence.
type AssessmentResponse struct {
	RiskLabel           domain.RiskLabel `json:"risk_label"`
	ConfidenceScore     float64          `json:"confidence_score"`
	DisplayedConfidence float64          `json:"displayed_confidence"`
	FormattedConfidence string           `json:"formatted_confidence"`
}

// LookupRequest starts a verification challenge.
type LookupRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
}

// LookupResponse carries the demo code.
type LookupResponse struct {
	PatientID        string `json:"patient_id"`
	VerificationCode string `json:"verification_code"`
	Notice           string `json:"notice"`
}

// VerifyRequest answers a verification challenge.
type VerifyRequest struct {
	Code string `json:"code" binding:"required"`
}

// RecordList is the body of the record listing.
type RecordList struct {
	Records []*domain.PatientRecord `json:"records"`
	Count   int                     `json:"count"`
}

func requireSession(c *gin.Context) (string, error) {
	id := c.GetString(middleware.SessionIDKey)
	if id == "" {
		return "", domain.NewValidationError(middleware.SessionIDHeader, "header is required", "")
	}
	return id, nil
}

func init() {
	// Report binding failures under the JSON field names clients send.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

func bindJSON(c *gin.Context, dst interface{}) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Tag() == "required" {
			return domain.NewValidationError(fe.Field(), "is required", fe.Value())
		}
		return domain.NewValidationError(fe.Field(), fmt.Sprintf("failed %q check", fe.Tag()), fe.Value())
	}
	return domain.NewValidationError("body", err.Error(), nil)
}

// handleHealth reports liveness and classifier availability. The server
// stays up without a classifier, so the status is degraded rather than down.
func (s *Server) handleHealth(c *gin.Context) {
	available, status := s.workflow.Assessments().ModelStatus()
	overall := "healthy"
	if !available {
		overall = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          overall,
		"model_available": available,
		"model_status":    status,
		"records_backend": s.records.Backend(),
		"production":      s.configManager.IsProduction(),
		"timestamp":       time.Now().UTC(),
		"version":         Version,
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess, err := s.workflow.StartSession(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header(middleware.SessionIDHeader, sess.ID)
	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
	})
}

func (s *Server) handleEndSession(c *gin.Context) {
	id, err := requireSession(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.workflow.EndSession(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAssess(c *gin.Context) {
	id, err := requireSession(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var input domain.ClinicalInput
	if err := bindJSON(c, &input); err != nil {
		s.writeError(c, err)
		return
	}

	result, err := s.workflow.Assess(c.Request.Context(), id, input)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, AssessmentResponse{
		RiskLabel:           result.RiskLabel,
		ConfidenceScore:     result.ConfidenceScore,
		DisplayedConfidence: result.DisplayedConfidence(),
		FormattedConfidence: result.FormattedConfidence(),
	})
}

func (s *Server) handleSaveRecord(c *gin.Context) {
	id, err := requireSession(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var req service.SaveRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	rec, err := s.workflow.SaveRecord(c.Request.Context(), id, req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleListRecords(c *gin.Context) {
	all, err := s.workflow.ListRecords(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, RecordList{Records: all, Count: len(all)})
}

// handleExportRecords returns every record as a JSON export document or in
// the record file's CSV layout (?format=csv).
func (s *Server) handleExportRecords(c *gin.Context) {
	var (
		buf         bytes.Buffer
		err         error
		contentType string
		filename    string
	)

	switch format := c.DefaultQuery("format", "json"); format {
	case "json":
		err = records.ExportJSON(c.Request.Context(), s.records, &buf)
		contentType, filename = "application/json", "patient_records.json"
	case "csv":
		err = records.ExportCSV(c.Request.Context(), s.records, &buf)
		contentType, filename = "text/csv", "patient_records.csv"
	default:
		err = domain.NewValidationError("format", "must be json or csv", format)
	}
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (s *Server) handleLookup(c *gin.Context) {
	id, err := requireSession(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var req LookupRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	code, err := s.workflow.RequestAccess(c.Request.Context(), id, req.PatientID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, LookupResponse{
		PatientID:        req.PatientID,
		VerificationCode: code,
		Notice:           verification.DemoNotice,
	})
}

func (s *Server) handleVerify(c *gin.Context) {
	id, err := requireSession(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var req VerifyRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	rec, err := s.workflow.VerifyAccess(c.Request.Context(), id, req.Code)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
