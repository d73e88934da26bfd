package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/service"
	"github.com/cardiocare-risk-server/internal/verification"
)

// Tool names
const (
	ToolAssess        = "assess_heart_risk"
	ToolSaveRecord    = "save_patient_record"
	ToolListRecords   = "list_patient_records"
	ToolRequestAccess = "request_record_access"
	ToolVerifyAccess  = "verify_record_access"
)

// AssessResult is the structured output of assess_heart_risk.
type AssessResult struct {
	RiskLabel           domain.RiskLabel `json:"risk_label"`
	ConfidenceScore     float64          `json:"confidence_score"`
	DisplayedConfidence float64          `json:"displayed_confidence"`
	FormattedConfidence string           `json:"formatted_confidence"`
}

// ListRecordsParams takes no arguments.
type ListRecordsParams struct{}

// ListRecordsResult is the structured output of list_patient_records.
type ListRecordsResult struct {
	Records []*domain.PatientRecord `json:"records"`
	Count   int                     `json:"count"`
}

// RequestAccessParams defines parameters for request_record_access
type RequestAccessParams struct {
	PatientID string `json:"patient_id"`
}

// RequestAccessResult carries the demo verification code.
type RequestAccessResult struct {
	PatientID        string `json:"patient_id"`
	VerificationCode string `json:"verification_code"`
	Notice           string `json:"notice"`
}

// VerifyAccessParams defines parameters for verify_record_access
type VerifyAccessParams struct {
	Code string `json:"code"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolAssess,
		Description: "Assess heart-disease risk from 13 clinical measurements. " +
			"The result is kept as the pending assessment until saved with " + ToolSaveRecord + ".",
	}, s.handleAssess)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolSaveRecord,
		Description: "Save the pending assessment as a patient record. Patient ID, name and contact info are required.",
	}, s.handleSaveRecord)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolListRecords,
		Description: "List every saved patient record in the order they were saved.",
	}, s.handleListRecords)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolRequestAccess,
		Description: "Start a one-time-code check for the first record with the given patient ID. " +
			"The code is returned directly: demonstration only, not an identity check.",
	}, s.handleRequestAccess)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolVerifyAccess,
		Description: "Submit the one-time code from " + ToolRequestAccess + " to reveal the matched record.",
	}, s.handleVerifyAccess)

	s.logger.WithField("tool_count", 5).Info("Registered MCP tools")
}

// errorResult reports a domain error to the client as a tool error.
func (s *Server) errorResult(tool string, err error) *mcp.CallToolResult {
	code := domain.ErrorCode(err)
	entry := s.logger.WithField("tool", tool).WithField("code", code)
	if code == domain.ErrCodeInternal || code == domain.ErrCodePersistence || code == domain.ErrCodeModelContract {
		entry.WithError(err).Error("Tool failed")
	} else {
		entry.Debug("Tool rejected request")
	}

	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %v", code, err)},
		},
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func (s *Server) handleAssess(ctx context.Context, req *mcp.CallToolRequest, input domain.ClinicalInput) (*mcp.CallToolResult, any, error) {
	var result *domain.AssessmentResult
	err := s.withSession(ctx, func(id string) error {
		var err error
		result, err = s.workflow.Assess(ctx, id, input)
		return err
	})
	if err != nil {
		return s.errorResult(ToolAssess, err), nil, nil
	}

	out := AssessResult{
		RiskLabel:           result.RiskLabel,
		ConfidenceScore:     result.ConfidenceScore,
		DisplayedConfidence: result.DisplayedConfidence(),
		FormattedConfidence: result.FormattedConfidence(),
	}
	return textResult(fmt.Sprintf("%s (confidence %s). Use %s to store it.",
		out.RiskLabel, out.FormattedConfidence, ToolSaveRecord)), out, nil
}

func (s *Server) handleSaveRecord(ctx context.Context, req *mcp.CallToolRequest, params service.SaveRequest) (*mcp.CallToolResult, any, error) {
	var rec *domain.PatientRecord
	err := s.withSession(ctx, func(id string) error {
		var err error
		rec, err = s.workflow.SaveRecord(ctx, id, params)
		return err
	})
	if err != nil {
		return s.errorResult(ToolSaveRecord, err), nil, nil
	}

	return textResult(fmt.Sprintf("Saved record for patient %s: %s (%s).",
		rec.PatientID, rec.PredictionResult, rec.ConfidenceScore)), rec, nil
}

func (s *Server) handleListRecords(ctx context.Context, req *mcp.CallToolRequest, _ ListRecordsParams) (*mcp.CallToolResult, any, error) {
	all, err := s.workflow.ListRecords(ctx)
	if err != nil {
		return s.errorResult(ToolListRecords, err), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d saved record(s)", len(all))
	for _, rec := range all {
		fmt.Fprintf(&b, "\n- %s | %s | age %d | %s | %s | %s",
			rec.PatientID, rec.PatientName, rec.Age, rec.Sex, rec.PredictionResult, rec.ConfidenceScore)
	}

	return textResult(b.String()), ListRecordsResult{Records: all, Count: len(all)}, nil
}

func (s *Server) handleRequestAccess(ctx context.Context, req *mcp.CallToolRequest, params RequestAccessParams) (*mcp.CallToolResult, any, error) {
	var code string
	err := s.withSession(ctx, func(id string) error {
		var err error
		code, err = s.workflow.RequestAccess(ctx, id, params.PatientID)
		return err
	})
	if err != nil {
		return s.errorResult(ToolRequestAccess, err), nil, nil
	}

	out := RequestAccessResult{
		PatientID:        params.PatientID,
		VerificationCode: code,
		Notice:           verification.DemoNotice,
	}
	return textResult(fmt.Sprintf("Verification code for patient %s: %s\n%s",
		params.PatientID, code, verification.DemoNotice)), out, nil
}

func (s *Server) handleVerifyAccess(ctx context.Context, req *mcp.CallToolRequest, params VerifyAccessParams) (*mcp.CallToolResult, any, error) {
	var rec *domain.PatientRecord
	err := s.withSession(ctx, func(id string) error {
		var err error
		rec, err = s.workflow.VerifyAccess(ctx, id, params.Code)
		return err
	})
	if err != nil {
		return s.errorResult(ToolVerifyAccess, err), nil, nil
	}

	return textResult(fmt.Sprintf("Verified. Patient %s (%s), contact %s, age %d, %s: %s (%s).",
		rec.PatientID, rec.PatientName, rec.ContactInfo, rec.Age, rec.Sex,
		rec.PredictionResult, rec.ConfidenceScore)), rec, nil
}
