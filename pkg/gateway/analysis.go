package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/medscan-console/internal/domain"
)

// AnalysisService covers /api/analysis
type AnalysisService struct {
	client *Client
}

// Upload sends a single file as multipart form field "file"
func (s *AnalysisService) Upload(ctx context.Context, filename string, content io.Reader) (*domain.UploadResult, error) {
	const path = "/api/analysis/upload"

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to read upload content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	resp, err := s.client.do(ctx, request{
		method:      http.MethodPost,
		path:        path,
		body:        &buf,
		contentType: writer.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}

	var result domain.UploadResult
	if err := decodeObject(path, resp.body, &result); err != nil {
		return nil, err
	}
	if err := requireField(path, "image_data", result.ImageData); err != nil {
		return nil, err
	}
	if result.Filename == "" {
		result.Filename = filename
	}
	return &result, nil
}

// Analyze runs the backend analysis on previously uploaded image data
func (s *AnalysisService) Analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.AnalysisRecord, error) {
	const path = "/api/analysis/analyze"
	resp, err := s.client.do(ctx, request{method: http.MethodPost, path: path, jsonBody: req})
	if err != nil {
		return nil, err
	}

	var record domain.AnalysisRecord
	if err := decodeObject(path, resp.body, &record); err != nil {
		return nil, err
	}
	if err := requireField(path, "analysis", record.Analysis); err != nil {
		return nil, err
	}
	if record.Filename == "" {
		record.Filename = req.Filename
	}
	return &record, nil
}

// History returns up to limit recent analyses, newest first
func (s *AnalysisService) History(ctx context.Context, limit int) ([]domain.AnalysisRecord, error) {
	const path = "/api/analysis/history"
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	resp, err := s.client.do(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return nil, err
	}
	return decodeList[domain.AnalysisRecord](path, resp.body, "analyses")
}

// Get fetches one analysis by id
func (s *AnalysisService) Get(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	path := "/api/analysis/" + url.PathEscape(id)
	resp, err := s.client.do(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}

	var record domain.AnalysisRecord
	if err := decodeObject(path, resp.body, &record); err != nil {
		return nil, err
	}
	if err := requireField(path, "id", record.ID); err != nil {
		return nil, err
	}
	return &record, nil
}

type reportRequest struct {
	IncludeReferences bool `json:"include_references"`
}

// GenerateReport asks the backend to render a PDF for an analysis
func (s *AnalysisService) GenerateReport(ctx context.Context, id string, includeReferences bool) (*domain.GeneratedReport, error) {
	path := "/api/analysis/" + url.PathEscape(id) + "/report"
	resp, err := s.client.do(ctx, request{
		method:   http.MethodPost,
		path:     path,
		jsonBody: reportRequest{IncludeReferences: includeReferences},
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		ReportData string `json:"report_data"`
		Filename   string `json:"filename"`
	}
	if err := decodeObject(path, resp.body, &payload); err != nil {
		return nil, err
	}
	if err := requireField(path, "report_data", payload.ReportData); err != nil {
		return nil, err
	}
	pdf, err := base64.StdEncoding.DecodeString(payload.ReportData)
	if err != nil {
		return nil, &domain.DecodeError{Endpoint: path, Reason: "report_data is not base64", Err: err}
	}
	filename := payload.Filename
	if filename == "" {
		filename = "medical_report_" + id + ".pdf"
	}
	return &domain.GeneratedReport{Filename: filename, PDF: pdf}, nil
}
