package gateway

import (
	"context"
	"mime"
	"net/http"
	"net/url"

	"github.com/medscan-console/internal/domain"
)

// ReportService covers /api/reports
type ReportService struct {
	client *Client
}

// Download is a fetched report file
type Download struct {
	Filename    string
	ContentType string
	Content     []byte
}

// GenerateRequest is the body of the report generation endpoint
type GenerateRequest struct {
	AnalysisID string `json:"analysis_id"`
	Title      string `json:"title,omitempty"`
}

func storedReport(endpoint string, r domain.ReportDescriptor) (domain.ReportDescriptor, error) {
	if err := requireField(endpoint, "id", r.ID); err != nil {
		return domain.ReportDescriptor{}, err
	}
	r.Source = domain.ReportSourceStored
	if r.Title == "" {
		r.Title = r.Filename
	}
	return r, nil
}

// List returns stored reports
func (s *ReportService) List(ctx context.Context) ([]domain.ReportDescriptor, error) {
	const path = "/api/reports/list"
	resp, err := s.client.do(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}

	items, err := decodeList[domain.ReportDescriptor](path, resp.body, "reports")
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i], err = storedReport(path, items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Get fetches one stored report including its content
func (s *ReportService) Get(ctx context.Context, id string) (*domain.ReportDescriptor, error) {
	path := "/api/reports/" + url.PathEscape(id)
	resp, err := s.client.do(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}

	var r domain.ReportDescriptor
	if err := decodeObject(path, resp.body, &r); err != nil {
		return nil, err
	}
	if r, err = storedReport(path, r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Generate stores a text report built from an analysis
func (s *ReportService) Generate(ctx context.Context, req GenerateRequest) (*domain.ReportDescriptor, error) {
	const path = "/api/reports/generate"
	resp, err := s.client.do(ctx, request{method: http.MethodPost, path: path, jsonBody: req})
	if err != nil {
		return nil, err
	}

	var r domain.ReportDescriptor
	if err := decodeObject(path, resp.body, &r); err != nil {
		return nil, err
	}
	if r, err = storedReport(path, r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Download fetches the report file as raw bytes
func (s *ReportService) Download(ctx context.Context, id string) (*Download, error) {
	path := "/api/reports/" + url.PathEscape(id) + "/download"
	resp, err := s.client.do(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}

	d := &Download{
		Filename:    "report.md",
		ContentType: resp.header.Get("Content-Type"),
		Content:     resp.body,
	}
	if cd := resp.header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			d.Filename = params["filename"]
		}
	}
	return d, nil
}
