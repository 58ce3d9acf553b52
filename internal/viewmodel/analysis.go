package viewmodel

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/medscan-console/internal/domain"
	"github.com/medscan-console/internal/upload"
	"github.com/sirupsen/logrus"
)

// AnalysisAPI is the backend surface used by the analysis screens
type AnalysisAPI interface {
	Upload(ctx context.Context, filename string, content io.Reader) (*domain.UploadResult, error)
	Analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.AnalysisRecord, error)
	History(ctx context.Context, limit int) ([]domain.AnalysisRecord, error)
	Get(ctx context.Context, id string) (*domain.AnalysisRecord, error)
	GenerateReport(ctx context.Context, id string, includeReferences bool) (*domain.GeneratedReport, error)
}

// AnalysisHistory lists recent analyses and opens their detail
type AnalysisHistory struct {
	*ListDetail[domain.AnalysisRecord]
	api AnalysisAPI
}

// NewAnalysisHistory creates the history view-model showing the latest limit analyses
func NewAnalysisHistory(api AnalysisAPI, deps Deps, limit int) *AnalysisHistory {
	if limit <= 0 {
		limit = 10
	}
	h := &AnalysisHistory{api: api}
	h.ListDetail = newListDetail(deps, "analysis",
		fallbacks{
			load:   "Failed to load analysis history",
			detail: "Failed to load analysis",
		},
		func(ctx context.Context) ([]domain.AnalysisRecord, error) {
			return api.History(ctx, limit)
		},
		func(ctx context.Context, item domain.AnalysisRecord) (*domain.AnalysisRecord, error) {
			return api.Get(ctx, item.ID)
		},
	)
	return h
}

// GenerateReport renders the selected analysis as a PDF, named after the
// analysed file
func (h *AnalysisHistory) GenerateReport(ctx context.Context) (*domain.GeneratedReport, error) {
	if err := h.deps.requireAuth(); err != nil {
		return nil, err
	}
	item, err := h.selected()
	if err != nil {
		return nil, err
	}
	if err := h.begin(); err != nil {
		return nil, err
	}

	report, err := h.api.GenerateReport(ctx, item.ID, true)
	h.finish(err, "Failed to generate PDF report.")
	if err != nil {
		return nil, err
	}
	report.Filename = domain.ReportFilename(item.Filename)
	return report, nil
}

// RunnerState is a snapshot of the analysis runner
type RunnerState struct {
	Upload      upload.State
	Result      *domain.AnalysisRecord
	IsAnalyzing bool
	LastError   string
}

// AnalysisRunner drives a single upload then analyze round trip
type AnalysisRunner struct {
	mu        sync.Mutex
	api       AnalysisAPI
	deps      Deps
	enableXAI bool
	flow      *upload.Flow

	selection   *upload.Selection
	result      *domain.AnalysisRecord
	isAnalyzing bool
	lastError   string
}

// NewAnalysisRunner creates the analysis runner with its own upload flow
func NewAnalysisRunner(api AnalysisAPI, deps Deps, uploadCfg domain.UploadConfig, enableXAI bool) *AnalysisRunner {
	r := &AnalysisRunner{api: api, deps: deps.withDefaults(), enableXAI: enableXAI}
	r.flow = upload.NewFlow(uploadCfg, r.onFileSelect, r.deps.Logger)
	return r
}

// Upload exposes the file selection step
func (r *AnalysisRunner) Upload() *upload.Flow { return r.flow }

func (r *AnalysisRunner) onFileSelect(sel upload.Selection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selection = &sel
	r.result = nil
	r.lastError = ""
}

// Snapshot returns a copy of the runner state
func (r *AnalysisRunner) Snapshot() RunnerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := RunnerState{
		Upload:      r.flow.State(),
		IsAnalyzing: r.isAnalyzing,
		LastError:   r.lastError,
	}
	if s.LastError == "" {
		s.LastError = s.Upload.Error
	}
	if r.result != nil {
		res := *r.result
		s.Result = &res
	}
	return s
}

// Analyze uploads the selected file and runs the analysis on it
func (r *AnalysisRunner) Analyze(ctx context.Context) (*domain.AnalysisRecord, error) {
	if err := r.deps.requireAuth(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.isAnalyzing {
		r.mu.Unlock()
		return nil, domain.ErrOperationInFlight
	}
	// The flow drops its selection when a later file is rejected
	if r.flow.State().Selected == nil || r.selection == nil {
		verr := domain.NewValidationError("file", "Please select a file first")
		r.lastError = verr.Message
		r.mu.Unlock()
		return nil, verr
	}
	sel := *r.selection
	r.isAnalyzing = true
	r.lastError = ""
	r.mu.Unlock()

	record, err := r.run(ctx, sel)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.isAnalyzing = false
	if err != nil {
		r.lastError = DisplayMessage(err, "Analysis failed. Please try again.")
		r.deps.Logger.WithError(err).WithField("filename", sel.File.Name).Warn("Analysis failed")
		return nil, err
	}
	r.result = record
	return record, nil
}

func (r *AnalysisRunner) run(ctx context.Context, sel upload.Selection) (*domain.AnalysisRecord, error) {
	if sel.File.Open == nil {
		return nil, fmt.Errorf("file %s has no content", sel.File.Name)
	}
	rc, err := sel.File.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", sel.File.Name, err)
	}
	defer rc.Close()

	uploaded, err := r.api.Upload(ctx, sel.File.Name, rc)
	if err != nil {
		return nil, err
	}

	filename := uploaded.Filename
	if filename == "" {
		filename = sel.File.Name
	}
	record, err := r.api.Analyze(ctx, domain.AnalyzeRequest{
		Filename:  filename,
		ImageData: uploaded.ImageData,
		EnableXAI: r.enableXAI,
	})
	if err != nil {
		return nil, err
	}

	r.deps.Logger.WithFields(logrus.Fields{
		"id":       record.ID,
		"filename": filename,
		"findings": len(record.Findings),
		"urgency":  record.Urgency(),
	}).Info("Analysis completed")
	return record, nil
}
