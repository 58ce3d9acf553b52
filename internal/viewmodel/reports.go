package viewmodel

import (
	"context"
	"strings"

	"github.com/medscan-console/internal/domain"
	"github.com/medscan-console/pkg/gateway"
	"golang.org/x/sync/errgroup"
)

// ReportAPI is the backend surface used by the reports screen
type ReportAPI interface {
	List(ctx context.Context) ([]domain.ReportDescriptor, error)
	Get(ctx context.Context, id string) (*domain.ReportDescriptor, error)
	Generate(ctx context.Context, req gateway.GenerateRequest) (*domain.ReportDescriptor, error)
	Download(ctx context.Context, id string) (*gateway.Download, error)
}

// ReportsState is a snapshot of the reports screen
type ReportsState struct {
	State[domain.ReportDescriptor]
	Query string
}

// Visible returns the items matching the search query
func (s ReportsState) Visible() []domain.ReportDescriptor {
	q := strings.ToLower(strings.TrimSpace(s.Query))
	if q == "" {
		return s.Items
	}
	var out []domain.ReportDescriptor
	for _, r := range s.Items {
		if strings.Contains(strings.ToLower(r.Title), q) || strings.Contains(strings.ToLower(r.Filename), q) {
			out = append(out, r)
		}
	}
	return out
}

// Reports lists stored reports followed by analyses that have no stored
// report yet; the latter are downloaded by rendering the analysis as PDF.
type Reports struct {
	*ListDetail[domain.ReportDescriptor]
	api      ReportAPI
	analyses AnalysisAPI
	query    string
}

// NewReports creates the reports view-model
func NewReports(api ReportAPI, analyses AnalysisAPI, deps Deps, historyLimit int) *Reports {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	r := &Reports{api: api, analyses: analyses}
	r.ListDetail = newListDetail(deps, "reports",
		fallbacks{
			load:   "Failed to load reports",
			detail: "Failed to load report",
			create: "Failed to generate report",
		},
		func(ctx context.Context) ([]domain.ReportDescriptor, error) {
			return r.fetchAll(ctx, historyLimit)
		},
		func(ctx context.Context, item domain.ReportDescriptor) (*domain.ReportDescriptor, error) {
			if item.Source != domain.ReportSourceStored {
				return &item, nil
			}
			return api.Get(ctx, item.ID)
		},
	)
	return r
}

// fetchAll loads stored reports and recent analyses concurrently
func (r *Reports) fetchAll(ctx context.Context, limit int) ([]domain.ReportDescriptor, error) {
	var stored []domain.ReportDescriptor
	var records []domain.AnalysisRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stored, err = r.api.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = r.analyses.History(gctx, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeReports(stored, records), nil
}

func mergeReports(stored []domain.ReportDescriptor, records []domain.AnalysisRecord) []domain.ReportDescriptor {
	covered := make(map[string]bool, len(stored))
	seen := make(map[string]bool, len(stored)+len(records))
	out := make([]domain.ReportDescriptor, 0, len(stored)+len(records))

	for _, s := range stored {
		if s.AnalysisID != "" {
			covered[s.AnalysisID] = true
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	for _, a := range records {
		if covered[a.ID] || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, domain.ReportFromAnalysis(a))
	}
	return out
}

// Snapshot returns a copy of the screen state
func (r *Reports) Snapshot() ReportsState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReportsState{State: r.snapshotLocked(), Query: r.query}
}

// SetQuery filters the visible reports by title or filename
func (r *Reports) SetQuery(q string) {
	r.mu.Lock()
	r.query = q
	r.mu.Unlock()
}

// Generate stores a report for an analysis and selects it
func (r *Reports) Generate(ctx context.Context, analysisID, title string) (string, error) {
	analysisID = strings.TrimSpace(analysisID)
	if analysisID == "" {
		return "", r.fail(domain.NewValidationError("analysis_id", "Please select an analysis"), "")
	}

	return r.create(ctx, func(ctx context.Context) (string, error) {
		report, err := r.api.Generate(ctx, gateway.GenerateRequest{AnalysisID: analysisID, Title: strings.TrimSpace(title)})
		if err != nil {
			return "", err
		}
		return report.ID, nil
	})
}

// Download fetches the selected report. Derived entries are rendered from
// their analysis as PDF.
func (r *Reports) Download(ctx context.Context) (*gateway.Download, error) {
	if err := r.deps.requireAuth(); err != nil {
		return nil, err
	}
	item, err := r.selected()
	if err != nil {
		return nil, err
	}
	if err := r.begin(); err != nil {
		return nil, err
	}

	var d *gateway.Download
	if item.Source == domain.ReportSourceStored {
		d, err = r.api.Download(ctx, item.ID)
		r.finish(err, "Failed to download report")
	} else {
		var report *domain.GeneratedReport
		report, err = r.analyses.GenerateReport(ctx, item.AnalysisID, true)
		r.finish(err, "Failed to generate PDF report.")
		if err == nil {
			d = &gateway.Download{
				Filename:    domain.ReportFilename(item.Filename),
				ContentType: "application/pdf",
				Content:     report.PDF,
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}
