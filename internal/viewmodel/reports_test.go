package viewmodel

import (
	"bytes"
	"context"
	"testing"

	"github.com/medscan-console/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReports_AnalysesWithoutReportAreDerived(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "Doc")
	ctx := context.Background()
	record := h.analyzeImage(t, "chest.png")

	reports := NewReports(h.client.Reports, h.client.Analysis, h.deps, 20)
	require.NoError(t, reports.Load(ctx))

	s := reports.Snapshot()
	require.Len(t, s.Items, 1)
	derived := s.Items[0]
	assert.Equal(t, domain.ReportSourceAnalysis, derived.Source)
	assert.Equal(t, record.ID, derived.AnalysisID)
	assert.Equal(t, "Routine", derived.Urgency)
	assert.Equal(t, len(record.Findings), derived.FindingsCount)

	// A derived entry needs no detail round trip
	before := h.requests.Load()
	require.NoError(t, reports.Select(ctx, derived.ID))
	assert.Equal(t, before, h.requests.Load())

	d, err := reports.Download(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chest_medical_report.pdf", d.Filename)
	assert.Equal(t, "application/pdf", d.ContentType)
	assert.True(t, bytes.HasPrefix(d.Content, []byte("%PDF-")))
}

func TestReports_GenerateListsStoredFirst(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "Doc")
	ctx := context.Background()
	first := h.analyzeImage(t, "chest.png")
	second := h.analyzeImage(t, "knee.png")

	reports := NewReports(h.client.Reports, h.client.Analysis, h.deps, 20)
	id, err := reports.Generate(ctx, first.ID, "")
	require.NoError(t, err)

	s := reports.Snapshot()
	require.Len(t, s.Items, 2)
	assert.Equal(t, domain.ReportSourceStored, s.Items[0].Source)
	assert.Equal(t, first.ID, s.Items[0].AnalysisID)
	assert.Equal(t, "Medical Report - chest.png", s.Items[0].Title)
	assert.Equal(t, domain.ReportSourceAnalysis, s.Items[1].Source)
	assert.Equal(t, second.ID, s.Items[1].AnalysisID)

	require.NotNil(t, s.Selected)
	assert.Equal(t, id, s.Selected.ID)
	assert.Contains(t, s.Selected.Content, "chest.png")

	d, err := reports.Download(ctx)
	require.NoError(t, err)
	assert.Equal(t, "text/markdown", d.ContentType)
	assert.Regexp(t, `^report_\d{8}_\d{6}\.md$`, d.Filename)
	assert.Equal(t, s.Selected.Content, string(d.Content))
}

func TestReports_GenerateRequiresAnalysis(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "Doc")
	reports := NewReports(h.client.Reports, h.client.Analysis, h.deps, 20)
	before := h.requests.Load()

	_, err := reports.Generate(context.Background(), "  ", "title")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Please select an analysis", reports.Snapshot().LastError)
	assert.Equal(t, before, h.requests.Load())
}

func TestReports_GenerateUnknownAnalysis(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "Doc")
	reports := NewReports(h.client.Reports, h.client.Analysis, h.deps, 20)

	_, err := reports.Generate(context.Background(), "nope", "")
	require.Error(t, err)
	assert.Equal(t, "Analysis not found", reports.Snapshot().LastError)
}

func TestReportsState_Visible(t *testing.T) {
	s := ReportsState{
		State: State[domain.ReportDescriptor]{Items: []domain.ReportDescriptor{
			{ID: "1", Title: "Chest CT", Filename: "chest.png"},
			{ID: "2", Title: "Medical Report - knee.png", Filename: "report_1.md"},
			{ID: "3", Title: "Brain", Filename: "brain.nii.gz"},
		}},
	}

	assert.Len(t, s.Visible(), 3)

	s.Query = "  KNEE "
	visible := s.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "2", visible[0].ID)

	s.Query = ".nii"
	visible = s.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "3", visible[0].ID)

	s.Query = "missing"
	assert.Empty(t, s.Visible())
}

func TestReports_SetQuery(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "Doc")
	h.analyzeImage(t, "chest.png")
	h.analyzeImage(t, "knee.png")

	reports := NewReports(h.client.Reports, h.client.Analysis, h.deps, 20)
	require.NoError(t, reports.Load(context.Background()))
	reports.SetQuery("knee")

	s := reports.Snapshot()
	assert.Len(t, s.Items, 2)
	require.Len(t, s.Visible(), 1)
	assert.Equal(t, "knee.png", s.Visible()[0].Filename)
}
