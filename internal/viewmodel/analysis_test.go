package viewmodel

import (
	"bytes"
	"context"
	"testing"

	"github.com/medscan-console/internal/domain"
	"github.com/medscan-console/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngFile(t *testing.T, name string) upload.File {
	t.Helper()
	return upload.BytesFile(name, tinyPNG(t))
}

func TestAnalysisRunner_UploadThenAnalyze(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "Doc")
	ctx := context.Background()
	runner := NewAnalysisRunner(h.client.Analysis, h.deps, domain.UploadConfig{MaxSizeMB: 50, PreviewMaxPx: 64}, true)

	require.NoError(t, runner.Upload().Select(pngFile(t, "chest.png")))
	s := runner.Snapshot()
	require.NotNil(t, s.Upload.Selected)
	assert.NotEmpty(t, s.Upload.Selected.Preview)

	record, err := runner.Analyze(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chest.png", record.Filename)
	assert.NotEmpty(t, record.Findings)
	assert.Equal(t, "Routine", record.Urgency())

	s = runner.Snapshot()
	require.NotNil(t, s.Result)
	assert.Equal(t, record.ID, s.Result.ID)
	assert.False(t, s.IsAnalyzing)
}

func TestAnalysisRunner_RequiresFile(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "Doc")
	runner := NewAnalysisRunner(h.client.Analysis, h.deps, domain.UploadConfig{MaxSizeMB: 50}, true)
	before := h.requests.Load()

	_, err := runner.Analyze(context.Background())

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Please select a file first", runner.Snapshot().LastError)
	assert.Equal(t, before, h.requests.Load())
}

func TestAnalysisRunner_OversizedFileNeverSelected(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "Doc")
	runner := NewAnalysisRunner(h.client.Analysis, h.deps, domain.UploadConfig{MaxSizeMB: 50}, true)

	require.NoError(t, runner.Upload().Select(pngFile(t, "ok.png")))
	require.Error(t, runner.Upload().Select(upload.File{Name: "huge.dcm", Size: 60 * 1024 * 1024}))

	s := runner.Snapshot()
	assert.Equal(t, "File size must be less than 50MB", s.LastError)
	assert.Nil(t, s.Upload.Selected)

	// The rejected replacement also drops the earlier file
	_, err := runner.Analyze(context.Background())
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAnalysisRunner_BackendRejection(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "Doc")
	runner := NewAnalysisRunner(h.client.Analysis, h.deps, domain.UploadConfig{MaxSizeMB: 50}, true)

	// The backend only accepts imaging extensions
	require.NoError(t, runner.Upload().Select(upload.BytesFile("notes.txt", []byte("hello"))))
	_, err := runner.Analyze(context.Background())
	require.Error(t, err)
	assert.Contains(t, runner.Snapshot().LastError, "File type not allowed")
}

func TestAnalysisHistory_LoadSelectAndReport(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "Doc")
	ctx := context.Background()

	runner := NewAnalysisRunner(h.client.Analysis, h.deps, domain.UploadConfig{}, false)
	var ids []string
	for _, name := range []string{"chest.xray.png", "knee.png"} {
		require.NoError(t, runner.Upload().Select(pngFile(t, name)))
		rec, err := runner.Analyze(ctx)
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	history := NewAnalysisHistory(h.client.Analysis, h.deps, 10)
	require.NoError(t, history.Load(ctx))
	s := history.Snapshot()
	require.Len(t, s.Items, 2)
	assert.Equal(t, ids[1], s.Items[0].ID)

	require.NoError(t, history.Select(ctx, ids[0]))
	s = history.Snapshot()
	require.NotNil(t, s.Selected)
	assert.Contains(t, s.Selected.Analysis, "### 2. Key Findings")

	report, err := history.GenerateReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chest_medical_report.pdf", report.Filename)
	assert.True(t, bytes.HasPrefix(report.PDF, []byte("%PDF-")))

	// Selecting something that is not loaded leaves the selection alone
	assert.ErrorIs(t, history.Select(ctx, "missing"), domain.ErrNoSelection)
	assert.Equal(t, ids[0], history.Snapshot().Selected.ID)
}
