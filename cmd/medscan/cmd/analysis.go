package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/medscan-console/internal/viewmodel"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	reportOut    string
	noXAI        bool
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show recent analyses and consultations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dash := viewmodel.NewDashboard(console.client.Analysis, console.client.Consultations, console.deps, console.cfg.Dashboard.RecentLimit)
		if err := dash.Load(cmd.Context()); err != nil {
			return screenError(err, dash.Snapshot().LastError)
		}

		s := dash.Snapshot()
		console.out.title("Welcome, " + s.User.DisplayName("doctor"))
		console.out.field("Recent analyses", len(s.Recent))
		console.out.field("Urgent", s.UrgentAnalyses)
		console.out.field("Total findings", s.TotalFindings)
		console.out.field("Consultations", s.Consultations)
		console.out.printf("\n")
		console.out.analysisRows(s.Recent)
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Upload a medical image and analyze it",
	Long: `Upload a medical image (PNG, JPEG, DICOM or NIfTI) and run the analysis.

The result is informational only and must be reviewed by a qualified
medical professional.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runner := viewmodel.NewAnalysisRunner(console.client.Analysis, console.deps, console.cfg.Upload, console.cfg.Analysis.EnableXAI && !noXAI)
		if err := runner.Upload().SelectPath(args[0]); err != nil {
			return screenError(err, runner.Snapshot().LastError)
		}

		sel := runner.Snapshot().Upload.Selected
		console.out.field("File", filepath.Base(sel.File.Name))
		console.out.field("Type", fmt.Sprintf("%s (%s)", sel.Kind, sel.MIME))
		console.out.printf("Analyzing…\n\n")

		record, err := runner.Analyze(cmd.Context())
		if err != nil {
			return screenError(err, runner.Snapshot().LastError)
		}
		console.out.analysis(record)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent analyses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		history := newHistory()
		if err := history.Load(cmd.Context()); err != nil {
			return screenError(err, history.Snapshot().LastError)
		}
		console.out.analysisRows(history.Snapshot().Items)
		return nil
	},
}

var analysisCmd = &cobra.Command{
	Use:   "analysis",
	Short: "Inspect stored analyses",
}

var analysisShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := selectAnalysis(cmd, args[0])
		if err != nil {
			return err
		}
		console.out.analysis(history.Snapshot().Selected)
		return nil
	},
}

var analysisReportCmd = &cobra.Command{
	Use:   "report <id>",
	Short: "Download an analysis as a PDF report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := selectAnalysis(cmd, args[0])
		if err != nil {
			return err
		}
		report, err := history.GenerateReport(cmd.Context())
		if err != nil {
			return screenError(err, history.Snapshot().LastError)
		}

		path := filepath.Join(reportOut, report.Filename)
		if err := os.WriteFile(path, report.PDF, 0o600); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		console.out.printf("Saved %s (%d bytes)\n", path, len(report.PDF))
		return nil
	},
}

func newHistory() *viewmodel.AnalysisHistory {
	limit := historyLimit
	if limit <= 0 {
		limit = console.cfg.Analysis.HistoryLimit
	}
	return viewmodel.NewAnalysisHistory(console.client.Analysis, console.deps, limit)
}

func selectAnalysis(cmd *cobra.Command, id string) (*viewmodel.AnalysisHistory, error) {
	history := newHistory()
	if err := history.Load(cmd.Context()); err != nil {
		return nil, screenError(err, history.Snapshot().LastError)
	}
	if err := history.Select(cmd.Context(), id); err != nil {
		return nil, screenError(err, notFoundOr(history.Snapshot().LastError, "analysis", id))
	}
	return history, nil
}

// notFoundOr names an id that is not in the loaded list
func notFoundOr(message, kind, id string) string {
	if message != "" {
		return message
	}
	return fmt.Sprintf("No %s with id %s in the recent list", kind, id)
}

func init() {
	analyzeCmd.Flags().BoolVar(&noXAI, "no-xai", false, "Skip explainability overlays")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Number of analyses to list")
	analysisShowCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Number of recent analyses to search")
	analysisReportCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Number of recent analyses to search")
	analysisReportCmd.Flags().StringVarP(&reportOut, "output", "o", ".", "Directory to save the PDF in")

	analysisCmd.AddCommand(analysisShowCmd, analysisReportCmd)
}
