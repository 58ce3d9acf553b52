package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/medscan-console/internal/viewmodel"
	"github.com/spf13/cobra"
)

var (
	reportQuery    string
	reportTitle    string
	downloadOutDir string
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Stored reports and analysis reports",
}

func loadReports(cmd *cobra.Command) (*viewmodel.Reports, error) {
	r := viewmodel.NewReports(console.client.Reports, console.client.Analysis, console.deps, console.cfg.Reports.HistoryLimit)
	if err := r.Load(cmd.Context()); err != nil {
		return nil, screenError(err, r.Snapshot().LastError)
	}
	return r, nil
}

func openReport(cmd *cobra.Command, id string) (*viewmodel.Reports, error) {
	r, err := loadReports(cmd)
	if err != nil {
		return nil, err
	}
	if err := r.Select(cmd.Context(), id); err != nil {
		return nil, screenError(err, notFoundOr(r.Snapshot().LastError, "report", id))
	}
	return r, nil
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reports followed by analyses without one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadReports(cmd)
		if err != nil {
			return err
		}
		r.SetQuery(reportQuery)
		console.out.reportRows(r.Snapshot().Visible())
		return nil
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openReport(cmd, args[0])
		if err != nil {
			return err
		}
		console.out.report(r.Snapshot().Selected)
		return nil
	},
}

var reportsGenerateCmd = &cobra.Command{
	Use:   "generate <analysis id>",
	Short: "Store a text report for an analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := viewmodel.NewReports(console.client.Reports, console.client.Analysis, console.deps, console.cfg.Reports.HistoryLimit)
		if _, err := r.Generate(cmd.Context(), args[0], reportTitle); err != nil {
			return screenError(err, r.Snapshot().LastError)
		}
		console.out.report(r.Snapshot().Selected)
		return nil
	},
}

var reportsDownloadCmd = &cobra.Command{
	Use:   "download <id>",
	Short: "Download a report file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openReport(cmd, args[0])
		if err != nil {
			return err
		}
		d, err := r.Download(cmd.Context())
		if err != nil {
			return screenError(err, r.Snapshot().LastError)
		}

		path := filepath.Join(downloadOutDir, filepath.Base(d.Filename))
		if err := os.WriteFile(path, d.Content, 0o600); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		console.out.saved(d, path)
		return nil
	},
}

func init() {
	reportsListCmd.Flags().StringVarP(&reportQuery, "query", "q", "", "Filter by title or filename")
	reportsGenerateCmd.Flags().StringVarP(&reportTitle, "title", "t", "", "Report title")
	reportsDownloadCmd.Flags().StringVarP(&downloadOutDir, "output", "o", ".", "Directory to save the file in")

	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd, reportsGenerateCmd, reportsDownloadCmd)
}
