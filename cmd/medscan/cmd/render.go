package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/medscan-console/internal/domain"
	"github.com/medscan-console/internal/richtext"
	"github.com/medscan-console/pkg/gateway"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	senderStyle  = lipgloss.NewStyle().Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// renderer writes command output; rich texts go through the parse cache
type renderer struct {
	out   io.Writer
	err   io.Writer
	cache *richtext.Cache
	term  *richtext.Terminal
}

func newRenderer(out, errOut io.Writer, cache *richtext.Cache, term *richtext.Terminal) *renderer {
	return &renderer{out: out, err: errOut, cache: cache, term: term}
}

func (r *renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *renderer) hint(msg string) {
	fmt.Fprintln(r.err, hintStyle.Render(msg))
}

func (r *renderer) title(s string) {
	fmt.Fprintln(r.out, titleStyle.Render(s))
}

func (r *renderer) field(label string, value any) {
	fmt.Fprintf(r.out, "%s %v\n", labelStyle.Render(label+":"), value)
}

func (r *renderer) rich(text string) {
	fmt.Fprintln(r.out, r.term.Render(r.cache.Parse(text)))
}

func (r *renderer) table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(r.out, labelStyle.Render("(none)"))
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(r.out, t.Render())
}

func (r *renderer) analysisRows(records []domain.AnalysisRecord) {
	rows := make([][]string, 0, len(records))
	for _, a := range records {
		rows = append(rows, []string{a.ID, a.Filename, shortDate(a.Date), a.Urgency(), fmt.Sprint(len(a.Findings))})
	}
	r.table([]string{"ID", "FILE", "DATE", "URGENCY", "FINDINGS"}, rows)
}

func (r *renderer) analysis(a *domain.AnalysisRecord) {
	r.title(a.Filename)
	r.field("ID", a.ID)
	r.field("Date", shortDate(a.Date))
	r.field("Urgency", a.Urgency())
	if a.Recommendations.PrimarySpecialist != "" {
		r.field("Specialist", a.Recommendations.PrimarySpecialist)
	}
	if len(a.Recommendations.AdditionalSpecialists) > 0 {
		r.field("Also consult", strings.Join(a.Recommendations.AdditionalSpecialists, ", "))
	}
	r.printf("\n")
	r.rich(a.Analysis)

	if len(a.Findings) > 0 {
		r.title("Findings")
		for i, f := range a.Findings {
			r.printf("  %d. %s\n", i+1, f)
		}
	}
	if len(a.Keywords) > 0 {
		r.field("Keywords", strings.Join(a.Keywords, ", "))
	}
	if len(a.PubMedArticles) > 0 {
		r.title("Literature")
		for _, art := range a.PubMedArticles {
			line := art.Title
			if art.Journal != "" {
				line += " (" + art.Journal
				if art.Year != "" {
					line += ", " + art.Year
				}
				line += ")"
			}
			r.printf("  • %s\n", line)
			if art.URL != "" {
				r.printf("    %s\n", labelStyle.Render(art.URL))
			}
		}
	}
}

func (r *renderer) consultationRows(cases []domain.ConsultationCase) {
	rows := make([][]string, 0, len(cases))
	for _, c := range cases {
		rows = append(rows, []string{c.ID, truncate(c.Description, 40), c.Creator, string(c.Stage), fmt.Sprint(c.Participants), shortDate(c.CreatedAt)})
	}
	r.table([]string{"ID", "CASE", "CREATOR", "STAGE", "PARTICIPANTS", "CREATED"}, rows)
}

func (r *renderer) consultation(c *domain.ConsultationCase) {
	r.title(c.Description)
	r.field("ID", c.ID)
	r.field("Creator", c.Creator)
	r.field("Stage", c.Stage)
	r.field("Participants", c.Participants)
	r.printf("\n")
	for _, m := range c.Messages {
		r.consultationMessage(m, false)
	}
}

func (r *renderer) consultationMessage(m domain.ConsultationMessage, pending bool) {
	sender := m.Sender
	if m.SpecialistType != "" {
		sender += " · " + m.SpecialistType
	}
	header := senderStyle.Render(sender) + " " + labelStyle.Render(shortDate(m.Timestamp))
	if pending {
		r.printf("%s\n%s\n\n", header, pendingStyle.Render(m.Message+" (sending…)"))
		return
	}
	r.printf("%s\n", header)
	r.rich(m.Message)
}

func (r *renderer) qaRows(sessions []domain.QASession) {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{s.ID, truncate(s.Title, 40), s.Creator, shortDate(s.CreatedAt)})
	}
	r.table([]string{"ID", "TITLE", "CREATOR", "CREATED"}, rows)
}

func (r *renderer) qaSession(s *domain.QASession) {
	r.title(s.Title)
	r.field("ID", s.ID)
	if s.Creator != "" {
		r.field("Creator", s.Creator)
	}
	r.printf("\n")
	for _, m := range s.Messages {
		r.qaMessage(m)
	}
}

func (r *renderer) qaMessage(m domain.QAMessage) {
	sender := m.Sender
	if sender == "" {
		sender = string(m.Role)
	}
	r.printf("%s %s\n", senderStyle.Render(sender), labelStyle.Render(shortDate(m.Timestamp)))
	if m.Role == domain.RoleUser {
		r.printf("%s\n\n", m.Content)
		return
	}
	r.rich(m.Content)
}

func (r *renderer) reportRows(reports []domain.ReportDescriptor) {
	rows := make([][]string, 0, len(reports))
	for _, rep := range reports {
		rows = append(rows, []string{rep.ID, truncate(rep.Title, 40), string(rep.Source), rep.Urgency, shortDate(rep.CreatedAt)})
	}
	r.table([]string{"ID", "TITLE", "SOURCE", "URGENCY", "CREATED"}, rows)
}

func (r *renderer) report(rep *domain.ReportDescriptor) {
	r.title(rep.Title)
	r.field("ID", rep.ID)
	r.field("Source", rep.Source)
	if rep.AnalysisID != "" {
		r.field("Analysis", rep.AnalysisID)
	}
	if rep.Filename != "" {
		r.field("File", rep.Filename)
	}
	if rep.Source == domain.ReportSourceAnalysis {
		r.field("Findings", rep.FindingsCount)
		r.field("Urgency", rep.Urgency)
	}
	if rep.Content != "" {
		r.printf("\n")
		r.rich(rep.Content)
	}
}

func (r *renderer) saved(d *gateway.Download, path string) {
	r.printf("Saved %s (%s, %d bytes)\n", path, d.ContentType, len(d.Content))
}

// shortDate trims backend timestamps to minutes
func shortDate(value string) string {
	t := domain.Timestamp(value)
	if t.IsZero() {
		return value
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	rs := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(rs) <= n {
		return string(rs)
	}
	return string(rs[:n-1]) + "…"
}
