package richtext

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Terminal renders documents for an ANSI terminal
type Terminal struct {
	width int

	heading   lipgloss.Style
	number    lipgloss.Style
	strong    lipgloss.Style
	warning   lipgloss.Style
	paragraph lipgloss.Style
	badges    map[BadgeLevel]lipgloss.Style
}

// NewTerminal creates a renderer wrapping text at width columns (0 disables wrapping)
func NewTerminal(width int) *Terminal {
	return &Terminal{
		width:   width,
		heading: lipgloss.NewStyle().Bold(true).MarginTop(1),
		number: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true).
			Padding(0, 1),
		strong: lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		warning: lipgloss.NewStyle().
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color("11")).
			PaddingLeft(1),
		paragraph: lipgloss.NewStyle(),
		badges: map[BadgeLevel]lipgloss.Style{
			BadgeImmediate: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			BadgeUrgent:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
			BadgeRoutine:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
			BadgeCritical:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		},
	}
}

// Render returns the styled text of doc
func (t *Terminal) Render(doc Document) string {
	parts := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		parts = append(parts, t.renderBlock(b))
	}
	return strings.Join(parts, "\n")
}

func (t *Terminal) renderBlock(b Block) string {
	switch b.Kind {
	case BlockHeading:
		return t.heading.Render(t.number.Render(fmt.Sprintf("%d", b.Number)) + " " + b.Title)
	case BlockBadge:
		label := t.badges[b.Level].Render(badgeIcon[b.Level] + " " + b.Label)
		if len(b.Spans) == 0 {
			return label
		}
		return t.wrap(label + " " + t.spans(b.Spans))
	case BlockWarning:
		style := t.warning
		if t.width > 2 {
			style = style.Width(t.width - 2)
		}
		return style.Render(t.strong.Render("⚠️ IMPORTANT:") + " " + t.spans(b.Spans))
	case BlockListItem:
		return t.wrap("  • " + t.spans(b.Spans))
	default:
		return t.wrap(t.spans(b.Spans)) + "\n"
	}
}

func (t *Terminal) spans(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		if s.Strong {
			sb.WriteString(t.strong.Render(s.Text))
		} else {
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}

func (t *Terminal) wrap(s string) string {
	if t.width <= 0 {
		return s
	}
	return t.paragraph.Width(t.width).Render(s)
}
