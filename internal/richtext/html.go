package richtext

import (
	"html"
	"strconv"
	"strings"
)

var badgeClass = map[BadgeLevel]string{
	BadgeImmediate: "badge badge-immediate",
	BadgeUrgent:    "badge badge-urgent",
	BadgeRoutine:   "badge badge-routine",
	BadgeCritical:  "badge badge-critical",
}

var badgeIcon = map[BadgeLevel]string{
	BadgeImmediate: "🔴",
	BadgeUrgent:    "🟡",
	BadgeRoutine:   "🟢",
	BadgeCritical:  "🔴",
}

// RenderHTML renders a document as an HTML fragment. All text is escaped;
// only the tags emitted here reach the output.
func RenderHTML(doc Document) string {
	var sb strings.Builder
	inList := false

	for _, b := range doc.Blocks {
		if b.Kind == BlockListItem && !inList {
			sb.WriteString("<ul>\n")
			inList = true
		} else if b.Kind != BlockListItem && inList {
			sb.WriteString("</ul>\n")
			inList = false
		}

		switch b.Kind {
		case BlockHeading:
			sb.WriteString(`<h3 class="section"><span class="section-number">`)
			sb.WriteString(strconv.Itoa(b.Number))
			sb.WriteString("</span>")
			sb.WriteString(html.EscapeString(b.Title))
			sb.WriteString("</h3>\n")
		case BlockBadge:
			sb.WriteString(`<p><span class="`)
			sb.WriteString(badgeClass[b.Level])
			sb.WriteString(`">`)
			sb.WriteString(badgeIcon[b.Level])
			sb.WriteString(" ")
			sb.WriteString(html.EscapeString(b.Label))
			sb.WriteString("</span>")
			if len(b.Spans) > 0 {
				sb.WriteString(" ")
				writeSpans(&sb, b.Spans)
			}
			sb.WriteString("</p>\n")
		case BlockWarning:
			sb.WriteString(`<div class="warning"><strong>⚠️ IMPORTANT:</strong> `)
			writeSpans(&sb, b.Spans)
			sb.WriteString("</div>\n")
		case BlockListItem:
			sb.WriteString("<li>")
			writeSpans(&sb, b.Spans)
			sb.WriteString("</li>\n")
		default:
			sb.WriteString("<p>")
			writeSpans(&sb, b.Spans)
			sb.WriteString("</p>\n")
		}
	}
	if inList {
		sb.WriteString("</ul>\n")
	}
	return sb.String()
}

func writeSpans(sb *strings.Builder, spans []Span) {
	for _, s := range spans {
		text := strings.ReplaceAll(html.EscapeString(s.Text), "\n", "<br/>")
		if s.Strong {
			sb.WriteString("<strong>")
			sb.WriteString(text)
			sb.WriteString("</strong>")
		} else {
			sb.WriteString(text)
		}
	}
}
