// Package richtext turns the backend's lightly formatted analysis text into
// typed blocks that renderers can display without injecting raw markup.
package richtext

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// BlockKind identifies the type of a Block
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockBadge
	BlockWarning
	BlockListItem
)

func (k BlockKind) String() string {
	switch k {
	case BlockHeading:
		return "heading"
	case BlockBadge:
		return "badge"
	case BlockWarning:
		return "warning"
	case BlockListItem:
		return "list_item"
	default:
		return "paragraph"
	}
}

// BadgeLevel is the urgency carried by a badge
type BadgeLevel string

const (
	BadgeImmediate BadgeLevel = "immediate"
	BadgeUrgent    BadgeLevel = "urgent"
	BadgeRoutine   BadgeLevel = "routine"
	BadgeCritical  BadgeLevel = "critical"
)

// Span is a run of inline text
type Span struct {
	Text   string
	Strong bool
}

// Block is one structural element of a Document
type Block struct {
	Kind   BlockKind
	Number int        // heading number
	Title  string     // heading title
	Level  BadgeLevel // badge level
	Label  string     // badge label, e.g. "URGENT (24-48 hours)"
	Spans  []Span
}

// PlainText returns the block's inline text without formatting
func (b Block) PlainText() string {
	var sb strings.Builder
	for _, s := range b.Spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Document is a parsed analysis text
type Document struct {
	Blocks []Block
}

func (d Document) clone() Document {
	if d.Blocks == nil {
		return d
	}
	blocks := make([]Block, len(d.Blocks))
	for i, b := range d.Blocks {
		b.Spans = slices.Clone(b.Spans)
		blocks[i] = b
	}
	return Document{Blocks: blocks}
}

type badgePattern struct {
	prefix string
	level  BadgeLevel
	label  string
}

var badgePatterns = []badgePattern{
	{"🔴 **IMMEDIATE (ER/Emergency):**", BadgeImmediate, "IMMEDIATE (ER/Emergency)"},
	{"🟡 **URGENT (24-48 hours):**", BadgeUrgent, "URGENT (24-48 hours)"},
	{"🟢 **ROUTINE (Schedule soon):**", BadgeRoutine, "ROUTINE (Schedule soon)"},
	{"🔴 **Critical/Acute:**", BadgeCritical, "Critical/Acute"},
}

const (
	warningPrefix     = "⚠️ **IMPORTANT**:"
	warningPrefixBare = "⚠ **IMPORTANT**:"
	warningTerminator = "Do not delay care based on AI analysis."
)

var (
	headingRe     = regexp.MustCompile(`^### (\d+)\. (.+)$`)
	listItemRe    = regexp.MustCompile(`^- (.+)$`)
	strongLabelRe = regexp.MustCompile(`\*\*([^*]+):\*\*`)
)

// Parse converts analysis text into blocks. Every input produces a
// document; text that matches no pattern becomes paragraphs.
func Parse(text string) Document {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	doc := Document{Blocks: []Block{}}

	var para []string
	flush := func() {
		if len(para) == 0 {
			return
		}
		joined := strings.Join(para, "\n")
		para = para[:0]
		if strings.TrimSpace(joined) == "" {
			return
		}
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockParagraph, Spans: parseInline(joined)})
	}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			flush()
			continue
		}

		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			n, _ := strconv.Atoi(m[1])
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockHeading, Number: n, Title: strings.TrimSpace(m[2])})
			continue
		}

		if rest, ok := cutWarning(trimmed); ok {
			flush()
			body := []string{rest}
			closed := strings.Contains(rest, warningTerminator)
			for !closed && i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				// Without a terminator the warning ends with its paragraph
				if next == "" && !remainingContains(lines[i+1:], warningTerminator) {
					break
				}
				i++
				body = append(body, next)
				closed = strings.Contains(next, warningTerminator)
			}
			doc.Blocks = append(doc.Blocks, Block{
				Kind:  BlockWarning,
				Label: "IMPORTANT",
				Spans: parseInline(strings.TrimSpace(strings.Join(body, "\n"))),
			})
			continue
		}

		if bp, rest, ok := cutBadge(trimmed); ok {
			flush()
			doc.Blocks = append(doc.Blocks, Block{
				Kind:  BlockBadge,
				Level: bp.level,
				Label: bp.label,
				Spans: parseInline(strings.TrimSpace(rest)),
			})
			continue
		}

		if m := listItemRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockListItem, Spans: parseInline(m[1])})
			continue
		}

		para = append(para, trimmed)
	}
	flush()

	return doc
}

func cutWarning(line string) (string, bool) {
	for _, prefix := range []string{warningPrefix, warningPrefixBare} {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

func cutBadge(line string) (badgePattern, string, bool) {
	for _, bp := range badgePatterns {
		if rest, ok := strings.CutPrefix(line, bp.prefix); ok {
			return bp, rest, true
		}
	}
	return badgePattern{}, "", false
}

// remainingContains reports whether the terminator appears before the next
// heading, so a blank line inside a warning does not end it early.
func remainingContains(lines []string, needle string) bool {
	for _, l := range lines {
		if headingRe.MatchString(strings.TrimSpace(l)) {
			return false
		}
		if strings.Contains(l, needle) {
			return true
		}
	}
	return false
}

// parseInline splits text into plain and strong spans. Only "**Label:**"
// is recognized as strong; other asterisks are kept verbatim.
func parseInline(text string) []Span {
	if text == "" {
		return nil
	}
	var spans []Span
	last := 0
	for _, loc := range strongLabelRe.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			spans = append(spans, Span{Text: text[last:loc[0]]})
		}
		spans = append(spans, Span{Text: text[loc[2]:loc[3]] + ":", Strong: true})
		last = loc[1]
	}
	if last < len(text) {
		spans = append(spans, Span{Text: text[last:]})
	}
	return spans
}
