package stubserver

import (
	"bytes"
	"fmt"
	"path"
	"strings"
)

// Canned backend output. The stub performs no inference; it returns fixed
// text shaped like the real analysis and consultation responses.

const analysisTemplate = `### 1. Image Type & Region
%s imaging study submitted as %s.

### 2. Key Findings
- **Primary Observations:** No acute osseous abnormality identified
- **Secondary Observations:** Mild soft tissue prominence, likely positional

### 3. Diagnostic Assessment
**Primary Diagnosis:** Findings within normal limits for age
**Differential Diagnoses:** Early inflammatory change; technical artefact

### 4. Doctor Recommendations
🟢 **ROUTINE (Schedule soon):** Follow up with primary care within 2-4 weeks

**Primary Specialist:** Radiologist

⚠️ **IMPORTANT**: This AI analysis is for informational purposes only and must be reviewed by a qualified healthcare professional.
Do not delay care based on AI analysis.`

func imagingKind(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".dcm"):
		return "DICOM"
	case strings.HasSuffix(lower, ".nii"), strings.HasSuffix(lower, ".nii.gz"):
		return "NIfTI"
	default:
		return "Radiographic"
	}
}

func cannedAnalysis(filename string) string {
	return fmt.Sprintf(analysisTemplate, imagingKind(filename), path.Base(filename))
}

var cannedFindings = []string{
	"No acute osseous abnormality identified",
	"Mild soft tissue prominence, likely positional",
}

var cannedKeywords = []string{"radiograph", "soft tissue", "normal variant"}

var cannedArticles = []article{
	{ID: "38012345", Title: "Deep learning for chest radiograph triage", Journal: "Radiology", Year: "2023"},
	{ID: "37654321", Title: "Explainable AI in diagnostic imaging", Journal: "Eur Radiol", Year: "2022"},
}

type specialist struct {
	kind string
	name string
}

var panel = []specialist{
	{"radiologist", "Dr. Michael Rodriguez (Radiologist)"},
	{"cardiologist", "Dr. Sarah Chen (Cardiologist)"},
	{"pulmonologist", "Dr. Emily Johnson (Pulmonologist)"},
}

const (
	systemSender   = "System"
	chiefSender    = "Dr. Lisa Thompson (Chief Medical Officer)"
	qaSystemSender = "Report QA System"
	assistantName  = "AI Assistant"
)

func specialistOpinion(s specialist, description string) string {
	title := s.name[strings.Index(s.name, "(")+1 : len(s.name)-1]
	return fmt.Sprintf("**%s Opinion:**\n\nFrom a %s perspective the case \"%s\" shows no finding that requires immediate intervention.", title, s.kind, description)
}

func summaryOpinion(opinions int) string {
	return fmt.Sprintf("**Multidisciplinary Summary:**\n\nHaving reviewed %d specialist opinions, the team recommends routine follow-up and repeat imaging if symptoms persist.", opinions)
}

func qaAnswer(question string) string {
	return fmt.Sprintf("Based on the available reports, here is what is known about \"%s\": the findings are consistent with a normal study. Please consult your physician for a personal assessment.", question)
}

func reportMarkdown(a *analysisRecord, title, generated string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Generated:** %s\n**Image:** %s\n**Analysis Date:** %s\n\n---\n\n", generated, a.Filename, a.Date[:min(10, len(a.Date))])
	fmt.Fprintf(&b, "## AI Analysis\n\n%s\n\n", a.Analysis)
	if len(a.Findings) > 0 {
		b.WriteString("## Key Findings\n\n")
		for i, f := range a.Findings {
			fmt.Fprintf(&b, "%d. %s\n", i+1, f)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// minimalPDF returns a one page PDF carrying the given lines
func minimalPDF(lines ...string) []byte {
	var content bytes.Buffer
	content.WriteString("BT /F1 12 Tf 72 720 Td 14 TL\n")
	for _, l := range lines {
		l = strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(l)
		fmt.Fprintf(&content, "(%s) '\n", l)
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return out.Bytes()
}
