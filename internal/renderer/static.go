package renderer

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/clinicore/pdfjobs/internal/domain"
)

// StaticRenderer produces a minimal single-page PDF from the document fields.
// It is the fallback when no render service is configured, which keeps local
// development and tests independent of a headless browser.
type StaticRenderer struct{}

func NewStaticRenderer() *StaticRenderer {
	return &StaticRenderer{}
}

func (r *StaticRenderer) Render(_ context.Context, document domain.RenderDocument) ([]byte, error) {
	lines := documentLines(document)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: document carries no renderable fields", ErrRenderFailed)
	}
	return buildSimplePDF(lines), nil
}

func documentLines(document domain.RenderDocument) []string {
	switch document.Type {
	case domain.DocumentTypeConsultation:
		if document.Consultation == nil {
			return nil
		}
		c := document.Consultation
		lines := []string{
			"Consultation Record",
			"Patient: " + c.PatientName,
			"Clinician: " + c.ClinicianName,
			"Date: " + c.OccurredAt.Format("2006-01-02"),
			"Summary: " + c.Summary,
		}
		for _, note := range c.Notes {
			lines = append(lines, "Note: "+note)
		}
		return lines
	case domain.DocumentTypeCarePlan:
		if document.CarePlan == nil {
			return nil
		}
		p := document.CarePlan
		lines := []string{
			"Care Plan",
			"Patient: " + p.PatientName,
			"Clinician: " + p.ClinicianName,
			"Date: " + p.CreatedAt.Format("2006-01-02"),
		}
		for _, goal := range p.Goals {
			lines = append(lines, "Goal: "+goal)
		}
		for _, action := range p.Actions {
			lines = append(lines, "Action: "+action)
		}
		return lines
	default:
		return nil
	}
}

// buildSimplePDF writes a valid one-page PDF by hand: catalog, page tree,
// page, Helvetica font and a text content stream, then the xref table.
func buildSimplePDF(lines []string) []byte {
	var content bytes.Buffer
	content.WriteString("BT /F1 11 Tf 50 780 Td 16 TL\n")
	for _, line := range lines {
		content.WriteString(fmt.Sprintf("(%s) Tj T*\n", escapePDFText(line)))
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, len(objects))
	for index, object := range objects {
		offsets = append(offsets, out.Len())
		out.WriteString(fmt.Sprintf("%d 0 obj\n%s\nendobj\n", index+1, object))
	}

	xrefOffset := out.Len()
	out.WriteString(fmt.Sprintf("xref\n0 %d\n0000000000 65535 f \n", len(objects)+1))
	for _, offset := range offsets {
		out.WriteString(fmt.Sprintf("%010d 00000 n \n", offset))
	}
	out.WriteString(fmt.Sprintf(
		"trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1,
		xrefOffset,
	))
	return out.Bytes()
}

func escapePDFText(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return replacer.Replace(text)
}
