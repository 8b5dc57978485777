package services

import (
	"bytes"
	"fmt"
	"strings"

	"memory_stitcher_go_backend/internal/models"

	"github.com/jung-kurt/gofpdf"
)

// RenderStoryPDF lays out a story as an A4 document: title, date line, then the
// body paragraph by paragraph.
func RenderStoryPDF(story *models.Story) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := story.Title
	if title == "" {
		title = "Untitled story"
	}
	pdf.SetTitle(title, true)
	pdf.AddPage()

	pdf.SetFont("Times", "B", 20)
	pdf.MultiCell(0, 10, tr(title), "", "C", false)
	pdf.SetFont("Times", "I", 10)
	pdf.CellFormat(0, 8, tr(story.UpdatedAt.Format("January 2, 2006")), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Times", "", 12)
	for _, paragraph := range strings.Split(story.Content, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		pdf.MultiCell(0, 6, tr(paragraph), "", "J", false)
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render story pdf: %w", err)
	}
	return buf.Bytes(), nil
}
