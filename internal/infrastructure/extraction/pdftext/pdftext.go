// Package pdftext reads the physical text lines of a PDF document.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// gapFactor is the horizontal gap, as a fraction of the font size, above
// which two text runs on a row are separated by a space
const gapFactor = 0.2

// Source implements correspondence.TextSource over ledongthuc/pdf
type Source struct{}

// NewSource creates a PDF text source
func NewSource() *Source {
	return &Source{}
}

// Lines returns the document text, one entry per physical row, pages in order
func (s *Source) Lines(ctx context.Context, data []byte) (lines []string, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		// PDF y grows upwards; top row first
		sort.SliceStable(rows, func(a, b int) bool { return rows[a].Position > rows[b].Position })
		for _, row := range rows {
			if line := joinRow(row.Content); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

func joinRow(texts pdf.TextHorizontal) string {
	runs := make([]pdf.Text, len(texts))
	copy(runs, texts)
	sort.SliceStable(runs, func(a, b int) bool { return runs[a].X < runs[b].X })

	var sb strings.Builder
	var prevEnd float64
	for i, t := range runs {
		if i > 0 && t.X-prevEnd > gapFactor*t.FontSize {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	return strings.TrimSpace(sb.String())
}
