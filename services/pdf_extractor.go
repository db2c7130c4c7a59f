package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"exam-tutor-platform/internal/logger"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor pulls per-page text out of supplementary PDF material.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// PDFPage is one page of extracted text.
type PDFPage struct {
	Number int
	Text   string
}

// Pages that score below this are usually scanned images or corrupted
// font maps and would only pollute retrieval.
const minPageQuality = 0.3

// ExtractPages extracts text page by page, skipping pages whose
// extracted text looks corrupted.
func (e *PDFExtractor) ExtractPages(ctx context.Context, filePath string) ([]PDFPage, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) <= 0 {
			return nil, fmt.Errorf("context deadline exceeded before extraction")
		}
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}
	if stat.Size() > 200<<20 {
		return nil, fmt.Errorf("pdf too large for in-memory extraction")
	}

	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var pages []PDFPage
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("failed to extract pdf page", "file", filePath, "page", i, "error", err)
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if quality := evaluateTextQuality(text); quality < minPageQuality {
			logger.Warn("skipping low quality pdf page", "file", filePath, "page", i, "quality", quality)
			continue
		}
		pages = append(pages, PDFPage{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no usable text extracted from %s", filePath)
	}
	return pages, nil
}

// evaluateTextQuality scores extracted text in [0,1] based on the mix
// of readable and corrupted characters.
func evaluateTextQuality(text string) float64 {
	if len(text) < 10 {
		return 0.1
	}

	var alphanumeric, printable, corrupted int
	runes := []rune(text)
	for _, r := range runes {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			alphanumeric++
			printable++
		case r == ' ' || r == '\n' || r == '\t':
			printable++
		case r == '�':
			corrupted++
		case r >= 32 && r <= 126:
			printable++
		default:
			printable++
		}
	}

	total := float64(len(runes))
	score := float64(printable)/total*0.4 - float64(corrupted)/total*2.0

	if ratio := float64(alphanumeric) / total; ratio >= 0.3 {
		score += 0.3
	} else {
		score += ratio
	}
	if len(text) > 100 {
		score += 0.1
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
