// Package extract turns uploaded file bytes into plain text.
package extract

import (
	"context"
	"path/filepath"
	"strings"

	"rag-pipeline/internal/contextutil"
)

// Formats reported in Result.Format.
const (
	FormatPDF      = "pdf"
	FormatDOCX     = "docx"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Result is the outcome of an extraction.
type Result struct {
	// Text is the extracted text. It is always valid UTF-8.
	Text string
	// Format is the format the text was finally decoded as.
	Format string
	// Fallback is true when a structured extractor failed and the raw bytes were decoded instead.
	Fallback bool
}

// Extractor picks an extraction strategy from the file extension.
type Extractor struct{}

// New creates a new extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the text of content. It never fails: when the format-specific
// extractor errors, the bytes are decoded as UTF-8 with invalid sequences dropped
// and the failure is logged at warn level.
func (e *Extractor) Extract(ctx context.Context, content []byte, filename string) Result {
	logger := contextutil.LoggerFromContext(ctx)

	format := FormatFor(filename)

	var (
		text string
		err  error
	)
	switch format {
	case FormatPDF:
		text, err = pdfText(content)
	case FormatDOCX:
		text, err = docxText(content)
	case FormatMarkdown:
		text, err = markdownText(content)
	default:
		return Result{Text: decodeLossy(content), Format: FormatText}
	}

	if err != nil {
		logger.WarnContext(ctx, "text extraction failed, decoding raw bytes",
			"filename", filename,
			"format", format,
			"error", err,
		)
		return Result{Text: decodeLossy(content), Format: FormatText, Fallback: true}
	}

	return Result{Text: strings.ToValidUTF8(text, ""), Format: format}
}

// FormatFor maps a filename to the extractor that handles it.
// .doc files go through the DOCX reader and usually fall back.
func FormatFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".docx", ".doc":
		return FormatDOCX
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// decodeLossy decodes content as UTF-8, dropping undecodable bytes.
func decodeLossy(content []byte) string {
	return strings.ToValidUTF8(string(content), "")
}
