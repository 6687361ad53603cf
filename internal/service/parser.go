package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/singlebitxyz/gulp/internal/objectstore"
)

// ParseResult holds the extracted text, page count, and format-specific
// metadata from a document.
type ParseResult struct {
	Text       string `json:"text"`
	Pages      int    `json:"pages"`
	Paragraphs int    `json:"paragraphs,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
}

// ParserService extracts plain text from uploaded documents (C1): PDF via
// ledongthuc/pdf, .docx via native ZIP+XML, everything else read as plain
// text. It is the first stage of the ingestion pipeline for file uploads.
type ParserService struct {
	store objectstore.Store
}

// NewParserService creates a ParserService backed by store.
func NewParserService(store objectstore.Store) *ParserService {
	return &ParserService{store: store}
}

// Extract routes key to the right extraction path by its file extension and
// returns the document's plain text plus its page count.
func (s *ParserService) Extract(ctx context.Context, key, filename string) (*ParseResult, error) {
	if key == "" {
		return nil, fmt.Errorf("service.Extract: key is empty")
	}

	data, err := s.store.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("service.Extract: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return s.extractPDF(data)
	case ".docx":
		return s.extractDocx(data)
	default:
		return s.extractText(data)
	}
}

// extractText treats data as plain text (.txt, .md, .csv, .json, etc),
// trying UTF-8, UTF-16, Latin-1, and CP-1252 in order and keeping the first
// decoding that looks like text.
func (s *ParserService) extractText(data []byte) (*ParseResult, error) {
	text, enc, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("service.Extract: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("service.Extract: file is empty")
	}
	return &ParseResult{Text: text, Pages: 1, Encoding: enc}, nil
}

// decodeText runs the TXT decode chain: UTF-8, then UTF-16 (BOM or
// NUL-pattern detected), then the single-byte Latin-1 and CP-1252
// fallbacks. The first candidate that decodes and passes isLikelyText wins.
func decodeText(data []byte) (string, string, error) {
	if utf8.Valid(data) && isLikelyText(string(data)) {
		return string(data), "utf-8", nil
	}
	if text, ok := decodeUTF16(data); ok && isLikelyText(text) {
		return text, "utf-16", nil
	}
	if text, ok := decodeCharmap(data, charmap.ISO8859_1); ok && isLikelyText(text) {
		return text, "iso-8859-1", nil
	}
	if text, ok := decodeCharmap(data, charmap.Windows1252); ok && isLikelyText(text) {
		return text, "windows-1252", nil
	}
	return "", "", fmt.Errorf("content does not look like text in any supported encoding")
}

// decodeUTF16 detects a UTF-16 BOM, or — absent one — guesses the byte
// order from the NUL-byte pattern typical of UTF-16-encoded ASCII text.
func decodeUTF16(data []byte) (string, bool) {
	if len(data) < 2 || len(data)%2 != 0 {
		return "", false
	}

	endian := unicode.BigEndian
	bomPolicy := unicode.ExpectBOM
	switch {
	case data[0] == 0xFF && data[1] == 0xFE:
		endian = unicode.LittleEndian
	case data[0] == 0xFE && data[1] == 0xFF:
		endian = unicode.BigEndian
	default:
		var evenNUL, oddNUL int
		for i := 0; i+1 < len(data); i += 2 {
			if data[i] == 0 {
				evenNUL++
			}
			if data[i+1] == 0 {
				oddNUL++
			}
		}
		units := len(data) / 2
		if evenNUL*2 < units && oddNUL*2 < units {
			return "", false
		}
		bomPolicy = unicode.IgnoreBOM
		if evenNUL > oddNUL {
			endian = unicode.BigEndian
		} else {
			endian = unicode.LittleEndian
		}
	}

	out, err := unicode.UTF16(endian, bomPolicy).NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// decodeCharmap decodes data with a single-byte encoding (Latin-1,
// CP-1252). These decoders rarely error outright, so isLikelyText is the
// real gate against treating binary data as a false-positive text match.
func decodeCharmap(data []byte, enc encoding.Encoding) (string, bool) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// extractDocx extracts text from a .docx file's ZIP+XML structure.
func (s *ParserService) extractDocx(data []byte) (*ParseResult, error) {
	text, paragraphs, err := extractDocxText(data)
	if err != nil {
		return nil, fmt.Errorf("service.Extract: parse docx: %w", err)
	}
	return &ParseResult{Text: text, Pages: 1, Paragraphs: paragraphs}, nil
}

// extractPDF extracts text from each page of a PDF, ordered by visual
// position rather than the content stream's internal object order.
func (s *ParserService) extractPDF(data []byte) (*ParseResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("service.Extract: open pdf: %w", err)
	}

	totalPages := reader.NumPage()
	var buf strings.Builder
	extracted := 0

	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := extractPageTextOrdered(page)
		if err != nil {
			slog.Warn("service.Extract: page extraction failed, skipping", "page", i, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(text)
		extracted++
	}

	if extracted == 0 {
		return nil, fmt.Errorf("service.Extract: no extractable text in pdf")
	}

	return &ParseResult{Text: buf.String(), Pages: totalPages}, nil
}

// extractPageTextOrdered extracts text from a PDF page sorted by visual
// position (top-to-bottom). The library's GetPlainText reads text in
// content-stream order, which can differ from visual layout.
func extractPageTextOrdered(page pdf.Page) (string, error) {
	content := page.Content()
	if len(content.Text) == 0 {
		return page.GetPlainText(nil)
	}

	const lineTolerance = 3.0
	type visualLine struct {
		y   float64
		buf strings.Builder
	}

	var lines []*visualLine
	var cur *visualLine
	for _, t := range content.Text {
		if cur == nil || math.Abs(t.Y-cur.y) > lineTolerance {
			lines = append(lines, &visualLine{y: t.Y})
			cur = lines[len(lines)-1]
		}
		cur.buf.WriteString(t.S)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	var parts []string
	for _, l := range lines {
		if text := strings.TrimSpace(l.buf.String()); text != "" {
			parts = append(parts, text)
		}
	}

	result := strings.Join(parts, "\n")
	if strings.TrimSpace(result) == "" {
		return page.GetPlainText(nil)
	}
	return result, nil
}

// isLikelyText checks whether content is readable text rather than binary
// data, so uploads with no recognized extension fail fast instead of
// feeding garbage into the chunker.
func isLikelyText(s string) bool {
	if len(s) == 0 {
		return false
	}
	sample := s
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	if !utf8.ValidString(sample) {
		return false
	}
	nonPrintable := 0
	total := 0
	for _, r := range sample {
		total++
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			nonPrintable++
		}
	}
	if total == 0 {
		return false
	}
	return float64(nonPrintable)/float64(total) < 0.05
}
