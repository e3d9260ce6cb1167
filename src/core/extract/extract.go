// Package extract turns uploaded files into plain text for ingestion.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"medicopilot/src/core/rag"
)

// Supported file extensions.
const (
	ExtPDF  = ".pdf"
	ExtTXT  = ".txt"
	ExtDOCX = ".docx"
)

var supported = map[string]bool{ExtPDF: true, ExtTXT: true, ExtDOCX: true}

// SupportedExtensions lists the accepted extensions in a stable order.
func SupportedExtensions() []string {
	return []string{ExtPDF, ExtTXT, ExtDOCX}
}

// IsSupported reports whether filename has an accepted extension.
func IsSupported(filename string) bool {
	return supported[strings.ToLower(filepath.Ext(filename))]
}

// TextExtractor converts a document to text. Implemented by the Unstructured
// API client.
type TextExtractor interface {
	ExtractText(ctx context.Context, filename string, content []byte) (string, error)
}

// Extractor dispatches on the file extension.
type Extractor struct {
	// pdfService, when set, handles PDFs instead of the local parser.
	pdfService TextExtractor
}

func New(pdfService TextExtractor) *Extractor {
	return &Extractor{pdfService: pdfService}
}

// Extract returns the text content of a file. Failures are rag.ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var (
		text string
		err  error
	)
	switch ext {
	case ExtTXT:
		text, err = plainText(content)
	case ExtPDF:
		if e.pdfService != nil {
			text, err = e.pdfService.ExtractText(ctx, filename, content)
		} else {
			text, err = pdfText(content)
		}
	case ExtDOCX:
		text, err = docxText(content)
	default:
		err = fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return "", rag.Permanent(rag.ErrExtraction, "extract", fmt.Errorf("%s: %w", filename, err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", rag.Permanent(rag.ErrExtraction, "extract", fmt.Errorf("%s: no text content", filename))
	}
	return text, nil
}

func plainText(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		return "", fmt.Errorf("file is not valid UTF-8")
	}
	return string(content), nil
}

func pdfText(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return buf.String(), nil
}

// documentXML is the subset of word/document.xml holding paragraph text.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []struct {
		Text []string `xml:"t"`
	} `xml:"r"`
}

func docxText(content []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read document.xml: %w", err)
		}

		var doc documentXML
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}

		paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
		for _, p := range doc.Body.Paragraphs {
			var sb strings.Builder
			for _, r := range p.Runs {
				for _, t := range r.Text {
					sb.WriteString(t)
				}
			}
			if s := strings.TrimSpace(sb.String()); s != "" {
				paragraphs = append(paragraphs, s)
			}
		}
		return strings.Join(paragraphs, "\n"), nil
	}
	return "", fmt.Errorf("word/document.xml not found")
}
