// Package extract turns uploaded file bytes into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"docqa/internal/models"
	"docqa/internal/util"

	"github.com/ledongthuc/pdf"
)

var (
	errInvalidUTF8    = errors.New("invalid utf-8 byte sequence")
	errMissingDocBody = errors.New("word/document.xml not found")
)

// Format maps a filename to the extractor that will handle it.
func Format(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return models.FormatPDF
	case ".docx":
		return models.FormatDOCX
	default:
		return models.FormatText
	}
}

// Extract returns the sanitized text of data, dispatching on the filename suffix.
// Unparseable PDF and DOCX input yields *util.ExtractionError; anything else
// that is not valid UTF-8 yields *util.DecodeError.
func Extract(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch format := Format(filename); format {
	case models.FormatPDF:
		text, err = pdfText(data)
		if err != nil {
			return "", &util.ExtractionError{Filename: filename, Format: format, Err: err}
		}
	case models.FormatDOCX:
		text, err = docxText(data)
		if err != nil {
			return "", &util.ExtractionError{Filename: filename, Format: format, Err: err}
		}
	default:
		if !utf8.Valid(data) {
			return "", &util.DecodeError{Filename: filename, Err: errInvalidUTF8}
		}
		text = string(data)
	}
	return util.SanitizeText(text), nil
}

func pdfText(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	fonts := make(map[string]*pdf.Font)
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		pageText, err := p.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}
	return strings.Join(pages, "\n"), nil
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}
		var doc documentXML
		if err := xml.Unmarshal(content, &doc); err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		lines := make([]string, 0, len(doc.Body.Paragraphs))
		for _, para := range doc.Body.Paragraphs {
			var b strings.Builder
			for _, r := range para.Runs {
				for _, t := range r.Text {
					b.WriteString(t.Content)
				}
			}
			lines = append(lines, b.String())
		}
		return strings.Join(lines, "\n"), nil
	}
	return "", errMissingDocBody
}
