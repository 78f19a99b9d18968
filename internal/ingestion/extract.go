package ingestion

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"github.com/claims-agent/backend/internal/claims"
)

var whitespacePattern = regexp.MustCompile(`[ \t]+`)

// supportedExtensions lists the policy document formats the loader accepts.
var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".html": true,
	".htm":  true,
	".txt":  true,
}

// extractFile pulls plain text out of a single policy document. Failures are
// wrapped in claims.ErrExtraction so the loader can skip the file without
// aborting the corpus.
func extractFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var text string
	var err error

	switch ext {
	case ".pdf":
		text, err = extractPDF(path)
	case ".docx":
		text, err = extractDOCX(path)
	case ".html", ".htm":
		text, err = extractHTML(path)
	case ".txt":
		text, err = extractPlain(path)
	default:
		err = fmt.Errorf("unsupported extension %q", ext)
	}

	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", claims.ErrExtraction, filepath.Base(path), err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s: no text content", claims.ErrExtraction, filepath.Base(path))
	}

	return text, nil
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	b, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract plain text: %w", err)
	}

	if _, err := buf.ReadFrom(b); err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}

	return buf.String(), nil
}

// extractDOCX reads word/document.xml out of the docx archive and collects
// the run text, inserting a paragraph break per <w:p> element.
func extractDOCX(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx archive: %w", err)
	}
	defer archive.Close()

	var docFile *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("word/document.xml not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var builder strings.Builder

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				var runText string
				if err := decoder.DecodeElement(&runText, &t); err != nil {
					return "", fmt.Errorf("failed to decode text run: %w", err)
				}
				builder.WriteString(runText)
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				builder.WriteString("\n\n")
			}
		}
	}

	return builder.String(), nil
}

func extractHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var builder strings.Builder
	doc.Find("body p, body li, body h1, body h2, body h3, body td").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			builder.WriteString(text)
			builder.WriteString("\n\n")
		}
	})

	text := builder.String()
	if text == "" {
		text = doc.Find("body").Text()
	}

	return whitespacePattern.ReplaceAllString(text, " "), nil
}

func extractPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}
