// Package content turns raw blob payloads into plain text the chunker can
// work on. The format is resolved from the file extension; each format has
// its own decoder.
package content

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoDecoder marks a format without a text decoder. Decode still returns
// the raw payload alongside it so callers can route binary blobs elsewhere
// instead of treating them as corrupt.
var ErrNoDecoder = errors.New("no decoder for format")

// Kind identifies the source document format.
type Kind string

const (
	KindPlainText    Kind = "text"
	KindMarkdown     Kind = "markdown"
	KindTabular      Kind = "tabular"
	KindWordDocument Kind = "word"
	KindPDF          Kind = "pdf"
	KindBinary       Kind = "binary"
)

// KindForName resolves the document kind from a file name.
func KindForName(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".text", ".log":
		return KindPlainText
	case ".md", ".markdown":
		return KindMarkdown
	case ".csv", ".tsv":
		return KindTabular
	case ".docx":
		return KindWordDocument
	case ".pdf":
		return KindPDF
	default:
		return KindBinary
	}
}

// Decode extracts plain text from data according to the kind implied by
// name. A format without a decoder returns the raw payload, KindBinary and
// ErrNoDecoder, never a silently coerced string.
func Decode(name string, data []byte) (string, Kind, error) {
	kind := KindForName(name)
	var (
		text string
		err  error
	)
	switch kind {
	case KindPlainText, KindMarkdown:
		text = string(data)
	case KindTabular:
		text, err = decodeTabular(name, data)
	case KindWordDocument:
		text, err = decodeWord(data)
	case KindPDF:
		text, err = decodePDF(data)
	default:
		return string(data), KindBinary, fmt.Errorf("%w: %q", ErrNoDecoder, name)
	}
	if err != nil {
		return "", kind, err
	}
	return strings.TrimSpace(text), kind, nil
}

// decodeTabular renders each row as one line of comma-joined cells, so a
// spreadsheet row stays intact through paragraph splitting.
func decodeTabular(name string, data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1

	var lines []string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse %q: %w", name, err)
		}
		lines = append(lines, strings.Join(row, ", "))
	}
	return strings.Join(lines, "\n"), nil
}

// wordDocument maps the parts of word/document.xml we read.
type wordDocument struct {
	Body struct {
		Paragraphs []wordParagraph `xml:"p"`
	} `xml:"body"`
}

type wordParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

// decodeWord opens a .docx archive and extracts the paragraph text of
// word/document.xml, one line per paragraph.
func decodeWord(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx archive: %w", err)
	}

	for _, file := range archive.File {
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

		var doc wordDocument
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}

		var builder strings.Builder
		for i, paragraph := range doc.Body.Paragraphs {
			if i > 0 {
				builder.WriteString("\n")
			}
			for _, run := range paragraph.Runs {
				for _, text := range run.Text {
					builder.WriteString(text.Content)
				}
			}
		}
		return builder.String(), nil
	}
	return "", fmt.Errorf("docx archive has no word/document.xml")
}

func decodePDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	text, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return buf.String(), nil
}

// TitleFromName derives a human-readable document title from a file name.
func TitleFromName(name string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")
	return strings.TrimSpace(base)
}
