package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"

	"ingestor/internal/deps"
	"ingestor/internal/services"
)

const (
	defaultPDFBinary  = deps.PDFToText
	defaultPDFTimeout = 60 * time.Second
	binarySniffBytes  = 8000
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
	pdfMagic   = []byte("%PDF-")
)

// Option configures a TextExtractor.
type Option func(*TextExtractor)

// WithPDFBinary overrides the pdftotext executable.
func WithPDFBinary(binary string) Option {
	return func(e *TextExtractor) {
		if binary = strings.TrimSpace(binary); binary != "" {
			e.pdfBinary = binary
		}
	}
}

// WithPDFTimeout bounds a single PDF conversion.
func WithPDFTimeout(d time.Duration) Option {
	return func(e *TextExtractor) {
		if d > 0 {
			e.pdfTimeout = d
		}
	}
}

// TextExtractor implements ingest.Extractor.
type TextExtractor struct {
	pdfBinary  string
	pdfTimeout time.Duration
}

// New constructs a TextExtractor.
func New(opts ...Option) *TextExtractor {
	e := &TextExtractor{
		pdfBinary:  defaultPDFBinary,
		pdfTimeout: defaultPDFTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text content of an uploaded file.
func (e *TextExtractor) Extract(content []byte, name, contentType string) (string, error) {
	if len(content) == 0 {
		return "", services.Wrap(services.ErrExtraction, "extract", "extract text", name+" is empty", nil)
	}
	var (
		text string
		err  error
	)
	if isPDF(content, name, contentType) {
		text, err = e.pdfText(content, name)
	} else {
		text, err = Decode(content)
		if err != nil {
			err = services.Wrap(services.ErrExtraction, "extract", "decode", "could not decode "+name, err)
		}
	}
	if err != nil {
		return "", err
	}
	text = Normalize(text)
	if strings.TrimSpace(text) == "" {
		return "", services.Wrap(services.ErrExtraction, "extract", "extract text", "no text content found in "+name, nil)
	}
	return text, nil
}

// Decode converts raw bytes to a UTF-8 string.
func Decode(content []byte) (string, error) {
	switch {
	case bytes.HasPrefix(content, bomUTF8):
		return string(content[len(bomUTF8):]), nil
	case bytes.HasPrefix(content, bomUTF16LE), bytes.HasPrefix(content, bomUTF16BE):
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(content)
		if err != nil {
			return "", fmt.Errorf("utf-16: %w", err)
		}
		return string(out), nil
	}
	if looksBinary(content) {
		return "", errors.New("content appears to be binary")
	}
	if utf8.Valid(content) {
		return string(content), nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(content)
	if err != nil {
		return "", fmt.Errorf("windows-1252: %w", err)
	}
	return string(out), nil
}

// Normalize applies NFC, converts line endings and drops NUL characters.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	return norm.NFC.String(text)
}

func (e *TextExtractor) pdfText(content []byte, name string) (string, error) {
	binary, err := exec.LookPath(e.pdfBinary)
	if err != nil {
		return "", services.WithHint(
			services.Wrap(services.ErrExtraction, "extract", "pdf", "PDF support requires "+e.pdfBinary, err),
			"install poppler-utils or upload the document as text",
		)
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.pdfTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, "-enc", "UTF-8", "-q", "-", "-")
	cmd.Stdin = bytes.NewReader(content)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "extract", "pdf", fmt.Sprintf("pdftotext timed out after %s on %s", e.pdfTimeout, name), err)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", services.Wrap(services.ErrExtraction, "extract", "pdf", "could not read PDF "+name, errors.New(detail))
	}
	// pdftotext separates pages with form feeds.
	return strings.ReplaceAll(stdout.String(), "\f", "\n\n"), nil
}

func isPDF(content []byte, name, contentType string) bool {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return true
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(content, pdfMagic)
}

func looksBinary(content []byte) bool {
	sniff := content
	if len(sniff) > binarySniffBytes {
		sniff = sniff[:binarySniffBytes]
	}
	return bytes.IndexByte(sniff, 0) >= 0
}
