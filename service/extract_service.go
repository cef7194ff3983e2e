package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultChunkSize    = 500
	defaultMaxFileBytes = 50 << 20
	defaultExtractTime  = 20 * time.Second

	// ExtractionFailedContent is stored as snippet content when extraction
	// exceeds its time budget, so the pipeline completes instead of hanging.
	ExtractionFailedContent = "[extraction failed: timed out]"
)

var (
	// ErrUnsupportedMime rejects a declared MIME type outside the allow-list.
	ErrUnsupportedMime = errors.New("unsupported mime type")
	// ErrFileTooLarge rejects oversized input before extraction is attempted.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)

var (
	xmlTagPattern  = regexp.MustCompile(`<[^>]*>`)
	docxParagraphs = strings.NewReplacer("</w:p>", "\n", "<w:tab/>", "\t", "<w:br/>", "\n")
)

// ExtractConfig bounds extraction work.
type ExtractConfig struct {
	ChunkSize    int
	MaxFileBytes int64
	Timeout      time.Duration
}

// ExtractService normalizes heterogeneous input into bounded text chunks.
// Dispatch is by declared MIME type; images yield no extracted text and are
// represented by a synthetic metadata snippet further up the pipeline.
type ExtractService struct {
	chunkSize    int
	maxFileBytes int64
	timeout      time.Duration
}

func NewExtractService(cfg ExtractConfig) *ExtractService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = defaultMaxFileBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultExtractTime
	}
	return &ExtractService{
		chunkSize:    cfg.ChunkSize,
		maxFileBytes: cfg.MaxFileBytes,
		timeout:      cfg.Timeout,
	}
}

// SupportedMime reports whether the declared MIME type is in the allow-list.
func (s *ExtractService) SupportedMime(mimeType string) bool {
	switch mimeType {
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return true
	}
	return strings.HasPrefix(mimeType, "text/") || strings.HasPrefix(mimeType, "image/")
}

// ExtractFile extracts text from the file at path according to its declared
// MIME type. Extraction is raced against the configured time budget; on
// timeout the sentinel content is returned instead of an error so ingestion
// still completes. Oversized files are rejected before any extraction work.
func (s *ExtractService) ExtractFile(ctx context.Context, path, mimeType string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > s.maxFileBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}
	if strings.HasPrefix(mimeType, "image/") {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type extracted struct {
		text string
		err  error
	}
	done := make(chan extracted, 1)
	go func() {
		text, err := s.extract(ctx, path, mimeType)
		done <- extracted{text, err}
	}()

	select {
	case r := <-done:
		if errors.Is(r.err, context.DeadlineExceeded) {
			return ExtractionFailedContent, nil
		}
		if r.err != nil {
			return "", r.err
		}
		return cleanText(r.text), nil
	case <-ctx.Done():
		return ExtractionFailedContent, nil
	}
}

func (s *ExtractService) extract(ctx context.Context, path, mimeType string) (string, error) {
	switch {
	case mimeType == "application/pdf":
		return extractPDF(ctx, path)
	case mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		mimeType == "application/msword":
		return extractWordDocument(path)
	case mimeType == "text/html":
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return ExtractHTML(f)
	case strings.HasPrefix(mimeType, "text/"):
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMime, mimeType)
}

// extractPDF shells out to pdftotext, the same extractor the upload worker
// has always relied on.
func extractPDF(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-enc", "UTF-8", "-nopgbrk", path, "-")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return out.String(), nil
}

// extractWordDocument reads word/document.xml out of the docx container and
// strips the markup. Legacy binary .doc files carry no such part and yield
// empty text, which degrades to the metadata snippet upstream.
func extractWordDocument(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", nil
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		data := new(bytes.Buffer)
		_, err = data.ReadFrom(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		text := docxParagraphs.Replace(data.String())
		text = xmlTagPattern.ReplaceAllString(text, " ")
		return html.UnescapeString(text), nil
	}
	return "", nil
}

// ExtractHTML strips script/style/noscript, decodes entities and collapses
// whitespace, leaving the visible text of the page.
func ExtractHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return strings.Join(strings.Fields(root.Text()), " "), nil
}

// Chunk splits text into fixed-size character windows. There is no semantic
// boundary awareness: concatenating the chunks reproduces the input exactly.
func (s *ExtractService) Chunk(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	chunks := make([]string, 0, (len(runes)+s.chunkSize-1)/s.chunkSize)
	for start := 0; start < len(runes); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// ChunkSize returns the configured window width.
func (s *ExtractService) ChunkSize() int { return s.chunkSize }

// MetadataSnippetContent builds the fallback snippet body used when a file
// yields no extractable text, so every ingested item stays searchable.
func MetadataSnippetContent(title, description string) string {
	if description == "" {
		description = "No description available"
	}
	return fmt.Sprintf("File: %s - %s", title, description)
}

func cleanText(text string) string {
	replacements := strings.NewReplacer(
		"\u0000", "",
		"\ufffd", "",
		"\r", "",
		"\f", "\n",
	)
	return strings.TrimSpace(replacements.Replace(text))
}
