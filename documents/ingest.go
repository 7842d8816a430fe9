// Package documents turns files into session-ready text and tracks the
// loaded documents for a server or CLI run.
package documents

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	apperrors "rlm-engine/errors"
)

// Ingestor extracts plain text from a file format family.
type Ingestor interface {
	CanHandle(path string) bool
	Extract(path string) (string, error)
}

// TextIngestor handles the plain-text family by reading the file verbatim.
type TextIngestor struct{}

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".tsv": true,
	".log": true, ".text": true, ".rst": true, ".json": true,
}

func (TextIngestor) CanHandle(path string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(path))]
}

func (TextIngestor) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PDFIngestor extracts page text with a page marker before each page so
// sandboxed code can navigate by page.
type PDFIngestor struct {
	logger *zap.Logger
}

func NewPDFIngestor(logger *zap.Logger) *PDFIngestor {
	return &PDFIngestor{logger: logger}
}

func (*PDFIngestor) CanHandle(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}

func (p *PDFIngestor) Extract(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var fullText strings.Builder
	totalPages := r.NumPage()

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			p.logger.Warn("Skipping null page", zap.Int("page", pageNum))
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Warn("Failed to extract text from page",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		fullText.WriteString(fmt.Sprintf("--- Page %d ---\n", pageNum))
		fullText.WriteString(text)
		fullText.WriteString("\n\n")
	}

	p.logger.Info("PDF text extraction completed",
		zap.String("path", path),
		zap.Int("pages", totalPages),
		zap.Int("characters", fullText.Len()))
	return fullText.String(), nil
}

// Chain tries ingestors in order and caches extracted text by path. Files no
// ingestor claims are read as plain text as a last resort.
type Chain struct {
	ingestors []Ingestor
	cache     *lru.Cache
	logger    *zap.Logger
}

// NewChain builds the default chain (PDF, then plain text) with an LRU cache
// of cacheSize extracted documents.
func NewChain(cacheSize int, logger *zap.Logger) (*Chain, error) {
	if cacheSize <= 0 {
		cacheSize = 32
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Chain{
		ingestors: []Ingestor{NewPDFIngestor(logger), TextIngestor{}},
		cache:     cache,
		logger:    logger,
	}, nil
}

// Ingest extracts text from path, serving repeated loads from the cache.
func (c *Chain) Ingest(path string) (string, error) {
	if cached, ok := c.cache.Get(path); ok {
		c.logger.Debug("Serving document from cache", zap.String("path", path))
		return cached.(string), nil
	}

	text, err := c.extract(path)
	if err != nil {
		return "", apperrors.WrapErrorf(apperrors.ErrDocumentIngestion, "ingest %s: %v", path, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", apperrors.WrapErrorf(apperrors.ErrDocumentIngestion, "ingest %s: no text extracted", path)
	}

	c.cache.Add(path, text)
	return text, nil
}

func (c *Chain) extract(path string) (string, error) {
	for _, ing := range c.ingestors {
		if ing.CanHandle(path) {
			return ing.Extract(path)
		}
	}
	// Unknown extension: try plain text before giving up.
	c.logger.Debug("No ingestor claimed file, reading as plain text",
		zap.String("path", path))
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
