package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Fetch limits for URL ingestion.
const (
	fetchTimeout  = 30 * time.Second
	maxFetchBytes = 8 << 20
)

// boilerplateSelector matches nodes that never carry article text.
const boilerplateSelector = "nav, header, footer, aside, form, script, style, iframe, noscript, button, svg"

// textSelector matches the nodes whose text becomes paragraphs.
const textSelector = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, td"

var ingestClient = &http.Client{Timeout: fetchTimeout}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Source string
	Title  string
	Chunks int
}

// IngestURL fetches a web page, extracts its readable text and stores it
// as embedded chunks under the URL as source. Chunks from a previous run
// of the same URL are replaced.
func (s *Store) IngestURL(ctx context.Context, rawURL string) (*IngestResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "vitalog-ingest/1.0")

	resp, err := ingestClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", u, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxFetchBytes), u)
	if err != nil {
		return nil, fmt.Errorf("extracting article: %w", err)
	}

	text := extractText(article.Content)
	if text == "" {
		text = strings.TrimSpace(article.TextContent)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = u.Host
	}

	return s.ingest(ctx, u.String(), SourceURL, title, text, []string{u.Host})
}

// IngestFile reads a markdown or plain text file and stores it as embedded
// chunks under the absolute path as source.
func (s *Store) IngestFile(ctx context.Context, path string) (*IngestResult, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", ".text":
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	text := string(raw)
	title := markdownTitle(text)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return s.ingest(ctx, abs, SourceArticle, title, text, nil)
}

// ingest replaces the stored chunks of source with the chunked, embedded
// text. Delete-then-insert keeps a shrinking document from leaving stale
// tail chunks behind.
func (s *Store) ingest(ctx context.Context, source string, st SourceType, title, text string, tags []string) (*IngestResult, error) {
	chunks := splitChunks(text, ChunkSize, ChunkOverlap)
	if len(chunks) == 0 {
		return nil, ErrNoContent
	}

	if _, err := s.DeleteBySource(ctx, source); err != nil {
		return nil, err
	}

	for i, chunk := range chunks {
		_, err := s.Add(ctx, &Document{
			Source:     source,
			SourceType: st,
			ChunkIndex: i,
			Title:      title,
			Content:    chunk,
			Tags:       tags,
		})
		if err != nil {
			return nil, fmt.Errorf("storing chunk %d of %d: %w", i+1, len(chunks), err)
		}
	}

	s.logger.Info("source ingested", "source", source, "title", title, "chunks", len(chunks))
	return &IngestResult{Source: source, Title: title, Chunks: len(chunks)}, nil
}

// extractText renders readability's cleaned HTML to plain paragraphs.
// Boilerplate nodes that survived extraction are dropped first.
func extractText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find(boilerplateSelector).Remove()

	var parts []string
	doc.Find(textSelector).Each(func(_ int, sel *goquery.Selection) {
		// Containers are skipped; their text arrives via the child match.
		if sel.Find(textSelector).Length() > 0 {
			return
		}
		if t := normalizeSpace(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}

// markdownTitle returns the leading ATX heading when the document starts
// with one.
func markdownTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
		if line != "" {
			return ""
		}
	}
	return ""
}

// normalizeSpace collapses runs of whitespace into single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
