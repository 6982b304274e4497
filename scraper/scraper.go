package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"timeplan/apperr"
)

const (
	// DefaultBaseURL is the NTNU timetable hosted by educloud.
	DefaultBaseURL   = "https://tp.educloud.no/ntnu/timeplan"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultTimeout   = 30 * time.Second

	maxPageSize = 16 << 20
)

// SourceConfig configures a Source.
type SourceConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Source fetches and parses semesters, courses and activities from the
// timetable website. It holds no state besides its HTTP client and never
// retries; retries belong to the cache layer.
type Source struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    *zap.Logger
}

// NewSource creates a Source. A nil client gets a fresh one with cfg.Timeout.
func NewSource(cfg SourceConfig, client *http.Client, logger *zap.Logger) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		client:    client,
		logger:    logger,
	}
}

// fetchPage performs a GET for page with the given query and returns the body.
func (s *Source) fetchPage(ctx context.Context, op, page string, query url.Values) (string, error) {
	pageURL := s.baseURL + "/" + page
	if len(query) > 0 {
		pageURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", apperr.Network(op, fmt.Errorf("error creating request: %w", err))
	}

	// Add headers to mimic a real browser
	req.Header.Add("User-Agent", s.userAgent)
	req.Header.Add("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Add("Accept-Language", "nb-NO,nb;q=0.9,en;q=0.5")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperr.Network(op, fmt.Errorf("error fetching %s: %w", pageURL, err))
	}
	defer resp.Body.Close()

	s.logger.Debug("fetched timetable page",
		zap.String("op", op),
		zap.String("url", pageURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperr.Network(op, fmt.Errorf("unexpected status %s from %s", resp.Status, pageURL))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", apperr.Network(op, fmt.Errorf("error reading response body: %w", err))
	}
	return string(body), nil
}

// fetchDocument fetches page and parses it as HTML.
func (s *Source) fetchDocument(ctx context.Context, op, page string, query url.Values) (*goquery.Document, error) {
	body, err := s.fetchPage(ctx, op, page, query)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, apperr.Parsing(op, fmt.Errorf("error parsing HTML: %w", err))
	}
	return doc, nil
}
