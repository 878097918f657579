package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/xhad/taleweaver/internal/models"
	"golang.org/x/time/rate"
)

const maxBodySize = 10 << 20

type ScraperConfig struct {
	BaseURL           string
	MaxDepth          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
}

// Scraper crawls a story site from a base URL and returns one document per
// page. It stays on the base host and is not safe for concurrent use.
type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	visited  map[string]bool
	limiter  *rate.Limiter
	baseHost string
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 2
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", ".txt", "/", ""}
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", config.BaseURL)
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		visited:  make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
	}, nil
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false
	}

	if parsedURL.Host != s.baseHost {
		return false
	}

	if !s.allowedPath(strings.ToLower(parsedURL.Path)) {
		return false
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

// allowedPath matches p against the allowed extensions. "/" matches
// directory paths and "" matches paths without an extension.
func (s *Scraper) allowedPath(p string) bool {
	for _, allowed := range s.config.AllowedExtensions {
		switch allowed {
		case "":
			if !strings.HasSuffix(p, "/") && path.Ext(p) == "" {
				return true
			}
		case "/":
			if p == "" || strings.HasSuffix(p, "/") {
				return true
			}
		default:
			if strings.HasSuffix(p, allowed) {
				return true
			}
		}
	}
	return false
}

func (s *Scraper) cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")

	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
		"Share this story",
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}

func (s *Scraper) extractStory(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside").Remove()

	selectors := []string{
		".story",
		"#story",
		".chapter",
		".chapter-content",
		"article",
		"main",
		".content",
		"#content",
	}

	var content string
	for _, selector := range selectors {
		selected := doc.Find(selector).First()
		if selected.Length() == 0 {
			continue
		}

		// Paragraphs keep sentence punctuation apart from headings.
		var paragraphs []string
		selected.Find("p").Each(func(_ int, p *goquery.Selection) {
			if text := strings.TrimSpace(p.Text()); text != "" {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > 0 {
			content = strings.Join(paragraphs, " ")
		} else {
			content = selected.Text()
		}
		break
	}

	if content == "" {
		content = doc.Find("body").Text()
	}

	return s.cleanContent(content)
}

func (s *Scraper) Scrape(ctx context.Context, startURL string) ([]models.Document, error) {
	var documents []models.Document
	err := s.scrapeRecursive(ctx, startURL, 0, &documents)
	return documents, err
}

func (s *Scraper) scrapeRecursive(ctx context.Context, urlStr string, depth int, documents *[]models.Document) error {
	if depth > s.config.MaxDepth || s.visited[urlStr] {
		return nil
	}

	if !s.shouldProcessURL(urlStr) {
		return nil
	}

	s.visited[urlStr] = true
	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "taleweaver-ingest/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	contentType := resp.Header.Get("Content-Type")
	metadata := map[string]interface{}{
		"depth":        depth,
		"time":         time.Now().UTC().Format(time.RFC3339),
		"contentType":  contentType,
		"lastModified": resp.Header.Get("Last-Modified"),
	}

	body := io.LimitReader(resp.Body, maxBodySize)

	if strings.HasPrefix(contentType, "text/plain") {
		raw, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		*documents = append(*documents, models.Document{
			ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(urlStr)).String(),
			URL:      urlStr,
			Title:    path.Base(req.URL.Path),
			Content:  s.cleanContent(string(raw)),
			Metadata: metadata,
		})
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return err
	}

	title := strings.TrimSpace(doc.Find("title").Text())

	// Links are collected before extraction strips the nav.
	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			log.Printf("[scraper] error parsing URL %q: %v", href, err)
			return
		}
		ref.Fragment = ""
		links = append(links, req.URL.ResolveReference(ref).String())
	})

	if content := s.extractStory(doc); content != "" {
		*documents = append(*documents, models.Document{
			ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(urlStr)).String(),
			URL:      urlStr,
			Title:    title,
			Content:  content,
			Metadata: metadata,
		})
	}

	for _, link := range links {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.scrapeRecursive(ctx, link, depth+1, documents); err != nil {
			log.Printf("[scraper] error scraping %s: %v", link, err)
		}
	}

	return nil
}
