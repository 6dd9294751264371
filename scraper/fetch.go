package scraper

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"airbnb-listings/models"
	"airbnb-listings/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// PageFetcher returns the parsed document at a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// PageCache stores fetched page bodies by key.
type PageCache interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
}

// StaticFetcher fetches pages with a plain HTTP GET and parses them without
// running any scripts. Bodies are converted to UTF-8 and optionally cached.
type StaticFetcher struct {
	client   *http.Client
	cache    PageCache
	cacheTTL time.Duration
	logger   *utils.Logger
}

// NewStaticFetcher creates a StaticFetcher. cache may be nil.
func NewStaticFetcher(timeout time.Duration, cache PageCache, cacheTTL time.Duration, logger *utils.Logger) *StaticFetcher {
	return &StaticFetcher{
		client:   &http.Client{Timeout: timeout},
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Fetch implements PageFetcher.
func (f *StaticFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := f.body(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Kind: models.FailureMalformed, URL: url, Err: fmt.Errorf("parse html: %w", err)}
	}
	return doc, nil
}

func (f *StaticFetcher) body(ctx context.Context, url string) ([]byte, error) {
	key := cacheKey(url)
	if f.cache != nil {
		if cached, err := f.cache.Get(key); err == nil && len(cached) > 0 {
			f.logger.Debug("[fetch] cache hit %s", url)
			return cached, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: models.FailureFetch, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, newFetchError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Kind: models.FailureFetch, URL: url, Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newFetchError(url, fmt.Errorf("read body: %w", err))
	}

	body, err := toUTF8(raw, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &FetchError{Kind: models.FailureMalformed, URL: url, Err: err}
	}

	if f.cache != nil {
		if err := f.cache.Set(key, body, f.cacheTTL); err != nil {
			f.logger.Warn("[fetch] cache store failed for %s: %v", url, err)
		}
	}
	return body, nil
}

func toUTF8(raw []byte, contentType string) ([]byte, error) {
	enc, name, _ := charset.DetermineEncoding(raw, contentType)
	if name == "utf-8" {
		return raw, nil
	}
	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", name, err)
	}
	return decoded, nil
}

// cacheKey keeps keys inside memcache's 250 byte, no-whitespace limit.
func cacheKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "page:" + hex.EncodeToString(sum[:])
}
