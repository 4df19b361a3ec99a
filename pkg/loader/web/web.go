package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/thirai-kg/backend/pkg/loader"

	"codeberg.org/readeck/go-readability/v2"
	"golang.org/x/sync/singleflight"
)

const maxBodyBytes = 10 << 20

// WebTextLoader loads web pages and extracts their readable text. HTML pages
// are reduced to the main article with readability; other text content is
// returned as is. Results are cached per URL.
type WebTextLoader struct {
	client *http.Client

	cache   map[string]string
	cacheMu sync.RWMutex
	group   singleflight.Group
}

type Option func(*WebTextLoader)

func WithHTTPClient(c *http.Client) Option {
	return func(l *WebTextLoader) {
		l.client = c
	}
}

func NewWebTextLoader(opts ...Option) *WebTextLoader {
	l := &WebTextLoader{
		client: &http.Client{Timeout: 30 * time.Second},
		cache:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GetText fetches src.Ref and returns its readable text.
func (l *WebTextLoader) GetText(ctx context.Context, src loader.Source) (string, error) {
	key := loader.CacheKey(src)

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[key]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		text, err := l.fetch(ctx, src.Ref)
		if err != nil {
			return "", err
		}

		l.cacheMu.Lock()
		l.cache[key] = text
		l.cacheMu.Unlock()
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (l *WebTextLoader) fetch(ctx context.Context, rawURL string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return "", fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to fetch url: %w", err)
		if ctx.Err() == nil {
			// connection and timeout failures
			err = &loader.TransientError{Err: err}
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("failed to fetch url: status %d", resp.StatusCode)
		if loader.TransientStatus(resp.StatusCode) {
			return "", &loader.TransientError{Err: err}
		}
		return "", err
	}
	body := io.LimitReader(resp.Body, maxBodyBytes)

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		article, err := readability.FromReader(body, pageURL)
		if err != nil {
			return "", fmt.Errorf("failed to parse html: %w", err)
		}
		var builder strings.Builder
		if err := article.RenderText(&builder); err != nil {
			return "", fmt.Errorf("failed to render article text: %w", err)
		}
		return strings.TrimSpace(builder.String()), nil
	}
	if contentType != "" && !strings.HasPrefix(contentType, "text/") {
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return loader.ToValidUTF8(data), nil
}
