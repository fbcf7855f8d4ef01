package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/tartampluch/go-lunar-birthday/internal/config"
)

// VCardFetcher retrieves an address book from a CardDAV or WebDAV URL.
type VCardFetcher interface {
	Fetch(ctx context.Context, url, user, pass string) (io.ReadCloser, error)
}

// cachedBook is the last address book served for one URL and account.
type cachedBook struct {
	etag string
	body []byte
}

// HTTPFetcher downloads address books and revalidates them with the server's
// ETag, so pressing Import again on an unchanged book costs a 304.
type HTTPFetcher struct {
	Client *http.Client

	mu    sync.Mutex
	books map[string]cachedBook
}

// NewHTTPFetcher creates an HTTPFetcher with the configured timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{Timeout: config.HTTPTimeout},
		books:  make(map[string]cachedBook),
	}
}

// Fetch returns the address book at targetURL, at most
// config.MaxHTTPResponseSize bytes of it. A 304 answer replays the copy cached
// for the same URL and user.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL, user, pass string) (io.ReadCloser, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}

	// Query strings may carry tokens and stay out of the logs.
	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompFetcher),
		slog.String(config.LogKeyURL, u.Scheme+"://"+u.Host+u.Path),
	)
	log.Debug(config.MsgFetchRequest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrFetchRequest, err)
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	req.Header.Set(config.HeaderAccept, config.AcceptVCard)
	if user != "" || pass != "" {
		req.SetBasicAuth(user, pass)
	}

	key := user + "@" + targetURL
	cached, haveCached := f.cached(key)
	if haveCached {
		req.Header.Set(config.HeaderIfNoneMatch, cached.etag)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrFetchNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified && haveCached:
		log.Info(config.MsgFetchUnchanged, slog.Int(config.LogKeyBytes, len(cached.body)))
		return io.NopCloser(bytes.NewReader(cached.body)), nil
	case resp.StatusCode != http.StatusOK:
		log.Warn(config.MsgFetchStatus, slog.Int(config.LogKeyStatus, resp.StatusCode))
		return nil, fmt.Errorf("%s: %s", config.ErrFetchStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxHTTPResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrFetchRead, err)
	}
	log.Info(config.MsgFetchDone, slog.Int(config.LogKeyBytes, len(body)))

	f.remember(key, resp.Header.Get(config.HeaderETag), body)
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *HTTPFetcher) cached(key string) (cachedBook, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[key]
	return b, ok
}

// remember keeps body for revalidation. Answers without an ETag drop any
// older copy.
func (f *HTTPFetcher) remember(key, etag string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.books == nil {
		f.books = make(map[string]cachedBook)
	}
	if etag == "" {
		delete(f.books, key)
		return
	}
	f.books[key] = cachedBook{etag: etag, body: body}
}
