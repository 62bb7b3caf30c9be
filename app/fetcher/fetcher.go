package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/avdeyev/feedpoll/app/config"
)

type ErrorKind int

const (
	ErrNetwork ErrorKind = iota
	ErrHTTPStatus
	ErrTooLarge
)

// Error classifies a failed fetch. Network and 5xx status errors are
// transient and retried; everything else is terminal for the cycle.
type Error struct {
	Kind   ErrorKind
	Status int
	Cause  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrHTTPStatus:
		return fmt.Sprintf("HTTP error: %d", e.Status)
	case ErrTooLarge:
		return "payload exceeds size limit"
	default:
		return fmt.Sprintf("network error: %v", e.Cause)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Transient reports whether a retry could plausibly succeed.
func (e *Error) Transient() bool {
	return e.Kind == ErrNetwork || (e.Kind == ErrHTTPStatus && e.Status >= 500)
}

// Result is the outcome of a successful fetch. NotModified signals an HTTP
// 304 response, an empty delta rather than an error.
type Result struct {
	Body        []byte
	Status      int
	NotModified bool
	FetchedAt   time.Time
}

// conditional holds the ETag/Last-Modified validators from the last
// successful fetch of a source. Updated only on HTTP 200.
type conditional struct {
	etag         string
	lastModified string
}

// Fetcher retrieves raw feed bytes with per-source conditional caching and
// bounded retries. Safe for concurrent use across feed cycles.
type Fetcher struct {
	client       *http.Client
	policy       BackoffPolicy
	retries      int
	maxBodyBytes int64
	userAgent    string

	mu    sync.Mutex
	cache map[string]conditional // keyed by feed ID
}

func NewFetcher(client *http.Client, policy BackoffPolicy, retries int, maxBodyBytes int64, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{
		client:       client,
		policy:       policy,
		retries:      retries,
		maxBodyBytes: maxBodyBytes,
		userAgent:    userAgent,
		cache:        make(map[string]conditional),
	}
}

// Fetch retrieves the feed for a source. Transient failures are retried up
// to the configured budget with exponential backoff; the wait is cancellable
// through ctx. 4xx responses and oversized payloads are not retried.
func (f *Fetcher) Fetch(ctx context.Context, src *config.SourceConfig) (*Result, error) {
	var lastErr *Error

	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			if err := f.wait(ctx, f.policy.Delay(attempt)); err != nil {
				return nil, &Error{Kind: ErrNetwork, Cause: err}
			}
		}

		result, err := f.attempt(ctx, src)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !err.Transient() {
			break
		}
	}

	return nil, lastErr
}

func (f *Fetcher) attempt(ctx context.Context, src *config.SourceConfig) (*Result, *Error) {
	attemptCtx, cancel := context.WithTimeout(ctx, src.Settings.GetTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, src.Feed.URL, nil)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Cause: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	for k, v := range src.Settings.Headers {
		req.Header.Set(k, v)
	}

	f.mu.Lock()
	cond := f.cache[src.Feed.ID]
	f.mu.Unlock()
	if cond.etag != "" {
		req.Header.Set("If-None-Match", cond.etag)
	}
	if cond.lastModified != "" {
		req.Header.Set("If-Modified-Since", cond.lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Cause: err}
	}
	defer resp.Body.Close()

	fetchedAt := time.Now().UTC()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &Result{Status: resp.StatusCode, NotModified: true, FetchedAt: fetchedAt}, nil

	case resp.StatusCode != http.StatusOK:
		return nil, &Error{Kind: ErrHTTPStatus, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Cause: err}
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, &Error{Kind: ErrTooLarge}
	}

	f.storeConditional(src.Feed.ID, resp.Header)

	return &Result{Body: body, Status: resp.StatusCode, FetchedAt: fetchedAt}, nil
}

// storeConditional records validators after a successful fetch so the next
// request for the same source can be conditional.
func (f *Fetcher) storeConditional(feedID string, header http.Header) {
	cond := conditional{
		etag:         header.Get("ETag"),
		lastModified: header.Get("Last-Modified"),
	}
	if cond.etag == "" && cond.lastModified == "" {
		return
	}

	f.mu.Lock()
	f.cache[feedID] = cond
	f.mu.Unlock()
}

func (f *Fetcher) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
