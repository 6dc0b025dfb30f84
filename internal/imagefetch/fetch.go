// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imagefetch downloads remote images referenced by certificate
// templates. Concurrent requests for one URL are coalesced, and results can
// be kept in a shared byte cache so that a batch of certificates with the
// same background downloads it once.
package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTimeout bounds a single image download.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxBytes caps the size of a downloaded image (20 MiB).
	DefaultMaxBytes int64 = 20 << 20

	// userAgent mimics a desktop browser; some CDNs reject bare Go clients.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

var (
	// ErrNotRemote is returned for references that are not http(s) URLs.
	ErrNotRemote = errors.New("imagefetch: not an http(s) url")

	// ErrTooLarge is returned when the body exceeds the configured cap.
	ErrTooLarge = errors.New("imagefetch: image exceeds size limit")
)

// Fetcher returns the raw bytes behind an image reference.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Cache is a shared byte cache consulted before and filled after a download.
// *cache.ImageCache satisfies it.
type Cache interface {
	Get(ctx context.Context, url string) ([]byte, bool)
	Set(ctx context.Context, url string, data []byte)
}

// Options configures an HTTPFetcher. Zero values select the defaults.
type Options struct {
	Timeout  time.Duration
	MaxBytes int64
	Cache    Cache
	Client   *http.Client
}

// HTTPFetcher downloads images over HTTP.
type HTTPFetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	cache    Cache
	group    singleflight.Group
}

// New creates an HTTPFetcher.
func New(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPFetcher{client: client, timeout: opts.Timeout, maxBytes: opts.MaxBytes, cache: opts.Cache}
}

// IsRemote reports whether ref looks like an http(s) URL.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Fetch downloads url, consulting the cache first. Concurrent calls for the
// same URL share one download; a caller whose ctx ends stops waiting without
// affecting the others.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if !IsRemote(url) {
		return nil, ErrNotRemote
	}

	if f.cache != nil {
		if data, ok := f.cache.Get(ctx, url); ok {
			return data, nil
		}
	}

	ch := f.group.DoChan(url, func() (any, error) {
		// Shared by every waiter, so one caller's cancellation must not end it.
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()

		data, err := f.download(dctx, url)
		if err != nil {
			return nil, err
		}
		if f.cache != nil {
			f.cache.Set(dctx, url, data)
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (f *HTTPFetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("imagefetch request: %w", err)
	}
	req.Header.Set("Accept", "image/*")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagefetch http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("imagefetch: HTTP error! status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("imagefetch read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrTooLarge
	}

	slog.Debug("image fetched", "url", url, "bytes", len(data), "duration", time.Since(start))
	return data, nil
}

// Memo wraps a Fetcher with a per-job memory of results, failures included,
// so that a broken URL is not retried for every row of a batch.
type Memo struct {
	next    Fetcher
	group   singleflight.Group
	results sync.Map // url -> memoEntry
}

// NewMemo creates a per-job memoizing fetcher.
func NewMemo(next Fetcher) *Memo {
	return &Memo{next: next}
}

type memoEntry struct {
	data []byte
	err  error
}

// Fetch returns the memoized result for url, downloading it on first use.
func (m *Memo) Fetch(ctx context.Context, url string) ([]byte, error) {
	if v, ok := m.results.Load(url); ok {
		e := v.(memoEntry)
		return e.data, e.err
	}
	v, _, _ := m.group.Do(url, func() (any, error) {
		if v, ok := m.results.Load(url); ok {
			return v, nil
		}
		data, err := m.next.Fetch(ctx, url)
		e := memoEntry{data: data, err: err}
		// Cancellation is not a property of the URL.
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			m.results.Store(url, e)
		}
		return e, nil
	})
	e := v.(memoEntry)
	return e.data, e.err
}
