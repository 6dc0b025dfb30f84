// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package imagefetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// memCache is an in-memory Cache for tests.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, url string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[url]
	return b, ok
}

func (c *memCache) Set(_ context.Context, url string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[url] = data
}

func TestFetch_Success(t *testing.T) {
	payload := []byte("\x89PNG fake image bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "image/*" {
			t.Errorf("Accept = %q", got)
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "Mozilla/5.0") {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write(payload)
	}))
	defer srv.Close()

	f := New(Options{})
	got, err := f.Fetch(context.Background(), srv.URL+"/bg.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(Options{}).Fetch(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("err = %v, want status 403", err)
	}
}

func TestFetch_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	_, err := New(Options{MaxBytes: 100}).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Options{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestFetch_NotRemote(t *testing.T) {
	for _, ref := range []string{"", "logo.png", "/static/bg.png", "ftp://x/y.png", "data:image/png;base64,AAAA"} {
		if _, err := New(Options{}).Fetch(context.Background(), ref); !errors.Is(err, ErrNotRemote) {
			t.Errorf("Fetch(%q) err = %v, want ErrNotRemote", ref, err)
		}
	}
}

func TestFetch_UsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	c := newMemCache()
	f := New(Options{Cache: c})
	ctx := context.Background()

	for range 3 {
		if _, err := f.Fetch(ctx, srv.URL); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
	if _, ok := c.Get(ctx, srv.URL); !ok {
		t.Error("expected payload in cache")
	}
}

func TestFetch_CoalescesConcurrentRequests(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	f := New(Options{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
				t.Errorf("Fetch: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestFetch_CanceledWaiterLeavesSharedDownload(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte("img"))
	}))
	defer srv.Close()
	defer close(release)

	f := New(Options{})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctxA, srv.URL)
		errA <- err
	}()
	for hits.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	type result struct {
		data []byte
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		data, err := f.Fetch(context.Background(), srv.URL)
		resB <- result{data, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("canceled caller err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("canceled caller kept waiting on the shared download")
	}

	release <- struct{}{}
	select {
	case r := <-resB:
		if r.err != nil || string(r.data) != "img" {
			t.Errorf("other caller = %q, %v; want img", r.data, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("other caller never received the download")
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

// countingFetcher records calls and returns a fixed result.
type countingFetcher struct {
	calls atomic.Int32
	data  []byte
	err   error
}

func (c *countingFetcher) Fetch(context.Context, string) ([]byte, error) {
	c.calls.Add(1)
	return c.data, c.err
}

func TestMemo_RemembersFailures(t *testing.T) {
	next := &countingFetcher{err: errors.New("boom")}
	m := NewMemo(next)

	for range 5 {
		if _, err := m.Fetch(context.Background(), "https://x/broken.png"); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", next.calls.Load())
	}
}

func TestMemo_DoesNotRememberCancellation(t *testing.T) {
	next := &countingFetcher{err: context.Canceled}
	m := NewMemo(next)

	m.Fetch(context.Background(), "https://x/a.png")
	m.Fetch(context.Background(), "https://x/a.png")
	if next.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", next.calls.Load())
	}
}

func TestMemo_PerURL(t *testing.T) {
	next := &countingFetcher{data: []byte("ok")}
	m := NewMemo(next)

	m.Fetch(context.Background(), "https://x/a.png")
	m.Fetch(context.Background(), "https://x/b.png")
	m.Fetch(context.Background(), "https://x/a.png")
	if next.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", next.calls.Load())
	}
}

func TestIsRemote(t *testing.T) {
	tests := map[string]bool{
		"http://a/b.png":  true,
		"https://a/b.png": true,
		"HTTPS://a":       false,
		"a.png":           false,
		"":                false,
	}
	for in, want := range tests {
		if got := IsRemote(in); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", in, got, want)
		}
	}
}
