// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// image.go provides a Valkey-backed cache for remote template images.
// Background and image components usually point at the same handful of
// URLs across thousands of certificates, so fetched bytes are kept in
// Valkey and shared between generation jobs and server instances.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// imageKeyPrefix is the Valkey key prefix for cached images.
	imageKeyPrefix = "img:"

	// DefaultImageTTL is how long fetched image bytes stay cached.
	DefaultImageTTL = 30 * time.Minute

	// MaxCachedImageBytes bounds the size of a single cached entry.
	MaxCachedImageBytes = 8 << 20
)

// ImageCache stores fetched image payloads in Valkey keyed by URL.
type ImageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewImageCache creates a new image cache backed by the given Valkey client.
func NewImageCache(client *redis.Client, ttl time.Duration) *ImageCache {
	if ttl == 0 {
		ttl = DefaultImageTTL
	}
	return &ImageCache{client: client, ttl: ttl}
}

// ImageKey returns the cache key for an image URL. URLs are hashed so that
// long signed URLs do not bloat the keyspace.
func ImageKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Get retrieves cached bytes for an image URL.
func (ic *ImageCache) Get(ctx context.Context, url string) ([]byte, bool) {
	val, err := ic.client.Get(ctx, imageKeyPrefix+ImageKey(url)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("image cache get error", "url", url, "error", err)
		return nil, false
	}
	slog.Debug("image cache hit", "url", url)
	return val, true
}

// Set stores image bytes for a URL with the configured TTL. Oversized
// payloads are not cached.
func (ic *ImageCache) Set(ctx context.Context, url string, data []byte) {
	if len(data) == 0 || len(data) > MaxCachedImageBytes {
		return
	}
	if err := ic.client.Set(ctx, imageKeyPrefix+ImageKey(url), data, ic.ttl).Err(); err != nil {
		slog.Warn("image cache set error", "url", url, "error", err)
	}
}
