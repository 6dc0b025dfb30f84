// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package cache connects to Valkey and implements the image cache shared
// by certificate renders.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// ValkeyOptions locates a Valkey (or Redis) server.
type ValkeyOptions struct {
	Host     string
	Port     string
	Password string
	DB       int

	// Attempts bounds the pings made while the server starts. Zero means 3.
	Attempts uint64
}

// ConnectValkey returns a client once the server answers PING.
func ConnectValkey(ctx context.Context, o ValkeyOptions) (*redis.Client, error) {
	addr := net.JoinHostPort(o.Host, o.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: o.Password,
		DB:       o.DB,
	})

	attempts := o.Attempts
	if attempts == 0 {
		attempts = 3
	}
	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(250*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			slog.Warn("valkey not ready", "addr", addr, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping %s: %w", addr, err)
	}

	slog.Info("valkey connected", "addr", addr, "db", o.DB)
	return client, nil
}
