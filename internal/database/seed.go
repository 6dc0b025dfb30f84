// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

const (
	seedEmail    = "demo@certforge.local"
	seedPassword = "demo"
)

// sampleTemplate is the design stored for the demo user.
const sampleTemplate = `{
  "templateName": "Certificate of Attendance",
  "backgroundImage": "",
  "components": [
    {"id": "title", "type": "text", "content": "CERTIFICATE OF ATTENDANCE",
     "style": {"position": {"x": 50, "y": 25}, "fontSize": "32px", "fontWeight": "bold", "color": "#1f2937", "textAlign": "center"}},
    {"id": "intro", "type": "text", "content": "This certificate is proudly presented to",
     "style": {"position": {"x": 50, "y": 38}, "fontSize": "16px", "color": "#4b5563", "textAlign": "center"}},
    {"id": "name", "type": "text", "content": "{{nama}}",
     "style": {"position": {"x": 50, "y": 50}, "fontSize": "40px", "fontWeight": "700", "color": "#1d4ed8", "textAlign": "center"}},
    {"id": "rule", "type": "shape", "content": "",
     "style": {"position": {"x": 50, "y": 55}, "width": "500px", "height": "3px", "backgroundColor": "#3498db"}},
    {"id": "event", "type": "text", "content": "for participating in {{event}}",
     "style": {"position": {"x": 50, "y": 64}, "fontSize": "16px", "color": "#4b5563", "textAlign": "center"}}
  ],
  "settings": {"width": 800, "height": 600, "padding": "20px"}
}`

// Seed creates the demo account and its sample template. It does nothing
// when the demo account already exists.
func Seed(ctx context.Context, db *sql.DB) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, display_name)
		VALUES ($1, $2, 'Demo')
		ON CONFLICT (email) DO NOTHING
		RETURNING id`, seedEmail, string(hash)).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("demo account present, seed skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO templates (user_id, name, data) VALUES ($1, $2, $3)`,
		userID, "Certificate of Attendance", sampleTemplate); err != nil {
		return fmt.Errorf("seed template: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("demo account seeded", "email", seedEmail, "password", seedPassword)
	return nil
}
