// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"certforge/internal/models"
)

const templateColumns = `id, user_id, name, data, created_at, updated_at`

// TemplateStore handles certificate template persistence. Every query is
// scoped to the owning user.
type TemplateStore struct {
	db *sql.DB
}

// NewTemplateStore creates a new TemplateStore.
func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

func scanTemplate(row interface{ Scan(...any) error }) (*models.Template, error) {
	t := &models.Template{}
	var data []byte
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &data, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Data = json.RawMessage(data)
	return t, nil
}

// ListByOwner returns the user's templates, most recently updated first.
func (s *TemplateStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+templateColumns+` FROM templates
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := []models.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// FindByIDForOwner retrieves a template owned by ownerID. Templates that
// belong to someone else are reported as not found.
func (s *TemplateStore) FindByIDForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Template, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `
		SELECT `+templateColumns+` FROM templates WHERE id = $1 AND user_id = $2
	`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find template: %w", err)
	}
	return t, nil
}

// Create inserts a new template for ownerID.
func (s *TemplateStore) Create(ctx context.Context, ownerID uuid.UUID, name string, data json.RawMessage) (*models.Template, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `
		INSERT INTO templates (user_id, name, data)
		VALUES ($1, $2, $3)
		RETURNING `+templateColumns,
		ownerID, name, []byte(data),
	))
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

// Update replaces a template's name and data. Returns nil if the template
// does not exist for ownerID.
func (s *TemplateStore) Update(ctx context.Context, id, ownerID uuid.UUID, name string, data json.RawMessage) (*models.Template, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `
		UPDATE templates SET name = $1, data = $2, updated_at = NOW()
		WHERE id = $3 AND user_id = $4
		RETURNING `+templateColumns,
		name, []byte(data), id, ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return t, nil
}

// Delete removes a template. It reports whether a row was deleted.
func (s *TemplateStore) Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete template: %w", err)
	}
	return n > 0, nil
}

// Count returns how many templates ownerID has.
func (s *TemplateStore) Count(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM templates WHERE user_id = $1`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return n, nil
}
