// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"certforge/internal/models"
)

// GenerationStore records finished certificate batches.
type GenerationStore struct {
	db *sql.DB
}

// NewGenerationStore creates a new GenerationStore.
func NewGenerationStore(db *sql.DB) *GenerationStore {
	return &GenerationStore{db: db}
}

// Create inserts a generation record. ID and CreatedAt are filled in from
// the database.
func (s *GenerationStore) Create(ctx context.Context, g *models.Generation) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO generations (user_id, name, file_url, participant_count)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, g.UserID, g.Name, g.FileURL, g.ParticipantCount).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return fmt.Errorf("create generation: %w", err)
	}
	return nil
}

// ListByOwner returns ownerID's generations, newest first.
func (s *GenerationStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Generation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, file_url, participant_count, created_at
		FROM generations
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	gens := []models.Generation{}
	for rows.Next() {
		var g models.Generation
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.FileURL, &g.ParticipantCount, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

// Stats aggregates ownerID's generation history.
type Stats struct {
	Generations  int `json:"generations"`
	Participants int `json:"participants"`
}

// StatsByOwner returns how many batches ownerID generated and how many
// participants they covered.
func (s *GenerationStore) StatsByOwner(ctx context.Context, ownerID uuid.UUID) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(participant_count), 0)
		FROM generations WHERE user_id = $1
	`, ownerID).Scan(&st.Generations, &st.Participants)
	if err != nil {
		return Stats{}, fmt.Errorf("generation stats: %w", err)
	}
	return st, nil
}
