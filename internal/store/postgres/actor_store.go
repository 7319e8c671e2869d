package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nftvista/nftvista/internal/domain"
)

// ActorStore implements domain.ActorStore using PostgreSQL.
type ActorStore struct {
	pool *pgxpool.Pool
}

// NewActorStore creates a new ActorStore backed by the given pool.
func NewActorStore(pool *pgxpool.Pool) *ActorStore {
	return &ActorStore{pool: pool}
}

// FindOrCreate returns the actor with the given name, creating it on first
// use. The upsert-then-select keeps the operation race-free without a
// transaction.
func (s *ActorStore) FindOrCreate(ctx context.Context, name string, isSystem bool) (domain.Actor, error) {
	const insert = `
		INSERT INTO actors (name, is_system)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`

	if _, err := s.pool.Exec(ctx, insert, name, isSystem); err != nil {
		return domain.Actor{}, fmt.Errorf("postgres: ensure actor %s: %w", name, err)
	}

	var a domain.Actor
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, is_system, created_at FROM actors WHERE name = $1`,
		name,
	).Scan(&a.ID, &a.Name, &a.IsSystem, &a.CreatedAt)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("postgres: find actor %s: %w", name, err)
	}
	return a, nil
}
