package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TableRepository interface {
	// FindTableByCode looks a printed table code up case-insensitively. An
	// empty branchID searches every branch and returns the oldest match.
	FindTableByCode(ctx context.Context, code, branchID string) (*domain.Table, error)
}

type tableRepository struct {
	pool *pgxpool.Pool
}

func NewTableRepository(pool *pgxpool.Pool) TableRepository {
	return &tableRepository{pool: pool}
}

func (r *tableRepository) FindTableByCode(ctx context.Context, code, branchID string) (*domain.Table, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	const q = `SELECT t.id::text, t.code, t.branch_id::text, b.restaurant_id::text
		FROM restaurant_tables t
		JOIN branches b ON b.id = t.branch_id
		WHERE lower(t.code) = lower($1) AND ($2 = '' OR t.branch_id::text = $2)
		ORDER BY t.created_at ASC
		LIMIT 1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var t domain.Table
	err := r.pool.QueryRow(ctx, q, code, branchID).Scan(&t.ID, &t.Code, &t.BranchID, &t.RestaurantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
