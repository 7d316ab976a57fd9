package repository

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/tablelink/pkg/utils"
	"github.com/diagnosis/tablelink/services/bridge/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CustomerRepository interface {
	// FindByPhone matches on phone digits. An empty restaurantID searches
	// every restaurant. A miss is (nil, nil).
	FindByPhone(ctx context.Context, phone, restaurantID string) (*domain.Customer, error)
}

type customerRepository struct {
	pool *pgxpool.Pool
}

func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepository{pool: pool}
}

func (r *customerRepository) FindByPhone(ctx context.Context, phone, restaurantID string) (*domain.Customer, error) {
	digits := utils.PhoneDigits(phone)
	if digits == "" {
		return nil, nil
	}

	const q = `SELECT id::text, restaurant_id::text, phone, name, COALESCE(email, ''), created_at
		FROM customers
		WHERE phone_digits = $1 AND ($2 = '' OR restaurant_id::text = $2)
		ORDER BY created_at ASC
		LIMIT 1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.Customer
	err := r.pool.QueryRow(ctx, q, digits, restaurantID).Scan(
		&c.ID, &c.RestaurantID, &c.Phone, &c.Name, &c.Email, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
