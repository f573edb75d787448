package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct{ DB *pgxpool.Pool }

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore { return &PostgresStore{DB: db} }

func (s *PostgresStore) FindByOrder(ctx context.Context, orderID int64) (*Invoice, error) {
	var inv Invoice
	err := s.DB.QueryRow(ctx, `
		SELECT id, order_id, user_id, number, content, created_at
		FROM invoices WHERE order_id=$1`, orderID).
		Scan(&inv.ID, &inv.OrderID, &inv.UserID, &inv.Number, &inv.Content, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find invoice for order %d: %w", orderID, err)
	}
	return &inv, nil
}

func (s *PostgresStore) Insert(ctx context.Context, inv *Invoice) (*Invoice, error) {
	// unique(order_id) makes the insert a no-op when another generator won the
	// race; either way the stored row is the answer
	_, err := s.DB.Exec(ctx, `
		INSERT INTO invoices(order_id, user_id, number, content)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (order_id) DO NOTHING`,
		inv.OrderID, inv.UserID, inv.Number, inv.Content)
	if err != nil {
		return nil, fmt.Errorf("insert invoice for order %d: %w", inv.OrderID, err)
	}
	return s.FindByOrder(ctx, inv.OrderID)
}
