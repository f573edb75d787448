package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct{ DB *pgxpool.Pool }

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore { return &PostgresStore{DB: db} }

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin placement tx: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockCartLine(ctx context.Context, lineID int64) (*CartLine, error) {
	var l CartLine
	err := t.tx.QueryRow(ctx, `
		SELECT id, user_id, product_id, seller_id, product_name, unit_price_cents,
		       quantity, available_qty, sold_qty, enabled, order_id
		FROM cart_lines WHERE id=$1 FOR UPDATE`, lineID).
		Scan(&l.ID, &l.UserID, &l.ProductID, &l.SellerID, &l.ProductName, &l.UnitPriceCents,
			&l.Quantity, &l.AvailableQty, &l.SoldQty, &l.Enabled, &l.OrderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCartLineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock cart line %d: %w", lineID, err)
	}
	return &l, nil
}

func (t *pgTx) ApplyReservation(ctx context.Context, lineID int64, qty int) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE cart_lines
		SET quantity=$2, available_qty=available_qty-$2, sold_qty=sold_qty+$2, enabled=false
		WHERE id=$1 AND available_qty >= $2`, lineID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock for line %d: %w", lineID, err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("reserve stock for line %d: row vanished under lock", lineID)
	}
	return nil
}

func (t *pgTx) InsertAddress(ctx context.Context, a *ShippingAddress) (int64, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO shipping_addresses(user_id, full_name, street, city, state, zip, country, phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		a.UserID, a.FullName, a.Street, a.City, a.State, a.Zip, a.Country, a.Phone).Scan(&a.ID)
	if err != nil {
		return 0, fmt.Errorf("insert shipping address: %w", err)
	}
	return a.ID, nil
}

func (t *pgTx) OrderCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE code=$1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order code: %w", err)
	}
	return exists, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) (int64, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(code, user_id, status, total_cents, payment_method, address_id, invoice_number)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at`,
		o.Code, o.UserID, o.Status, o.TotalCents, o.PaymentMethod, o.AddressID, o.InvoiceNumber).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return o.ID, nil
}

func (t *pgTx) AttachLines(ctx context.Context, orderID int64, lineIDs []int64) error {
	ct, err := t.tx.Exec(ctx, `UPDATE cart_lines SET order_id=$1 WHERE id = ANY($2)`, orderID, lineIDs)
	if err != nil {
		return fmt.Errorf("attach lines to order %d: %w", orderID, err)
	}
	if int(ct.RowsAffected()) != len(lineIDs) {
		return fmt.Errorf("attach lines to order %d: expected %d rows, got %d", orderID, len(lineIDs), ct.RowsAffected())
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (s *PostgresStore) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	var o Order
	err := s.DB.QueryRow(ctx, `
		SELECT id, code, user_id, status, total_cents, payment_method, address_id, invoice_number,
		       created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.Code, &o.UserID, &o.Status, &o.TotalCents, &o.PaymentMethod,
			&o.AddressID, &o.InvoiceNumber, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}

	rows, err := s.DB.Query(ctx, `
		SELECT id, user_id, product_id, seller_id, product_name, unit_price_cents,
		       quantity, available_qty, sold_qty, enabled, order_id
		FROM cart_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %d lines: %w", orderID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProductID, &l.SellerID, &l.ProductName,
			&l.UnitPriceCents, &l.Quantity, &l.AvailableQty, &l.SoldQty, &l.Enabled, &l.OrderID); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	o.SellerIDs = DistinctSellers(o.Lines)
	return &o, nil
}

func (s *PostgresStore) GetOrderStatus(ctx context.Context, orderID int64) (Status, error) {
	var st string
	err := s.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&st)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(st), nil
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, orderID int64, next Status) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cur, err := lockOrderStatus(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !CanTransition(cur, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, orderID, next); err != nil {
		return fmt.Errorf("update order %d status: %w", orderID, err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) CancelOrder(ctx context.Context, orderID int64) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cur, err := lockOrderStatus(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !CanTransition(cur, StatusCancelled) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, StatusCancelled)
	}

	// give the reserved quantities back to the ledger
	if _, err := tx.Exec(ctx, `
		UPDATE cart_lines
		SET available_qty = available_qty + quantity, sold_qty = sold_qty - quantity
		WHERE order_id=$1`, orderID); err != nil {
		return fmt.Errorf("restore stock for order %d: %w", orderID, err)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, orderID, StatusCancelled); err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	return tx.Commit(ctx)
}

func lockOrderStatus(ctx context.Context, tx pgx.Tx, orderID int64) (Status, error) {
	var st string
	err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&st)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock order %d: %w", orderID, err)
	}
	return Status(st), nil
}
