package product

import (
	"context"
	"database/sql"
	"errors"
)

// Execer is satisfied by both *sql.DB and *sql.Tx so the stock guard can run
// inside a caller-owned transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Repository interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)

	// DecrementStock atomically subtracts qty from available_quantity, failing
	// with ErrOutOfStock when the remaining stock does not cover it. This is
	// the only legal way to mutate stock; available_quantity can never go
	// negative because the condition and the write are one statement.
	DecrementStock(ctx context.Context, exec Execer, productID string, qty int) error

	// RestoreStock returns previously committed quantity, used when a direct
	// purchase is canceled before fulfilment.
	RestoreStock(ctx context.Context, exec Execer, productID string, qty int) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetProduct(ctx context.Context, productID string) (*Product, error) {
	query := `
		SELECT id, seller_id, name, price, currency, available_quantity, created_at
		FROM products
		WHERE id = $1
	`

	var p Product
	err := r.db.QueryRowContext(ctx, query, productID).
		Scan(&p.ID, &p.SellerID, &p.Name, &p.Price, &p.Currency, &p.AvailableQuantity, &p.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *repository) DecrementStock(ctx context.Context, exec Execer, productID string, qty int) error {
	if qty <= 0 {
		return ErrOutOfStock
	}
	if exec == nil {
		exec = r.db
	}

	res, err := exec.ExecContext(ctx, `
		UPDATE products
		SET available_quantity = available_quantity - $1
		WHERE id = $2 AND available_quantity >= $1
	`, qty, productID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOutOfStock
	}
	return nil
}

func (r *repository) RestoreStock(ctx context.Context, exec Execer, productID string, qty int) error {
	if exec == nil {
		exec = r.db
	}

	_, err := exec.ExecContext(ctx, `
		UPDATE products
		SET available_quantity = available_quantity + $1
		WHERE id = $2
	`, qty, productID)
	return err
}
