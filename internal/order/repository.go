package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sellora-core/internal/logger"
	"sellora-core/internal/product"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

// StatusChange describes one guarded transition. The UPDATE is conditioned on
// From so concurrent transitions on the same order are linearizable: the
// loser's UPDATE matches zero rows and fails with ErrConflict.
type StatusChange struct {
	From OrderStatus
	To   OrderStatus

	Description string
	Location    *string

	SetExternalPaymentID *string
	SetTrackingNumber    *string
	SetCarrier           *string

	// DecrementItems deducts inventory for every order item in the same
	// transaction (checkout orders on payment confirmation).
	DecrementItems bool
	// RestoreItems returns inventory (direct purchases canceled before
	// fulfilment).
	RestoreItems bool
}

type Repository interface {
	CreateOrderTx(ctx context.Context, o *Order) error
	CreateDirectPurchaseTx(ctx context.Context, o *Order) error

	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetByExternalOrderID(ctx context.Context, externalOrderID string) (*Order, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*Order, error)
	ListOrders(ctx context.Context, buyerID uint, filter *OrderFilterInput, sort *OrderSortInput, limit, page int32) ([]*Order, error)

	ApplyTransition(ctx context.Context, orderID string, change StatusChange) error
	AppendTrackingEvent(ctx context.Context, orderID string, ev TrackingEvent) error

	SellerOwnsOrder(ctx context.Context, orderID, sellerID string) (bool, error)
	ListStalePending(ctx context.Context, before time.Time) ([]string, error)
}

type repository struct {
	db       *sql.DB
	products product.Repository
}

func NewRepository(db *sql.DB, products product.Repository) Repository {
	return &repository{db: db, products: products}
}

const orderColumns = `
	id, buyer_id, source, currency, total_amount, status,
	external_order_id, external_payment_id,
	tracking_number, carrier, created_at, updated_at
`

func (r *repository) CreateOrderTx(ctx context.Context, o *Order) error {
	return r.createTx(ctx, o, false)
}

func (r *repository) CreateDirectPurchaseTx(ctx context.Context, o *Order) error {
	return r.createTx(ctx, o, true)
}

// createTx persists an order with its items as one atomic unit, optionally
// deducting stock for every item (direct purchase path).
func (r *repository) createTx(ctx context.Context, o *Order, decrementStock bool) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "createTx"),
		zap.String("order_id", o.ID),
		zap.Int("item_count", len(o.Items)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, buyer_id, source, currency, total_amount, status,
			external_order_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
	`,
		o.ID, o.BuyerID, o.Source, o.Currency, o.Total, o.Status,
		o.ExternalOrderID, o.CreatedAt,
	)
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return err
	}

	for i, item := range o.Items {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, seller_id, quantity, price)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id
		`,
			o.ID, item.ProductID, item.SellerID, item.Quantity, item.Price,
		).Scan(&o.Items[i].ID)
		if err != nil {
			log.Error("failed to insert order item",
				zap.Int("item_index", i),
				zap.String("product_id", item.ProductID),
				zap.Error(err),
			)
			return err
		}

		if decrementStock {
			if err := r.products.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				if !errors.Is(err, product.ErrOutOfStock) {
					log.Error("failed to deduct stock",
						zap.String("product_id", item.ProductID),
						zap.Error(err),
					)
				}
				return err
			}
		}
	}

	if err := r.insertTrackingEvent(ctx, tx, o.ID, TrackingEvent{
		Status:      string(o.Status),
		Description: "Order created",
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit order transaction", zap.Error(err))
		return err
	}

	committed = true
	log.Info("order persisted", zap.String("status", string(o.Status)))
	return nil
}

func (r *repository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return r.getOne(ctx, `WHERE id = $1`, orderID)
}

func (r *repository) GetByExternalOrderID(ctx context.Context, externalOrderID string) (*Order, error) {
	return r.getOne(ctx, `WHERE external_order_id = $1`, externalOrderID)
}

func (r *repository) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*Order, error) {
	return r.getOne(ctx, `WHERE tracking_number = $1`, trackingNumber)
}

func (r *repository) getOne(ctx context.Context, where string, arg any) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ` + where

	var o Order
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&o.ID, &o.BuyerID, &o.Source, &o.Currency, &o.Total, &o.Status,
		&o.ExternalOrderID, &o.ExternalPaymentID,
		&o.TrackingNumber, &o.Carrier, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	if err := r.loadTrackingHistory(ctx, &o); err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *repository) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, seller_id, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.SellerID, &item.Quantity, &item.Price); err != nil {
			return err
		}
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

func (r *repository) loadTrackingHistory(ctx context.Context, o *Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, position, status, location, description, created_at
		FROM order_tracking_events
		WHERE order_id = $1
		ORDER BY position
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ev TrackingEvent
		if err := rows.Scan(&ev.ID, &ev.OrderID, &ev.Position, &ev.Status, &ev.Location, &ev.Description, &ev.CreatedAt); err != nil {
			return err
		}
		o.TrackingHistory = append(o.TrackingHistory, ev)
	}
	return rows.Err()
}

func (r *repository) ListOrders(
	ctx context.Context,
	buyerID uint,
	filter *OrderFilterInput,
	sort *OrderSortInput,
	limit, page int32,
) ([]*Order, error) {

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListOrders"),
		zap.Uint("buyer_id", buyerID),
		zap.Int32("limit", limit),
		zap.Int32("page", page),
	)

	builder := sq.Select(
		"id", "buyer_id", "source", "currency", "total_amount", "status",
		"external_order_id", "external_payment_id",
		"tracking_number", "carrier", "created_at", "updated_at",
	).
		From("orders").
		Where(sq.Eq{"buyer_id": buyerID}).
		PlaceholderFormat(sq.Dollar)

	if filter != nil {
		if filter.Status != nil {
			builder = builder.Where(sq.Eq{"status": *filter.Status})
		}
		if filter.DateFrom != nil {
			builder = builder.Where(sq.GtOrEq{"created_at": *filter.DateFrom})
		}
		if filter.DateTo != nil {
			builder = builder.Where(sq.LtOrEq{"created_at": *filter.DateTo})
		}
	}

	orderBy := "created_at DESC"
	if sort != nil {
		dir := "DESC"
		if sort.Direction == SortAsc {
			dir = "ASC"
		}
		switch sort.Field {
		case OrderSortFieldTotal:
			orderBy = "total_amount " + dir
		case OrderSortFieldCreatedAt:
			orderBy = "created_at " + dir
		}
	}

	query, args, err := builder.
		OrderBy(orderBy).
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.BuyerID, &o.Source, &o.Currency, &o.Total, &o.Status,
			&o.ExternalOrderID, &o.ExternalPaymentID,
			&o.TrackingNumber, &o.Carrier, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			log.Error("failed to scan order row", zap.Error(err))
			return nil, err
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Debug("orders listed", zap.Int("count", len(orders)))
	return orders, nil
}

func (r *repository) ApplyTransition(ctx context.Context, orderID string, change StatusChange) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ApplyTransition"),
		zap.String("order_id", orderID),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	set := "status = $1, updated_at = NOW()"
	args := []any{change.To}
	idx := 2

	if change.SetExternalPaymentID != nil {
		set += fmt.Sprintf(", external_payment_id = $%d", idx)
		args = append(args, *change.SetExternalPaymentID)
		idx++
	}
	if change.SetTrackingNumber != nil {
		set += fmt.Sprintf(", tracking_number = $%d", idx)
		args = append(args, *change.SetTrackingNumber)
		idx++
	}
	if change.SetCarrier != nil {
		set += fmt.Sprintf(", carrier = $%d", idx)
		args = append(args, *change.SetCarrier)
		idx++
	}

	query := fmt.Sprintf(
		"UPDATE orders SET %s WHERE id = $%d AND status = $%d",
		set, idx, idx+1,
	)
	args = append(args, orderID, change.From)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update order status", zap.Error(err))
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// either the order vanished or another transition won the race
		var exists bool
		if scanErr := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, orderID,
		).Scan(&exists); scanErr != nil {
			return scanErr
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrConflict
	}

	if change.DecrementItems || change.RestoreItems {
		items, err := r.itemsForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if change.DecrementItems {
				err = r.products.DecrementStock(ctx, tx, item.ProductID, item.Quantity)
			} else {
				err = r.products.RestoreStock(ctx, tx, item.ProductID, item.Quantity)
			}
			if err != nil {
				return err
			}
		}
	}

	desc := change.Description
	if desc == "" {
		desc = transitionDescription(change.To)
	}
	if err := r.insertTrackingEvent(ctx, tx, orderID, TrackingEvent{
		Status:      string(change.To),
		Location:    change.Location,
		Description: desc,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transition", zap.Error(err))
		return err
	}

	committed = true
	log.Info("order status changed")
	return nil
}

func (r *repository) itemsForUpdate(ctx context.Context, tx *sql.Tx, orderID string) ([]OrderItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// insertTrackingEvent appends with the next per-order position; the unique
// (order_id, position) index makes the log append-only and monotonic.
func (r *repository) insertTrackingEvent(ctx context.Context, exec product.Execer, orderID string, ev TrackingEvent) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO order_tracking_events (order_id, position, status, location, description, created_at)
		SELECT $1,
		       COALESCE(MAX(position), 0) + 1,
		       $2, $3, $4, NOW()
		FROM order_tracking_events
		WHERE order_id = $1
	`, orderID, ev.Status, ev.Location, ev.Description)
	return err
}

func (r *repository) AppendTrackingEvent(ctx context.Context, orderID string, ev TrackingEvent) error {
	return r.insertTrackingEvent(ctx, r.db, orderID, ev)
}

func (r *repository) SellerOwnsOrder(ctx context.Context, orderID, sellerID string) (bool, error) {
	var owns bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM order_items
			WHERE order_id = $1 AND seller_id = $2
		)
	`, orderID, sellerID).Scan(&owns)
	return owns, err
}

func (r *repository) ListStalePending(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM orders
		WHERE status = 'PENDING' AND created_at < $1
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
