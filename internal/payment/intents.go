package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

var ErrRecordNotFound = errors.New("intent record not found")

// IntentStore keeps the local side of every external payment intent. Records
// without an attached order are orphans the reconciler repairs or cancels.
type IntentStore interface {
	Create(ctx context.Context, rec *IntentRecord) error
	GetByReceipt(ctx context.Context, receipt string) (*IntentRecord, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*IntentRecord, error)
	AttachOrder(ctx context.Context, receipt, orderID string) error
	MarkAbandoned(ctx context.Context, receipt string) error
	ListOrphaned(ctx context.Context, olderThan time.Time) ([]*IntentRecord, error)
}

type intentStore struct {
	db *sql.DB
}

func NewIntentStore(db *sql.DB) IntentStore {
	return &intentStore{db: db}
}

func (s *intentStore) Create(ctx context.Context, rec *IntentRecord) error {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payment_intents (
			receipt, idempotency_key, intent_id, buyer_id,
			currency, amount, items, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		rec.Receipt, rec.IdempotencyKey, rec.IntentID, rec.BuyerID,
		rec.Currency, rec.Amount, items, rec.Status, rec.CreatedAt,
	)
	return err
}

const intentColumns = `
	receipt, idempotency_key, intent_id, buyer_id,
	currency, amount, items, order_id, status, created_at
`

func (s *intentStore) scanRecord(row *sql.Row) (*IntentRecord, error) {
	var rec IntentRecord
	var items []byte

	err := row.Scan(
		&rec.Receipt, &rec.IdempotencyKey, &rec.IntentID, &rec.BuyerID,
		&rec.Currency, &rec.Amount, &items, &rec.OrderID, &rec.Status, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &rec.Items); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *intentStore) GetByReceipt(ctx context.Context, receipt string) (*IntentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE receipt = $1`, receipt)
	return s.scanRecord(row)
}

func (s *intentStore) GetByIdempotencyKey(ctx context.Context, key string) (*IntentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE idempotency_key = $1`, key)
	return s.scanRecord(row)
}

func (s *intentStore) AttachOrder(ctx context.Context, receipt, orderID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payment_intents
		SET order_id = $1, status = $2
		WHERE receipt = $3
	`, orderID, RecordAttached, receipt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *intentStore) MarkAbandoned(ctx context.Context, receipt string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE payment_intents
		SET status = $1
		WHERE receipt = $2 AND order_id IS NULL
	`, RecordAbandoned, receipt)
	return err
}

func (s *intentStore) ListOrphaned(ctx context.Context, olderThan time.Time) ([]*IntentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+intentColumns+`
		FROM payment_intents
		WHERE order_id IS NULL AND status = $1 AND created_at < $2
		ORDER BY created_at
	`, RecordCreated, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*IntentRecord
	for rows.Next() {
		var rec IntentRecord
		var items []byte
		if err := rows.Scan(
			&rec.Receipt, &rec.IdempotencyKey, &rec.IntentID, &rec.BuyerID,
			&rec.Currency, &rec.Amount, &items, &rec.OrderID, &rec.Status, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(items, &rec.Items); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
