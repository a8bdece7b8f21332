package product

import (
	"time"

	"sellora-core/internal/money"
)

type Product struct {
	ID                string
	SellerID          string
	Name              string
	Price             money.Amount
	Currency          string
	AvailableQuantity int
	CreatedAt         time.Time
}
