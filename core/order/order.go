package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	Paid Status = "paid"
)

type Order struct {
	ID                   string          `json:"id" db:"order_id"`
	UserID               string          `json:"-" db:"user_id"`
	PaymentTransactionID string          `json:"paymentTransactionId" db:"payment_transaction_id"`
	DeliveryOptionID     string          `json:"deliveryOptionId" db:"delivery_option_id"`
	Total                decimal.Decimal `json:"total" db:"total"`
	Status               Status          `json:"status" db:"status"`
	PaymentGatewayRef    string          `json:"paymentGatewayRef" db:"payment_gateway_ref"`
	CreatedAt            time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time       `json:"updatedAt" db:"updated_at"`
}

type Item struct {
	OrderID         string          `json:"orderId" db:"order_id"`
	ArtworkID       string          `json:"artworkId" db:"artwork_id"`
	Quantity        int             `json:"quantity" db:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"priceAtPurchase" db:"price_at_purchase"`
}
