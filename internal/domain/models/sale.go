package models

import "time"

// Payment methods accepted by the remote service.
const (
	PaymentMpesa = "mpesa"
	PaymentCash  = "cash"
	PaymentCard  = "card"
)

// Sale is a recorded transaction. CustomerID is nil for walk-in sales.
type Sale struct {
	ID            int64      `json:"id"`
	Amount        float64    `json:"amount"`
	PaymentMethod string     `json:"payment_method"`
	CustomerID    *int64     `json:"customer_id"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// SaleCreate is the payload for POST /sales. CustomerID must serialize as an
// explicit null when no customer is attached, so it never carries omitempty.
type SaleCreate struct {
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
	CustomerID    *int64  `json:"customer_id"`
}
