package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LineRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	VariantID *string         `json:"variant_id" validate:"omitempty,uuid"`
	Quantity  int             `json:"quantity"   validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"min=0"`
}

type CreateTicketRequest struct {
	RegisterID    string        `json:"register_id"    validate:"required,uuid"`
	CustomerID    *string       `json:"customer_id"    validate:"omitempty,uuid"`
	PaymentMethod string        `json:"payment_method" validate:"required,oneof=cash credit_card debit_card bank_transfer e_wallet"`
	Lines         []LineRequest `json:"lines"          validate:"dive"`
}

type UpdateLineQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type DiscountRequest struct {
	Pct decimal.Decimal `json:"pct" validate:"min=0,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LineResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	VariantID *string         `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type TicketResponse struct {
	ID            string          `json:"id"`
	TicketNumber  int64           `json:"ticket_number"`
	RegisterID    string          `json:"register_id"`
	SessionID     string          `json:"session_id"`
	CustomerID    *string         `json:"customer_id"`
	Lines         []LineResponse  `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	Total         decimal.Decimal `json:"total"`
	DiscountPct   decimal.Decimal `json:"discount_pct"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	CashierID     string          `json:"cashier_id"`
	CreatedAt     string          `json:"created_at"`
}

type TicketListResponse struct {
	Data  []TicketResponse `json:"data"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}
