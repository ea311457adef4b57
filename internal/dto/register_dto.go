package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateRegisterRequest struct {
	BranchID string `json:"branch_id" validate:"required,uuid"`
	Name     string `json:"name"      validate:"required,min=2"`
}

type OpenRegisterRequest struct {
	OpeningFloat decimal.Decimal `json:"opening_float" validate:"min=0"`
}

type CloseRegisterRequest struct {
	// Notes are free-form supervisor observations; recommended (but never
	// required) when the variance classification comes back critical.
	Notes *string `json:"notes"`
}

type WithdrawalRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Method string          `json:"method" validate:"required,oneof=cash credit_card debit_card bank_transfer e_wallet"`
	Note   string          `json:"note"   validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type RegisterResponse struct {
	ID             string          `json:"id"`
	BranchID       string          `json:"branch_id"`
	Name           string          `json:"name"`
	State          string          `json:"state"`
	SessionID      *string         `json:"session_id"`
	OpeningFloat   decimal.Decimal `json:"opening_float"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	OpenedAt       *string         `json:"opened_at"`
	ClosedAt       *string         `json:"closed_at"`
	OpenedBy       *string         `json:"opened_by"`
	ClosedBy       *string         `json:"closed_by"`
}

type VarianceResponse struct {
	Amount         decimal.Decimal `json:"amount"`
	Pct            decimal.Decimal `json:"pct"`
	Classification string          `json:"classification"` // normal | warning | critical
}

type CloseReportResponse struct {
	RegisterID       string                     `json:"register_id"`
	SessionID        string                     `json:"session_id"`
	State            string                     `json:"state"`
	OpeningFloat     decimal.Decimal            `json:"opening_float"`
	ExpectedBalance  decimal.Decimal            `json:"expected_balance"`
	RecordedBalance  decimal.Decimal            `json:"recorded_balance"`
	Variance         VarianceResponse           `json:"variance"`
	SalesByMethod    map[string]decimal.Decimal `json:"sales_by_method"`
	TotalWithdrawals decimal.Decimal            `json:"total_withdrawals"`
	TicketCount      int64                      `json:"ticket_count"`
	SessionSeconds   int64                      `json:"session_seconds"`
	Notes            *string                    `json:"notes"`
	OpenedAt         string                     `json:"opened_at"`
	ClosedAt         *string                    `json:"closed_at"`
}

type SessionListItem struct {
	ID              string          `json:"id"`
	RegisterID      string          `json:"register_id"`
	OpeningFloat    decimal.Decimal `json:"opening_float"`
	ClosingBalance  decimal.Decimal `json:"closing_balance"`
	ExpectedBalance decimal.Decimal `json:"expected_balance"`
	Variance        decimal.Decimal `json:"variance"`
	VariancePct     decimal.Decimal `json:"variance_pct"`
	VarianceClass   string          `json:"variance_class"`
	Notes           *string         `json:"notes"`
	OpenedAt        string          `json:"opened_at"`
	ClosedAt        string          `json:"closed_at"`
}
