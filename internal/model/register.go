package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegisterState is the lifecycle state of a cash register.
type RegisterState string

const (
	RegisterClosed    RegisterState = "closed"
	RegisterOpen      RegisterState = "open"
	RegisterSuspended RegisterState = "suspended"
)

// Register is one physical cash point. It is reusable across sessions: every
// Open starts a fresh session (new SessionID, new float), every Close archives
// the session's reconciliation into a RegisterSession row.
//
// All state changes go through the named transition methods below — there is
// no public state setter, so illegal states are unrepresentable from outside
// the package.
type Register struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BranchID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"not null"`

	State RegisterState `gorm:"type:varchar(20);not null;default:'closed'"`
	// SessionID identifies the current (or most recently closed) session.
	SessionID      *uuid.UUID      `gorm:"type:uuid;index"`
	OpeningFloat   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CurrentBalance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	OpenedAt *time.Time
	ClosedAt *time.Time
	OpenedBy *uuid.UUID `gorm:"type:uuid"`
	ClosedBy *uuid.UUID `gorm:"type:uuid"`

	// Version is the optimistic-concurrency counter. A versioned save only
	// succeeds when the row still carries the version that was read; see
	// repository.RegisterRepository.SaveVersioned.
	Version int64 `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Movements []CashMovement `gorm:"foreignKey:RegisterID"`
}

// Movement types. Amounts are stored signed: sales positive, withdrawals and
// refunds negative. Movements are NEVER modified or deleted — corrections
// create inverse entries.
const (
	MovementSale       = "sale"
	MovementWithdrawal = "withdrawal"
	MovementRefund     = "refund"
)

// CashMovement is an immutable event in the drawer ledger, scoped to one
// register session.
type CashMovement struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RegisterID uuid.UUID       `gorm:"type:uuid;index;not null"`
	SessionID  uuid.UUID       `gorm:"type:uuid;index;not null"`
	Type       string          `gorm:"type:varchar(20);not null"`
	Method     *PaymentMethod  `gorm:"type:varchar(20)"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Note       string          `gorm:"not null"`
	// TicketID links to the originating ticket for sale/refund movements.
	TicketID  *uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time
}

// RegisterSession is the archived reconciliation of one open→close cycle,
// written at close time so that the register row can be reused.
type RegisterSession struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	RegisterID uuid.UUID `gorm:"type:uuid;index;not null"`

	OpeningFloat    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ClosingBalance  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ExpectedBalance decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Variance        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	VariancePct     decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	// VarianceClass: "normal" | "warning" | "critical"
	VarianceClass string  `gorm:"type:varchar(20);not null"`
	Notes         *string

	OpenedAt time.Time
	ClosedAt time.Time
	OpenedBy uuid.UUID `gorm:"type:uuid;not null"`
	ClosedBy uuid.UUID `gorm:"type:uuid;not null"`
}

// ── Transitions ───────────────────────────────────────────────────────────────

// Open starts a new session: CLOSED → OPEN.
// The opening float must be >= 0 and becomes the starting balance.
func (r *Register) Open(userID uuid.UUID, openingFloat decimal.Decimal) error {
	if r.State != RegisterClosed {
		return newInvalidTransition(r.State, "open")
	}
	if openingFloat.IsNegative() {
		return ErrInvalidAmount
	}

	now := time.Now()
	sessionID := uuid.New()
	r.State = RegisterOpen
	r.SessionID = &sessionID
	r.OpeningFloat = openingFloat
	r.CurrentBalance = openingFloat
	r.OpenedAt = &now
	r.OpenedBy = &userID
	r.ClosedAt = nil
	r.ClosedBy = nil
	return nil
}

// Close ends the session: OPEN → CLOSED. Reconciliation is computed by the
// service from the session's recorded movements; Close itself only seals the
// state so no further movements can land on this session.
func (r *Register) Close(userID uuid.UUID) error {
	if r.State != RegisterOpen {
		return newInvalidTransition(r.State, "close")
	}
	now := time.Now()
	r.State = RegisterClosed
	r.ClosedAt = &now
	r.ClosedBy = &userID
	return nil
}

// Suspend pauses the session (cashier break): OPEN → SUSPENDED. No balance change.
func (r *Register) Suspend() error {
	if r.State != RegisterOpen {
		return newInvalidTransition(r.State, "suspend")
	}
	r.State = RegisterSuspended
	return nil
}

// Resume reactivates a suspended session: SUSPENDED → OPEN. No balance change.
func (r *Register) Resume() error {
	if r.State != RegisterSuspended {
		return newInvalidTransition(r.State, "resume")
	}
	r.State = RegisterOpen
	return nil
}

// RecordSale adds a paid sale amount to the drawer. Only legal while OPEN.
func (r *Register) RecordSale(amount decimal.Decimal) error {
	if r.State != RegisterOpen {
		return newInvalidTransition(r.State, "record a sale on")
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	r.CurrentBalance = r.CurrentBalance.Add(amount)
	return nil
}

// RecordWithdrawal removes cash from the drawer. Only legal while OPEN, and
// never allowed to drive the balance negative — on ErrInsufficientBalance the
// balance is untouched.
func (r *Register) RecordWithdrawal(amount decimal.Decimal) error {
	if r.State != RegisterOpen {
		return newInvalidTransition(r.State, "withdraw from")
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(r.CurrentBalance) {
		return ErrInsufficientBalance
	}
	r.CurrentBalance = r.CurrentBalance.Sub(amount)
	return nil
}

// RecordRefund reverses a previously recorded sale amount (ticket refund).
// Shares the withdrawal guards: the drawer cannot go negative.
func (r *Register) RecordRefund(amount decimal.Decimal) error {
	if r.State != RegisterOpen {
		return newInvalidTransition(r.State, "refund on")
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(r.CurrentBalance) {
		return ErrInsufficientBalance
	}
	r.CurrentBalance = r.CurrentBalance.Sub(amount)
	return nil
}

// SessionDuration returns the elapsed time of the current or last session.
func (r *Register) SessionDuration() time.Duration {
	if r.OpenedAt == nil {
		return 0
	}
	if r.ClosedAt != nil {
		return r.ClosedAt.Sub(*r.OpenedAt)
	}
	return time.Since(*r.OpenedAt)
}

// ClassifyVariance buckets a variance percentage the way supervisors triage it:
// normal: |pct| <= 1%, warning: <= 5%, critical: > 5%.
func ClassifyVariance(pct decimal.Decimal) string {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(1)):
		return "normal"
	case abs.LessThanOrEqual(decimal.NewFromInt(5)):
		return "warning"
	default:
		return "critical"
	}
}
