package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates how a ticket was (or will be) paid.
type PaymentMethod string

const (
	PayCash         PaymentMethod = "cash"
	PayCreditCard   PaymentMethod = "credit_card"
	PayDebitCard    PaymentMethod = "debit_card"
	PayBankTransfer PaymentMethod = "bank_transfer"
	PayEWallet      PaymentMethod = "e_wallet"
)

// PaymentStatus is the ticket payment lifecycle.
// Only PENDING tickets are mutable.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCancelled PaymentStatus = "cancelled"
)

// TaxFunc computes the tax amount for a given subtotal. Tax policy lives
// outside this package; the ticket roll-up just calls whatever it is given.
type TaxFunc func(subtotal decimal.Decimal) decimal.Decimal

// FlatTaxRate returns a TaxFunc applying a single percentage, rounded to cents.
func FlatTaxRate(pct decimal.Decimal) TaxFunc {
	return func(subtotal decimal.Decimal) decimal.Decimal {
		return subtotal.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
	}
}

// NoTax is the zero-rate TaxFunc.
func NoTax(decimal.Decimal) decimal.Decimal { return decimal.Zero }

// SaleLine is one product line within a ticket. LineTotal is always derived
// from quantity × unit price, never set independently.
type SaleLine struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TicketID  uuid.UUID  `gorm:"type:uuid;index;not null"`
	ProductID uuid.UUID  `gorm:"type:uuid;not null"`
	VariantID *uuid.UUID `gorm:"type:uuid"`
	Quantity  int        `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	LineTotal decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time
}

// Ticket is one sale recorded against a register session. It is owned by
// exactly one register (set at creation, never reparented) and becomes
// immutable once its payment status leaves PENDING.
type Ticket struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RegisterID uuid.UUID `gorm:"type:uuid;index;not null"`
	SessionID  uuid.UUID `gorm:"type:uuid;index;not null"`
	// TicketNumber is unique system-wide, allocated from a DB sequence.
	TicketNumber int64      `gorm:"uniqueIndex;not null"`
	CustomerID   *uuid.UUID `gorm:"type:uuid"`

	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TaxAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// DiscountPct (0–100) rescales the subtotal; reapplied on every roll-up.
	DiscountPct decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`

	PaymentMethod PaymentMethod `gorm:"type:varchar(20);not null"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'"`

	CashierID uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Lines []SaleLine `gorm:"foreignKey:TicketID"`
}

// ── Mutations ─────────────────────────────────────────────────────────────────
// Every mutation re-runs the roll-up: subtotal = Σ(line totals) scaled by the
// discount, tax = tax(subtotal), total = subtotal + tax.

// AddLine appends a line and recomputes totals.
// Rejects quantity <= 0 or negative unit price with ErrInvalidAmount.
func (t *Ticket) AddLine(productID uuid.UUID, variantID *uuid.UUID, quantity int, unitPrice decimal.Decimal, tax TaxFunc) (*SaleLine, error) {
	if t.PaymentStatus != PaymentPending {
		return nil, ErrTicketImmutable
	}
	if quantity <= 0 || unitPrice.IsNegative() {
		return nil, ErrInvalidAmount
	}
	line := SaleLine{
		ID:        uuid.New(),
		TicketID:  t.ID,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		LineTotal: unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
	t.Lines = append(t.Lines, line)
	t.recompute(tax)
	return &t.Lines[len(t.Lines)-1], nil
}

// RemoveLine deletes a line by id and recomputes totals.
func (t *Ticket) RemoveLine(lineID uuid.UUID, tax TaxFunc) error {
	if t.PaymentStatus != PaymentPending {
		return ErrTicketImmutable
	}
	for i := range t.Lines {
		if t.Lines[i].ID == lineID {
			t.Lines = append(t.Lines[:i], t.Lines[i+1:]...)
			t.recompute(tax)
			return nil
		}
	}
	return ErrNotFound
}

// UpdateLineQuantity changes a line's quantity; the line total is recomputed,
// never patched directly.
func (t *Ticket) UpdateLineQuantity(lineID uuid.UUID, quantity int, tax TaxFunc) error {
	if t.PaymentStatus != PaymentPending {
		return ErrTicketImmutable
	}
	if quantity <= 0 {
		return ErrInvalidAmount
	}
	for i := range t.Lines {
		if t.Lines[i].ID == lineID {
			t.Lines[i].Quantity = quantity
			t.Lines[i].LineTotal = t.Lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
			t.recompute(tax)
			return nil
		}
	}
	return ErrNotFound
}

// ApplyPercentDiscount sets the ticket-wide discount (0–100 inclusive) and
// rescales subtotal/tax/total.
func (t *Ticket) ApplyPercentDiscount(pct decimal.Decimal, tax TaxFunc) error {
	if t.PaymentStatus != PaymentPending {
		return ErrTicketImmutable
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidAmount
	}
	t.DiscountPct = pct
	t.recompute(tax)
	return nil
}

// MarkPaid seals the ticket: PENDING → PAID. The drawer effect (recordSale on
// the owning register) is the service's responsibility and happens first.
func (t *Ticket) MarkPaid() error {
	if t.PaymentStatus != PaymentPending {
		return ErrTicketImmutable
	}
	t.PaymentStatus = PaymentPaid
	return nil
}

// MarkFailed seals the ticket: PENDING → FAILED. No drawer effect.
func (t *Ticket) MarkFailed() error {
	if t.PaymentStatus != PaymentPending {
		return ErrTicketImmutable
	}
	t.PaymentStatus = PaymentFailed
	return nil
}

// Cancel seals the ticket: PENDING → CANCELLED. No drawer effect.
func (t *Ticket) Cancel() error {
	if t.PaymentStatus != PaymentPending {
		return ErrTicketImmutable
	}
	t.PaymentStatus = PaymentCancelled
	return nil
}

// Refund moves a PAID ticket to REFUNDED. The inverse drawer movement is the
// service's responsibility and happens first.
func (t *Ticket) Refund() error {
	if t.PaymentStatus != PaymentPaid {
		return ErrTicketImmutable
	}
	t.PaymentStatus = PaymentRefunded
	return nil
}

func (t *Ticket) recompute(tax TaxFunc) {
	gross := decimal.Zero
	for i := range t.Lines {
		gross = gross.Add(t.Lines[i].LineTotal)
	}
	if t.DiscountPct.IsPositive() {
		factor := decimal.NewFromInt(100).Sub(t.DiscountPct).Div(decimal.NewFromInt(100))
		gross = gross.Mul(factor).Round(2)
	}
	t.Subtotal = gross
	if tax == nil {
		tax = NoTax
	}
	t.TaxAmount = tax(gross)
	t.Total = t.Subtotal.Add(t.TaxAmount)
}
