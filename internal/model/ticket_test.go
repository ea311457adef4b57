package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingTicket() *Ticket {
	return &Ticket{
		ID:            uuid.New(),
		RegisterID:    uuid.New(),
		SessionID:     uuid.New(),
		TicketNumber:  1,
		PaymentMethod: PayCash,
		PaymentStatus: PaymentPending,
		CashierID:     uuid.New(),
	}
}

func TestAddLineComputesTotals(t *testing.T) {
	tk := newPendingTicket()

	line, err := tk.AddLine(uuid.New(), nil, 3, dec("10.50"), NoTax)
	require.NoError(t, err)
	assert.True(t, line.LineTotal.Equal(dec("31.50")))
	assert.True(t, tk.Subtotal.Equal(dec("31.50")))
	assert.True(t, tk.Total.Equal(dec("31.50")))

	_, err = tk.AddLine(uuid.New(), nil, 1, dec("8.25"), NoTax)
	require.NoError(t, err)
	assert.True(t, tk.Subtotal.Equal(dec("39.75")))
}

func TestAddLineValidation(t *testing.T) {
	tk := newPendingTicket()

	_, err := tk.AddLine(uuid.New(), nil, 0, dec("10"), NoTax)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = tk.AddLine(uuid.New(), nil, 1, dec("-0.01"), NoTax)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// Zero-price lines are legal (promo items).
	_, err = tk.AddLine(uuid.New(), nil, 2, decimal.Zero, NoTax)
	assert.NoError(t, err)
	assert.True(t, tk.Total.IsZero())
}

func TestRemoveLine(t *testing.T) {
	tk := newPendingTicket()
	l1, _ := tk.AddLine(uuid.New(), nil, 1, dec("10"), NoTax)
	_, _ = tk.AddLine(uuid.New(), nil, 1, dec("5"), NoTax)

	require.NoError(t, tk.RemoveLine(l1.ID, NoTax))
	assert.Len(t, tk.Lines, 1)
	assert.True(t, tk.Total.Equal(dec("5")))

	assert.ErrorIs(t, tk.RemoveLine(uuid.New(), NoTax), ErrNotFound)
}

func TestUpdateLineQuantityRecomputes(t *testing.T) {
	tk := newPendingTicket()
	line, _ := tk.AddLine(uuid.New(), nil, 2, dec("7.00"), NoTax)

	require.NoError(t, tk.UpdateLineQuantity(line.ID, 5, NoTax))
	assert.True(t, tk.Lines[0].LineTotal.Equal(dec("35.00")))
	assert.True(t, tk.Total.Equal(dec("35.00")))

	assert.ErrorIs(t, tk.UpdateLineQuantity(line.ID, 0, NoTax), ErrInvalidAmount)
}

func TestApplyPercentDiscount(t *testing.T) {
	tk := newPendingTicket()
	_, _ = tk.AddLine(uuid.New(), nil, 2, dec("50.00"), NoTax)

	require.NoError(t, tk.ApplyPercentDiscount(dec("10"), NoTax))
	assert.True(t, tk.Subtotal.Equal(dec("90.00")))
	assert.True(t, tk.Total.Equal(dec("90.00")))

	// Discount is a property of the ticket, reapplied when lines change.
	_, _ = tk.AddLine(uuid.New(), nil, 1, dec("100.00"), NoTax)
	assert.True(t, tk.Subtotal.Equal(dec("180.00")))

	assert.ErrorIs(t, tk.ApplyPercentDiscount(dec("101"), NoTax), ErrInvalidAmount)
	assert.ErrorIs(t, tk.ApplyPercentDiscount(dec("-1"), NoTax), ErrInvalidAmount)
}

func TestFlatTaxRate(t *testing.T) {
	tk := newPendingTicket()
	tax := FlatTaxRate(dec("21"))
	_, err := tk.AddLine(uuid.New(), nil, 1, dec("100.00"), tax)
	require.NoError(t, err)

	assert.True(t, tk.Subtotal.Equal(dec("100.00")))
	assert.True(t, tk.TaxAmount.Equal(dec("21.00")))
	assert.True(t, tk.Total.Equal(dec("121.00")))
}

func TestTicketImmutableOncePaid(t *testing.T) {
	tk := newPendingTicket()
	_, _ = tk.AddLine(uuid.New(), nil, 1, dec("10"), NoTax)
	require.NoError(t, tk.MarkPaid())

	_, err := tk.AddLine(uuid.New(), nil, 1, dec("5"), NoTax)
	assert.ErrorIs(t, err, ErrTicketImmutable)
	assert.ErrorIs(t, tk.RemoveLine(tk.Lines[0].ID, NoTax), ErrTicketImmutable)
	assert.ErrorIs(t, tk.ApplyPercentDiscount(dec("5"), NoTax), ErrTicketImmutable)
	assert.ErrorIs(t, tk.MarkPaid(), ErrTicketImmutable)
	assert.ErrorIs(t, tk.Cancel(), ErrTicketImmutable)
}

func TestPaymentTransitions(t *testing.T) {
	t.Run("pending to failed", func(t *testing.T) {
		tk := newPendingTicket()
		require.NoError(t, tk.MarkFailed())
		assert.Equal(t, PaymentFailed, tk.PaymentStatus)
		assert.ErrorIs(t, tk.MarkPaid(), ErrTicketImmutable)
	})

	t.Run("pending to cancelled", func(t *testing.T) {
		tk := newPendingTicket()
		require.NoError(t, tk.Cancel())
		assert.Equal(t, PaymentCancelled, tk.PaymentStatus)
	})

	t.Run("refund only from paid", func(t *testing.T) {
		tk := newPendingTicket()
		assert.ErrorIs(t, tk.Refund(), ErrTicketImmutable)
		require.NoError(t, tk.MarkPaid())
		require.NoError(t, tk.Refund())
		assert.Equal(t, PaymentRefunded, tk.PaymentStatus)
		assert.ErrorIs(t, tk.Refund(), ErrTicketImmutable)
	})
}
