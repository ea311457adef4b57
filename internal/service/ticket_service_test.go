package service

import (
	"context"
	"sync"
	"testing"

	"tillpos/internal/dto"
	"tillpos/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[uuid.UUID]model.Ticket
	nextNum int64
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[uuid.UUID]model.Ticket)}
}

func (f *fakeTicketRepo) Create(_ context.Context, t *model.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[t.ID] = *t
	return nil
}

func (f *fakeTicketRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := t
	cp.Lines = append([]model.SaleLine(nil), t.Lines...)
	return &cp, nil
}

func (f *fakeTicketRepo) FindByRegister(_ context.Context, registerID uuid.UUID, _, _ int) ([]model.Ticket, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Ticket
	for _, t := range f.tickets {
		if t.RegisterID == registerID {
			out = append(out, t)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeTicketRepo) Save(_ context.Context, t *model.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[t.ID] = *t
	return nil
}

func (f *fakeTicketRepo) NextTicketNumber(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextNum++
	return f.nextNum, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

type ticketFixture struct {
	repo      *fakeTicketRepo
	registers *fakeRegisterRepo
	svc       TicketService
	regSvc    RegisterService
	register  uuid.UUID
	cashier   uuid.UUID
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	registers := newFakeRegisterRepo()
	regSvc := NewRegisterService(registers, nil)
	repo := newFakeTicketRepo()
	svc := NewTicketService(repo, registers, regSvc, model.NoTax)

	registerID := seedRegister(t, registers, regSvc)
	openRegister(t, regSvc, registerID, "100.00")
	return &ticketFixture{
		repo:      repo,
		registers: registers,
		svc:       svc,
		regSvc:    regSvc,
		register:  registerID,
		cashier:   uuid.New(),
	}
}

func (fx *ticketFixture) createTicket(t *testing.T, lines ...dto.LineRequest) *dto.TicketResponse {
	t.Helper()
	resp, err := fx.svc.Create(context.Background(), fx.cashier, dto.CreateTicketRequest{
		RegisterID:    fx.register.String(),
		PaymentMethod: "cash",
		Lines:         lines,
	})
	require.NoError(t, err)
	return resp
}

func lineReq(qty int, price string) dto.LineRequest {
	return dto.LineRequest{
		ProductID: uuid.NewString(),
		Quantity:  qty,
		UnitPrice: dec(price),
	}
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestCreateTicketAllocatesNumbers(t *testing.T) {
	fx := newTicketFixture(t)

	first := fx.createTicket(t, lineReq(2, "10.00"))
	second := fx.createTicket(t)

	assert.Equal(t, int64(1), first.TicketNumber)
	assert.Equal(t, int64(2), second.TicketNumber)
	assert.True(t, first.Total.Equal(dec("20.00")))
	assert.True(t, second.Total.IsZero())
	assert.Equal(t, "pending", first.PaymentStatus)
}

func TestCreateTicketRequiresOpenRegister(t *testing.T) {
	fx := newTicketFixture(t)
	_, err := fx.regSvc.Suspend(context.Background(), fx.register)
	require.NoError(t, err)

	_, err = fx.svc.Create(context.Background(), fx.cashier, dto.CreateTicketRequest{
		RegisterID:    fx.register.String(),
		PaymentMethod: "cash",
	})
	var transition *model.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, model.RegisterSuspended, transition.State)
}

func TestLineOperationsRoundTrip(t *testing.T) {
	fx := newTicketFixture(t)
	ctx := context.Background()

	created := fx.createTicket(t, lineReq(1, "30.00"))
	ticketID, _ := uuid.Parse(created.ID)

	resp, err := fx.svc.AddLine(ctx, ticketID, lineReq(2, "5.00"))
	require.NoError(t, err)
	assert.Len(t, resp.Lines, 2)
	assert.True(t, resp.Total.Equal(dec("40.00")))

	lineID, _ := uuid.Parse(resp.Lines[1].ID)
	resp, err = fx.svc.UpdateLineQuantity(ctx, ticketID, lineID, dto.UpdateLineQuantityRequest{Quantity: 4})
	require.NoError(t, err)
	assert.True(t, resp.Total.Equal(dec("50.00")))

	resp, err = fx.svc.RemoveLine(ctx, ticketID, lineID)
	require.NoError(t, err)
	assert.Len(t, resp.Lines, 1)
	assert.True(t, resp.Total.Equal(dec("30.00")))

	resp, err = fx.svc.ApplyDiscount(ctx, ticketID, dto.DiscountRequest{Pct: dec("10")})
	require.NoError(t, err)
	assert.True(t, resp.Total.Equal(dec("27.00")))
}

func TestMarkPaidRecordsSaleOnRegister(t *testing.T) {
	fx := newTicketFixture(t)
	ctx := context.Background()

	created := fx.createTicket(t, lineReq(1, "45.00"))
	ticketID, _ := uuid.Parse(created.ID)

	resp, err := fx.svc.MarkPaid(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, "paid", resp.PaymentStatus)

	reg, err := fx.registers.FindByID(ctx, fx.register)
	require.NoError(t, err)
	assert.True(t, reg.CurrentBalance.Equal(dec("145.00")))

	movs, err := fx.registers.ListMovements(ctx, *reg.SessionID)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, model.MovementSale, movs[0].Type)
	assert.True(t, movs[0].Amount.Equal(dec("45.00")))
	require.NotNil(t, movs[0].TicketID)
	assert.Equal(t, ticketID, *movs[0].TicketID)
}

func TestMarkPaidTwiceFails(t *testing.T) {
	fx := newTicketFixture(t)
	ctx := context.Background()

	created := fx.createTicket(t, lineReq(1, "10.00"))
	ticketID, _ := uuid.Parse(created.ID)

	_, err := fx.svc.MarkPaid(ctx, ticketID)
	require.NoError(t, err)
	_, err = fx.svc.MarkPaid(ctx, ticketID)
	assert.ErrorIs(t, err, model.ErrTicketImmutable)

	// Only one drawer movement despite the duplicate attempt.
	reg, _ := fx.registers.FindByID(ctx, fx.register)
	movs, _ := fx.registers.ListMovements(ctx, *reg.SessionID)
	assert.Len(t, movs, 1)
}

func TestMarkPaidOnClosedRegisterLeavesTicketPending(t *testing.T) {
	fx := newTicketFixture(t)
	ctx := context.Background()

	created := fx.createTicket(t, lineReq(1, "10.00"))
	ticketID, _ := uuid.Parse(created.ID)

	_, err := fx.regSvc.Close(ctx, fx.register, fx.cashier, dto.CloseRegisterRequest{})
	require.NoError(t, err)

	_, err = fx.svc.MarkPaid(ctx, ticketID)
	var transition *model.InvalidTransitionError
	require.ErrorAs(t, err, &transition)

	stored, err := fx.svc.Get(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, "pending", stored.PaymentStatus, "rejected payment must not seal the ticket")
}

func TestRefundReversesDrawerMovement(t *testing.T) {
	fx := newTicketFixture(t)
	ctx := context.Background()

	created := fx.createTicket(t, lineReq(1, "45.00"))
	ticketID, _ := uuid.Parse(created.ID)
	_, err := fx.svc.MarkPaid(ctx, ticketID)
	require.NoError(t, err)

	resp, err := fx.svc.Refund(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, "refunded", resp.PaymentStatus)

	reg, err := fx.registers.FindByID(ctx, fx.register)
	require.NoError(t, err)
	assert.True(t, reg.CurrentBalance.Equal(dec("100.00")), "refund restores the pre-sale balance")

	movs, _ := fx.registers.ListMovements(ctx, *reg.SessionID)
	require.Len(t, movs, 2)
	assert.Equal(t, model.MovementRefund, movs[1].Type)
	assert.True(t, movs[1].Amount.Equal(dec("-45.00")))
}

func TestCancelAndFailHaveNoDrawerEffect(t *testing.T) {
	fx := newTicketFixture(t)
	ctx := context.Background()

	first := fx.createTicket(t, lineReq(1, "10.00"))
	second := fx.createTicket(t, lineReq(1, "20.00"))
	firstID, _ := uuid.Parse(first.ID)
	secondID, _ := uuid.Parse(second.ID)

	resp, err := fx.svc.Cancel(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", resp.PaymentStatus)

	resp, err = fx.svc.MarkFailed(ctx, secondID)
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.PaymentStatus)

	reg, _ := fx.registers.FindByID(ctx, fx.register)
	assert.True(t, reg.CurrentBalance.Equal(dec("100.00")))
	movs, _ := fx.registers.ListMovements(ctx, *reg.SessionID)
	assert.Empty(t, movs)
}

func TestPaidTicketsCountTowardCloseReport(t *testing.T) {
	fx := newTicketFixture(t)
	ctx := context.Background()

	for _, price := range []string{"10.00", "15.00"} {
		created := fx.createTicket(t, lineReq(1, price))
		ticketID, _ := uuid.Parse(created.ID)
		_, err := fx.svc.MarkPaid(ctx, ticketID)
		require.NoError(t, err)
	}

	report, err := fx.regSvc.Close(ctx, fx.register, fx.cashier, dto.CloseRegisterRequest{})
	require.NoError(t, err)
	assert.True(t, report.ExpectedBalance.Equal(dec("125.00")))
	assert.True(t, report.Variance.Amount.IsZero())
	assert.Equal(t, "normal", report.Variance.Classification)
}
