package service

import (
	"context"
	"sync"
	"testing"

	"tillpos/internal/dto"
	"tillpos/internal/model"
	"tillpos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegisterRepo is an in-memory RegisterRepository with real versioned-save
// semantics, so the service's conflict/retry path is exercised without a DB.
type fakeRegisterRepo struct {
	mu        sync.Mutex
	registers map[uuid.UUID]model.Register
	movements []model.CashMovement
	sessions  map[uuid.UUID]model.RegisterSession
	tickets   map[uuid.UUID]int64 // session -> ticket count

	// conflictsLeft forces SaveVersioned to bump the stored version out from
	// under the caller N times, simulating a concurrent writer winning.
	conflictsLeft int
}

func newFakeRegisterRepo() *fakeRegisterRepo {
	return &fakeRegisterRepo{
		registers: make(map[uuid.UUID]model.Register),
		sessions:  make(map[uuid.UUID]model.RegisterSession),
		tickets:   make(map[uuid.UUID]int64),
	}
}

func (f *fakeRegisterRepo) Create(_ context.Context, reg *model.Register) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers[reg.ID] = *reg
	return nil
}

func (f *fakeRegisterRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Register, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.registers[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := reg
	return &cp, nil
}

func (f *fakeRegisterRepo) FindOpenByBranch(_ context.Context, branchID uuid.UUID) ([]model.Register, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Register
	for _, r := range f.registers {
		if r.BranchID == branchID && r.State != model.RegisterClosed {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRegisterRepo) List(_ context.Context) ([]model.Register, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Register, 0, len(f.registers))
	for _, r := range f.registers {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRegisterRepo) SaveVersioned(_ context.Context, reg *model.Register, movements ...*model.CashMovement) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.registers[reg.ID]
	if !ok {
		return model.ErrNotFound
	}
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		stored.Version++
		f.registers[reg.ID] = stored
		return repository.ErrVersionConflict
	}
	if stored.Version != reg.Version {
		return repository.ErrVersionConflict
	}
	reg.Version++
	f.registers[reg.ID] = *reg
	for _, m := range movements {
		f.movements = append(f.movements, *m)
	}
	return nil
}

func (f *fakeRegisterRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.registers[id]; !ok {
		return model.ErrNotFound
	}
	delete(f.registers, id)
	return nil
}

func (f *fakeRegisterRepo) CreateMovement(_ context.Context, m *model.CashMovement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movements = append(f.movements, *m)
	return nil
}

func (f *fakeRegisterRepo) ListMovements(_ context.Context, sessionID uuid.UUID) ([]model.CashMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CashMovement
	for _, m := range f.movements {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRegisterRepo) SumSalesByMethod(_ context.Context, sessionID uuid.UUID) (map[model.PaymentMethod]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sums := make(map[model.PaymentMethod]decimal.Decimal)
	for _, m := range f.movements {
		if m.SessionID != sessionID || (m.Type != model.MovementSale && m.Type != model.MovementRefund) {
			continue
		}
		method := model.PayCash
		if m.Method != nil {
			method = *m.Method
		}
		sums[method] = sums[method].Add(m.Amount)
	}
	return sums, nil
}

func (f *fakeRegisterRepo) SumWithdrawals(_ context.Context, sessionID uuid.UUID) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := decimal.Zero
	for _, m := range f.movements {
		if m.SessionID == sessionID && m.Type == model.MovementWithdrawal {
			total = total.Add(m.Amount)
		}
	}
	return total.Neg(), nil
}

func (f *fakeRegisterRepo) CountTickets(_ context.Context, sessionID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickets[sessionID], nil
}

func (f *fakeRegisterRepo) CreateSession(_ context.Context, s *model.RegisterSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeRegisterRepo) FindSessionByID(_ context.Context, id uuid.UUID) (*model.RegisterSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := s
	return &cp, nil
}

func (f *fakeRegisterRepo) ListSessions(_ context.Context, _, _ int) ([]model.RegisterSession, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.RegisterSession, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func seedRegister(t *testing.T, repo *fakeRegisterRepo, svc RegisterService) uuid.UUID {
	t.Helper()
	resp, err := svc.Create(context.Background(), dto.CreateRegisterRequest{
		BranchID: uuid.NewString(),
		Name:     "Till 1",
	})
	require.NoError(t, err)
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	return id
}

func openRegister(t *testing.T, svc RegisterService, id uuid.UUID, float string) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	_, err := svc.Open(context.Background(), id, userID, dto.OpenRegisterRequest{OpeningFloat: dec(float)})
	require.NoError(t, err)
	return userID
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestCloseReportReconciliation(t *testing.T) {
	repo := newFakeRegisterRepo()
	svc := NewRegisterService(repo, nil)
	ctx := context.Background()

	id := seedRegister(t, repo, svc)
	userID := openRegister(t, svc, id, "100.00")

	require.NoError(t, svc.RecordSale(ctx, id, dec("50.00"), model.PayCash, uuid.New(), "Ticket #1"))
	require.NoError(t, svc.RecordSale(ctx, id, dec("25.00"), model.PayCreditCard, uuid.New(), "Ticket #2"))

	_, err := svc.RecordWithdrawal(ctx, id, dto.WithdrawalRequest{
		Amount: dec("30.00"),
		Method: "cash",
		Note:   "bank drop",
	})
	require.NoError(t, err)

	report, err := svc.Close(ctx, id, userID, dto.CloseRegisterRequest{})
	require.NoError(t, err)

	assert.True(t, report.ExpectedBalance.Equal(dec("175.00")))
	assert.True(t, report.RecordedBalance.Equal(dec("145.00")))
	assert.True(t, report.Variance.Amount.Equal(dec("-30.00")), "withdrawal shows up as negative variance")
	assert.True(t, report.TotalWithdrawals.Equal(dec("30.00")))
	assert.True(t, report.SalesByMethod["cash"].Equal(dec("50.00")))
	assert.True(t, report.SalesByMethod["credit_card"].Equal(dec("25.00")))
	assert.Equal(t, "closed", report.State)

	// The session archive carries the same numbers.
	sessionID, err := uuid.Parse(report.SessionID)
	require.NoError(t, err)
	archived, err := repo.FindSessionByID(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, archived.Variance.Equal(dec("-30.00")))
}

func TestCloseWithoutMovementsHasZeroVariance(t *testing.T) {
	repo := newFakeRegisterRepo()
	svc := NewRegisterService(repo, nil)

	id := seedRegister(t, repo, svc)
	userID := openRegister(t, svc, id, "200.00")

	report, err := svc.Close(context.Background(), id, userID, dto.CloseRegisterRequest{})
	require.NoError(t, err)

	assert.True(t, report.ExpectedBalance.Equal(dec("200.00")))
	assert.True(t, report.Variance.Amount.IsZero())
	assert.Equal(t, "normal", report.Variance.Classification)
}

func TestReportIsIdempotentAfterClose(t *testing.T) {
	repo := newFakeRegisterRepo()
	svc := NewRegisterService(repo, nil)
	ctx := context.Background()

	id := seedRegister(t, repo, svc)
	userID := openRegister(t, svc, id, "100.00")
	require.NoError(t, svc.RecordSale(ctx, id, dec("40.00"), model.PayCash, uuid.New(), "Ticket #1"))

	closed, err := svc.Close(ctx, id, userID, dto.CloseRegisterRequest{})
	require.NoError(t, err)

	first, err := svc.Report(ctx, id)
	require.NoError(t, err)
	second, err := svc.Report(ctx, id)
	require.NoError(t, err)

	assert.True(t, first.Variance.Amount.Equal(closed.Variance.Amount))
	assert.True(t, first.ExpectedBalance.Equal(second.ExpectedBalance))
	assert.True(t, first.RecordedBalance.Equal(second.RecordedBalance))
	assert.Equal(t, first.TicketCount, second.TicketCount)
}

func TestWithdrawalGuards(t *testing.T) {
	repo := newFakeRegisterRepo()
	svc := NewRegisterService(repo, nil)
	ctx := context.Background()

	id := seedRegister(t, repo, svc)
	openRegister(t, svc, id, "145.00")

	_, err := svc.RecordWithdrawal(ctx, id, dto.WithdrawalRequest{
		Amount: dec("200.00"), Method: "cash", Note: "too much",
	})
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)

	reg, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, reg.CurrentBalance.Equal(dec("145.00")))
	assert.Empty(t, repo.movements, "failed withdrawal must not write a ledger entry")
}

func TestSaleOnClosedRegisterFails(t *testing.T) {
	repo := newFakeRegisterRepo()
	svc := NewRegisterService(repo, nil)

	id := seedRegister(t, repo, svc)
	err := svc.RecordSale(context.Background(), id, dec("10.00"), model.PayCash, uuid.New(), "Ticket #1")

	var transition *model.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, model.RegisterClosed, transition.State)
}

func TestVersionConflictIsRetried(t *testing.T) {
	repo := newFakeRegisterRepo()
	svc := NewRegisterService(repo, nil)
	ctx := context.Background()

	id := seedRegister(t, repo, svc)
	openRegister(t, svc, id, "100.00")

	// Two consecutive conflicts: the service re-reads and reapplies, landing
	// the sale on the third attempt.
	repo.conflictsLeft = 2
	err := svc.RecordSale(ctx, id, dec("10.00"), model.PayCash, uuid.New(), "Ticket #1")
	require.NoError(t, err)

	reg, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, reg.CurrentBalance.Equal(dec("110.00")), "sale applied exactly once despite conflicts")
	assert.Len(t, repo.movements, 1)
}

func TestVersionConflictExhaustsAttempts(t *testing.T) {
	repo := newFakeRegisterRepo()
	svc := NewRegisterService(repo, nil)
	ctx := context.Background()

	id := seedRegister(t, repo, svc)
	openRegister(t, svc, id, "100.00")

	repo.conflictsLeft = maxSaveAttempts
	err := svc.RecordSale(ctx, id, dec("10.00"), model.PayCash, uuid.New(), "Ticket #1")
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestConcurrentSalesAllLand(t *testing.T) {
	repo := newFakeRegisterRepo()
	svc := NewRegisterService(repo, nil)
	ctx := context.Background()

	id := seedRegister(t, repo, svc)
	openRegister(t, svc, id, "0.00")

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.RecordSale(ctx, id, dec("1.00"), model.PayCash, uuid.New(), "Ticket")
		}()
	}
	wg.Wait()

	reg, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, reg.CurrentBalance.Equal(dec("20.00")), "got %s", reg.CurrentBalance)
	assert.Len(t, repo.movements, n)
}

func TestDeleteRejectsOpenRegister(t *testing.T) {
	repo := newFakeRegisterRepo()
	svc := NewRegisterService(repo, nil)
	ctx := context.Background()

	id := seedRegister(t, repo, svc)
	userID := openRegister(t, svc, id, "10.00")

	var transition *model.InvalidTransitionError
	require.ErrorAs(t, svc.Delete(ctx, id), &transition)
	assert.Equal(t, "delete", transition.Op)

	_, err := svc.Close(ctx, id, userID, dto.CloseRegisterRequest{})
	require.NoError(t, err)
	assert.NoError(t, svc.Delete(ctx, id))
}

func TestReopenResetsSessionScope(t *testing.T) {
	repo := newFakeRegisterRepo()
	svc := NewRegisterService(repo, nil)
	ctx := context.Background()

	id := seedRegister(t, repo, svc)
	userID := openRegister(t, svc, id, "100.00")
	require.NoError(t, svc.RecordSale(ctx, id, dec("50.00"), model.PayCash, uuid.New(), "Ticket #1"))
	_, err := svc.Close(ctx, id, userID, dto.CloseRegisterRequest{})
	require.NoError(t, err)

	openRegister(t, svc, id, "80.00")
	report, err := svc.Report(ctx, id)
	require.NoError(t, err)

	assert.True(t, report.ExpectedBalance.Equal(dec("80.00")), "previous session's sales must not bleed into the new report")
	assert.True(t, report.Variance.Amount.IsZero())
}
