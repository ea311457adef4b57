package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tillpos/internal/dto"
	"tillpos/internal/model"
	"tillpos/internal/repository"
	"tillpos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type RegisterService interface {
	Create(ctx context.Context, req dto.CreateRegisterRequest) (*dto.RegisterResponse, error)
	List(ctx context.Context) ([]dto.RegisterResponse, error)
	// Delete removes a register; rejected while it has an open session.
	Delete(ctx context.Context, id uuid.UUID) error

	Open(ctx context.Context, id, userID uuid.UUID, req dto.OpenRegisterRequest) (*dto.RegisterResponse, error)
	Close(ctx context.Context, id, userID uuid.UUID, req dto.CloseRegisterRequest) (*dto.CloseReportResponse, error)
	Suspend(ctx context.Context, id uuid.UUID) (*dto.RegisterResponse, error)
	Resume(ctx context.Context, id uuid.UUID) (*dto.RegisterResponse, error)
	RecordWithdrawal(ctx context.Context, id uuid.UUID, req dto.WithdrawalRequest) (*dto.RegisterResponse, error)

	// RecordSale / RecordRefund are called by TicketService when a ticket is
	// paid or refunded; they carry the drawer effect and the ledger entry.
	RecordSale(ctx context.Context, id uuid.UUID, amount decimal.Decimal, method model.PaymentMethod, ticketID uuid.UUID, note string) error
	RecordRefund(ctx context.Context, id uuid.UUID, amount decimal.Decimal, method model.PaymentMethod, ticketID uuid.UUID, note string) error

	Report(ctx context.Context, id uuid.UUID) (*dto.CloseReportResponse, error)
	OpenByBranch(ctx context.Context, branchID uuid.UUID) ([]dto.RegisterResponse, error)
	Sessions(ctx context.Context, page, limit int) ([]dto.SessionListItem, int64, error)
}

// maxSaveAttempts bounds the reload-reapply loop on version conflicts. Three
// attempts is enough for two cashiers racing on one drawer; anything hotter
// indicates a caller bug and should surface.
const maxSaveAttempts = 3

// registerLocks hands out one mutex per register id so that in-process
// callers serialize before they ever reach the versioned save.
type registerLocks struct {
	mu sync.Mutex
	m  map[uuid.UUID]*sync.Mutex
}

func (l *registerLocks) get(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.m == nil {
		l.m = make(map[uuid.UUID]*sync.Mutex)
	}
	lk, ok := l.m[id]
	if !ok {
		lk = &sync.Mutex{}
		l.m[id] = lk
	}
	return lk
}

type registerService struct {
	repo       repository.RegisterRepository
	dispatcher *worker.Dispatcher
	locks      registerLocks
}

func NewRegisterService(repo repository.RegisterRepository, dispatcher *worker.Dispatcher) RegisterService {
	return &registerService{repo: repo, dispatcher: dispatcher}
}

// ── CRUD ──────────────────────────────────────────────────────────────────────

func (s *registerService) Create(ctx context.Context, req dto.CreateRegisterRequest) (*dto.RegisterResponse, error) {
	branchID, err := uuid.Parse(req.BranchID)
	if err != nil {
		return nil, fmt.Errorf("invalid branch_id: %w", err)
	}
	reg := &model.Register{
		ID:             uuid.New(),
		BranchID:       branchID,
		Name:           req.Name,
		State:          model.RegisterClosed,
		OpeningFloat:   decimal.Zero,
		CurrentBalance: decimal.Zero,
	}
	if err := s.repo.Create(ctx, reg); err != nil {
		return nil, err
	}
	return registerToResponse(reg), nil
}

func (s *registerService) List(ctx context.Context) ([]dto.RegisterResponse, error) {
	regs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.RegisterResponse, len(regs))
	for i := range regs {
		resp[i] = *registerToResponse(&regs[i])
	}
	return resp, nil
}

func (s *registerService) Delete(ctx context.Context, id uuid.UUID) error {
	lk := s.locks.get(id)
	lk.Lock()
	defer lk.Unlock()

	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if reg.State != model.RegisterClosed {
		return &model.InvalidTransitionError{State: reg.State, Op: "delete"}
	}
	return s.repo.Delete(ctx, id)
}

// ── Transitions ───────────────────────────────────────────────────────────────

func (s *registerService) Open(ctx context.Context, id, userID uuid.UUID, req dto.OpenRegisterRequest) (*dto.RegisterResponse, error) {
	reg, err := s.mutate(ctx, id, func(r *model.Register) (*model.CashMovement, error) {
		return nil, r.Open(userID, req.OpeningFloat)
	})
	if err != nil {
		return nil, err
	}
	return registerToResponse(reg), nil
}

func (s *registerService) Suspend(ctx context.Context, id uuid.UUID) (*dto.RegisterResponse, error) {
	reg, err := s.mutate(ctx, id, func(r *model.Register) (*model.CashMovement, error) {
		return nil, r.Suspend()
	})
	if err != nil {
		return nil, err
	}
	return registerToResponse(reg), nil
}

func (s *registerService) Resume(ctx context.Context, id uuid.UUID) (*dto.RegisterResponse, error) {
	reg, err := s.mutate(ctx, id, func(r *model.Register) (*model.CashMovement, error) {
		return nil, r.Resume()
	})
	if err != nil {
		return nil, err
	}
	return registerToResponse(reg), nil
}

func (s *registerService) RecordWithdrawal(ctx context.Context, id uuid.UUID, req dto.WithdrawalRequest) (*dto.RegisterResponse, error) {
	method := model.PaymentMethod(req.Method)
	reg, err := s.mutate(ctx, id, func(r *model.Register) (*model.CashMovement, error) {
		if err := r.RecordWithdrawal(req.Amount); err != nil {
			return nil, err
		}
		return &model.CashMovement{
			RegisterID: r.ID,
			SessionID:  *r.SessionID,
			Type:       model.MovementWithdrawal,
			Method:     &method,
			Amount:     req.Amount.Neg(),
			Note:       req.Note,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return registerToResponse(reg), nil
}

func (s *registerService) RecordSale(ctx context.Context, id uuid.UUID, amount decimal.Decimal, method model.PaymentMethod, ticketID uuid.UUID, note string) error {
	_, err := s.mutate(ctx, id, func(r *model.Register) (*model.CashMovement, error) {
		if err := r.RecordSale(amount); err != nil {
			return nil, err
		}
		return &model.CashMovement{
			RegisterID: r.ID,
			SessionID:  *r.SessionID,
			Type:       model.MovementSale,
			Method:     &method,
			Amount:     amount,
			Note:       note,
			TicketID:   &ticketID,
		}, nil
	})
	return err
}

func (s *registerService) RecordRefund(ctx context.Context, id uuid.UUID, amount decimal.Decimal, method model.PaymentMethod, ticketID uuid.UUID, note string) error {
	_, err := s.mutate(ctx, id, func(r *model.Register) (*model.CashMovement, error) {
		if err := r.RecordRefund(amount); err != nil {
			return nil, err
		}
		return &model.CashMovement{
			RegisterID: r.ID,
			SessionID:  *r.SessionID,
			Type:       model.MovementRefund,
			Method:     &method,
			Amount:     amount.Neg(),
			Note:       note,
			TicketID:   &ticketID,
		}, nil
	})
	return err
}

// ── Close & reconciliation ────────────────────────────────────────────────────

func (s *registerService) Close(ctx context.Context, id, userID uuid.UUID, req dto.CloseRegisterRequest) (*dto.CloseReportResponse, error) {
	var report *dto.CloseReportResponse
	reg, err := s.mutate(ctx, id, func(r *model.Register) (*model.CashMovement, error) {
		if err := r.Close(userID); err != nil {
			return nil, err
		}
		// Reconcile over the session's own recorded movements, not calendar
		// days — a session spanning midnight still counts all its sales.
		rep, err := s.buildReport(ctx, r, req.Notes)
		if err != nil {
			return nil, err
		}
		report = rep
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	session := &model.RegisterSession{
		ID:              *reg.SessionID,
		RegisterID:      reg.ID,
		OpeningFloat:    reg.OpeningFloat,
		ClosingBalance:  reg.CurrentBalance,
		ExpectedBalance: report.ExpectedBalance,
		Variance:        report.Variance.Amount,
		VariancePct:     report.Variance.Pct,
		VarianceClass:   report.Variance.Classification,
		Notes:           req.Notes,
		OpenedAt:        *reg.OpenedAt,
		ClosedAt:        *reg.ClosedAt,
		OpenedBy:        *reg.OpenedBy,
		ClosedBy:        userID,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	// A nonzero variance is a reconciliation signal for operations staff,
	// never a close blocker.
	if report.Variance.Classification != "normal" {
		log.Warn().
			Str("register_id", reg.ID.String()).
			Str("session_id", session.ID.String()).
			Str("variance", report.Variance.Amount.StringFixed(2)).
			Str("classification", report.Variance.Classification).
			Msg("register closed with variance")
	}

	// Close-out delivery (PDF + supervisor email) is best-effort async.
	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueCloseout(ctx, report); err != nil {
			log.Error().Err(err).Str("register_id", reg.ID.String()).Msg("failed to enqueue close-out report")
		}
	}

	return report, nil
}

// Report returns the reconciliation snapshot of the register's current (or
// most recently closed) session. Repeated calls on a closed register return
// identical values: the session ledger is immutable once sealed.
func (s *registerService) Report(ctx context.Context, id uuid.UUID) (*dto.CloseReportResponse, error) {
	lk := s.locks.get(id)
	lk.Lock()
	defer lk.Unlock()

	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.SessionID == nil {
		return nil, model.ErrNotFound
	}

	var notes *string
	if reg.State == model.RegisterClosed {
		session, err := s.repo.FindSessionByID(ctx, *reg.SessionID)
		if err != nil {
			return nil, err
		}
		notes = session.Notes
	}
	return s.buildReport(ctx, reg, notes)
}

func (s *registerService) OpenByBranch(ctx context.Context, branchID uuid.UUID) ([]dto.RegisterResponse, error) {
	regs, err := s.repo.FindOpenByBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.RegisterResponse, len(regs))
	for i := range regs {
		resp[i] = *registerToResponse(&regs[i])
	}
	return resp, nil
}

func (s *registerService) Sessions(ctx context.Context, page, limit int) ([]dto.SessionListItem, int64, error) {
	sessions, total, err := s.repo.ListSessions(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	items := make([]dto.SessionListItem, len(sessions))
	for i, ses := range sessions {
		items[i] = dto.SessionListItem{
			ID:              ses.ID.String(),
			RegisterID:      ses.RegisterID.String(),
			OpeningFloat:    ses.OpeningFloat,
			ClosingBalance:  ses.ClosingBalance,
			ExpectedBalance: ses.ExpectedBalance,
			Variance:        ses.Variance,
			VariancePct:     ses.VariancePct,
			VarianceClass:   ses.VarianceClass,
			Notes:           ses.Notes,
			OpenedAt:        ses.OpenedAt.Format("2006-01-02T15:04:05Z"),
			ClosedAt:        ses.ClosedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	return items, total, nil
}

// ── Internals ─────────────────────────────────────────────────────────────────

// mutate runs a read-modify-write on one register under its in-process lock
// and the versioned save. On ErrVersionConflict (another process won the
// write) the whole operation is reloaded and reapplied — never a stale delta.
func (s *registerService) mutate(ctx context.Context, id uuid.UUID, fn func(*model.Register) (*model.CashMovement, error)) (*model.Register, error) {
	lk := s.locks.get(id)
	lk.Lock()
	defer lk.Unlock()

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		reg, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		mov, err := fn(reg)
		if err != nil {
			return nil, err
		}
		var movements []*model.CashMovement
		if mov != nil {
			movements = append(movements, mov)
		}
		err = s.repo.SaveVersioned(ctx, reg, movements...)
		if err == nil {
			return reg, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		log.Debug().
			Str("register_id", id.String()).
			Int("attempt", attempt+1).
			Msg("version conflict on register save, retrying")
	}
	return nil, repository.ErrVersionConflict
}

func (s *registerService) buildReport(ctx context.Context, reg *model.Register, notes *string) (*dto.CloseReportResponse, error) {
	sessionID := *reg.SessionID

	salesByMethod, err := s.repo.SumSalesByMethod(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.repo.SumWithdrawals(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ticketCount, err := s.repo.CountTickets(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	totalSales := decimal.Zero
	breakdown := make(map[string]decimal.Decimal, len(salesByMethod))
	for method, sum := range salesByMethod {
		totalSales = totalSales.Add(sum)
		breakdown[string(method)] = sum
	}

	expected := reg.OpeningFloat.Add(totalSales)
	variance := reg.CurrentBalance.Sub(expected)
	pct := decimal.Zero
	if !expected.IsZero() {
		pct = variance.Div(expected).Mul(decimal.NewFromInt(100)).Round(2)
	}

	report := &dto.CloseReportResponse{
		RegisterID:      reg.ID.String(),
		SessionID:       sessionID.String(),
		State:           string(reg.State),
		OpeningFloat:    reg.OpeningFloat,
		ExpectedBalance: expected,
		RecordedBalance: reg.CurrentBalance,
		Variance: dto.VarianceResponse{
			Amount:         variance,
			Pct:            pct,
			Classification: model.ClassifyVariance(pct),
		},
		SalesByMethod:    breakdown,
		TotalWithdrawals: withdrawals,
		TicketCount:      ticketCount,
		SessionSeconds:   int64(reg.SessionDuration().Seconds()),
		Notes:            notes,
	}
	if reg.OpenedAt != nil {
		report.OpenedAt = reg.OpenedAt.Format("2006-01-02T15:04:05Z")
	}
	if reg.ClosedAt != nil {
		t := reg.ClosedAt.Format("2006-01-02T15:04:05Z")
		report.ClosedAt = &t
	}
	return report, nil
}

func registerToResponse(r *model.Register) *dto.RegisterResponse {
	resp := &dto.RegisterResponse{
		ID:             r.ID.String(),
		BranchID:       r.BranchID.String(),
		Name:           r.Name,
		State:          string(r.State),
		OpeningFloat:   r.OpeningFloat,
		CurrentBalance: r.CurrentBalance,
	}
	if r.SessionID != nil {
		s := r.SessionID.String()
		resp.SessionID = &s
	}
	if r.OpenedAt != nil {
		t := r.OpenedAt.Format("2006-01-02T15:04:05Z")
		resp.OpenedAt = &t
	}
	if r.ClosedAt != nil {
		t := r.ClosedAt.Format("2006-01-02T15:04:05Z")
		resp.ClosedAt = &t
	}
	if r.OpenedBy != nil {
		u := r.OpenedBy.String()
		resp.OpenedBy = &u
	}
	if r.ClosedBy != nil {
		u := r.ClosedBy.String()
		resp.ClosedBy = &u
	}
	return resp
}
