package service

import (
	"context"
	"fmt"

	"tillpos/internal/dto"
	"tillpos/internal/model"
	"tillpos/internal/repository"

	"github.com/google/uuid"
)

type TicketService interface {
	Create(ctx context.Context, cashierID uuid.UUID, req dto.CreateTicketRequest) (*dto.TicketResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.TicketResponse, error)
	ListByRegister(ctx context.Context, registerID uuid.UUID, page, limit int) (*dto.TicketListResponse, error)

	AddLine(ctx context.Context, ticketID uuid.UUID, req dto.LineRequest) (*dto.TicketResponse, error)
	RemoveLine(ctx context.Context, ticketID, lineID uuid.UUID) (*dto.TicketResponse, error)
	UpdateLineQuantity(ctx context.Context, ticketID, lineID uuid.UUID, req dto.UpdateLineQuantityRequest) (*dto.TicketResponse, error)
	ApplyDiscount(ctx context.Context, ticketID uuid.UUID, req dto.DiscountRequest) (*dto.TicketResponse, error)

	MarkPaid(ctx context.Context, ticketID uuid.UUID) (*dto.TicketResponse, error)
	MarkFailed(ctx context.Context, ticketID uuid.UUID) (*dto.TicketResponse, error)
	Cancel(ctx context.Context, ticketID uuid.UUID) (*dto.TicketResponse, error)
	Refund(ctx context.Context, ticketID uuid.UUID) (*dto.TicketResponse, error)
}

type ticketService struct {
	repo         repository.TicketRepository
	registerRepo repository.RegisterRepository
	registers    RegisterService
	tax          model.TaxFunc
}

// NewTicketService builds the ticket aggregate service. The tax function is
// injected so this package carries no tax policy of its own.
func NewTicketService(
	repo repository.TicketRepository,
	registerRepo repository.RegisterRepository,
	registers RegisterService,
	tax model.TaxFunc,
) TicketService {
	if tax == nil {
		tax = model.NoTax
	}
	return &ticketService{repo: repo, registerRepo: registerRepo, registers: registers, tax: tax}
}

// ── Create ────────────────────────────────────────────────────────────────────

func (s *ticketService) Create(ctx context.Context, cashierID uuid.UUID, req dto.CreateTicketRequest) (*dto.TicketResponse, error) {
	registerID, err := uuid.Parse(req.RegisterID)
	if err != nil {
		return nil, fmt.Errorf("invalid register_id: %w", err)
	}

	// Tickets can only be opened against a register that is OPEN right now;
	// ownership is fixed here and never reparented.
	reg, err := s.registerRepo.FindByID(ctx, registerID)
	if err != nil {
		return nil, err
	}
	if reg.State != model.RegisterOpen {
		return nil, &model.InvalidTransitionError{State: reg.State, Op: "create a ticket on"}
	}

	number, err := s.repo.NextTicketNumber(ctx)
	if err != nil {
		return nil, err
	}

	ticket := &model.Ticket{
		ID:            uuid.New(),
		RegisterID:    reg.ID,
		SessionID:     *reg.SessionID,
		TicketNumber:  number,
		PaymentMethod: model.PaymentMethod(req.PaymentMethod),
		PaymentStatus: model.PaymentPending,
		CashierID:     cashierID,
	}
	if req.CustomerID != nil {
		cid, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("invalid customer_id: %w", err)
		}
		ticket.CustomerID = &cid
	}

	for _, lr := range req.Lines {
		if err := s.addLineFromRequest(ticket, lr); err != nil {
			return nil, err
		}
	}
	// A ticket with zero lines rolls up to zero totals.
	if len(req.Lines) == 0 {
		if err := ticket.ApplyPercentDiscount(ticket.DiscountPct, s.tax); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, err
	}
	return ticketToResponse(ticket), nil
}

// ── Line mutations ────────────────────────────────────────────────────────────

func (s *ticketService) AddLine(ctx context.Context, ticketID uuid.UUID, req dto.LineRequest) (*dto.TicketResponse, error) {
	return s.mutateTicket(ctx, ticketID, func(t *model.Ticket) error {
		return s.addLineFromRequest(t, req)
	})
}

func (s *ticketService) RemoveLine(ctx context.Context, ticketID, lineID uuid.UUID) (*dto.TicketResponse, error) {
	return s.mutateTicket(ctx, ticketID, func(t *model.Ticket) error {
		return t.RemoveLine(lineID, s.tax)
	})
}

func (s *ticketService) UpdateLineQuantity(ctx context.Context, ticketID, lineID uuid.UUID, req dto.UpdateLineQuantityRequest) (*dto.TicketResponse, error) {
	return s.mutateTicket(ctx, ticketID, func(t *model.Ticket) error {
		return t.UpdateLineQuantity(lineID, req.Quantity, s.tax)
	})
}

func (s *ticketService) ApplyDiscount(ctx context.Context, ticketID uuid.UUID, req dto.DiscountRequest) (*dto.TicketResponse, error) {
	return s.mutateTicket(ctx, ticketID, func(t *model.Ticket) error {
		return t.ApplyPercentDiscount(req.Pct, s.tax)
	})
}

// ── Payment transitions ───────────────────────────────────────────────────────

// MarkPaid records the sale on the owning register first (which enforces the
// register is still OPEN), then seals the ticket. If the drawer rejects the
// sale the ticket stays PENDING.
func (s *ticketService) MarkPaid(ctx context.Context, ticketID uuid.UUID) (*dto.TicketResponse, error) {
	t, err := s.repo.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.PaymentStatus != model.PaymentPending {
		return nil, model.ErrTicketImmutable
	}

	note := fmt.Sprintf("Ticket #%d", t.TicketNumber)
	if err := s.registers.RecordSale(ctx, t.RegisterID, t.Total, t.PaymentMethod, t.ID, note); err != nil {
		return nil, err
	}
	if err := t.MarkPaid(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	return ticketToResponse(t), nil
}

func (s *ticketService) MarkFailed(ctx context.Context, ticketID uuid.UUID) (*dto.TicketResponse, error) {
	return s.mutateStatus(ctx, ticketID, (*model.Ticket).MarkFailed)
}

func (s *ticketService) Cancel(ctx context.Context, ticketID uuid.UUID) (*dto.TicketResponse, error) {
	return s.mutateStatus(ctx, ticketID, (*model.Ticket).Cancel)
}

// Refund reverses a PAID ticket: the inverse drawer movement lands first (the
// owning session must still be open and hold enough cash), then the status flips.
func (s *ticketService) Refund(ctx context.Context, ticketID uuid.UUID) (*dto.TicketResponse, error) {
	t, err := s.repo.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.PaymentStatus != model.PaymentPaid {
		return nil, model.ErrTicketImmutable
	}

	note := fmt.Sprintf("Refund ticket #%d", t.TicketNumber)
	if err := s.registers.RecordRefund(ctx, t.RegisterID, t.Total, t.PaymentMethod, t.ID, note); err != nil {
		return nil, err
	}
	if err := t.Refund(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	return ticketToResponse(t), nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *ticketService) Get(ctx context.Context, id uuid.UUID) (*dto.TicketResponse, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ticketToResponse(t), nil
}

func (s *ticketService) ListByRegister(ctx context.Context, registerID uuid.UUID, page, limit int) (*dto.TicketListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	tickets, total, err := s.repo.FindByRegister(ctx, registerID, page, limit)
	if err != nil {
		return nil, err
	}
	items := make([]dto.TicketResponse, len(tickets))
	for i := range tickets {
		items[i] = *ticketToResponse(&tickets[i])
	}
	return &dto.TicketListResponse{Data: items, Total: total, Page: page, Limit: limit}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *ticketService) mutateTicket(ctx context.Context, ticketID uuid.UUID, fn func(*model.Ticket) error) (*dto.TicketResponse, error) {
	t, err := s.repo.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	return ticketToResponse(t), nil
}

func (s *ticketService) mutateStatus(ctx context.Context, ticketID uuid.UUID, fn func(*model.Ticket) error) (*dto.TicketResponse, error) {
	return s.mutateTicket(ctx, ticketID, func(t *model.Ticket) error {
		return fn(t)
	})
}

func (s *ticketService) addLineFromRequest(t *model.Ticket, req dto.LineRequest) error {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product_id: %w", err)
	}
	var variantID *uuid.UUID
	if req.VariantID != nil {
		vid, err := uuid.Parse(*req.VariantID)
		if err != nil {
			return fmt.Errorf("invalid variant_id: %w", err)
		}
		variantID = &vid
	}
	_, err = t.AddLine(productID, variantID, req.Quantity, req.UnitPrice, s.tax)
	return err
}

func ticketToResponse(t *model.Ticket) *dto.TicketResponse {
	lines := make([]dto.LineResponse, len(t.Lines))
	for i, l := range t.Lines {
		lines[i] = dto.LineResponse{
			ID:        l.ID.String(),
			ProductID: l.ProductID.String(),
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		}
		if l.VariantID != nil {
			v := l.VariantID.String()
			lines[i].VariantID = &v
		}
	}
	resp := &dto.TicketResponse{
		ID:            t.ID.String(),
		TicketNumber:  t.TicketNumber,
		RegisterID:    t.RegisterID.String(),
		SessionID:     t.SessionID.String(),
		Lines:         lines,
		Subtotal:      t.Subtotal,
		TaxAmount:     t.TaxAmount,
		Total:         t.Total,
		DiscountPct:   t.DiscountPct,
		PaymentMethod: string(t.PaymentMethod),
		PaymentStatus: string(t.PaymentStatus),
		CashierID:     t.CashierID.String(),
		CreatedAt:     t.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if t.CustomerID != nil {
		c := t.CustomerID.String()
		resp.CustomerID = &c
	}
	return resp
}
