package repository

import (
	"context"
	"time"

	"tillpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RegisterRepository interface {
	Create(ctx context.Context, reg *model.Register) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Register, error)
	FindOpenByBranch(ctx context.Context, branchID uuid.UUID) ([]model.Register, error)
	List(ctx context.Context) ([]model.Register, error)
	// SaveVersioned persists the register only if the stored version still
	// matches reg.Version; on success reg.Version is bumped, otherwise
	// ErrVersionConflict is returned and reg is left as read. Any movements
	// passed along are written in the same transaction, so the drawer balance
	// and its ledger never diverge.
	SaveVersioned(ctx context.Context, reg *model.Register, movements ...*model.CashMovement) error
	Delete(ctx context.Context, id uuid.UUID) error

	CreateMovement(ctx context.Context, m *model.CashMovement) error
	ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.CashMovement, error)
	// SumSalesByMethod aggregates sale and refund movements (signed) per
	// payment method for one session.
	SumSalesByMethod(ctx context.Context, sessionID uuid.UUID) (map[model.PaymentMethod]decimal.Decimal, error)
	SumWithdrawals(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error)
	CountTickets(ctx context.Context, sessionID uuid.UUID) (int64, error)

	CreateSession(ctx context.Context, s *model.RegisterSession) error
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.RegisterSession, error)
	ListSessions(ctx context.Context, page, limit int) ([]model.RegisterSession, int64, error)
}

type registerRepo struct{ db *gorm.DB }

func NewRegisterRepository(db *gorm.DB) RegisterRepository { return &registerRepo{db: db} }

func (r *registerRepo) Create(ctx context.Context, reg *model.Register) error {
	return r.db.WithContext(ctx).Create(reg).Error
}

func (r *registerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Register, error) {
	var reg model.Register
	if err := r.db.WithContext(ctx).First(&reg, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &reg, nil
}

func (r *registerRepo) FindOpenByBranch(ctx context.Context, branchID uuid.UUID) ([]model.Register, error) {
	var regs []model.Register
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND state IN ?", branchID, []model.RegisterState{model.RegisterOpen, model.RegisterSuspended}).
		Find(&regs).Error
	return regs, err
}

func (r *registerRepo) List(ctx context.Context) ([]model.Register, error) {
	var regs []model.Register
	err := r.db.WithContext(ctx).Order("name ASC").Find(&regs).Error
	return regs, err
}

func (r *registerRepo) SaveVersioned(ctx context.Context, reg *model.Register, movements ...*model.CashMovement) error {
	readVersion := reg.Version
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Register{}).
			Where("id = ? AND version = ?", reg.ID, readVersion).
			Updates(map[string]interface{}{
				"state":           reg.State,
				"session_id":      reg.SessionID,
				"opening_float":   reg.OpeningFloat,
				"current_balance": reg.CurrentBalance,
				"opened_at":       reg.OpenedAt,
				"closed_at":       reg.ClosedAt,
				"opened_by":       reg.OpenedBy,
				"closed_by":       reg.ClosedBy,
				"version":         readVersion + 1,
				"updated_at":      time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		for _, m := range movements {
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	reg.Version = readVersion + 1
	return nil
}

func (r *registerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.Register{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *registerRepo) CreateMovement(ctx context.Context, m *model.CashMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *registerRepo) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.CashMovement, error) {
	var movs []model.CashMovement
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&movs).Error
	return movs, err
}

func (r *registerRepo) SumSalesByMethod(ctx context.Context, sessionID uuid.UUID) (map[model.PaymentMethod]decimal.Decimal, error) {
	var rows []struct {
		Method model.PaymentMethod
		Total  decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&model.CashMovement{}).
		Select("method, COALESCE(SUM(amount), 0) AS total").
		Where("session_id = ? AND type IN ?", sessionID, []string{model.MovementSale, model.MovementRefund}).
		Group("method").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sums := make(map[model.PaymentMethod]decimal.Decimal, len(rows))
	for _, row := range rows {
		sums[row.Method] = row.Total
	}
	return sums, nil
}

func (r *registerRepo) SumWithdrawals(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error) {
	var row struct{ Total decimal.Decimal }
	err := r.db.WithContext(ctx).Model(&model.CashMovement{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("session_id = ? AND type = ?", sessionID, model.MovementWithdrawal).
		Scan(&row).Error
	// Withdrawals are stored negative; report them as a positive magnitude.
	return row.Total.Neg(), err
}

func (r *registerRepo) CountTickets(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Ticket{}).
		Where("session_id = ?", sessionID).
		Count(&n).Error
	return n, err
}

func (r *registerRepo) CreateSession(ctx context.Context, s *model.RegisterSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *registerRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.RegisterSession, error) {
	var s model.RegisterSession
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *registerRepo) ListSessions(ctx context.Context, page, limit int) ([]model.RegisterSession, int64, error) {
	var sessions []model.RegisterSession
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.RegisterSession{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.WithContext(ctx).
		Order("closed_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sessions).Error
	return sessions, total, err
}
