package repository

import (
	"context"

	"tillpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TicketRepository interface {
	Create(ctx context.Context, t *model.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	FindByRegister(ctx context.Context, registerID uuid.UUID, page, limit int) ([]model.Ticket, int64, error)
	// Save replaces the ticket row and its full line set atomically, so
	// removed lines disappear from storage along with the updated roll-up.
	Save(ctx context.Context, t *model.Ticket) error
	// NextTicketNumber allocates the next system-wide ticket number from the
	// ticket_number_seq sequence.
	NextTicketNumber(ctx context.Context) (int64, error)
}

type ticketRepo struct{ db *gorm.DB }

func NewTicketRepository(db *gorm.DB) TicketRepository { return &ticketRepo{db: db} }

func (r *ticketRepo) Create(ctx context.Context, t *model.Ticket) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *ticketRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	var t model.Ticket
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("sale_lines.created_at ASC") }).
		First(&t, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *ticketRepo) FindByRegister(ctx context.Context, registerID uuid.UUID, page, limit int) ([]model.Ticket, int64, error) {
	var tickets []model.Ticket
	var total int64
	q := r.db.WithContext(ctx).Model(&model.Ticket{}).Where("register_id = ?", registerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Lines").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&tickets).Error
	return tickets, total, err
}

func (r *ticketRepo) Save(ctx context.Context, t *model.Ticket) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ticket_id = ?", t.ID).Delete(&model.SaleLine{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(t).Error
	})
}

func (r *ticketRepo) NextTicketNumber(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Raw("SELECT nextval('ticket_number_seq')").Scan(&n).Error
	return n, err
}
