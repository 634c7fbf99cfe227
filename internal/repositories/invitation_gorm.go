package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Morgiver/invitation-core/internal/domain"
	"github.com/Morgiver/invitation-core/internal/models"
)

// GormInvitationRepository stores invitations in one relational table. It
// runs on postgres in production and on sqlite for local use and tests.
type GormInvitationRepository struct {
	db *gorm.DB
}

func NewGormInvitationRepository(db *gorm.DB) *GormInvitationRepository {
	return &GormInvitationRepository{db: db}
}

// Save inserts or updates by id inside one transaction. A code owned by a
// different id is rejected with ErrAlreadyExists.
func (r *GormInvitationRepository) Save(ctx context.Context, inv *domain.Invitation) (*domain.Invitation, error) {
	row := models.NewInvitation(inv.Snapshot())

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owners []models.Invitation
		if err := tx.Select("id").Where("code_key = ?", row.CodeKey).Limit(1).Find(&owners).Error; err != nil {
			return err
		}
		if len(owners) > 0 && owners[0].ID != row.ID {
			return fmt.Errorf("code %s: %w", row.CodeKey, domain.ErrAlreadyExists)
		}

		var existing int64
		if err := tx.Model(&models.Invitation{}).Where("id = ?", row.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			return tx.Create(row).Error
		}
		// Select("*") so zero values such as a cleared expiry are written too.
		return tx.Model(row).Select("*").Omit("created_at").Updates(row).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("code %s: %w", row.CodeKey, domain.ErrAlreadyExists)
	}
	if err != nil {
		return nil, err
	}
	return domain.FromSnapshot(row.Snapshot())
}

func (r *GormInvitationRepository) FindByID(ctx context.Context, id string) (*domain.Invitation, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *GormInvitationRepository) FindByCode(ctx context.Context, code domain.Code) (*domain.Invitation, error) {
	return r.first(r.db.WithContext(ctx).Where("code_key = ?", code.Key()))
}

func (r *GormInvitationRepository) ExistsByCode(ctx context.Context, code domain.Code) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("code_key = ?", code.Key()).
		Count(&count).Error
	return count > 0, err
}

func (r *GormInvitationRepository) FindByCreator(ctx context.Context, userID string) ([]*domain.Invitation, error) {
	return r.find(r.db.WithContext(ctx).
		Where("created_by = ?", userID).
		Order("created_at DESC").Order("id"))
}

func (r *GormInvitationRepository) FindByStatus(ctx context.Context, status domain.Status) ([]*domain.Invitation, error) {
	return r.find(r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at DESC").Order("id"))
}

func (r *GormInvitationRepository) FindExpired(ctx context.Context, at time.Time) ([]*domain.Invitation, error) {
	return r.find(r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", at.UTC()).
		Order("expires_at DESC").Order("id"))
}

func (r *GormInvitationRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Invitation{})
	return res.RowsAffected > 0, res.Error
}

func (r *GormInvitationRepository) CountByStatus(ctx context.Context, status domain.Status) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("status = ?", string(status)).
		Count(&count).Error
	return count, err
}

func (r *GormInvitationRepository) first(q *gorm.DB) (*domain.Invitation, error) {
	var row models.Invitation
	err := q.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return domain.FromSnapshot(row.Snapshot())
}

func (r *GormInvitationRepository) find(q *gorm.DB) ([]*domain.Invitation, error) {
	var rows []models.Invitation
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Invitation, 0, len(rows))
	for i := range rows {
		inv, err := domain.FromSnapshot(rows[i].Snapshot())
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}
