package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/Morgiver/invitation-core/internal/domain"
)

// Invitation is the relational row for domain.Invitation. CodeKey holds the
// upper-cased code so uniqueness is case-insensitive on every dialect.
type Invitation struct {
	ID               string                      `gorm:"primaryKey;size:36" json:"id"`
	Code             string                      `gorm:"size:32;not null" json:"code"`
	CodeKey          string                      `gorm:"uniqueIndex;size:32;not null" json:"-"`
	CreatedBy        string                      `gorm:"index;not null" json:"created_by"`
	CreatedAt        time.Time                   `gorm:"index" json:"created_at"`
	Status           string                      `gorm:"index;size:16;not null" json:"status"`
	ExpiresAt        *time.Time                  `gorm:"index" json:"expires_at"`
	UsageLimit       *int                        `json:"usage_limit"`
	UsageCount       int                         `gorm:"not null;default:0" json:"usage_count"`
	UsedBy           datatypes.JSONSlice[string] `json:"used_by"`
	Metadata         datatypes.JSONMap           `json:"metadata"`
	RevokedAt        *time.Time                  `json:"revoked_at"`
	RevokedBy        string                      `json:"revoked_by"`
	RevocationReason *string                     `gorm:"size:500" json:"revocation_reason"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

func (Invitation) TableName() string {
	return "invitations"
}

func NewInvitation(s domain.Snapshot) *Invitation {
	return &Invitation{
		ID:               s.ID,
		Code:             s.Code,
		CodeKey:          strings.ToUpper(s.Code),
		CreatedBy:        s.CreatedBy,
		CreatedAt:        s.CreatedAt.UTC(),
		Status:           string(s.Status),
		ExpiresAt:        utcPtr(s.ExpiresAt),
		UsageLimit:       s.UsageLimit,
		UsageCount:       s.UsageCount,
		UsedBy:           datatypes.JSONSlice[string](s.UsedBy),
		Metadata:         datatypes.JSONMap(s.Metadata),
		RevokedAt:        utcPtr(s.RevokedAt),
		RevokedBy:        s.RevokedBy,
		RevocationReason: s.RevocationReason,
	}
}

// Snapshot converts the row back; times are normalised to UTC since drivers
// differ in the location they scan into.
func (m *Invitation) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		ID:               m.ID,
		Code:             m.Code,
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt.UTC(),
		Status:           domain.Status(m.Status),
		ExpiresAt:        utcPtr(m.ExpiresAt),
		UsageLimit:       m.UsageLimit,
		UsageCount:       m.UsageCount,
		UsedBy:           []string(m.UsedBy),
		Metadata:         map[string]any(m.Metadata),
		RevokedAt:        utcPtr(m.RevokedAt),
		RevokedBy:        m.RevokedBy,
		RevocationReason: m.RevocationReason,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
