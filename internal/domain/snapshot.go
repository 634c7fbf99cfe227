package domain

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Snapshot is the flat, storage-facing form of an Invitation.
type Snapshot struct {
	ID               string
	Code             string
	CreatedBy        string
	CreatedAt        time.Time
	Status           Status
	ExpiresAt        *time.Time
	UsageLimit       *int
	UsageCount       int
	UsedBy           []string
	Metadata         map[string]any
	RevokedAt        *time.Time
	RevokedBy        string
	RevocationReason *string
}

func (i *Invitation) Snapshot() Snapshot {
	return Snapshot{
		ID:               i.id,
		Code:             i.code.Raw(),
		CreatedBy:        i.createdBy,
		CreatedAt:        i.createdAt,
		Status:           i.status,
		ExpiresAt:        cloneTime(i.expiresAt),
		UsageLimit:       i.usageLimit.Ptr(),
		UsageCount:       i.usageCount,
		UsedBy:           slices.Clone(i.usedBy),
		Metadata:         maps.Clone(i.metadata),
		RevokedAt:        cloneTime(i.revokedAt),
		RevokedBy:        i.revokedBy,
		RevocationReason: cloneString(i.revocationReason),
	}
}

// FromSnapshot rebuilds an Invitation loaded from storage.
func FromSnapshot(s Snapshot) (*Invitation, error) {
	code, err := NewCode(s.Code)
	if err != nil {
		return nil, fmt.Errorf("restore invitation %s: %w", s.ID, err)
	}
	limit, err := UsageLimitFromPtr(s.UsageLimit)
	if err != nil {
		return nil, fmt.Errorf("restore invitation %s: %w", s.ID, err)
	}
	if !s.Status.IsValid() {
		return nil, fmt.Errorf("restore invitation %s: unknown status %q", s.ID, s.Status)
	}

	usedBy := slices.Clone(s.UsedBy)
	if usedBy == nil {
		usedBy = []string{}
	}
	metadata := maps.Clone(s.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}

	return &Invitation{
		id:               s.ID,
		code:             code,
		createdBy:        s.CreatedBy,
		createdAt:        s.CreatedAt,
		status:           s.Status,
		expiresAt:        cloneTime(s.ExpiresAt),
		usageLimit:       limit,
		usageCount:       s.UsageCount,
		usedBy:           usedBy,
		metadata:         metadata,
		revokedAt:        cloneTime(s.RevokedAt),
		revokedBy:        s.RevokedBy,
		revocationReason: cloneString(s.RevocationReason),
	}, nil
}
