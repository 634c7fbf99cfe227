package repositories

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Morgiver/invitation-core/internal/domain"
)

// MemoryInvitationRepository keeps snapshots in maps. The lock protects the
// maps only: two callers that load, mutate and save the same invitation still
// race, last write wins.
type MemoryInvitationRepository struct {
	mu     sync.RWMutex
	byID   map[string]domain.Snapshot
	byCode map[string]string
}

func NewMemoryInvitationRepository() *MemoryInvitationRepository {
	return &MemoryInvitationRepository{
		byID:   make(map[string]domain.Snapshot),
		byCode: make(map[string]string),
	}
}

func (r *MemoryInvitationRepository) Save(_ context.Context, inv *domain.Invitation) (*domain.Invitation, error) {
	snap := inv.Snapshot()
	key := inv.Code().Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byCode[key]; ok && owner != snap.ID {
		return nil, fmt.Errorf("code %s: %w", key, domain.ErrAlreadyExists)
	}
	if prev, ok := r.byID[snap.ID]; ok {
		delete(r.byCode, domain.MustCode(prev.Code).Key())
	}
	r.byID[snap.ID] = snap
	r.byCode[key] = snap.ID
	return domain.FromSnapshot(snap)
}

func (r *MemoryInvitationRepository) FindByID(_ context.Context, id string) (*domain.Invitation, error) {
	r.mu.RLock()
	snap, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return domain.FromSnapshot(snap)
}

func (r *MemoryInvitationRepository) FindByCode(_ context.Context, code domain.Code) (*domain.Invitation, error) {
	r.mu.RLock()
	id, ok := r.byCode[code.Key()]
	snap := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return domain.FromSnapshot(snap)
}

func (r *MemoryInvitationRepository) ExistsByCode(_ context.Context, code domain.Code) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byCode[code.Key()]
	return ok, nil
}

func (r *MemoryInvitationRepository) FindByCreator(_ context.Context, userID string) ([]*domain.Invitation, error) {
	snaps := r.filter(func(s domain.Snapshot) bool { return s.CreatedBy == userID })
	sortNewestFirst(snaps)
	return restoreAll(snaps)
}

func (r *MemoryInvitationRepository) FindByStatus(_ context.Context, status domain.Status) ([]*domain.Invitation, error) {
	snaps := r.filter(func(s domain.Snapshot) bool { return s.Status == status })
	sortNewestFirst(snaps)
	return restoreAll(snaps)
}

func (r *MemoryInvitationRepository) FindExpired(_ context.Context, at time.Time) ([]*domain.Invitation, error) {
	snaps := r.filter(func(s domain.Snapshot) bool {
		return s.ExpiresAt != nil && !at.Before(*s.ExpiresAt)
	})
	slices.SortFunc(snaps, func(a, b domain.Snapshot) int {
		if c := b.ExpiresAt.Compare(*a.ExpiresAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return restoreAll(snaps)
}

func (r *MemoryInvitationRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	delete(r.byID, id)
	delete(r.byCode, domain.MustCode(snap.Code).Key())
	return true, nil
}

func (r *MemoryInvitationRepository) CountByStatus(_ context.Context, status domain.Status) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, s := range r.byID {
		if s.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *MemoryInvitationRepository) filter(keep func(domain.Snapshot) bool) []domain.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Snapshot
	for _, s := range r.byID {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func sortNewestFirst(snaps []domain.Snapshot) {
	slices.SortFunc(snaps, func(a, b domain.Snapshot) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func restoreAll(snaps []domain.Snapshot) ([]*domain.Invitation, error) {
	out := make([]*domain.Invitation, 0, len(snaps))
	for _, s := range snaps {
		inv, err := domain.FromSnapshot(s)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}
