package domain

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Invitation is the aggregate root for one redeemable code.
//
// State is private: it changes only through Use and Revoke. Storage adapters
// move it in and out with Snapshot and FromSnapshot.
type Invitation struct {
	id         string
	code       Code
	createdBy  string
	createdAt  time.Time
	status     Status
	expiresAt  *time.Time
	usageLimit UsageLimit
	usageCount int
	usedBy     []string
	metadata   map[string]any

	revokedAt        *time.Time
	revokedBy        string
	revocationReason *string
}

// CreateInput describes a new invitation. A nil UsageLimit means single-use.
type CreateInput struct {
	Code       Code
	CreatedBy  string
	ExpiresAt  *time.Time
	UsageLimit *UsageLimit
	Metadata   map[string]any
}

// Create builds an ACTIVE invitation with a fresh id. It does not check code
// uniqueness.
func Create(input CreateInput, now func() time.Time, newID func() string) *Invitation {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}

	limit := SingleUse()
	if input.UsageLimit != nil {
		limit = *input.UsageLimit
	}
	metadata := maps.Clone(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}

	return &Invitation{
		id:         newID(),
		code:       input.Code,
		createdBy:  input.CreatedBy,
		createdAt:  now().UTC(),
		status:     StatusActive,
		expiresAt:  utcTime(input.ExpiresAt),
		usageLimit: limit,
		usedBy:     []string{},
		metadata:   metadata,
	}
}

func (i *Invitation) ID() string                { return i.id }
func (i *Invitation) Code() Code                { return i.code }
func (i *Invitation) CreatedBy() string         { return i.createdBy }
func (i *Invitation) CreatedAt() time.Time      { return i.createdAt }
func (i *Invitation) Status() Status            { return i.status }
func (i *Invitation) ExpiresAt() *time.Time     { return cloneTime(i.expiresAt) }
func (i *Invitation) UsageLimit() UsageLimit    { return i.usageLimit }
func (i *Invitation) UsageCount() int           { return i.usageCount }
func (i *Invitation) UsedBy() []string          { return slices.Clone(i.usedBy) }
func (i *Invitation) Metadata() map[string]any  { return maps.Clone(i.metadata) }
func (i *Invitation) RevokedAt() *time.Time     { return cloneTime(i.revokedAt) }
func (i *Invitation) RevokedBy() string         { return i.revokedBy }
func (i *Invitation) RevocationReason() *string { return cloneString(i.revocationReason) }

// IsExpired reports whether at is on or after the expiry. A zero at means now.
func (i *Invitation) IsExpired(at time.Time) bool {
	if i.expiresAt == nil {
		return false
	}
	if at.IsZero() {
		at = time.Now()
	}
	return !at.Before(*i.expiresAt)
}

func (i *Invitation) IsLimitReached() bool {
	return i.usageLimit.IsReached(i.usageCount)
}

// IsValid reports whether the invitation could be redeemed at the given time.
// It never changes the stored status.
func (i *Invitation) IsValid(at time.Time) bool {
	return i.status == StatusActive && !i.IsExpired(at) && !i.IsLimitReached()
}

// Use redeems one unit of the allowance for usedBy.
//
// An ACTIVE invitation found past its expiry is moved to EXPIRED before
// ErrExpired is returned, so a failed call can still leave a change to save.
func (i *Invitation) Use(usedBy string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}

	if i.status != StatusActive {
		return fmt.Errorf("%w: invitation is %s", ErrAlreadyUsed, i.status)
	}

	if i.IsExpired(at) {
		i.transition(StatusExpired)
		return fmt.Errorf("%w: at %s", ErrExpired, i.expiresAt.UTC().Format(time.RFC3339))
	}

	// Unreachable while the limit flips status to USED below; kept as a guard
	// for snapshots restored in an inconsistent state.
	if i.IsLimitReached() {
		return fmt.Errorf("%w: limit of %s", ErrLimitReached, i.usageLimit)
	}

	i.usageCount++
	i.usedBy = append(i.usedBy, usedBy)
	if i.IsLimitReached() {
		i.transition(StatusUsed)
	}
	return nil
}

// Revoke deactivates the invitation. It reports false and changes nothing when
// the invitation is already revoked; the first revocation wins.
func (i *Invitation) Revoke(revokedBy string, reason *string, at time.Time) bool {
	if !i.transition(StatusRevoked) {
		return false
	}
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()
	i.revokedAt = &at
	i.revokedBy = revokedBy
	i.revocationReason = cloneString(reason)
	return true
}

// RemainingUses returns false when the invitation is unlimited.
func (i *Invitation) RemainingUses() (int, bool) {
	limit, ok := i.usageLimit.Value()
	if !ok {
		return 0, false
	}
	return max(0, limit-i.usageCount), true
}

// RemainingUsesPtr is RemainingUses with nil for unlimited.
func (i *Invitation) RemainingUsesPtr() *int {
	n, ok := i.RemainingUses()
	if !ok {
		return nil
	}
	return &n
}

func (i *Invitation) transition(next Status) bool {
	if !i.status.CanTransitionTo(next) {
		return false
	}
	i.status = next
	return true
}

func (i *Invitation) String() string {
	return fmt.Sprintf("Invitation(id=%s, code=%s, status=%s, usage=%d/%s)",
		i.id, i.code, i.status, i.usageCount, i.usageLimit)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// utcTime copies t in UTC so every store compares expiries in one zone.
func utcTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
