package domain

import "time"

// EventKind tags each member of the closed set of invitation events.
type EventKind string

const (
	KindCreated      EventKind = "invitation.created"
	KindUsed         EventKind = "invitation.used"
	KindRevoked      EventKind = "invitation.revoked"
	KindLimitReached EventKind = "invitation.limit_reached"
	KindExpired      EventKind = "invitation.expired"
)

// EventKinds lists every kind a subscriber may have to handle.
var EventKinds = []EventKind{KindCreated, KindUsed, KindRevoked, KindLimitReached, KindExpired}

// Event is implemented only by the types in this file, so a type switch over
// them is exhaustive.
type Event interface {
	Kind() EventKind
	InvitationID() string
	OccurredAt() time.Time
	sealed()
}

type Created struct {
	ID         string         `json:"invitation_id"`
	Code       string         `json:"code"`
	CreatedBy  string         `json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  *time.Time     `json:"expires_at"`
	UsageLimit *int           `json:"usage_limit"`
	Metadata   map[string]any `json:"metadata"`
}

type Used struct {
	ID            string    `json:"invitation_id"`
	Code          string    `json:"code"`
	UsedBy        string    `json:"used_by"`
	UsedAt        time.Time `json:"used_at"`
	UsageCount    int       `json:"usage_count"`
	RemainingUses *int      `json:"remaining_uses"`
	IsExhausted   bool      `json:"is_exhausted"`
}

type Revoked struct {
	ID        string    `json:"invitation_id"`
	Code      string    `json:"code"`
	RevokedBy string    `json:"revoked_by"`
	RevokedAt time.Time `json:"revoked_at"`
	Reason    *string   `json:"reason"`
}

type LimitReached struct {
	ID          string    `json:"invitation_id"`
	Code        string    `json:"code"`
	UsageLimit  int       `json:"usage_limit"`
	FinalUsedBy string    `json:"final_used_by"`
	ReachedAt   time.Time `json:"reached_at"`
}

// Expired is part of the vocabulary but nothing emits it yet: expiry is only
// discovered inside Use and there is no sweeper.
type Expired struct {
	ID        string    `json:"invitation_id"`
	Code      string    `json:"code"`
	ExpiredAt time.Time `json:"expired_at"`
}

func (Created) Kind() EventKind      { return KindCreated }
func (Used) Kind() EventKind         { return KindUsed }
func (Revoked) Kind() EventKind      { return KindRevoked }
func (LimitReached) Kind() EventKind { return KindLimitReached }
func (Expired) Kind() EventKind      { return KindExpired }

func (e Created) InvitationID() string      { return e.ID }
func (e Used) InvitationID() string         { return e.ID }
func (e Revoked) InvitationID() string      { return e.ID }
func (e LimitReached) InvitationID() string { return e.ID }
func (e Expired) InvitationID() string      { return e.ID }

func (e Created) OccurredAt() time.Time      { return e.CreatedAt }
func (e Used) OccurredAt() time.Time         { return e.UsedAt }
func (e Revoked) OccurredAt() time.Time      { return e.RevokedAt }
func (e LimitReached) OccurredAt() time.Time { return e.ReachedAt }
func (e Expired) OccurredAt() time.Time      { return e.ExpiredAt }

func (Created) sealed()      {}
func (Used) sealed()         {}
func (Revoked) sealed()      {}
func (LimitReached) sealed() {}
func (Expired) sealed()      {}
