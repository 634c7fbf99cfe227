package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Morgiver/invitation-core/internal/domain"
	logger "github.com/Morgiver/invitation-core/middleware/log"
)

// Validation reasons reported by ValidateInvitation.
const (
	ReasonNotFound     = "not found"
	ReasonExpired      = "has expired"
	ReasonLimitReached = "usage limit reached"
)

// InvitationService orchestrates the invitation lifecycle: it loads the
// aggregate, applies one behaviour, saves it and publishes what happened.
// Domain errors are returned unmodified apart from added context; match them
// with errors.Is.
type InvitationService struct {
	repo      domain.InvitationRepository
	publisher domain.EventPublisher
	logger    *logger.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*InvitationService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *InvitationService) { s.now = now }
}

// WithIDGenerator replaces the uuid generator used for new invitations.
func WithIDGenerator(newID func() string) Option {
	return func(s *InvitationService) { s.newID = newID }
}

// NewInvitationService builds the service. publisher may be nil, which turns
// event publication off.
func NewInvitationService(repo domain.InvitationRepository, publisher domain.EventPublisher, log *logger.Logger, opts ...Option) *InvitationService {
	s := &InvitationService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.OrNop(log).Named("invitation_service"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInvitationRequest struct {
	Code      string     `json:"code" binding:"required,min=6,max=32"`
	CreatedBy string     `json:"created_by" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at" binding:"omitempty,future"`
	// UsageLimit nil means single-use unless Unlimited is set.
	UsageLimit *int           `json:"usage_limit" binding:"omitempty,min=1"`
	Unlimited  bool           `json:"unlimited"`
	Metadata   map[string]any `json:"metadata"`
}

type UseInvitationRequest struct {
	Code   string `json:"code" binding:"required,min=6,max=32"`
	UsedBy string `json:"used_by" binding:"required"`
}

type ValidateInvitationRequest struct {
	Code string `json:"code" binding:"required,min=6,max=32"`
}

type RevokeInvitationRequest struct {
	InvitationID string  `json:"-"`
	RevokedBy    string  `json:"revoked_by" binding:"required"`
	Reason       *string `json:"reason" binding:"omitempty,max=500"`
}

type InvitationResponse struct {
	ID               string         `json:"id"`
	Code             string         `json:"code"`
	Status           domain.Status  `json:"status"`
	CreatedBy        string         `json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
	ExpiresAt        *time.Time     `json:"expires_at"`
	UsageLimit       *int           `json:"usage_limit"`
	UsageCount       int            `json:"usage_count"`
	RemainingUses    *int           `json:"remaining_uses"`
	UsedBy           []string       `json:"used_by"`
	Metadata         map[string]any `json:"metadata"`
	RevokedAt        *time.Time     `json:"revoked_at"`
	RevokedBy        string         `json:"revoked_by,omitempty"`
	RevocationReason *string        `json:"revocation_reason"`
}

type UsageResponse struct {
	InvitationID  string `json:"invitation_id"`
	Code          string `json:"code"`
	UsedBy        string `json:"used_by"`
	UsageCount    int    `json:"usage_count"`
	RemainingUses *int   `json:"remaining_uses"`
	IsExhausted   bool   `json:"is_exhausted"`
}

// ValidationResponse leaves Status empty when the code is unknown.
type ValidationResponse struct {
	Valid         bool          `json:"is_valid"`
	Code          string        `json:"code"`
	Status        domain.Status `json:"status,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	RemainingUses *int          `json:"remaining_uses"`
	ExpiresAt     *time.Time    `json:"expires_at"`
}

type StatsResponse struct {
	Total   int64 `json:"total"`
	Active  int64 `json:"active"`
	Used    int64 `json:"used"`
	Expired int64 `json:"expired"`
	Revoked int64 `json:"revoked"`
}

func NewInvitationResponse(inv *domain.Invitation) *InvitationResponse {
	return &InvitationResponse{
		ID:               inv.ID(),
		Code:             inv.Code().String(),
		Status:           inv.Status(),
		CreatedBy:        inv.CreatedBy(),
		CreatedAt:        inv.CreatedAt(),
		ExpiresAt:        inv.ExpiresAt(),
		UsageLimit:       inv.UsageLimit().Ptr(),
		UsageCount:       inv.UsageCount(),
		RemainingUses:    inv.RemainingUsesPtr(),
		UsedBy:           inv.UsedBy(),
		Metadata:         inv.Metadata(),
		RevokedAt:        inv.RevokedAt(),
		RevokedBy:        inv.RevokedBy(),
		RevocationReason: inv.RevocationReason(),
	}
}

func newInvitationResponses(invs []*domain.Invitation) []*InvitationResponse {
	resp := make([]*InvitationResponse, 0, len(invs))
	for _, inv := range invs {
		resp = append(resp, NewInvitationResponse(inv))
	}
	return resp
}

// CreateInvitation registers a new code. It fails with ErrInvalidCode,
// ErrInvalidUsageLimit or ErrAlreadyExists.
func (s *InvitationService) CreateInvitation(ctx context.Context, req *CreateInvitationRequest) (*InvitationResponse, error) {
	code, err := domain.NewCode(req.Code)
	if err != nil {
		return nil, err
	}
	limit, err := requestedLimit(req)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to check invitation code: %w", err)
	}
	if exists {
		s.logger.WarnContext(ctx, "invitation code already exists", zap.Stringer("code", code))
		return nil, fmt.Errorf("code %q: %w", code, domain.ErrAlreadyExists)
	}

	inv := domain.Create(domain.CreateInput{
		Code:       code,
		CreatedBy:  req.CreatedBy,
		ExpiresAt:  req.ExpiresAt,
		UsageLimit: limit,
		Metadata:   req.Metadata,
	}, s.now, s.newID)

	saved, err := s.repo.Save(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("failed to save invitation: %w", err)
	}

	s.publish(ctx, domain.Created{
		ID:         saved.ID(),
		Code:       saved.Code().String(),
		CreatedBy:  saved.CreatedBy(),
		CreatedAt:  saved.CreatedAt(),
		ExpiresAt:  saved.ExpiresAt(),
		UsageLimit: saved.UsageLimit().Ptr(),
		Metadata:   saved.Metadata(),
	})

	s.logger.InfoContext(ctx, "invitation created",
		zap.String("invitation_id", saved.ID()),
		zap.Stringer("code", saved.Code()),
		zap.Stringer("usage_limit", saved.UsageLimit()),
	)
	return NewInvitationResponse(saved), nil
}

func requestedLimit(req *CreateInvitationRequest) (*domain.UsageLimit, error) {
	switch {
	case req.Unlimited && req.UsageLimit != nil:
		return nil, fmt.Errorf("%w: usage_limit and unlimited are mutually exclusive", domain.ErrInvalidUsageLimit)
	case req.Unlimited:
		l := domain.Unlimited()
		return &l, nil
	case req.UsageLimit != nil:
		l, err := domain.NewUsageLimit(*req.UsageLimit)
		if err != nil {
			return nil, err
		}
		return &l, nil
	}
	return nil, nil
}

// UseInvitation redeems one use of a code.
//
// When the invitation turns out to be past its expiry it is saved as EXPIRED
// and ErrExpired is returned: the call fails but the status change persists.
func (s *InvitationService) UseInvitation(ctx context.Context, req *UseInvitationRequest) (*UsageResponse, error) {
	code, err := domain.NewCode(req.Code)
	if err != nil {
		return nil, err
	}
	inv, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	limitReachedBefore := inv.IsLimitReached()
	statusBefore := inv.Status()
	usedAt := s.now().UTC()

	if useErr := inv.Use(req.UsedBy, usedAt); useErr != nil {
		s.logger.WarnContext(ctx, "invitation use rejected",
			zap.String("invitation_id", inv.ID()),
			zap.String("status", string(inv.Status())),
			zap.Error(useErr),
		)
		if inv.Status() != statusBefore {
			if _, saveErr := s.repo.Save(ctx, inv); saveErr != nil {
				return nil, errors.Join(useErr, fmt.Errorf("failed to save invitation: %w", saveErr))
			}
		}
		return nil, useErr
	}

	saved, err := s.repo.Save(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("failed to save invitation: %w", err)
	}

	exhausted := saved.Status() == domain.StatusUsed
	s.publish(ctx, domain.Used{
		ID:            saved.ID(),
		Code:          saved.Code().String(),
		UsedBy:        req.UsedBy,
		UsedAt:        usedAt,
		UsageCount:    saved.UsageCount(),
		RemainingUses: saved.RemainingUsesPtr(),
		IsExhausted:   exhausted,
	})
	if !limitReachedBefore && saved.IsLimitReached() {
		limit, _ := saved.UsageLimit().Value()
		s.publish(ctx, domain.LimitReached{
			ID:          saved.ID(),
			Code:        saved.Code().String(),
			UsageLimit:  limit,
			FinalUsedBy: req.UsedBy,
			ReachedAt:   usedAt,
		})
	}

	s.logger.InfoContext(ctx, "invitation used",
		zap.String("invitation_id", saved.ID()),
		zap.String("used_by", req.UsedBy),
		zap.Int("usage_count", saved.UsageCount()),
		zap.Stringer("usage_limit", saved.UsageLimit()),
	)
	return &UsageResponse{
		InvitationID:  saved.ID(),
		Code:          saved.Code().String(),
		UsedBy:        req.UsedBy,
		UsageCount:    saved.UsageCount(),
		RemainingUses: saved.RemainingUsesPtr(),
		IsExhausted:   exhausted,
	}, nil
}

// ValidateInvitation reports whether a code could be redeemed now, without
// changing anything. An unknown code is a negative answer, not an error.
func (s *InvitationService) ValidateInvitation(ctx context.Context, req *ValidateInvitationRequest) (*ValidationResponse, error) {
	code, err := domain.NewCode(req.Code)
	if err != nil {
		return nil, err
	}
	inv, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load invitation: %w", err)
	}
	if inv == nil {
		return &ValidationResponse{Valid: false, Code: code.String(), Reason: ReasonNotFound}, nil
	}

	now := s.now()
	resp := &ValidationResponse{
		Valid:         inv.IsValid(now),
		Code:          code.String(),
		Status:        inv.Status(),
		RemainingUses: inv.RemainingUsesPtr(),
		ExpiresAt:     inv.ExpiresAt(),
	}
	if !resp.Valid {
		switch {
		case inv.Status() != domain.StatusActive:
			resp.Reason = "is " + string(inv.Status())
		case inv.IsExpired(now):
			resp.Reason = ReasonExpired
		case inv.IsLimitReached():
			resp.Reason = ReasonLimitReached
		}
	}

	s.logger.DebugContext(ctx, "invitation validated",
		zap.Stringer("code", code),
		zap.Bool("valid", resp.Valid),
		zap.String("reason", resp.Reason),
	)
	return resp, nil
}

// RevokeInvitation deactivates an invitation. Revoking twice keeps the first
// revocation's data; the second call still saves and publishes it.
func (s *InvitationService) RevokeInvitation(ctx context.Context, req *RevokeInvitationRequest) (*InvitationResponse, error) {
	inv, err := s.findByID(ctx, req.InvitationID)
	if err != nil {
		return nil, err
	}

	if !inv.Revoke(req.RevokedBy, req.Reason, s.now()) {
		s.logger.WarnContext(ctx, "invitation already revoked", zap.String("invitation_id", inv.ID()))
	}

	saved, err := s.repo.Save(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("failed to save invitation: %w", err)
	}

	revokedAt := s.now().UTC()
	if at := saved.RevokedAt(); at != nil {
		revokedAt = *at
	}
	s.publish(ctx, domain.Revoked{
		ID:        saved.ID(),
		Code:      saved.Code().String(),
		RevokedBy: saved.RevokedBy(),
		RevokedAt: revokedAt,
		Reason:    saved.RevocationReason(),
	})

	s.logger.InfoContext(ctx, "invitation revoked",
		zap.String("invitation_id", saved.ID()),
		zap.String("revoked_by", saved.RevokedBy()),
	)
	return NewInvitationResponse(saved), nil
}

func (s *InvitationService) GetInvitationByID(ctx context.Context, id string) (*InvitationResponse, error) {
	inv, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewInvitationResponse(inv), nil
}

func (s *InvitationService) GetInvitationByCode(ctx context.Context, raw string) (*InvitationResponse, error) {
	code, err := domain.NewCode(raw)
	if err != nil {
		return nil, err
	}
	inv, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return NewInvitationResponse(inv), nil
}

// GetInvitationsByCreator lists a user's invitations, newest first.
func (s *InvitationService) GetInvitationsByCreator(ctx context.Context, userID string) ([]*InvitationResponse, error) {
	invs, err := s.repo.FindByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations by creator: %w", err)
	}
	return newInvitationResponses(invs), nil
}

func (s *InvitationService) GetInvitationsByStatus(ctx context.Context, status domain.Status) ([]*InvitationResponse, error) {
	invs, err := s.repo.FindByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations by status: %w", err)
	}
	return newInvitationResponses(invs), nil
}

// GetInvitationStats counts invitations by stored status. Invitations that
// are past expiry but were never used after it still count as active.
func (s *InvitationService) GetInvitationStats(ctx context.Context) (*StatsResponse, error) {
	counts := make(map[domain.Status]int64, len(domain.Statuses))
	for _, status := range domain.Statuses {
		n, err := s.repo.CountByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s invitations: %w", status, err)
		}
		counts[status] = n
	}

	resp := &StatsResponse{
		Active:  counts[domain.StatusActive],
		Used:    counts[domain.StatusUsed],
		Expired: counts[domain.StatusExpired],
		Revoked: counts[domain.StatusRevoked],
	}
	resp.Total = resp.Active + resp.Used + resp.Expired + resp.Revoked
	return resp, nil
}

func (s *InvitationService) findByID(ctx context.Context, id string) (*domain.Invitation, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load invitation: %w", err)
	}
	if inv == nil {
		return nil, fmt.Errorf("invitation with id %q: %w", id, domain.ErrNotFound)
	}
	return inv, nil
}

func (s *InvitationService) findByCode(ctx context.Context, code domain.Code) (*domain.Invitation, error) {
	inv, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load invitation: %w", err)
	}
	if inv == nil {
		return nil, fmt.Errorf("invitation with code %q: %w", code, domain.ErrNotFound)
	}
	return inv, nil
}

func (s *InvitationService) publish(ctx context.Context, event domain.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, event)
	s.logger.DebugContext(ctx, "event published",
		zap.String("kind", string(event.Kind())),
		zap.String("invitation_id", event.InvitationID()),
	)
}
