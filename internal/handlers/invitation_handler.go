package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Morgiver/invitation-core/internal/domain"
	"github.com/Morgiver/invitation-core/internal/services"
	logger "github.com/Morgiver/invitation-core/middleware/log"
)

type InvitationHandler struct {
	InvitationService *services.InvitationService
	logger            *logger.Logger
}

// NewInvitationHandler fails when the binding rules the request types rely
// on cannot be installed; binding would panic on them later.
func NewInvitationHandler(invitationService *services.InvitationService, log *logger.Logger) (*InvitationHandler, error) {
	if err := registerValidators(); err != nil {
		return nil, err
	}
	return &InvitationHandler{
		InvitationService: invitationService,
		logger:            logger.OrNop(log).Named("invitation_handler"),
	}, nil
}

const futureTag = "future"

var registerValidators = sync.OnceValue(func() error {
	return registerFuture(binding.Validator.Engine())
})

// registerFuture adds the "future" rule: a time field tagged with it must lie
// after the moment of binding.
func registerFuture(engine any) error {
	v, ok := engine.(*validator.Validate)
	if !ok {
		return fmt.Errorf("failed to register %q rule: unsupported validator engine %T", futureTag, engine)
	}
	err := v.RegisterValidation(futureTag, func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		return ok && t.After(time.Now())
	})
	if err != nil {
		return fmt.Errorf("failed to register %q rule: %w", futureTag, err)
	}
	return nil
}

// CreateInvitation handles POST /api/v1/invitations.
func (h *InvitationHandler) CreateInvitation(c *gin.Context) {
	var req services.CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.InvitationService.CreateInvitation(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *InvitationHandler) GetInvitation(c *gin.Context) {
	resp, err := h.InvitationService.GetInvitationByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InvitationHandler) GetInvitationByCode(c *gin.Context) {
	resp, err := h.InvitationService.GetInvitationByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ValidateInvitation always answers 200 for a well-formed code; the verdict
// is in the body.
func (h *InvitationHandler) ValidateInvitation(c *gin.Context) {
	var req services.ValidateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.InvitationService.ValidateInvitation(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InvitationHandler) UseInvitation(c *gin.Context) {
	var req services.UseInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.InvitationService.UseInvitation(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RevokeInvitation handles POST /api/v1/invitations/:id/revoke.
func (h *InvitationHandler) RevokeInvitation(c *gin.Context) {
	var req services.RevokeInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.InvitationID = c.Param("id")

	resp, err := h.InvitationService.RevokeInvitation(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InvitationHandler) GetInvitationsByCreator(c *gin.Context) {
	resp, err := h.InvitationService.GetInvitationsByCreator(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListInvitations handles GET /api/v1/invitations?status=active.
func (h *InvitationHandler) ListInvitations(c *gin.Context) {
	status, err := domain.ParseStatus(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.InvitationService.GetInvitationsByStatus(c.Request.Context(), status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InvitationHandler) GetStats(c *gin.Context) {
	resp, err := h.InvitationService.GetInvitationStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InvitationHandler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "request failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidCode), errors.Is(err, domain.ErrInvalidUsageLimit):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrAlreadyUsed), errors.Is(err, domain.ErrLimitReached):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
