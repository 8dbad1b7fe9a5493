package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/marksvault/internal/service"
	appErrors "github.com/noah-isme/marksvault/pkg/errors"
	"github.com/noah-isme/marksvault/pkg/response"
)

type sessionService interface {
	Status() service.SessionStatus
	Unlock(ctx context.Context, req service.UnlockRequest) (service.SessionStatus, error)
	Lock() (service.SessionStatus, error)
	ChangePassword(ctx context.Context, req service.ChangePasswordRequest) error
}

// SessionHandler exposes the store session lifecycle.
type SessionHandler struct {
	sessions sessionService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions sessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Status godoc
// @Summary Report whether the record store is unlocked
// @Tags Session
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session [get]
func (h *SessionHandler) Status(c *gin.Context) {
	response.OK(c, h.sessions.Status())
}

// Unlock godoc
// @Summary Unlock the record store
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body service.UnlockRequest true "Passphrase"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /session/unlock [post]
func (h *SessionHandler) Unlock(c *gin.Context) {
	var req service.UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	status, err := h.sessions.Unlock(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}

// Lock godoc
// @Summary Seal the working copy and close the session
// @Tags Session
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/lock [post]
func (h *SessionHandler) Lock(c *gin.Context) {
	status, err := h.sessions.Lock()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}

// ChangePassword godoc
// @Summary Rekey the vault under a new passphrase
// @Tags Session
// @Accept json
// @Param payload body service.ChangePasswordRequest true "Passphrases"
// @Success 204
// @Failure 423 {object} response.Envelope
// @Router /session/password [put]
func (h *SessionHandler) ChangePassword(c *gin.Context) {
	var req service.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	if err := h.sessions.ChangePassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusNoContent)
}
