package handlers

import (
	goerrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soleron/sessiond/internal/domain/models"
	"github.com/soleron/sessiond/internal/domain/service"
	"github.com/soleron/sessiond/pkg/constants"
	"github.com/soleron/sessiond/pkg/errors"
)

// SessionHandler exposes the account-management session operations: listing
// active devices, refreshing a token pair, and revoking sessions.
type SessionHandler struct {
	lifecycle *service.SessionLifecycleService
}

// NewSessionHandler creates the session handler.
func NewSessionHandler(lifecycle *service.SessionLifecycleService) *SessionHandler {
	return &SessionHandler{lifecycle: lifecycle}
}

type sessionView struct {
	ID           string `json:"id"`
	IPAddress    string `json:"ip_address,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	LastActivity string `json:"last_activity"`
	CreatedAt    string `json:"created_at"`
	Current      bool   `json:"current"`
}

// List enumerates the caller's active sessions ("active devices" view).
func (h *SessionHandler) List(c *gin.Context) {
	current := currentSession(c)
	if current == nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	sessions, err := h.lifecycle.FindActiveByUser(c.Request.Context(), current.UserID)
	if err != nil {
		abortWithAppError(c, err)
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{
			ID:           s.ID,
			IPAddress:    s.IPAddress,
			UserAgent:    s.UserAgent,
			LastActivity: s.LastActivity.UTC().Format(timeLayout),
			CreatedAt:    s.CreatedAt.UTC().Format(timeLayout),
			Current:      s.ID == current.ID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates a token pair. An unknown, expired, or already-rotated
// refresh token yields 401.
func (h *SessionHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errors.CodeInvalidArgument})
		return
	}

	session, err := h.lifecycle.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":         session.Token,
		"refresh_token": session.RefreshToken,
		"expires_at":    session.ExpiresAt.UTC().Format(timeLayout),
	})
}

// Revoke marks one of the caller's sessions inactive (logout of a device).
func (h *SessionHandler) Revoke(c *gin.Context) {
	current := currentSession(c)
	if current == nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	id := c.Param("id")
	// Only the owner may revoke; look the target up to verify ownership.
	sessions, err := h.lifecycle.FindActiveByUser(c.Request.Context(), current.UserID)
	if err != nil {
		abortWithAppError(c, err)
		return
	}
	owned := false
	for _, s := range sessions {
		if s.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	if err := h.lifecycle.Revoke(c.Request.Context(), id); err != nil {
		abortWithAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RevokeAll revokes every session the caller owns ("log out everywhere").
func (h *SessionHandler) RevokeAll(c *gin.Context) {
	current := currentSession(c)
	if current == nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	count, err := h.lifecycle.RevokeAllForUser(c.Request.Context(), current.UserID)
	if err != nil {
		abortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": count})
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func currentSession(c *gin.Context) *models.Session {
	v, ok := c.Get(string(constants.ContextKeySession))
	if !ok {
		return nil
	}
	session, _ := v.(*models.Session)
	return session
}

func abortWithAppError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if goerrors.As(err, &appErr) {
		c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
			"error":   appErr.Code,
			"message": appErr.Message,
		})
		return
	}
	c.AbortWithStatus(http.StatusInternalServerError)
}
