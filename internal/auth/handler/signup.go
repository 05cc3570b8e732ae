package handler

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/account"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/httpx"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/middleware"
)

const maxNameRunes = 150

type completeSignupRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email,max=254"`
	Company string `json:"company" validate:"max=150"`
	Role    string `json:"role" validate:"max=100"`
	Phone   string `json:"phone" validate:"max=40"`
}

// CompleteSignup stores the caller's profile and rotates the session, since
// the profile-complete flag it carries has changed.
func (h *Handler) CompleteSignup(c *gin.Context) {
	ctx := c.Request.Context()

	accountID, ok := middleware.AccountIDFromContext(ctx)
	if !ok {
		httpx.Error(c, apperr.AuthRequired("login required"))
		return
	}

	var req completeSignupRequest
	if err := httpx.Bind(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}

	name := truncateRunes(strings.TrimSpace(req.Name), maxNameRunes)
	if name == "" {
		httpx.Error(c, apperr.Validation("invalid request").WithField("name", "name is required"))
		return
	}

	acc, err := h.accounts.GetAccount(ctx, accountID)
	if errors.Is(err, account.ErrNotFound) {
		httpx.Error(c, apperr.AuthRequired("account no longer exists"))
		return
	}
	if err != nil {
		httpx.Error(c, apperr.Internal("load account", err))
		return
	}

	acc.ApplyProfile(account.Profile{
		Name:    name,
		Email:   strings.TrimSpace(req.Email),
		Company: strings.TrimSpace(req.Company),
		Role:    strings.TrimSpace(req.Role),
		Phone:   strings.TrimSpace(req.Phone),
	})

	updated, err := h.accounts.UpdateAccount(ctx, acc)
	if errors.Is(err, account.ErrConflict) {
		httpx.Error(c, apperr.Validation("email is already in use").
			WithCode("email_taken").
			WithField("email", "email is already in use"))
		return
	}
	if err != nil {
		httpx.Error(c, apperr.Internal("update account", err))
		return
	}

	if _, err := h.sessions.Establish(ctx, c.Writer, c.Request, updated); err != nil {
		httpx.Error(c, err)
		return
	}

	logger.Info("signup completed", map[string]any{
		"request_id": httpx.RequestID(c),
		"account_id": updated.ID,
	})

	c.JSON(http.StatusOK, authResponse{
		OK:              true,
		Success:         true,
		ProfileComplete: updated.ProfileComplete,
		Account:         viewOf(updated),
	})
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
