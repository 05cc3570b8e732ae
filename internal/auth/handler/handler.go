package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/account"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth/provider"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth/resolver"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/httpx"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/session"
)

// Sessions is the part of session.Manager the handlers use.
type Sessions interface {
	Establish(ctx context.Context, w http.ResponseWriter, r *http.Request, acc account.Account) (session.Session, error)
	Status(ctx context.Context, r *http.Request) (session.Status, error)
	Terminate(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Accounts loads and saves profiles for sign-up completion.
type Accounts interface {
	GetAccount(ctx context.Context, id string) (account.Account, error)
	UpdateAccount(ctx context.Context, a account.Account) (account.Account, error)
}

type Handler struct {
	providers *provider.Registry
	resolver  resolver.Resolver
	sessions  Sessions
	accounts  Accounts
}

func NewHandler(
	registry *provider.Registry,
	resolver resolver.Resolver,
	sessions Sessions,
	accounts Accounts,
) *Handler {
	return &Handler{
		providers: registry,
		resolver:  resolver,
		sessions:  sessions,
		accounts:  accounts,
	}
}

// Routes carries the middleware the auth routes are mounted behind.
// Nil entries are skipped.
type Routes struct {
	RequireAuth gin.HandlerFunc
	SignInLimit gin.HandlerFunc
	SignupLimit gin.HandlerFunc
}

func (h *Handler) RegisterRoutes(r gin.IRouter, mw Routes) {
	api := r.Group("/api")

	// complete-signup is registered before :provider so the static
	// segment wins.
	api.POST("/auth/complete-signup", chain(h.CompleteSignup, mw.RequireAuth, mw.SignupLimit)...)
	api.POST("/auth/logout", h.Logout)
	api.POST("/auth/:provider", chain(h.SignIn, mw.SignInLimit)...)
	api.GET("/user/status", h.Status)
}

func chain(h gin.HandlerFunc, mws ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mws)+1)
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return append(out, h)
}

type signInRequest struct {
	Credential string `json:"credential"`
	Code       string `json:"code"`
}

type accountView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

type authResponse struct {
	OK              bool        `json:"ok"`
	Success         bool        `json:"success"`
	IsNewAccount    bool        `json:"isNewAccount"`
	ProfileComplete bool        `json:"profileComplete"`
	Account         accountView `json:"account"`
}

func viewOf(a account.Account) accountView {
	return accountView{
		ID:        a.ID,
		Name:      a.DisplayName,
		Email:     a.Email,
		AvatarURL: a.AvatarURL,
	}
}

// SignIn verifies a provider credential or authorization code, resolves it
// to an account and establishes a session.
func (h *Handler) SignIn(c *gin.Context) {
	ctx := c.Request.Context()
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	var req signInRequest
	if err := httpx.Bind(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}

	var identity *auth.Identity
	switch {
	case req.Credential != "":
		identity, err = p.VerifyIDToken(ctx, req.Credential)
	case req.Code != "":
		identity, err = p.ExchangeCode(ctx, req.Code, c.GetHeader("Origin"))
	default:
		err = apperr.AuthRequired("credential or code is required")
	}
	if err != nil {
		h.logFailure(c, providerName, err)
		httpx.Error(c, err)
		return
	}

	res, err := h.resolver.Resolve(ctx, identity)
	if err != nil {
		h.logFailure(c, providerName, err)
		httpx.Error(c, err)
		return
	}

	if _, err := h.sessions.Establish(ctx, c.Writer, c.Request, res.Account); err != nil {
		httpx.Error(c, err)
		return
	}

	logger.Info("sign-in succeeded", map[string]any{
		"request_id":  httpx.RequestID(c),
		"provider":    providerName,
		"account_id":  res.Account.ID,
		"new_account": res.IsNew,
		"ip":          c.ClientIP(),
		"user_agent":  c.Request.UserAgent(),
	})

	c.JSON(http.StatusOK, authResponse{
		OK:              true,
		Success:         true,
		IsNewAccount:    res.IsNew,
		ProfileComplete: res.Account.ProfileComplete,
		Account:         viewOf(res.Account),
	})
}

func (h *Handler) logFailure(c *gin.Context, providerName string, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		return // logged by httpx.Error
	}
	logger.Warn("sign-in rejected", map[string]any{
		"request_id": httpx.RequestID(c),
		"provider":   providerName,
		"kind":       apperr.KindOf(err).String(),
		"error":      err,
		"ip":         c.ClientIP(),
		"user_agent": c.Request.UserAgent(),
	})
}

// Logout terminates the caller's session. It always succeeds.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.Terminate(c.Request.Context(), c.Writer, c.Request); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
