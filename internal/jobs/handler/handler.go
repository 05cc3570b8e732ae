package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/httpx"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/jobs"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/middleware"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/secret"
)

type Submitter interface {
	Submit(ctx context.Context, accountID string, creds *secret.Credentials) (string, error)
}

type StatusReader interface {
	Status(ctx context.Context, jobID, accountID string) (jobs.StatusView, error)
}

type Handler struct {
	dispatcher Submitter
	reader     StatusReader
}

func NewHandler(dispatcher Submitter, reader StatusReader) *Handler {
	return &Handler{dispatcher: dispatcher, reader: reader}
}

// Routes carries the middleware the job routes are mounted behind.
type Routes struct {
	RequireAuth gin.HandlerFunc
	SubmitLimit gin.HandlerFunc
}

func (h *Handler) RegisterRoutes(r gin.IRouter, mw Routes) {
	g := r.Group("/api/jobs")
	if mw.RequireAuth != nil {
		g.Use(mw.RequireAuth)
	}

	submit := []gin.HandlerFunc{h.Submit}
	if mw.SubmitLimit != nil {
		submit = append([]gin.HandlerFunc{mw.SubmitLimit}, submit...)
	}
	g.POST("", submit...)
	g.GET("/:id", h.Status)
}

type submitRequest struct {
	NaverID string `json:"naver_id" validate:"required"`
	NaverPW string `json:"naver_pw" validate:"required"`
}

type submitResponse struct {
	OK     bool   `json:"ok"`
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

type statusResponse struct {
	OK bool `json:"ok"`
	jobs.StatusView
}

// Submit starts a background automation run. The submitted login is
// handed to the dispatcher and never written anywhere.
func (h *Handler) Submit(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c.Request.Context())
	if !ok {
		httpx.Error(c, apperr.AuthRequired("login required"))
		return
	}

	var req submitRequest
	if err := httpx.Bind(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}

	creds := secret.New(req.NaverID, req.NaverPW)

	jobID, err := h.dispatcher.Submit(c.Request.Context(), accountID, creds)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	c.JSON(http.StatusAccepted, submitResponse{
		OK:     true,
		JobID:  jobID,
		Status: jobs.StatusPending,
	})
}

// Status returns the caller's view of one job.
func (h *Handler) Status(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c.Request.Context())
	if !ok {
		httpx.Error(c, apperr.AuthRequired("login required"))
		return
	}

	view, err := h.reader.Status(c.Request.Context(), c.Param("id"), accountID)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, statusResponse{OK: true, StatusView: view})
}
