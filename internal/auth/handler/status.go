package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/httpx"
)

type statusResponse struct {
	OK              bool         `json:"ok"`
	LoggedIn        bool         `json:"loggedIn"`
	ProfileComplete bool         `json:"profileComplete"`
	Account         *accountView `json:"account,omitempty"`
}

// Status reports whether the caller is signed in. It never modifies the
// session and is never cacheable.
func (h *Handler) Status(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")

	st, err := h.sessions.Status(c.Request.Context(), c.Request)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	resp := statusResponse{
		OK:              true,
		LoggedIn:        st.LoggedIn,
		ProfileComplete: st.ProfileComplete,
	}
	if st.LoggedIn && st.Account != nil {
		v := viewOf(*st.Account)
		resp.Account = &v
	}
	c.JSON(http.StatusOK, resp)
}
