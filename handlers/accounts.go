package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ninersracing/kbwiki/internal/accounts"
	"github.com/ninersracing/kbwiki/internal/users"
)

// AccountHandler serves sign-up requests and member management.
type AccountHandler struct {
	accounts *accounts.Service
}

func NewAccountHandler(a *accounts.Service) *AccountHandler {
	return &AccountHandler{accounts: a}
}

// RegisterPublic mounts the unauthenticated sign-up endpoint.
func (h *AccountHandler) RegisterPublic(rg gin.IRoutes) {
	rg.POST("/account-requests", h.Submit)
}

func (h *AccountHandler) Register(rg gin.IRoutes) {
	rg.GET("/account-requests", h.Pending)
	rg.POST("/account-requests/cleanup", h.Cleanup)
	rg.POST("/account-requests/:id/approve", h.Approve)
	rg.POST("/account-requests/:id/deny", h.Deny)
	rg.DELETE("/account-requests/:id", h.DeleteRequest)

	rg.GET("/members", h.Members)
	rg.PATCH("/members/:id", h.UpdateMember)
	rg.DELETE("/members/:id", h.RemoveMember)
	rg.GET("/subteams/:id/members", h.SubteamMembers)
}

func (h *AccountHandler) Submit(c *gin.Context) {
	var in accounts.SubmitInput
	if !bindJSON(c, &in) {
		return
	}
	r, err := h.accounts.Submit(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *AccountHandler) Pending(c *gin.Context) {
	view, err := h.accounts.Pending(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) Approve(c *gin.Context) {
	r, err := h.accounts.Approve(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *AccountHandler) Deny(c *gin.Context) {
	r, err := h.accounts.Deny(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *AccountHandler) DeleteRequest(c *gin.Context) {
	if err := h.accounts.DeleteRequest(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) Cleanup(c *gin.Context) {
	n, err := h.accounts.CleanupOrphaned(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleaned": n})
}

func (h *AccountHandler) Members(c *gin.Context) {
	groups, err := h.accounts.MembersBySubteam(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *AccountHandler) SubteamMembers(c *gin.Context) {
	us, err := h.accounts.SubteamMembers(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, us)
}

func (h *AccountHandler) UpdateMember(c *gin.Context) {
	var req struct {
		Role    *string `json:"role"`
		Subteam *string `json:"subteam"`
	}
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.accounts.UpdateMember(c.Request.Context(), actor(c), c.Param("id"), users.Patch{Role: req.Role, Subteam: req.Subteam})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *AccountHandler) RemoveMember(c *gin.Context) {
	if err := h.accounts.RemoveMember(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
