package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ninersracing/kbwiki/internal/portfolio"
)

type PortfolioHandler struct {
	portfolios *portfolio.Service
}

func NewPortfolioHandler(p *portfolio.Service) *PortfolioHandler {
	return &PortfolioHandler{portfolios: p}
}

// RegisterPublic mounts the anonymous portfolio page at /portfolio/:slug.
func (h *PortfolioHandler) RegisterPublic(rg gin.IRoutes) {
	rg.GET("/portfolio/:slug", h.Public)
}

func (h *PortfolioHandler) Register(rg gin.IRoutes) {
	rg.GET("/portfolio", h.Mine)
	rg.PUT("/portfolio", h.Save)
}

func (h *PortfolioHandler) Mine(c *gin.Context) {
	p, err := h.portfolios.Mine(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PortfolioHandler) Save(c *gin.Context) {
	var req struct {
		URLSlug  string              `json:"urlSlug"`
		Sections []portfolio.Section `json:"sections"`
	}
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.portfolios.Save(c.Request.Context(), actor(c), req.URLSlug, req.Sections)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PortfolioHandler) Public(c *gin.Context) {
	p, err := h.portfolios.Public(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
