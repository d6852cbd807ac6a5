// Package handlers exposes the knowledge base over HTTP.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/authz"
	"github.com/ninersracing/kbwiki/pkg/logger"
	"github.com/ninersracing/kbwiki/pkg/middleware"
)

// respondError writes err with the status its class maps to.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// actor returns the authenticated principal. Routes behind AuthMiddleware
// always have one; anything else is treated as a guest.
func actor(c *gin.Context) authz.Principal {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return authz.Principal{Role: authz.RoleGuest}
	}
	return p
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
