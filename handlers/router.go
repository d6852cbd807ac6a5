package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ninersracing/kbwiki/pkg/middleware"
)

var startTime = time.Now()

// ReadyCheck reports whether one dependency can serve requests.
type ReadyCheck func(ctx context.Context) error

// Deps is everything NewRouter mounts.
type Deps struct {
	Verifier   middleware.Verifier
	Resolver   middleware.PrincipalResolver
	Auth       *AuthHandler
	Documents  *DocumentHandler
	Accounts   *AccountHandler
	Portfolios *PortfolioHandler
	// RateLimit is applied to every route when set.
	RateLimit gin.HandlerFunc
	Ready     map[string]ReadyCheck
	Metrics   http.Handler
}

// cors sets permissive CORS headers and answers preflight requests.
func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
	c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

// NewRouter builds the gin engine with middleware, probes and API routes.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(cors, gin.Logger(), middleware.SentryReporter())
	if d.RateLimit != nil {
		r.Use(d.RateLimit)
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", readyHandler(d.Ready))
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}
	RegisterSwagger(r)

	public := r.Group("/api/v1")
	d.Auth.Register(public)
	d.Accounts.RegisterPublic(public)
	d.Portfolios.RegisterPublic(r)

	api := r.Group("/api/v1", middleware.AuthMiddleware(d.Verifier, d.Resolver))
	d.Auth.RegisterMe(api)
	d.Documents.Register(api)
	d.Accounts.Register(api)
	d.Portfolios.Register(api)
	return r
}

func readyHandler(checks map[string]ReadyCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		ready := true
		deps := map[string]bool{}
		for name, check := range checks {
			ok := check(ctx) == nil
			deps[name] = ok
			ready = ready && ok
		}
		status, label := http.StatusOK, "ready"
		if !ready {
			status, label = http.StatusServiceUnavailable, "not_ready"
		}
		c.JSON(status, gin.H{"status": label, "deps": deps, "uptime": time.Since(startTime).String()})
	}
}
