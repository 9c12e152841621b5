// Package server assembles the HTTP router and server for the auth API.
package server

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ident-plane/internal/auth/handler"
	"ident-plane/internal/config"
	"ident-plane/internal/notify"
	"ident-plane/internal/security"
)

// Deps holds the collaborators the router mounts.
type Deps struct {
	Auth   handler.Service
	Tokens *security.TokenProvider
	// DB is pinged by the readiness endpoint. May be nil in tests.
	DB *sql.DB
	// DevOTP, when non-nil, exposes GET /dev/otp. Set only when dev OTP mode
	// is enabled and the environment is not production.
	DevOTP *notify.DevSink
	Logger zerolog.Logger
}

// NewRouter builds the gin engine: CORS, request logging, tracing, the auth
// routes, health, and the optional dev OTP endpoint.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(deps.Logger))
	r.Use(tracing("ident-plane.http"))
	r.Use(requestTimeout(cfg.Timeout()))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	authHandler := handler.New(deps.Auth, deps.Logger)
	authHandler.Register(r, handler.AuthRequired(deps.Tokens))

	r.GET("/health", healthCheck(deps.DB))

	if deps.DevOTP != nil {
		r.GET("/dev/otp", devOTP(deps.DevOTP))
	}
	return r
}

func corsConfig(origins string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	if origins == "" {
		c.AllowAllOrigins = true
		return c
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.AllowOrigins = append(c.AllowOrigins, o)
		}
	}
	return c
}

// healthCheck reports liveness and, when a DB is wired, readiness.
func healthCheck(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if db != nil {
			ctx, cancel := contextWithTimeout(c, 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status})
	}
}

// devOTP returns the last code recorded for an email. Never mounted in
// production.
func devOTP(sink *notify.DevSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Query("email")
		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "email is required"})
			return
		}
		code, ok := sink.Get(email)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "no code for email"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "results": gin.H{"code": code}})
	}
}
