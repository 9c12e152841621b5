// Package handler exposes the auth flows over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ident-plane/internal/auth/service"
)

// Service is the slice of the auth service the HTTP layer needs.
type Service interface {
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
	Register(ctx context.Context, in service.RegisterInput) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in service.ResetInput) error
	VerifyAccount(ctx context.Context, userID, code string) error
}

type Handler struct {
	svc    Service
	logger zerolog.Logger
}

func New(svc Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the auth routes on r. authRequired guards the routes that
// need an authenticated caller.
func (h *Handler) Register(r gin.IRouter, authRequired gin.HandlerFunc) {
	auth := r.Group("/auth")
	auth.POST("/login", h.login)
	auth.POST("/register", h.register)
	auth.POST("/forgot-password", h.forgotPassword)
	auth.POST("/verify", authRequired, h.verify)
}

type envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Results any      `json:"results,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func respondOK(c *gin.Context, status int, message string, results any) {
	c.JSON(status, envelope{Success: true, Message: message, Results: results})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: false, Message: message})
}

func respondErrors(c *gin.Context, status int, errs []string) {
	c.JSON(status, envelope{Success: false, Errors: errs})
}

// respondFailure maps a service error to its transport shape. Anything not
// in the taxonomy is logged with its internal detail and collapsed to a
// generic server error.
func (h *Handler) respondFailure(c *gin.Context, op string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		respondErrors(c, http.StatusBadRequest, verr.Errors)
	case errors.Is(err, service.ErrInvalidCredential):
		respondMessage(c, http.StatusUnauthorized, "Invalid credential!")
	case errors.Is(err, service.ErrInvalidEmail):
		respondMessage(c, http.StatusBadRequest, "Invalid email")
	case errors.Is(err, service.ErrCodeAlreadySent):
		respondMessage(c, http.StatusBadRequest, "Code has been sent to your email, please check it!")
	case errors.Is(err, service.ErrInvalidCodeOrEmail):
		respondMessage(c, http.StatusBadRequest, "Invalid code or email")
	case errors.Is(err, service.ErrAlreadyVerified):
		respondMessage(c, http.StatusBadRequest, "You have been verified!")
	case errors.Is(err, service.ErrNoActiveCode):
		respondMessage(c, http.StatusBadRequest, "You do not have a code for your verification or it has been expired!")
	case errors.Is(err, service.ErrInvalidCode):
		respondMessage(c, http.StatusBadRequest, "Invalid code!")
	default:
		h.logger.Error().Err(err).Str("op", op).Msg("auth request failed")
		respondErrors(c, http.StatusInternalServerError, []string{"Unexpected error"})
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusUnauthorized, "Invalid credential!")
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondFailure(c, "login", err)
		return
	}
	respondOK(c, http.StatusOK, "Login success!", gin.H{"token": res.Token})
}

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrors(c, http.StatusBadRequest, []string{"Invalid request body"})
		return
	}
	if err := h.svc.Register(c.Request.Context(), req); err != nil {
		h.respondFailure(c, "register", err)
		return
	}
	respondOK(c, http.StatusCreated, "Register successful", nil)
}

type forgotPasswordRequest struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// forgotPassword dispatches on the presence of a code: absent requests a
// fresh reset code, present consumes it and sets the new password.
func (h *Handler) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrors(c, http.StatusBadRequest, []string{"Invalid request body"})
		return
	}
	if req.Code == "" {
		if err := h.svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
			h.respondFailure(c, "forgot_password_request", err)
			return
		}
		respondOK(c, http.StatusOK, "Your code for your password reset has been sent to your email!", nil)
		return
	}
	err := h.svc.ResetPassword(c.Request.Context(), service.ResetInput{
		Email:           req.Email,
		Code:            req.Code,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.respondFailure(c, "forgot_password_submit", err)
		return
	}
	respondOK(c, http.StatusOK, "Your password has been updated", nil)
}

type verifyRequest struct {
	Code string `json:"code"`
}

// verify reads the caller identity from the session token, never from the
// request body.
func (h *Handler) verify(c *gin.Context) {
	claims := IdentityFromContext(c)
	if claims == nil {
		respondMessage(c, http.StatusUnauthorized, "Invalid credential!")
		return
	}
	// An empty body is the request-a-code phase, not a malformed request.
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondErrors(c, http.StatusBadRequest, []string{"Invalid request body"})
		return
	}
	if err := h.svc.VerifyAccount(c.Request.Context(), claims.Subject, req.Code); err != nil {
		h.respondFailure(c, "verify", err)
		return
	}
	if req.Code == "" {
		respondOK(c, http.StatusOK, "Your code for your verification has been sent to your email!", nil)
		return
	}
	respondOK(c, http.StatusOK, "Your account has been verified", nil)
}
