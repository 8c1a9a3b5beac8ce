package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/whisperwall/internal/middleware"
	"github.com/whisperwall/internal/repository"
	"github.com/whisperwall/internal/service"
	"github.com/whisperwall/pkg/response"
)

// AuthHandler handles registration, verification, and session API requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register handles user registration
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUsername):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrUsernameTaken):
			response.BadRequest(c, "username already taken")
		case errors.Is(err, service.ErrEmailTaken):
			response.BadRequest(c, "user already exists with this email")
		case errors.Is(err, service.ErrMailDelivery):
			// The pending account is already persisted; only delivery failed.
			response.InternalError(c, "failed to send verification email")
		default:
			response.InternalError(c, "failed to register user")
		}
		return
	}

	response.Created(c, "user registered, check your email for the verification code", nil)
}

// Verify handles verification code submission
// POST /api/v1/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	var req service.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err := h.authService.Verify(c.Request.Context(), req.Username, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			response.NotFound(c, "user not found")
		case errors.Is(err, service.ErrCodeExpired):
			response.BadRequest(c, "verification code has expired")
		case errors.Is(err, service.ErrInvalidCode):
			response.BadRequest(c, "invalid verification code")
		default:
			response.InternalError(c, "failed to verify user")
		}
		return
	}

	response.Success(c, "user verified successfully", nil)
}

// CheckUsername handles username availability checks
// GET /api/v1/auth/check-username?username=...
func (h *AuthHandler) CheckUsername(c *gin.Context) {
	username := c.Query("username")

	available, err := h.authService.UsernameAvailable(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, service.ErrInvalidUsername) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, "failed to check username")
		return
	}

	if !available {
		response.Success(c, "username is already taken", gin.H{"available": false})
		return
	}
	response.Success(c, "username is available", gin.H{"available": true})
}

// ResendCode handles verification code re-issue for unverified accounts
// POST /api/v1/auth/resend-code
func (h *AuthHandler) ResendCode(c *gin.Context) {
	var req service.ResendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err := h.authService.ResendCode(c.Request.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			response.NotFound(c, "user not found")
		case errors.Is(err, service.ErrAlreadyVerified):
			response.BadRequest(c, "user is already verified")
		case errors.Is(err, service.ErrMailDelivery):
			response.InternalError(c, "failed to send verification email")
		default:
			response.InternalError(c, "failed to resend code")
		}
		return
	}

	response.Success(c, "verification code sent", nil)
}

// Login handles user login
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	token, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Unauthorized(c, "invalid username or password")
		case errors.Is(err, service.ErrNotVerified):
			response.Forbidden(c, "verify your email before logging in")
		default:
			response.InternalError(c, "failed to login")
		}
		return
	}

	response.Success(c, "logged in", token)
}

// Logout revokes the current session token
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Unauthorized(c, "not authenticated")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		response.InternalError(c, "failed to logout")
		return
	}
	response.Success(c, "logged out", nil)
}

// RegisterRoutes registers auth routes
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/verify", h.Verify)
		auth.GET("/check-username", h.CheckUsername)
		auth.POST("/resend-code", h.ResendCode)
		auth.POST("/login", h.Login)
		auth.POST("/logout", authMiddleware, h.Logout)
	}
}
