package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/whisperwall/internal/config"
	"github.com/whisperwall/internal/models"
	"github.com/whisperwall/internal/repository"
	"github.com/whisperwall/pkg/codegen"
	"github.com/whisperwall/pkg/crypto"
)

var (
	ErrUsernameTaken      = errors.New("username already taken by a verified user")
	ErrEmailTaken         = errors.New("email already registered by a verified user")
	ErrInvalidUsername    = errors.New("username must be 2-20 characters of letters, numbers, and underscores")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrCodeExpired        = errors.New("verification code has expired")
	ErrAlreadyVerified    = errors.New("user is already verified")
	ErrNotVerified        = errors.New("user email is not verified")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrMailDelivery       = errors.New("failed to send verification email")
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{2,20}$`)

const verifyCodeTTL = time.Hour

// MailSender delivers verification codes. The SMTP implementation lives in
// this package; tests substitute a recorder.
type MailSender interface {
	SendVerificationEmail(ctx context.Context, email, username, code string) error
}

// TokenStore tracks revoked token IDs until their natural expiry
type TokenStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthService handles registration, the verification code lifecycle, and
// session tokens
type AuthService struct {
	users     repository.UserRepository
	mail      MailSender
	tokens    TokenStore
	jwtConfig config.JWTConfig
}

// NewAuthService creates a new AuthService
func NewAuthService(users repository.UserRepository, mail MailSender, tokens TokenStore, jwtConfig config.JWTConfig) *AuthService {
	return &AuthService{
		users:     users,
		mail:      mail,
		tokens:    tokens,
		jwtConfig: jwtConfig,
	}
}

// RegisterRequest represents the registration request
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=2,max=20"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=100"`
}

// VerifyRequest represents the code verification request
type VerifyRequest struct {
	Username string `json:"username" binding:"required"`
	Code     string `json:"code" binding:"required,len=6,numeric"`
}

// LoginRequest represents the login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ResendCodeRequest represents a request for a fresh verification code
type ResendCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// JWTClaims represents the JWT claims
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Register creates a pending account and emails a verification code.
//
// A verified user blocks both its username and email. An unverified account
// holding the same email is overwritten in place: new password hash, new
// code, new expiry. The account is persisted before the email send, so a
// delivery failure leaves a pending account behind; that window is accepted
// and the caller sees the delivery error.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) error {
	if !usernameRe.MatchString(req.Username) {
		return ErrInvalidUsername
	}

	_, err := s.users.FindVerifiedByUsername(ctx, req.Username)
	if err == nil {
		return ErrUsernameTaken
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	code, err := codegen.VerificationCode()
	if err != nil {
		return err
	}
	expiry := time.Now().UTC().Add(verifyCodeTTL)

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return err
	}

	existing, err := s.users.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		if existing.IsVerified {
			return ErrEmailTaken
		}
		if err := s.users.UpdateCredentials(ctx, existing.ID, passwordHash, code, expiry); err != nil {
			return err
		}
	case errors.Is(err, repository.ErrUserNotFound):
		user := &models.User{
			Username:            req.Username,
			Email:               req.Email,
			PasswordHash:        passwordHash,
			VerifyCode:          code,
			VerifyCodeExpiry:    expiry,
			IsVerified:          false,
			IsAcceptingMessages: true,
			Messages:            []models.Message{},
		}
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
	default:
		return err
	}

	if err := s.mail.SendVerificationEmail(ctx, req.Email, req.Username, code); err != nil {
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}
	return nil
}

// Verify checks a submitted code against the stored one.
//
// Expiry is evaluated before code correctness: an expired code fails with
// ErrCodeExpired even when it would not have matched. A user that is already
// verified and re-submits its still-valid code succeeds again; the verified
// flag never transitions back.
func (s *AuthService) Verify(ctx context.Context, username, code string) error {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return err
	}

	codeMatches := user.VerifyCode == code
	notExpired := time.Now().UTC().Before(user.VerifyCodeExpiry)

	switch {
	case codeMatches && notExpired:
		return s.users.MarkVerified(ctx, user.ID)
	case !notExpired:
		return ErrCodeExpired
	default:
		return ErrInvalidCode
	}
}

// UsernameAvailable reports whether a username can still be claimed. Only a
// verified holder blocks the name; a pending registration does not.
func (s *AuthService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	if !usernameRe.MatchString(username) {
		return false, ErrInvalidUsername
	}
	_, err := s.users.FindVerifiedByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		return true, nil
	}
	return false, err
}

// ResendCode issues a fresh code for an unverified account
func (s *AuthService) ResendCode(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	code, err := codegen.VerificationCode()
	if err != nil {
		return err
	}
	if err := s.users.UpdateVerification(ctx, user.ID, code, time.Now().UTC().Add(verifyCodeTTL)); err != nil {
		return err
	}

	if err := s.mail.SendVerificationEmail(ctx, user.Email, user.Username, code); err != nil {
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}
	return nil
}

// Login authenticates a verified user and returns a JWT token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !crypto.CheckPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return nil, ErrNotVerified
	}

	return s.generateToken(user)
}

// Logout revokes the token carrying the given claims for the remainder of
// its lifetime
func (s *AuthService) Logout(ctx context.Context, claims *JWTClaims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.tokens.Revoke(ctx, claims.ID, ttl)
}

// ValidateToken validates a JWT token and returns the claims
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtConfig.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// generateToken generates a JWT token for a user
func (s *AuthService) generateToken(user *models.User) (*TokenResponse, error) {
	expiresIn := time.Duration(s.jwtConfig.ExpireHours) * time.Hour

	claims := &JWTClaims{
		UserID:   user.ID.Hex(),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "whisperwall",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresIn:   s.jwtConfig.ExpireHours * 3600,
	}, nil
}
