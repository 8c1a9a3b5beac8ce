package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/whisperwall/internal/config"
	"github.com/whisperwall/internal/handler"
	"github.com/whisperwall/internal/middleware"
	"github.com/whisperwall/internal/models"
	"github.com/whisperwall/internal/repository"
	"github.com/whisperwall/internal/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memUserRepo is an in-memory UserRepository backing the HTTP tests.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*models.User)}
}

func (r *memUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = primitive.NewObjectID()
	cp := *user
	r.users[user.ID.Hex()] = &cp
	return nil
}

func (r *memUserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id.Hex()]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *memUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *memUserRepo) FindVerifiedByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username && u.IsVerified })
}

func (r *memUserRepo) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memUserRepo) UpdateCredentials(ctx context.Context, id primitive.ObjectID, passwordHash, code string, expiry time.Time) error {
	return r.update(id, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.VerifyCode = code
		u.VerifyCodeExpiry = expiry
	})
}

func (r *memUserRepo) UpdateVerification(ctx context.Context, id primitive.ObjectID, code string, expiry time.Time) error {
	return r.update(id, func(u *models.User) {
		u.VerifyCode = code
		u.VerifyCodeExpiry = expiry
	})
}

func (r *memUserRepo) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	return r.update(id, func(u *models.User) { u.IsVerified = true })
}

func (r *memUserRepo) SetAcceptingMessages(ctx context.Context, id primitive.ObjectID, accepting bool) error {
	return r.update(id, func(u *models.User) { u.IsAcceptingMessages = accepting })
}

func (r *memUserRepo) PushMessage(ctx context.Context, id primitive.ObjectID, msg models.Message) error {
	return r.update(id, func(u *models.User) { u.Messages = append(u.Messages, msg) })
}

func (r *memUserRepo) MessagesNewestFirst(ctx context.Context, id primitive.ObjectID) ([]models.Message, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs := append([]models.Message(nil), u.Messages...)
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		}
		return bytes.Compare(msgs[i].ID[:], msgs[j].ID[:]) > 0
	})
	return msgs, nil
}

func (r *memUserRepo) update(id primitive.ObjectID, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id.Hex()]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(u)
	return nil
}

// memMailSender records the last verification code.
type memMailSender struct {
	mu       sync.Mutex
	lastCode string
}

func (m *memMailSender) SendVerificationEmail(ctx context.Context, email, username, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCode = code
	return nil
}

func (m *memMailSender) LastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCode
}

// memTokenStore is an in-memory revocation set.
type memTokenStore struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (s *memTokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = true
	return nil
}

func (s *memTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[jti], nil
}

type testEnv struct {
	router *gin.Engine
	repo   *memUserRepo
	mail   *memMailSender
}

// newTestEnv wires the real services and handlers over in-memory fakes,
// mirroring the route layout in cmd/server.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := newMemUserRepo()
	mail := &memMailSender{}
	tokens := &memTokenStore{revoked: make(map[string]bool)}

	authService := service.NewAuthService(repo, mail, tokens, config.JWTConfig{Secret: "test-secret", ExpireHours: 1})
	messageService := service.NewMessageService(repo)

	authHandler := handler.NewAuthHandler(authService)
	messageHandler := handler.NewMessageHandler(messageService)

	router := gin.New()
	authMiddleware := middleware.AuthMiddleware(authService)
	v1 := router.Group("/api/v1")
	authHandler.RegisterRoutes(v1, authMiddleware)
	messageHandler.RegisterRoutes(v1, authMiddleware)

	return &testEnv{router: router, repo: repo, mail: mail}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

// registerAndVerify registers a user, verifies it with the emailed code, and
// returns a login token.
func (e *testEnv) registerAndVerify(t *testing.T, username, email string) string {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": username, "email": email, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/api/v1/auth/verify", "", gin.H{
		"username": username, "code": e.mail.LastCode(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": username, "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var token service.TokenResponse
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &token))
	return token.AccessToken
}
