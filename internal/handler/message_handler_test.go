package handler_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whisperwall/internal/models"
	"github.com/whisperwall/internal/service"
)

func TestSendMessageEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndVerify(t, "alice", "a@x.com")

	// Anonymous senders need no token.
	w := env.do(t, http.MethodPost, "/api/v1/messages", "", gin.H{
		"username": "alice", "content": "hello there",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/users/me/messages", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hello there")
}

func TestSendMessageEndpointUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/messages", "", gin.H{
		"username": "ghost", "content": "hello",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendMessageEndpointNotAccepting(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndVerify(t, "alice", "a@x.com")

	w := env.do(t, http.MethodPost, "/api/v1/users/me/accept-messages", token, gin.H{
		"accept_messages": false,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/messages", "", gin.H{
		"username": "alice", "content": "ignored",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Inbox stays empty.
	w = env.do(t, http.MethodGet, "/api/v1/users/me/messages", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "ignored")
}

func TestSendMessageEndpointContentTooLong(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndVerify(t, "alice", "a@x.com")

	w := env.do(t, http.MethodPost, "/api/v1/messages", "", gin.H{
		"username": "alice", "content": strings.Repeat("x", service.MaxMessageLength+1),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMessagesEndpointOrder(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndVerify(t, "alice", "a@x.com")

	for _, content := range []string{"first", "second", "third"} {
		w := env.do(t, http.MethodPost, "/api/v1/messages", "", gin.H{
			"username": "alice", "content": content,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/v1/users/me/messages", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	env2 := decodeEnvelope(t, w)
	var data struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env2.Data, &data))
	require.Len(t, data.Messages, 3)
	assert.Equal(t, "third", data.Messages[0].Content)
	assert.Equal(t, "second", data.Messages[1].Content)
	assert.Equal(t, "first", data.Messages[2].Content)
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/users/me/messages"},
		{http.MethodGet, "/api/v1/users/me/accept-messages"},
		{http.MethodPost, "/api/v1/users/me/accept-messages"},
		{http.MethodPost, "/api/v1/auth/logout"},
	}

	for _, p := range paths {
		w := env.do(t, p.method, p.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", p.method, p.path)

		req := env.do(t, p.method, p.path, "not-a-real-token", nil)
		assert.Equal(t, http.StatusUnauthorized, req.Code, "%s %s with bad token", p.method, p.path)
	}
}

func TestAcceptMessagesEndpointToggle(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndVerify(t, "alice", "a@x.com")

	w := env.do(t, http.MethodGet, "/api/v1/users/me/accept-messages", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"accept_messages":true`)

	w = env.do(t, http.MethodPost, "/api/v1/users/me/accept-messages", token, gin.H{
		"accept_messages": false,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"accept_messages":false`)

	w = env.do(t, http.MethodGet, "/api/v1/users/me/accept-messages", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"accept_messages":false`)
}

func TestAcceptMessagesEndpointRequiresFlag(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndVerify(t, "alice", "a@x.com")

	w := env.do(t, http.MethodPost, "/api/v1/users/me/accept-messages", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
