package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	xerrors "codepanel-client/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAuth is a scriptable Authenticator.
type fakeAuth struct {
	token      atomic.Value
	refreshed  atomic.Int32
	refreshErr error
	onRefresh  func()
}

func newFakeAuth(token string) *fakeAuth {
	a := &fakeAuth{}
	a.token.Store(token)
	return a
}

func (a *fakeAuth) Token() string {
	return a.token.Load().(string)
}

func (a *fakeAuth) Reauthenticate(ctx context.Context) error {
	a.refreshed.Add(1)
	if a.refreshErr != nil {
		return a.refreshErr
	}
	if a.onRefresh != nil {
		a.onRefresh()
	}
	return nil
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))
}

func TestClient_BearerHeader(t *testing.T) {
	var gotAuth string
	router := gin.New()
	router.GET("/api/ping", func(c *gin.Context) {
		gotAuth = c.GetHeader("Authorization")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	client := newTestClient(t, router)
	client.SetAuthenticator(newFakeAuth("token-123"))

	var out map[string]bool
	require.NoError(t, client.Get(context.Background(), "/api/ping", &out))
	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.True(t, out["ok"])
}

func TestClient_UnauthorizedRefreshesAndReplaysOnce(t *testing.T) {
	var calls atomic.Int32
	router := gin.New()
	router.GET("/api/profile", func(c *gin.Context) {
		if calls.Add(1) == 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "token expired"})
			return
		}
		if c.GetHeader("Authorization") != "Bearer fresh-token" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "stale token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": "user-1"})
	})

	client := newTestClient(t, router)
	auth := newFakeAuth("stale-token")
	auth.onRefresh = func() { auth.token.Store("fresh-token") }
	client.SetAuthenticator(auth)

	var out map[string]string
	require.NoError(t, client.Get(context.Background(), "/api/profile", &out))
	assert.Equal(t, "user-1", out["id"])
	assert.Equal(t, int32(1), auth.refreshed.Load(), "exactly one refresh")
	assert.Equal(t, int32(2), calls.Load(), "original request replayed once")
}

func TestClient_SecondUnauthorizedPropagates(t *testing.T) {
	var calls atomic.Int32
	router := gin.New()
	router.GET("/api/profile", func(c *gin.Context) {
		calls.Add(1)
		c.JSON(http.StatusUnauthorized, gin.H{"message": "still unauthorized"})
	})

	client := newTestClient(t, router)
	auth := newFakeAuth("token")
	client.SetAuthenticator(auth)

	err := client.Get(context.Background(), "/api/profile", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.Equal(t, int32(1), auth.refreshed.Load(), "no second refresh")
	assert.Equal(t, int32(2), calls.Load(), "no infinite loop")
}

func TestClient_WithoutAuthRetrySkipsRefresh(t *testing.T) {
	router := gin.New()
	router.POST("/api/auth/login", func(c *gin.Context) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "bad credentials"})
	})

	client := newTestClient(t, router)
	auth := newFakeAuth("")
	client.SetAuthenticator(auth)

	err := client.Post(context.Background(), "/api/auth/login", gin.H{}, nil, WithoutAuthRetry())
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.Zero(t, auth.refreshed.Load(), "login must not trigger refresh")
}

func TestClient_RefreshFailurePropagates(t *testing.T) {
	router := gin.New()
	router.GET("/api/profile", func(c *gin.Context) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "expired"})
	})

	client := newTestClient(t, router)
	auth := newFakeAuth("token")
	auth.refreshErr = xerrors.ErrSessionExpired
	client.SetAuthenticator(auth)

	err := client.Get(context.Background(), "/api/profile", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
}

func TestClient_ErrorMapping(t *testing.T) {
	router := gin.New()
	router.GET("/api/missing", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "no such thing"})
	})
	router.GET("/api/invalid", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed"})
	})
	router.GET("/api/boom", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "boom"})
	})

	client := newTestClient(t, router)

	assert.ErrorIs(t, client.Get(context.Background(), "/api/missing", nil), xerrors.ErrNotFound)

	err := client.Get(context.Background(), "/api/invalid", nil)
	assert.ErrorIs(t, err, xerrors.ErrBadRequest)
	assert.Contains(t, err.Error(), "validation failed")

	assert.ErrorIs(t, client.Get(context.Background(), "/api/boom", nil), xerrors.ErrServer)
}

func TestClient_NoAuthenticatorPassesThrough(t *testing.T) {
	router := gin.New()
	router.GET("/api/profile", func(c *gin.Context) {
		assert.Empty(t, c.GetHeader("Authorization"))
		c.JSON(http.StatusUnauthorized, gin.H{"message": "who are you"})
	})

	client := newTestClient(t, router)
	err := client.Get(context.Background(), "/api/profile", nil)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}
