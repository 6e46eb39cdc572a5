package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"codepanel-client/internal/api"
	"codepanel-client/internal/domain/auth"
	xerrors "codepanel-client/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func makeToken(t *testing.T, userID string, expiresAt time.Time) string {
	t.Helper()
	claims := jwtlib.MapClaims{
		"userId": userID,
		"exp":    expiresAt.Unix(),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func tokenResponse(token string) gin.H {
	return gin.H{
		"accessToken": token,
		"expiresIn":   900,
		"familyId":    "fam-1",
		"userId":      "user-1",
		"email":       "student@example.com",
		"firstName":   "Ada",
		"lastName":    "Lovelace",
		"role":        "STUDENT",
	}
}

// authStub is a scriptable stand-in for the server's auth endpoints.
type authStub struct {
	router      *gin.Engine
	loginStatus atomic.Int32

	refreshStatus atomic.Int32
	refreshToken  atomic.Value
	refreshCalls  atomic.Int32

	logoutStatus atomic.Int32
	logoutCalls  atomic.Int32
}

func newAuthStub(t *testing.T, loginToken string) *authStub {
	t.Helper()
	s := &authStub{router: gin.New()}
	s.loginStatus.Store(http.StatusOK)
	s.refreshStatus.Store(http.StatusOK)
	s.refreshToken.Store(loginToken)
	s.logoutStatus.Store(http.StatusOK)

	s.router.POST("/api/auth/login", func(c *gin.Context) {
		if status := int(s.loginStatus.Load()); status != http.StatusOK {
			c.JSON(status, gin.H{"message": "bad credentials"})
			return
		}
		c.JSON(http.StatusOK, tokenResponse(loginToken))
	})
	s.router.POST("/api/auth/register", func(c *gin.Context) {
		c.JSON(http.StatusOK, tokenResponse(loginToken))
	})
	s.router.POST("/api/auth/refresh", func(c *gin.Context) {
		s.refreshCalls.Add(1)
		if status := int(s.refreshStatus.Load()); status != http.StatusOK {
			c.JSON(status, gin.H{"message": "refresh rejected"})
			return
		}
		c.JSON(http.StatusOK, tokenResponse(s.refreshToken.Load().(string)))
	})
	s.router.POST("/api/auth/logout", func(c *gin.Context) {
		s.logoutCalls.Add(1)
		status := int(s.logoutStatus.Load())
		if status != http.StatusOK {
			c.JSON(status, gin.H{"message": "logout failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return s
}

func newTestManager(t *testing.T, stub *authStub, opts ...Option) (*Manager, *api.Client) {
	t.Helper()
	srv := httptest.NewServer(stub.router)
	t.Cleanup(srv.Close)
	client := api.NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))
	manager := NewManager(client, zaptest.NewLogger(t), opts...)
	t.Cleanup(manager.Close)
	return manager, client
}

func TestManager_Login(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute)
	stub := newAuthStub(t, makeToken(t, "user-1", exp))
	manager, _ := newTestManager(t, stub)

	sess, err := manager.Login(context.Background(), auth.LoginRequest{
		Email:    "student@example.com",
		Password: "hunter2",
	})
	require.NoError(t, err)
	assert.True(t, manager.IsAuthenticated())
	assert.Equal(t, "user-1", sess.User.ID)
	assert.Equal(t, "Ada Lovelace", sess.User.FullName())
	assert.Equal(t, exp.Unix(), sess.ExpiresAt.Unix())
	assert.NotEmpty(t, manager.Token())
}

func TestManager_LoginFailureLeavesNoSession(t *testing.T) {
	stub := newAuthStub(t, makeToken(t, "user-1", time.Now().Add(time.Hour)))
	stub.loginStatus.Store(http.StatusUnauthorized)
	manager, _ := newTestManager(t, stub)

	_, err := manager.Login(context.Background(), auth.LoginRequest{Email: "x", Password: "y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.False(t, manager.IsAuthenticated())
	assert.Empty(t, manager.Token())
}

func TestManager_RefreshFailureIsTerminal(t *testing.T) {
	stub := newAuthStub(t, makeToken(t, "user-1", time.Now().Add(time.Hour)))
	manager, _ := newTestManager(t, stub)

	_, err := manager.Login(context.Background(), auth.LoginRequest{Email: "x", Password: "y"})
	require.NoError(t, err)

	stub.refreshStatus.Store(http.StatusUnauthorized)
	err = manager.Refresh(context.Background())
	require.Error(t, err)
	assert.False(t, manager.IsAuthenticated(), "refresh failure must force logout")
	assert.Equal(t, int32(1), stub.refreshCalls.Load(), "refresh is not retried")
}

func TestManager_LogoutClearsDespiteServerError(t *testing.T) {
	stub := newAuthStub(t, makeToken(t, "user-1", time.Now().Add(time.Hour)))
	stub.logoutStatus.Store(http.StatusInternalServerError)
	manager, _ := newTestManager(t, stub)

	_, err := manager.Login(context.Background(), auth.LoginRequest{Email: "x", Password: "y"})
	require.NoError(t, err)

	manager.Logout(context.Background())
	assert.False(t, manager.IsAuthenticated())
	assert.Equal(t, int32(1), stub.logoutCalls.Load())
}

func TestManager_OnChange(t *testing.T) {
	stub := newAuthStub(t, makeToken(t, "user-1", time.Now().Add(time.Hour)))
	manager, _ := newTestManager(t, stub)

	var changes []*auth.Session
	unsub := manager.OnChange(func(sess *auth.Session) {
		changes = append(changes, sess)
	})

	_, err := manager.Login(context.Background(), auth.LoginRequest{Email: "x", Password: "y"})
	require.NoError(t, err)
	manager.Logout(context.Background())

	require.Len(t, changes, 2)
	assert.NotNil(t, changes[0])
	assert.Nil(t, changes[1])

	unsub()
	_, err = manager.Login(context.Background(), auth.LoginRequest{Email: "x", Password: "y"})
	require.NoError(t, err)
	assert.Len(t, changes, 2, "unsubscribed listener must not fire")
}

func TestManager_ProactiveRefreshOnExpiry(t *testing.T) {
	expired := makeToken(t, "user-1", time.Now().Add(-time.Minute))
	fresh := makeToken(t, "user-1", time.Now().Add(time.Hour))
	stub := newAuthStub(t, expired)
	stub.refreshToken.Store(fresh)

	manager, _ := newTestManager(t, stub, WithCheckInterval(20*time.Millisecond))

	_, err := manager.Login(context.Background(), auth.LoginRequest{Email: "x", Password: "y"})
	require.NoError(t, err)
	manager.Start()

	require.Eventually(t, func() bool {
		return manager.Token() == fresh
	}, 2*time.Second, 10*time.Millisecond, "expired token should be refreshed by the timer")
	assert.True(t, manager.IsAuthenticated())
}

func TestManager_InterceptorRefreshesAndReplays(t *testing.T) {
	stale := makeToken(t, "user-1", time.Now().Add(time.Hour))
	fresh := makeToken(t, "user-1", time.Now().Add(2*time.Hour))
	stub := newAuthStub(t, stale)
	stub.refreshToken.Store(fresh)

	stub.router.GET("/api/profile", func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer "+fresh {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "token expired"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": "user-1"})
	})

	manager, client := newTestManager(t, stub)
	_, err := manager.Login(context.Background(), auth.LoginRequest{Email: "x", Password: "y"})
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, client.Get(context.Background(), "/api/profile", &out))
	assert.Equal(t, "user-1", out["id"])
	assert.Equal(t, int32(1), stub.refreshCalls.Load())
	assert.Equal(t, fresh, manager.Token(), "session carries the refreshed token")
}

func TestManager_InterceptorGivesUpAfterSecond401(t *testing.T) {
	stale := makeToken(t, "user-1", time.Now().Add(time.Hour))
	stub := newAuthStub(t, stale)

	var profileCalls atomic.Int32
	stub.router.GET("/api/profile", func(c *gin.Context) {
		profileCalls.Add(1)
		c.JSON(http.StatusUnauthorized, gin.H{"message": "nope"})
	})

	manager, client := newTestManager(t, stub)
	_, err := manager.Login(context.Background(), auth.LoginRequest{Email: "x", Password: "y"})
	require.NoError(t, err)

	err = client.Get(context.Background(), "/api/profile", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.Equal(t, int32(2), profileCalls.Load(), "one replay, then give up")
	assert.Equal(t, int32(1), stub.refreshCalls.Load())
}
