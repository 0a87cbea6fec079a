package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-admin/config"
)

func newManager(t *testing.T) *Manager {
	m, err := NewManager(config.AuthConfig{JWTSecret: "s3cret", Issuer: "campus-admin", TokenTTL: time.Hour})
	require.NoError(t, err)
	return m
}

func TestNewManager_RequiresSecret(t *testing.T) {
	_, err := NewManager(config.AuthConfig{})
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestManager_IssueValidate(t *testing.T) {
	m := newManager(t)
	token, exp, err := m.Issue("ops", "Operator")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "Operator", claims.Name)
	assert.NotEmpty(t, claims.ID)
}

func TestManager_Validate_Rejects(t *testing.T) {
	m := newManager(t)

	other, err := NewManager(config.AuthConfig{JWTSecret: "other", Issuer: "campus-admin", TokenTTL: time.Hour})
	require.NoError(t, err)
	foreign, _, err := other.Issue("ops", "")
	require.NoError(t, err)

	wrongIssuer, err := NewManager(config.AuthConfig{JWTSecret: "s3cret", Issuer: "someone-else", TokenTTL: time.Hour})
	require.NoError(t, err)
	misissued, _, err := wrongIssuer.Issue("ops", "")
	require.NoError(t, err)

	expiredMgr := newManager(t)
	expiredMgr.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := expiredMgr.Issue("ops", "")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Issuer: "campus-admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	testCases := []struct {
		name  string
		token string
		want  error
	}{
		{name: "Garbage", token: "not-a-jwt", want: ErrInvalidToken},
		{name: "Other secret", token: foreign, want: ErrInvalidToken},
		{name: "Other issuer", token: misissued, want: ErrInvalidToken},
		{name: "Expired", token: expired, want: ErrExpiredToken},
		{name: "Alg none", token: none, want: ErrInvalidToken},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Validate(tc.token)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRequire(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)
	token, _, err := m.Issue("ops", "")
	require.NoError(t, err)

	router := gin.New()
	router.POST("/x", m.Require(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString(SubjectKey)})
	})

	testCases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "Missing", header: "", status: http.StatusUnauthorized, body: `{"error":"Missing authorization token"}`},
		{name: "Wrong scheme", header: "Basic abc", status: http.StatusUnauthorized, body: `{"error":"Invalid authorization format"}`},
		{name: "Bad token", header: "Bearer abc", status: http.StatusUnauthorized, body: `{"error":"Invalid token"}`},
		{name: "Valid", header: "Bearer " + token, status: http.StatusOK, body: `{"subject":"ops"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			assert.JSONEq(t, tc.body, w.Body.String())
		})
	}
}
