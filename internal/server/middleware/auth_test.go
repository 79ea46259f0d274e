package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estate-copilot/server/internal/copilot/model"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject, issuer string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func authTestRouter(cfg model.AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", Auth(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": UserID(c)})
	})
	return r
}

func doAuthRequest(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAcceptsValidToken(t *testing.T) {
	r := authTestRouter(model.AuthConfig{JWTSecret: testSecret})
	token := signToken(t, testSecret, "user42", "")

	w := doAuthRequest(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user42")
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	r := authTestRouter(model.AuthConfig{JWTSecret: testSecret})

	w := doAuthRequest(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	r := authTestRouter(model.AuthConfig{JWTSecret: testSecret})
	token := signToken(t, "other-secret", "user42", "")

	w := doAuthRequest(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	r := authTestRouter(model.AuthConfig{JWTSecret: testSecret})
	claims := jwt.RegisteredClaims{
		Subject:   "user42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	w := doAuthRequest(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsMissingSubject(t *testing.T) {
	r := authTestRouter(model.AuthConfig{JWTSecret: testSecret})
	token := signToken(t, testSecret, "", "")

	w := doAuthRequest(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthEnforcesIssuer(t *testing.T) {
	r := authTestRouter(model.AuthConfig{JWTSecret: testSecret, Issuer: "estate-copilot"})

	good := signToken(t, testSecret, "user42", "estate-copilot")
	assert.Equal(t, http.StatusOK, doAuthRequest(r, "Bearer "+good).Code)

	bad := signToken(t, testSecret, "user42", "someone-else")
	assert.Equal(t, http.StatusUnauthorized, doAuthRequest(r, "Bearer "+bad).Code)
}

func TestAuthRejectsMalformedHeader(t *testing.T) {
	r := authTestRouter(model.AuthConfig{JWTSecret: testSecret})
	assert.Equal(t, http.StatusUnauthorized, doAuthRequest(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, doAuthRequest(r, "Bearer").Code)
}
