package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/estate-copilot/server/internal/copilot/model"
	errx "github.com/estate-copilot/server/internal/core/error"
)

// UserIDKey is the gin context key carrying the authenticated user id.
const UserIDKey = "user_id"

// Auth verifies the Bearer token on every request and stores the subject
// claim as the user id. Tokens must be HS256 signed with the shared secret.
func Auth(cfg model.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearer(c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthorized(c, err)
			return
		}

		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.Issuer))
		}

		claims := jwt.RegisteredClaims{}
		parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
			return []byte(cfg.JWTSecret), nil
		}, opts...)
		if err != nil || !parsed.Valid {
			abortUnauthorized(c, err)
			return
		}
		if claims.Subject == "" {
			abortUnauthorized(c, errors.New("token has no subject"))
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Next()
	}
}

func extractBearer(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("malformed Authorization header")
	}
	return parts[1], nil
}

func abortUnauthorized(c *gin.Context, err error) {
	authErr := errx.Authentication(err)
	c.AbortWithStatusJSON(authErr.Status, gin.H{"error": authErr.Message})
}

// UserID returns the authenticated user id set by Auth.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
