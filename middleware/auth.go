package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront-service/common/auth"
	apperrors "storefront-service/common/errors"
)

const (
	UserContextKey = "userID"
	RoleContextKey = "role"

	AccessTokenCookie = "access_token"
)

// AuthMiddleware accepts the session cookie or a Bearer token and puts the
// caller's id and role on the context.
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c.GetHeader("Authorization"))
		if tokenStr == "" {
			if v, err := c.Cookie(AccessTokenCookie); err == nil {
				tokenStr = v
			}
		}
		if tokenStr == "" {
			apperrors.Respond(c, apperrors.ErrUnauthorized.With("Missing token"))
			return
		}

		claims, err := tokens.ParseAndValidateToken(tokenStr, auth.TokenTypeAccess)
		if err != nil {
			apperrors.Respond(c, apperrors.ErrUnauthorized.With("Invalid or expired token"))
			return
		}
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			apperrors.Respond(c, apperrors.ErrUnauthorized.With("Invalid token subject"))
			return
		}

		c.Set(UserContextKey, userID)
		c.Set(RoleContextKey, claims.Role)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// GetUserID extracts the authenticated user id from the Gin context.
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(uuid.UUID); ok && id != uuid.Nil {
			return id, nil
		}
	}
	return uuid.Nil, apperrors.ErrUnauthorized.With("User ID not found in context")
}

// RequireRole restricts a group to callers holding role. Must run after
// AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r, _ := c.Get(RoleContextKey); r != role {
			apperrors.Respond(c, apperrors.ErrForbidden.With("Access denied"))
			return
		}
		c.Next()
	}
}
