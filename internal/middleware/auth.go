package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const actorIDKey = contextKey("actorID")

// adminRole is the role claim required for ingestion endpoints. Role
// issuance and storage live in the portal's auth service; this middleware
// only verifies what the token asserts.
const adminRole = "admin"

// portalClaims are the registered claims plus the portal's role claim.
type portalClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// AdminAuthMiddleware validates the bearer token issued by the portal's auth
// service and requires the admin role. The authenticated subject becomes the
// actor recorded in the audit trail.
func AdminAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := GetLoggerFromCtx(c.Request.Context())

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims := &portalClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token has expired"
			}
			logger.Warn("rejected token", slog.String("error", errString(err)))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		if claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}
		if claims.Role != adminRole {
			logger.Warn("non-admin attempted ingestion endpoint", slog.String("actor", claims.Subject))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), actorIDKey, claims.Subject)
		ctx = context.WithValue(ctx, loggerCtxKey, logger.With(slog.String("actor", claims.Subject)))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetActorFromCtx returns the authenticated actor identifier, if any.
func GetActorFromCtx(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorIDKey).(string)
	return actor, ok && actor != ""
}

func errString(err error) string {
	if err == nil {
		return "token invalid"
	}
	return err.Error()
}
