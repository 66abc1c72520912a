package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/flashmart-api/internal/authz"
	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/service"
)

const identityKey = "identity"

// IdentityResolver turns an Authorization header into the caller's identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, header string) (model.Identity, error)
}

// Authorizer decides whether an identity may act on a resource.
type Authorizer interface {
	Authorize(id model.Identity, obj, act string) error
}

func AuthMiddleware(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := resolver.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			if !isCredentialError(err) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": authMessage(err)})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// isCredentialError separates a bad token from a failure to check it.
func isCredentialError(err error) bool {
	return errors.Is(err, service.ErrUnauthorized) ||
		errors.Is(err, service.ErrInvalidToken) ||
		errors.Is(err, service.ErrTokenExpired)
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, service.ErrInvalidToken):
		return "invalid token"
	default:
		return "unauthorized"
	}
}

// RequirePermission must run after AuthMiddleware.
func RequirePermission(enforcer Authorizer, obj, act string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := enforcer.Authorize(id, obj, act); err != nil {
			if errors.Is(err, authz.ErrForbidden) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.Next()
	}
}

func GetIdentity(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return model.Identity{}, false
	}
	id, ok := v.(model.Identity)
	return id, ok
}

func GetUserID(c *gin.Context) string {
	id, _ := GetIdentity(c)
	return id.UserID
}
