package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ident-plane/internal/security"
)

const identityContextKey = "auth.identity"

// AuthRequired validates the Bearer token on the request and stores the
// resulting claims in the gin context. Requests without a valid token are
// rejected before the handler runs.
func AuthRequired(tokens *security.TokenProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{
				Success: false, Message: "Invalid credential!",
			})
			return
		}
		claims, err := tokens.Validate(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{
				Success: false, Message: "Invalid credential!",
			})
			return
		}
		c.Set(identityContextKey, claims)
		c.Next()
	}
}

// IdentityFromContext returns the claims stored by AuthRequired, or nil when
// the request was not authenticated.
func IdentityFromContext(c *gin.Context) *security.Claims {
	v, ok := c.Get(identityContextKey)
	if !ok {
		return nil
	}
	claims, ok := v.(*security.Claims)
	if !ok {
		return nil
	}
	return claims
}
