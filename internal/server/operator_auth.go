package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

const contextOperatorKey = "operator"

// OperatorAuthRequired checks the bearer token against server.operator_token.
// An empty token leaves the API open, which is only accepted outside production.
func (s *Server) OperatorAuthRequired() gin.HandlerFunc {
	expected := strings.TrimSpace(s.cfg.Server.OperatorToken)
	return func(c *gin.Context) {
		if expected == "" {
			if s.cfg.IsProduction() {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			c.Next()
			return
		}

		parts := strings.Fields(strings.TrimSpace(c.GetHeader("Authorization")))
		if len(parts) != 2 || parts[0] != "Bearer" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextOperatorKey, true)
		c.Next()
	}
}
