package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/polywatch/monitor/internal/domain"
)

// CtxSubject is the gin.Context key holding the dashboard token subject.
const CtxSubject = "subject"

// ──────────────────────────────────────────────────────────────────────────────
// DashboardJWTMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// DashboardJWTMiddleware validates an HS256 Bearer token signed with secret
// and stores its subject in the gin context. An empty secret lets every
// request through, matching the live alert stream.
func DashboardJWTMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c)
			return
		}

		sub, ok := parseSubject(strings.TrimPrefix(header, "Bearer "), secret)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   domain.ErrUnauthorized.Error(),
				"code":    "ERR_TOKEN_INVALID",
			})
			return
		}

		c.Set(CtxSubject, sub)
		c.Next()
	}
}

func parseSubject(tokenString string, secret []byte) (string, bool) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return "", false
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

// GetSubject returns the authenticated dashboard subject, or "" when the
// middleware did not run or auth is disabled.
func GetSubject(c *gin.Context) string {
	v, _ := c.Get(CtxSubject)
	s, _ := v.(string)
	return s
}
