package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"sentinel/internal/gateway"
	"sentinel/internal/tierpolicy"
)

// claims is the subset of the bearer token payload the gateway cares
// about: who the caller is and what tier they're on. sub/tier follow the
// standard JWT claim-naming convention rather than inventing new names.
type claims struct {
	jwt.RegisteredClaims
	Tier        string `json:"tier"`
	TOTPSecret  string `json:"totp_secret,omitempty"`
}

// tokenAuth resolves a bearer token to an Identity and stores it on the
// gin context; this is the authentication step that must precede
// Gateway.Execute. A missing/invalid/expired token short-circuits with
// 401 before the handler runs.
func (s *Server) tokenAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw := strings.TrimPrefix(header, "Bearer ")
		if raw == "" || raw == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var parsed claims
		_, err := jwt.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return s.jwtSecret, nil
		})
		if err != nil || parsed.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		tier, err := tierpolicy.ParseTier(parsed.Tier)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(identityKey, gateway.Identity{UserID: parsed.Subject, Tier: tier})
		c.Set(totpSecretKey, parsed.TOTPSecret)
		c.Next()
	}
}

const (
	identityKey   = "sentinel_identity"
	totpSecretKey = "sentinel_totp_secret"
)

func identityFrom(c *gin.Context) (gateway.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return gateway.Identity{}, false
	}
	ident, ok := v.(gateway.Identity)
	return ident, ok
}

// totpSecretFrom returns the caller's enrolled TOTP secret, if any. An
// empty string means the caller never enrolled, so step-up verification
// is skipped for them per otp.go's OTPVerifier doc comment.
func totpSecretFrom(c *gin.Context) string {
	v, _ := c.Get(totpSecretKey)
	s, _ := v.(string)
	return s
}

// requireProOrMax blocks free-tier callers from the preset endpoints,
// which are scoped to paid tiers only.
func requireProOrMax() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := identityFrom(c)
		if !ok || ident.Tier == tierpolicy.TierFree {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "tier", "upgrade_required": true})
			return
		}
		c.Next()
	}
}
