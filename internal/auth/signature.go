package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// SignatureHeader carries the sender's HMAC of the raw body.
	SignatureHeader = "X-Hub-Signature-256"

	signaturePrefix = "sha256="

	// rawBodyCtxKey is the Gin context key holding the verified request body.
	rawBodyCtxKey = "raw_body"
)

// Verifier checks webhook signatures against a shared secret.
// A Verifier without a secret runs in open mode and accepts every request.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &Verifier{}
	}
	return &Verifier{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Sign returns the header value a sender holding the same secret would send.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature with the HMAC-SHA-256 of body in constant time.
func (v *Verifier) Verify(body []byte, signature string) bool {
	if !v.Enabled() {
		return true
	}
	return hmac.Equal([]byte(v.Sign(body)), []byte(strings.TrimSpace(signature)))
}

// SignatureMiddleware reads the request body once, authenticates it and
// stores it on the context for RawBody.
// Missing header → 400, bad signature → 401. Both only apply when a secret is set.
func SignatureMiddleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		if v.Enabled() {
			signature := strings.TrimSpace(c.GetHeader(SignatureHeader))
			if signature == "" {
				slog.WarnContext(c.Request.Context(), "webhook rejected: missing signature header")
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing signature"})
				return
			}
			if !v.Verify(body, signature) {
				slog.WarnContext(c.Request.Context(), "webhook rejected: invalid signature")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
				return
			}
		}

		c.Set(rawBodyCtxKey, body)
		c.Next()
	}
}

// RawBody returns the body captured by SignatureMiddleware.
func RawBody(c *gin.Context) []byte {
	v, _ := c.Get(rawBodyCtxKey)
	b, _ := v.([]byte)
	return b
}
