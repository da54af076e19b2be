package yawebhook

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SecretToken rejects deliveries whose SecretTokenHeader does not match.
//
// Example:
//
//	engine.POST("/webhook", yawebhook.NewSecretToken("secret").Handle, handler.Handle)
type SecretToken struct {
	token []byte
}

var _ Middleware = (*SecretToken)(nil)

func NewSecretToken(token string) *SecretToken {
	return &SecretToken{token: []byte(token)}
}

func (s *SecretToken) Handle(c *gin.Context) {
	if len(s.token) == 0 {
		c.Next()

		return
	}

	received := []byte(c.GetHeader(SecretTokenHeader))

	if subtle.ConstantTimeCompare(received, s.token) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidSecretToken.Error()})

		return
	}

	c.Next()
}
