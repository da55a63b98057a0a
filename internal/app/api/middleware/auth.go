package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/lingobill/pkg/config"
	"github.com/fatflowers/lingobill/pkg/logctx"
	"github.com/fatflowers/lingobill/pkg/response"
)

const (
	HeaderAdminToken = "X-Admin-Token"
	tokenLeeway      = 30 * time.Second
)

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// JWTVerifier accepts HS256 tokens whose subject is the user id.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTVerifier(cfg *cfgpkg.Config) *JWTVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(tokenLeeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.Auth.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Auth.Issuer))
	}
	if cfg.Auth.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Auth.Audience))
	}
	return &JWTVerifier{secret: []byte(cfg.Auth.JWTSecret), parser: jwt.NewParser(opts...)}
}

func (v *JWTVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	if len(v.secret) == 0 {
		return "", fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}
	claims := &jwt.RegisteredClaims{}
	tkn, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !tkn.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return sub, nil
}

func bearerToken(c *gin.Context) string {
	hdr := c.GetHeader("Authorization")
	if len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
		return strings.TrimSpace(hdr[7:])
	}
	return ""
}

// AuthMiddleware identifies the caller when a valid bearer token is present
// and never rejects. Pair it with RequireUser on routes that need a user.
func AuthMiddleware(v TokenVerifier, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			c.Next()
			return
		}
		userID, err := v.Verify(tok)
		if err != nil {
			logctx.FromGin(c, base).Infow("auth_token_rejected", "err", err)
			c.Next()
			return
		}
		logctx.WithUser(c, base, userID)
		c.Next()
	}
}

// RequireUser aborts with 401 unless AuthMiddleware identified the caller.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(logctx.KeyUserID) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, nil))
			return
		}
		c.Next()
	}
}

// AdminMiddleware guards operator endpoints with a shared token. An empty
// configured token disables the admin surface.
func AdminMiddleware(cfg *cfgpkg.Config, base *zap.SugaredLogger) gin.HandlerFunc {
	want := []byte(cfg.Admin.Token)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(HeaderAdminToken))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			logctx.FromGin(c, base).Warnw("admin_token_rejected", "path", c.FullPath(), "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorT[any](response.APIResponseCodeForbidden, nil))
			return
		}
		c.Next()
	}
}
