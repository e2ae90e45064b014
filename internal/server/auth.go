package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"mutual/internal/domain"
	"mutual/internal/logger"
)

const defaultSessionTTL = 12 * time.Hour

type AuthConfig struct {
	JWTSecret  string
	CookieName string
	DevLogin   bool
	Logger     *slog.Logger
}

type identityKey struct{}

func (c AuthConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Default()
}

func (c AuthConfig) cookieName() string {
	if c.CookieName == "" {
		return "mutual_session"
	}
	return c.CookieName
}

func withIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// identityFromContext returns the zero Identity for anonymous requests.
func identityFromContext(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(identityKey{}).(domain.Identity)
	return id
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	Wallet  string `json:"wallet,omitempty"`
}

func (c sessionClaims) identity() domain.Identity {
	id := domain.Identity{
		OAuth: &domain.OAuthIdentity{
			Login:     c.Subject,
			Name:      c.Name,
			Email:     c.Email,
			AvatarURL: c.Picture,
		},
	}
	if c.Wallet != "" {
		id.Wallet = &domain.WalletIdentity{Address: c.Wallet}
	}
	return id
}

func authenticateJWT(token string, secret string) (domain.Identity, error) {
	if strings.TrimSpace(secret) == "" {
		return domain.Identity{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &sessionClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return domain.Identity{}, err
	}
	if !parsed.Valid {
		return domain.Identity{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return domain.Identity{}, errors.New("subject claim required")
	}
	return claims.identity(), nil
}

// SignSessionToken mints the HS256 session token the API accepts.
func SignSessionToken(secret string, in DevLoginRequest, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	if strings.TrimSpace(in.Login) == "" {
		return "", errors.New("login is required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.TrimSpace(in.Login),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:    in.Name,
		Email:   in.Email,
		Picture: in.Picture,
		Wallet:  in.Wallet,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware attaches the session identity when one is presented.
// Anonymous requests pass through; operations that need an identity reject
// them. A malformed Authorization header is always a 401, while a stale
// session cookie is treated as anonymous.
func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}

			if authz := strings.TrimSpace(req.Header.Get("Authorization")); authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				id, err := authenticateJWT(token, cfg.JWTSecret)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withIdentity(req.Context(), id)))
				return
			}

			if cookie, err := req.Cookie(cfg.cookieName()); err == nil && cookie.Value != "" {
				id, err := authenticateJWT(cookie.Value, cfg.JWTSecret)
				if err != nil {
					cfg.logger().Debug("ignoring session cookie", "error", err)
					next.ServeHTTP(w, req)
					return
				}
				next.ServeHTTP(w, req.WithContext(withIdentity(req.Context(), id)))
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
