package chi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlejoJamC/airweave/internal/domain"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// AnonymousPrincipal is attached to requests when authentication is disabled.
var AnonymousPrincipal = domain.Principal{ID: "anonymous"}

type principalKey struct{}

// ContextWithPrincipal stores p in ctx.
func ContextWithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated principal.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	if !ok || p.IsZero() {
		return domain.Principal{}, false
	}
	return p, true
}

// APIKey binds a static bearer token to a principal.
type APIKey struct {
	Key       string
	Principal domain.Principal
}

// JWTOptions configures HS256 bearer token verification. Empty Secret disables it.
type JWTOptions struct {
	Secret      []byte
	Issuer      string
	TenantClaim string
}

// Authenticator resolves bearer credentials to principals.
type Authenticator struct {
	keys map[string]domain.Principal
	jwt  JWTOptions
}

// NewAuthenticator creates an authenticator. With no keys and no JWT secret
// every request runs as AnonymousPrincipal.
func NewAuthenticator(keys []APIKey, jwtOpts JWTOptions) *Authenticator {
	m := make(map[string]domain.Principal, len(keys))
	for _, k := range keys {
		if k.Key != "" {
			m[k.Key] = k.Principal
		}
	}
	if jwtOpts.TenantClaim == "" {
		jwtOpts.TenantClaim = "tenant"
	}
	return &Authenticator{keys: m, jwt: jwtOpts}
}

// Enabled reports whether any credential source is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.keys) > 0 || len(a.jwt.Secret) > 0
}

// Middleware validates the Authorization header and stores the principal in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), AnonymousPrincipal)))
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := exemptPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "missing authorization header")
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(auth, bearerPrefix) {
			writeError(w, http.StatusUnauthorized,
				ErrorCodeUnauthorized, "authorization header must use Bearer scheme")
			return
		}

		p, err := a.Authenticate(auth[len(bearerPrefix):])
		if err != nil {
			writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

var (
	errInvalidAPIKey = errors.New("invalid api key")
	errInvalidToken  = errors.New("invalid token")
)

// Authenticate resolves a bearer token. Static keys are checked first, then JWT.
func (a *Authenticator) Authenticate(token string) (domain.Principal, error) {
	if p, ok := a.keys[token]; ok {
		return p, nil
	}
	if len(a.jwt.Secret) == 0 {
		return domain.Principal{}, errInvalidAPIKey
	}
	return a.parseJWT(token)
}

func (a *Authenticator) parseJWT(raw string) (domain.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.jwt.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.jwt.Issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.jwt.Secret, nil
	}, opts...)
	if err != nil {
		return domain.Principal{}, errInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Principal{}, errInvalidToken
	}
	tenant, _ := claims[a.jwt.TenantClaim].(string)

	return domain.Principal{ID: sub, Tenant: tenant}, nil
}
