package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AlejoJamC/airweave/internal/domain"
)

var testSecret = []byte("jwt-secret")

// principalHandler echoes the principal ID in a header.
func principalHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFromContext(r.Context()); ok {
			w.Header().Set("X-Principal", p.ID)
			w.Header().Set("X-Tenant", p.Tenant)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func keyAuth(keys ...string) *Authenticator {
	apiKeys := make([]APIKey, len(keys))
	for i, k := range keys {
		apiKeys[i] = APIKey{Key: k, Principal: domain.Principal{ID: "user-" + k, Tenant: "acme"}}
	}
	return NewAuthenticator(apiKeys, JWTOptions{})
}

func signToken(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func serveAuth(a *Authenticator, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, http.NoBody)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	a.Middleware(principalHandler()).ServeHTTP(rr, req)
	return rr
}

func TestAuthMiddleware_Disabled_Anonymous(t *testing.T) {
	rr := serveAuth(NewAuthenticator(nil, JWTOptions{}), "/search", "")

	if rr.Code != http.StatusOK {
		t.Errorf("disabled auth: got %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Header().Get("X-Principal"); got != AnonymousPrincipal.ID {
		t.Errorf("expected anonymous principal, got %q", got)
	}
}

func TestAuthMiddleware_EmptyStringKeys_Disabled(t *testing.T) {
	a := NewAuthenticator([]APIKey{{Key: ""}, {Key: ""}}, JWTOptions{})
	if a.Enabled() {
		t.Fatal("empty keys should not enable auth")
	}
}

func TestAuthMiddleware_MissingHeader_401(t *testing.T) {
	rr := serveAuth(keyAuth("secret"), "/search", "")

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("missing header: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Error.Code != ErrorCodeUnauthorized {
		t.Errorf("error code: got %s, want %s", errResp.Error.Code, ErrorCodeUnauthorized)
	}
}

func TestAuthMiddleware_BasicScheme_401(t *testing.T) {
	rr := serveAuth(keyAuth("secret"), "/search", "Basic dXNlcjpwYXNz")

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("basic scheme: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_InvalidKey_401(t *testing.T) {
	rr := serveAuth(keyAuth("secret"), "/search", "Bearer wrong-key")

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("invalid key: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_ValidKeys(t *testing.T) {
	a := keyAuth("key1", "key2")

	for _, key := range []string{"key1", "key2"} {
		rr := serveAuth(a, "/search", "Bearer "+key)

		if rr.Code != http.StatusOK {
			t.Errorf("key %s: got %d, want %d", key, rr.Code, http.StatusOK)
		}
		if got := rr.Header().Get("X-Principal"); got != "user-"+key {
			t.Errorf("key %s: principal %q", key, got)
		}
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	a := keyAuth("secret")

	for _, path := range []string{"/health", "/metrics"} {
		rr := serveAuth(a, path, "")
		if rr.Code != http.StatusOK {
			t.Errorf("exempt path %s: got %d, want %d", path, rr.Code, http.StatusOK)
		}
	}
}

func TestAuthMiddleware_JWT(t *testing.T) {
	a := NewAuthenticator(nil, JWTOptions{Secret: testSecret, Issuer: "airweave"})
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantUser   string
		wantTenant string
	}{
		{
			name: "valid",
			token: signToken(t, jwt.MapClaims{"sub": "bob", "tenant": "globex", "iss": "airweave", "exp": exp},
				jwt.SigningMethodHS256, testSecret),
			wantStatus: http.StatusOK,
			wantUser:   "bob",
			wantTenant: "globex",
		},
		{
			name: "wrong secret",
			token: signToken(t, jwt.MapClaims{"sub": "bob", "iss": "airweave", "exp": exp},
				jwt.SigningMethodHS256, []byte("other")),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong issuer",
			token: signToken(t, jwt.MapClaims{"sub": "bob", "iss": "someone", "exp": exp},
				jwt.SigningMethodHS256, testSecret),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired",
			token: signToken(t, jwt.MapClaims{"sub": "bob", "iss": "airweave", "exp": time.Now().Add(-time.Hour).Unix()},
				jwt.SigningMethodHS256, testSecret),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "missing subject",
			token: signToken(t, jwt.MapClaims{"iss": "airweave", "exp": exp},
				jwt.SigningMethodHS256, testSecret),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong algorithm",
			token: signToken(t, jwt.MapClaims{"sub": "bob", "iss": "airweave", "exp": exp},
				jwt.SigningMethodHS512, testSecret),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serveAuth(a, "/search", "Bearer "+tt.token)
			if rr.Code != tt.wantStatus {
				t.Fatalf("got %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantUser != "" && rr.Header().Get("X-Principal") != tt.wantUser {
				t.Errorf("principal %q, want %q", rr.Header().Get("X-Principal"), tt.wantUser)
			}
			if tt.wantTenant != "" && rr.Header().Get("X-Tenant") != tt.wantTenant {
				t.Errorf("tenant %q, want %q", rr.Header().Get("X-Tenant"), tt.wantTenant)
			}
		})
	}
}

func TestAuthMiddleware_KeyBeforeJWT(t *testing.T) {
	a := NewAuthenticator(
		[]APIKey{{Key: "static", Principal: domain.Principal{ID: "svc"}}},
		JWTOptions{Secret: testSecret},
	)

	rr := serveAuth(a, "/search", "Bearer static")
	if rr.Code != http.StatusOK || rr.Header().Get("X-Principal") != "svc" {
		t.Errorf("static key: got %d principal %q", rr.Code, rr.Header().Get("X-Principal"))
	}
}
