package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

func makeToken(subject, role string, exp time.Time) string {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := tok.SignedString(testSecret)
	return signed
}

func newVerifier() JWTVerifier { return JWTVerifier{Secret: testSecret} }

// withRole injects role into context using the unexported key (same package).
func withRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole{}, role)
}

// ─── JWTVerifier ─────────────────────────────────────────────────────────────

func TestJWTVerifier_Parse(t *testing.T) {
	valid := makeToken("admin-1", "admin", time.Now().Add(time.Hour))
	parts := strings.Split(valid, ".")

	tests := []struct {
		name    string
		token   string
		secret  []byte
		wantErr bool
	}{
		{"valid", valid, testSecret, false},
		{"expired", makeToken("admin-1", "admin", time.Now().Add(-time.Hour)), testSecret, true},
		{"wrong secret", valid, []byte("wrong-secret"), true},
		{"malformed", "not.a.valid.token", testSecret, true},
		{"tampered payload", parts[0] + ".dGFtcGVyZWQ." + parts[2], testSecret, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := JWTVerifier{Secret: tt.secret}.Parse(tt.token)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claims.Subject != "admin-1" || claims.Role != "admin" {
				t.Fatalf("unexpected claims: %+v", claims)
			}
		})
	}
}

// ─── RequireUser ─────────────────────────────────────────────────────────────

func callRequireUser(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	RequireUser(newVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())
		role, _ := RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(uid + "/" + role))
	})).ServeHTTP(rr, req)
	return rr
}

func TestRequireUser(t *testing.T) {
	good := makeToken("admin-42", "admin", time.Now().Add(time.Hour))

	tests := []struct {
		name     string
		target   string
		header   map[string]string
		wantCode int
		wantBody string
	}{
		{"bearer", "/", map[string]string{"Authorization": "Bearer " + good}, http.StatusOK, "admin-42/admin"},
		{"missing header", "/", nil, http.StatusUnauthorized, ""},
		{"basic scheme", "/", map[string]string{"Authorization": "Basic dXNlcjpwYXNz"}, http.StatusUnauthorized, ""},
		{"invalid token", "/", map[string]string{"Authorization": "Bearer invalid.token.here"}, http.StatusUnauthorized, ""},
		{"expired", "/", map[string]string{"Authorization": "Bearer " + makeToken("u", "admin", time.Now().Add(-time.Hour))}, http.StatusUnauthorized, ""},
		{"websocket query token", "/v1/import/events?access_token=" + good, map[string]string{"Upgrade": "websocket"}, http.StatusOK, "admin-42/admin"},
		{"query token on plain request", "/?access_token=" + good, nil, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rr := callRequireUser(req)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			if tt.wantBody != "" && rr.Body.String() != tt.wantBody {
				t.Fatalf("expected body %q, got %q", tt.wantBody, rr.Body.String())
			}
		})
	}
}

// ─── RequireRole / RequireAdmin ──────────────────────────────────────────────

func callWithRole(mw func(http.Handler) http.Handler, role string) *httptest.ResponseRecorder {
	ctx := context.Background()
	if role != "" {
		ctx = withRole(ctx, role)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/import/draft", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)
	return rr
}

func TestRequireAdmin(t *testing.T) {
	for role, want := range map[string]int{
		"admin": http.StatusOK,
		"ADMIN": http.StatusOK,
		"user":  http.StatusForbidden,
		"":      http.StatusForbidden,
	} {
		rr := callWithRole(RequireAdmin, role)
		if rr.Code != want {
			t.Fatalf("role %q: expected %d, got %d", role, want, rr.Code)
		}
		if want == http.StatusForbidden && !strings.Contains(rr.Body.String(), "ADMIN_REQUIRED") {
			t.Fatalf("role %q: expected ADMIN_REQUIRED, got %s", role, rr.Body.String())
		}
	}
}

func TestRequireRole_Multiple(t *testing.T) {
	mw := RequireRole("admin", " Editor ")
	if rr := callWithRole(mw, "editor"); rr.Code != http.StatusOK {
		t.Fatalf("editor: expected 200, got %d", rr.Code)
	}
	rr := callWithRole(mw, "user")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("user: expected 403, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "ROLE_REQUIRED") {
		t.Fatalf("expected ROLE_REQUIRED, got %s", rr.Body.String())
	}
}
