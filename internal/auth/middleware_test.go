package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/gdg-garage/facility-api/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

type whoAmIResponse struct {
	Body struct {
		UserID uint        `json:"user_id"`
		Role   models.Role `json:"role"`
	}
}

func newProtectedRouter(h *AuthHandler, roles ...models.Role) *chi.Mux {
	r := chi.NewRouter()
	api := humachi.New(r, huma.DefaultConfig("Test API", "1.0.0"))
	huma.Get(api, "/whoami", func(ctx context.Context, _ *struct{}) (*whoAmIResponse, error) {
		p, err := CurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		res := &whoAmIResponse{}
		res.Body.UserID = p.UserID
		res.Body.Role = p.Role
		return res, nil
	}, h.Protect(api, roles...))
	return r
}

func signToken(t *testing.T, secret string, userID uint, role models.Role, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(ttl).Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func TestMiddleware_SlidingSession(t *testing.T) {
	cfg := testConfig()
	handler := NewAuthHandler(cfg, nil, nil)
	router := newProtectedRouter(handler)

	t.Run("TokenRenewed", func(t *testing.T) {
		// Expires in 11 hours, less than TokenDuration/2 = 12 hours
		tokenString := signToken(t, cfg.JWTSecret, 1, models.RoleResident, 11*time.Hour)

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tokenString})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status OK, got %v: %s", rr.Code, rr.Body.String())
		}

		found := false
		for _, c := range rr.Result().Cookies() {
			if c.Name == TokenCookie {
				found = true
				if c.Value == tokenString {
					t.Errorf("expected new token value, but got the old one")
				}
				break
			}
		}
		if !found {
			t.Errorf("expected new auth_token cookie to be set")
		}
	})

	t.Run("TokenNotRenewed", func(t *testing.T) {
		// Expires in 13 hours, more than TokenDuration/2 = 12 hours
		tokenString := signToken(t, cfg.JWTSecret, 1, models.RoleResident, 13*time.Hour)

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tokenString})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status OK, got %v", rr.Code)
		}
		for _, c := range rr.Result().Cookies() {
			if c.Name == TokenCookie {
				t.Errorf("expected no new auth_token cookie, but found one")
			}
		}
	})

	t.Run("BearerNeverRenewed", func(t *testing.T) {
		tokenString := signToken(t, cfg.JWTSecret, 1, models.RoleResident, time.Hour)

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+tokenString)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status OK, got %v", rr.Code)
		}
		if len(rr.Result().Cookies()) != 0 {
			t.Errorf("expected bearer sessions not to set cookies")
		}
		if !strings.Contains(rr.Body.String(), `"user_id":1`) {
			t.Errorf("expected principal in response, got %s", rr.Body.String())
		}
	})
}

func TestMiddleware_Rejects(t *testing.T) {
	cfg := testConfig()
	handler := NewAuthHandler(cfg, nil, nil)
	router := newProtectedRouter(handler)

	tests := map[string]func(*http.Request){
		"NoToken": func(*http.Request) {},
		"BadToken": func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer garbage")
		},
		"Expired": func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: TokenCookie, Value: signToken(t, cfg.JWTSecret, 1, models.RoleResident, -time.Minute)})
		},
	}

	for name, prepare := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			prepare(req)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rr.Code)
			}
		})
	}
}

func TestMiddleware_RequireRole(t *testing.T) {
	cfg := testConfig()
	handler := NewAuthHandler(cfg, nil, nil)
	router := newProtectedRouter(handler, models.RoleAdmin)

	call := func(role models.Role) int {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, cfg.JWTSecret, 7, role, time.Hour))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := call(models.RoleResident); code != http.StatusForbidden {
		t.Errorf("expected resident to get 403, got %d", code)
	}
	if code := call(models.RoleAdmin); code != http.StatusOK {
		t.Errorf("expected admin to get 200, got %d", code)
	}
}

func TestMiddleware_RoleReloadedFromDatabase(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	handler := NewAuthHandler(cfg, db, nil)
	router := newProtectedRouter(handler, models.RoleAdmin)

	user := models.User{Name: "demoted", Email: "demoted@example.com", Role: models.RoleResident}
	db.Create(&user)

	// Token still claims ADMIN, the stored role wins
	token := signToken(t, cfg.JWTSecret, user.ID, models.RoleAdmin, time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 after demotion, got %d", rr.Code)
	}

	db.Unscoped().Delete(&user)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for deleted account, got %d", rr.Code)
	}
}
