package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/facility-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID uint
	Role   models.Role
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(Principal)
	return p, ok && p.UserID != 0
}

// CurrentUser returns the caller or a 401 for handlers reached without the
// auth middleware.
func CurrentUser(ctx context.Context) (Principal, error) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return Principal{}, huma.Error401Unauthorized("Unauthorized")
	}
	return p, nil
}

// Middleware authenticates a request from a bearer token or the session
// cookie. The user is re-read so deleted accounts and role changes take effect
// before the token expires.
func (h *AuthHandler) Middleware(api huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		tokenString, fromCookie := h.requestToken(ctx)
		if tokenString == "" {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized: No token found")
			return
		}

		principal, exp, err := h.ParseToken(tokenString)
		if err != nil {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}

		if h.db != nil {
			var user models.User
			err := h.db.WithContext(ctx.Context()).Select("id", "role").First(&user, principal.UserID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized: Account no longer exists")
				return
			}
			if err != nil {
				h.logger.Error("Failed to load session user", zap.Uint("user_id", principal.UserID), zap.Error(err))
				huma.WriteErr(api, ctx, http.StatusInternalServerError, "Database error")
				return
			}
			principal.Role = user.Role
		}

		// Sliding session: refresh the cookie once it is past half its lifetime
		if fromCookie && !exp.IsZero() && time.Until(exp) < h.tokenDuration()/2 {
			if newToken, err := h.GenerateToken(principal.UserID, principal.Role); err == nil {
				ctx.AppendHeader("Set-Cookie", h.sessionCookie(newToken).String())
			}
		}

		next(huma.WithValue(ctx, PrincipalKey, principal))
	}
}

func (h *AuthHandler) requestToken(ctx huma.Context) (string, bool) {
	if authz := ctx.Header("Authorization"); authz != "" {
		if token, ok := strings.CutPrefix(authz, "Bearer "); ok {
			return strings.TrimSpace(token), false
		}
	}
	if raw := ctx.Header("Cookie"); raw != "" {
		cookies, err := http.ParseCookie(raw)
		if err != nil {
			return "", false
		}
		for _, c := range cookies {
			if c.Name == TokenCookie {
				return c.Value, true
			}
		}
	}
	return "", false
}

// RequireRole rejects callers whose role is not listed. It must run after
// Middleware.
func RequireRole(api huma.API, roles ...models.Role) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		p, ok := PrincipalFrom(ctx.Context())
		if !ok {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if !slices.Contains(roles, p.Role) {
			huma.WriteErr(api, ctx, http.StatusForbidden, "Access denied: requires role "+joinRoles(roles))
			return
		}
		next(ctx)
	}
}

// Protect is an operation option requiring an authenticated caller, and one
// of roles when any are given.
func (h *AuthHandler) Protect(api huma.API, roles ...models.Role) func(o *huma.Operation) {
	return func(o *huma.Operation) {
		o.Security = []map[string][]string{{"bearerAuth": {}}, {"cookieAuth": {}}}
		o.Middlewares = append(o.Middlewares, h.Middleware(api))
		if len(roles) > 0 {
			o.Middlewares = append(o.Middlewares, RequireRole(api, roles...))
		}
	}
}

func joinRoles(roles []models.Role) string {
	s := make([]string, len(roles))
	for i, r := range roles {
		s[i] = string(r)
	}
	return strings.Join(s, " or ")
}
