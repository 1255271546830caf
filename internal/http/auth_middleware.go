package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/skybtp/crewboard/internal/domain"
)

type authContextKey string

type authInfo struct {
	UserID    string
	CompanyID string
	Role      string
}

const contextKeyAuth authContextKey = "crewboard-auth-info"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request has a valid bearer token before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// requireAdmin rejects callers that are not company administrators. It must
// run after requireAuth.
func (r *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		info, ok := authInfoFromContext(req.Context())
		if !ok {
			r.logger.Error("auth context missing for admin route", "path", req.URL.Path)
			writeError(w, http.StatusInternalServerError, codeInternal, "authorization context missing")
			return
		}
		if info.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, codeForbidden, "administrator access required")
			return
		}
		if info.CompanyID == "" {
			writeError(w, http.StatusForbidden, codeForbidden, "account is not attached to a company")
			return
		}
		next(w, req)
	}
}

// ensureAuth validates the bearer token and enriches the context. Streaming
// routes may pass the token as access_token query parameter.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, authInfo, bool) {
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		if q := strings.TrimSpace(req.URL.Query().Get("access_token")); q != "" && isStreamPath(req.URL.Path) {
			token, err = q, nil
		}
	}
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return req.Context(), authInfo{}, false
	}
	user, _, err := r.auth.Authorize(req.Context(), token)
	if err != nil {
		r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication failed")
		return req.Context(), authInfo{}, false
	}
	info := authInfo{UserID: user.ID, CompanyID: user.CompanyID, Role: user.Role}
	ctx := context.WithValue(req.Context(), contextKeyAuth, info)
	return ctx, info, true
}

// authInfoFromContext extracts auth metadata from context.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	return info, ok
}

func isStreamPath(path string) bool {
	return path == "/ws/teams" || path == "/events/teams"
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
