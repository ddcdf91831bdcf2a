package httpapi

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/server/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const userKey ctxKey = "user"

func userFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := h.now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		elapsed := h.now().Sub(start)

		h.metrics.RecordRequest(r.Method, route, status, elapsed)
		h.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *Handler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				h.logger.Error(r.Context(), "panic", "value", p, "stack", string(debug.Stack()))
				writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the bearer token to a user. Any problem with the
// token yields 401.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, common.BearerPrefix)
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Authorization token is required"})
			return
		}

		user, err := h.users.Authenticate(r.Context(), token)
		if err != nil {
			if statusFor(err) == http.StatusUnauthorized {
				writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Invalid or expired token"})
				return
			}
			h.writeError(r.Context(), w, err, "")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// requireFreshSession rejects wallets that have not connected within the
// session lifetime.
func (h *Handler) requireFreshSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Wallet verification failed"})
			return
		}
		if _, err := h.users.CheckSession(r.Context(), user.WalletAddress); err != nil {
			if statusFor(err) == http.StatusUnauthorized {
				writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Wallet session expired. Please reconnect."})
				return
			}
			h.writeError(r.Context(), w, err, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
