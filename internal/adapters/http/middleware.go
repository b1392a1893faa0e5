package httpadapter

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"modelmarket/internal/adapters/http/apierr"
	"modelmarket/internal/auth"
	"modelmarket/internal/logger"
	"modelmarket/internal/session"
)

type claimsKey struct{}

func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return c
}

func userID(r *http.Request) string {
	if c := claimsFrom(r.Context()); c != nil {
		return c.UserID
	}
	return ""
}

// requestContext copies chi's request id into the logger context.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.ContextWithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.Info("request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start).String(),
					"request_id", middleware.GetReqID(r.Context()),
					"remote_addr", r.RemoteAddr,
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func recovery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					requestID := middleware.GetReqID(r.Context())
					log.Error("panic recovered",
						"error", rec,
						"stack_trace", string(debug.Stack()),
						"request_id", requestID,
						"method", r.Method,
						"path", r.URL.Path,
					)
					apierr.WriteError(w, apierr.Internal("an unexpected error occurred"), requestID)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken reads the session token from the Authorization header, or from
// the access_token query parameter for WebSocket upgrades.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// guard resolves the session of every request and applies the route kind's decision.
func (s *Server) guard(kind session.RouteKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := session.NewTokenProvider(s.auth, bearerToken(r))
			defer p.Dispose()
			if err := p.Initialize(r.Context()); err != nil {
				// client went away before the session resolved
				return
			}
			st := p.Current()

			d := session.Decide(kind, st)
			switch d.Action {
			case session.Redirect:
				w.Header().Set("Location", d.Location)
				if kind == session.Protected {
					s.writeError(w, r, apierr.Unauthorized("sign in required"))
					return
				}
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
				return
			case session.RenderLoading:
				return
			}

			ctx := r.Context()
			if st.Claims != nil {
				ctx = context.WithValue(ctx, claimsKey{}, st.Claims)
				ctx = logger.ContextWithUserID(ctx, st.Claims.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// trainerOnly admits the external trainer by its shared token.
func (s *Server) trainerOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Trainer-Token")
		if s.trainerToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.trainerToken)) != 1 {
			s.writeError(w, r, apierr.Forbidden("trainer token required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
