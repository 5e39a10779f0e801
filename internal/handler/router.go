package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"docverify-service/internal/util"
)

// requireHTTPS rejects any request that wasn't made over TLS.
func requireHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUpgradeRequired) // 426
			w.Write([]byte(`{"error":"https required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RouterConfig collects everything the router needs.
type RouterConfig struct {
	DocumentHandler   *DocumentHandler
	SubmissionHandler *SubmissionHandler
	VerifyHandler     *VerifyHandler
	SettingsHandler   *SettingsHandler
	HealthCheck       func(ctx context.Context) map[string]error
	EnforceTLS        bool
	Logger            *zap.Logger
}

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(rc RouterConfig) chi.Router {
	router := chi.NewRouter()

	if rc.EnforceTLS {
		router.Use(requireHTTPS)
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware(rc.Logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(120 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		util.Info("Health check requested")
		w.Header().Set("Content-Type", "application/json")

		status := map[string]any{"status": "healthy", "service": "docverify-service"}
		code := http.StatusOK
		if rc.HealthCheck != nil {
			if healthErrors := rc.HealthCheck(r.Context()); len(healthErrors) > 0 {
				details := make(map[string]string, len(healthErrors))
				for name, err := range healthErrors {
					details[name] = err.Error()
				}
				status["status"] = "degraded"
				status["failures"] = details
				code = http.StatusServiceUnavailable
			}
		}

		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			util.Error("Failed to encode health response", util.ErrorField(err))
		}
	})

	router.Route("/api/v1", func(r chi.Router) {
		rc.DocumentHandler.RegisterRoutes(r)
		rc.SubmissionHandler.RegisterRoutes(r)
		rc.VerifyHandler.RegisterRoutes(r)
		rc.SettingsHandler.RegisterRoutes(r)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"error":"method not allowed"}`))
	})

	return router
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
					util.String("user_agent", r.UserAgent()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
