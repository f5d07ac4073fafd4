package http

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/formahub/auth-api/internal/auth"
	"github.com/formahub/auth-api/internal/config"
	"github.com/formahub/auth-api/internal/httputil"
	"github.com/formahub/auth-api/internal/logging"
	"github.com/formahub/auth-api/internal/user"
)

// NewRouter creates and configures the HTTP router. Route paths are kept
// compatible with the original platform API.
func NewRouter(cfg *config.Config, authHandler *auth.Handler, authMiddleware *auth.Middleware, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		log.Println("Swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	// Public routes, throttled per source address inside the handlers
	r.Route("/register", func(r chi.Router) {
		r.Post("/admin", authHandler.RegisterAdmin)
		r.Post("/formateur", authHandler.RegisterInstructor)
		r.Post("/visiteur", authHandler.RegisterLearner)
	})
	r.Post("/login/admin", authHandler.LoginAdmin)
	r.Post("/login", authHandler.Login)
	r.Post("/logout", authHandler.Logout)
	r.Get("/verify-email/{token}", authHandler.VerifyEmail)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)

		r.Get("/me", authHandler.Me)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRoles(user.RoleAdmin))
			r.Put("/instructors/{id}/approve", authHandler.ApproveInstructor)
			r.Put("/instructors/{id}/reject", authHandler.RejectInstructor)
		})

		r.Route("/instructor", func(r chi.Router) {
			r.Use(auth.RequireRoles(user.RoleInstructor))
			r.Use(auth.RequireApproved)
			r.Get("/stats", authHandler.InstructorStats)
		})
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
