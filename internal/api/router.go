package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/account"
	"gatehouse/internal/auth"
	"gatehouse/internal/config"
	"gatehouse/internal/models"
	"gatehouse/internal/resource"
	"gatehouse/internal/session"
)

type Server struct {
	router *chi.Mux
	config *config.Config
}

type Services struct {
	Database Pinger
	Issuer   *auth.TokenIssuer
	Users    UserLookup
	Sessions *session.Manager
	Accounts *account.Service
	Products *resource.Service[*models.Product]
}

func NewServer(cfg *config.Config, svc Services) (*Server, error) {
	resolver, err := NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("configuring client IP resolver: %w", err)
	}

	authLimiter := rateLimit(cfg.RateLimit.AuthRequestsPerMinute, time.Minute, resolver)
	refreshLimiter := rateLimit(cfg.RateLimit.AuthRequestsPerMinute*3, time.Minute, resolver)

	authHandler := NewAuthHandler(svc.Sessions)
	userHandler := NewUserHandler(svc.Accounts, svc.Sessions)
	productHandler := NewProductHandler(svc.Products, cfg.Server.BaseURL)
	serverInfoHandler := NewServerInfoHandler(cfg.Server.Name, cfg.Auth.AccessTokenTTL)
	healthHandler := NewHealthHandler(svc.Database)

	authMiddleware := NewAuthMiddleware(svc.Issuer, svc.Users)

	r := chi.NewRouter()
	r.Use(correlationMiddleware)
	r.Use(problemBaseMiddleware(cfg.Server.ProblemBaseURI))
	r.Use(slogRequestLogger(resolver))
	r.Use(recoverer)
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(securityHeadersMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errRouteNotFound)
	})
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(maxBodySizeMiddleware(cfg.Server.MaxBodyBytes))
		r.Get("/server/info", serverInfoHandler.GetInfo)

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/register", authHandler.Register)
			r.With(authLimiter).Post("/login", authHandler.Login)
			r.With(refreshLimiter).Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)

			r.With(authMiddleware.RequireAuth).Post("/logout-all", authHandler.LogoutAll)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Get("/", userHandler.GetAll)
			r.Get("/me", userHandler.GetMe)
			r.Patch("/me", userHandler.UpdateMe)
			r.Put("/me/email", userHandler.ChangeEmail)
			r.With(authLimiter).Put("/me/password", userHandler.ChangePassword)
			r.Post("/{id}/deactivate", userHandler.Deactivate)
			r.Post("/{id}/activate", userHandler.Activate)
		})

		r.Route("/products", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Get("/", productHandler.List)
			r.Post("/", productHandler.Create)
			r.Get("/{id}", productHandler.Get)
			r.Put("/{id}", productHandler.Replace)
			r.Patch("/{id}", productHandler.Patch)
			r.Delete("/{id}", productHandler.Delete)
		})
	})

	return &Server{
		router: r,
		config: cfg,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
