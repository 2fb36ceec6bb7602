package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/nvoloshyn/go-chathub/internal/auth"
	"github.com/nvoloshyn/go-chathub/internal/config"
	"github.com/nvoloshyn/go-chathub/internal/database"
	"github.com/nvoloshyn/go-chathub/internal/hub"
)

type ChatHubApp struct {
	log            *log.Logger
	db             database.ChatHubRepository
	mux            *http.Server
	hub            *hub.Hub
	verifier       *auth.Verifier
	allowedOrigins []string
	authLimiter    *ipRateLimiter
}

func NewChatHubApp(mux *http.ServeMux, logger *log.Logger, h *hub.Hub, db database.ChatHubRepository, cfg *config.Config) *ChatHubApp {
	s := &ChatHubApp{
		log:            logger,
		db:             db,
		hub:            h,
		verifier:       auth.NewVerifier(cfg.AccessSigningKey, cfg.RefreshSigningKey),
		allowedOrigins: cfg.AllowedOrigins,
		authLimiter:    newIPRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst),
	}

	mux.HandleFunc("POST /api/auth/register", s.rateLimit(s.register))
	mux.HandleFunc("POST /api/auth/login", s.rateLimit(s.login))
	mux.HandleFunc("POST /api/auth/refresh", s.rateLimit(s.refresh))
	mux.Handle("GET /api/users", s.authMiddleware(s.listUsers))
	mux.Handle("GET /api/messages/{userId}", s.authMiddleware(s.conversation))
	mux.Handle("GET /ws", http.HandlerFunc(s.serveWs))

	handler := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	handler = s.errorHandler(handler)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: handler,
	}

	s.mux = srv
	return s
}

func (s *ChatHubApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ChatHubApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
