package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xhad/handbook/internal/types"
	"github.com/xhad/handbook/pkg/config"
	"github.com/xhad/handbook/pkg/logger"
	"github.com/xhad/handbook/pkg/metrics"
	"github.com/xhad/handbook/pkg/rag"
)

type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
	MessageLimit   int
}

// ConfigFrom picks the HTTP settings out of the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Addr:           cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		MessageLimit:   cfg.Conversations.MessageLimit,
	}
}

type Server struct {
	config        Config
	chat          *rag.Service
	conversations types.ConversationStore
	limiter       *IPRateLimiter
	httpServer    *http.Server
	log           *logger.Logger
}

func NewServer(config Config, chat *rag.Service, conversations types.ConversationStore) *Server {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 60 * time.Second
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 1
	}

	s := &Server{
		config:        config,
		chat:          chat,
		conversations: conversations,
		limiter:       NewIPRateLimiter(config.RateLimit, config.RateBurst),
		log:           logger.New("server"),
	}
	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Get("/ws", s.handleWebSocket)

		r.Route("/api", func(r chi.Router) {
			r.Use(s.requestTimeout)

			r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"ok": true, "from": "chat router"})
			})
			r.Post("/ask", s.handleAsk)
			r.Post("/chat", s.handleChat)

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", s.handleCreateSession)
				r.Get("/", s.handleListSessions)
				r.Patch("/{id}", s.handleRenameSession)
				r.Delete("/{id}", s.handleDeleteSession)
				r.Get("/{id}/messages", s.handleSessionMessages)
				r.Post("/{id}/chat", s.handleSessionChat)
			})
		})
	})

	return r
}

// ListenAndServe blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.log.Info("server is listening", "addr", s.config.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.httpServer.SetKeepAlivesEnabled(false)
	return s.httpServer.Shutdown(ctx)
}
