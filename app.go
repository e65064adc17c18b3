// Package agentquery assembles the query runtime into a runnable HTTP
// server: create one with New(), register tools, then call Start().
package agentquery

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wepress/agentquery/agent"
	"github.com/wepress/agentquery/handlers"
	"github.com/wepress/agentquery/llm"
)

// Server is the main agentquery instance.
type Server struct {
	cfg      *Config
	provider agent.Provider
	tools    []agent.Tool

	deps *handlers.Deps
	srv  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithConfig replaces the default configuration.
func WithConfig(cfg *Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithHost sets the listen host (default "0.0.0.0").
func WithHost(host string) Option {
	return func(s *Server) { s.cfg.Host = host }
}

// WithPort sets the listen port (default 8000).
func WithPort(port int) Option {
	return func(s *Server) { s.cfg.Port = port }
}

// WithProvider overrides the model provider built from the config.
func WithProvider(p agent.Provider) Option {
	return func(s *Server) { s.provider = p }
}

// New creates a new Server with the given options.
func New(opts ...Option) *Server {
	s := &Server{cfg: DefaultConfig()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RegisterTool registers a native tool (e.g. *agent.FuncTool) before Start().
func (s *Server) RegisterTool(t agent.Tool) {
	s.tools = append(s.tools, t)
}

// Start initializes dependencies, builds routes, and runs the HTTP server.
// It blocks until the server is shut down via signal or Shutdown().
func (s *Server) Start() error {
	provider := s.provider
	if provider == nil {
		provider = llm.NewProxyProvider(llm.Config{
			Model:       s.cfg.Model,
			BaseURL:     s.cfg.BaseURL,
			APIKey:      s.cfg.APIKey,
			Temperature: s.cfg.Temperature,
			MaxTokens:   s.cfg.MaxTokens,
		})
	}

	registry := agent.NewToolRegistry()
	for _, t := range s.tools {
		registry.Register(t)
		log.Printf("  registered tool %q", t.Definition().Name)
	}

	s.deps = &handlers.Deps{
		Client:   agent.NewClient(provider),
		Tools:    registry,
		EventBus: handlers.NewEventBus(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","tools_loaded":%d}`, len(registry.Names()))
	})

	handlers.RegisterRoutes(mux, s.deps)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // disable for SSE
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on signal
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.srv.Shutdown(ctx)
	}()

	log.Printf("agentquery starting on %s (model=%s, tools=%d)", addr, s.cfg.Model, len(registry.Names()))

	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
