// Package server assembles the library API: storage, authentication, the
// GraphQL executor with its resolvers, and the HTTP/WebSocket endpoint.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hectorgarciatw/graphQL-Library/pkg/auth"
	"github.com/hectorgarciatw/graphQL-Library/pkg/config"
	"github.com/hectorgarciatw/graphQL-Library/pkg/graphql"
	"github.com/hectorgarciatw/graphQL-Library/pkg/pubsub"
	"github.com/hectorgarciatw/graphQL-Library/pkg/resolver"
	"github.com/hectorgarciatw/graphQL-Library/pkg/storage"
	"github.com/hectorgarciatw/graphQL-Library/pkg/storage/mongo"
)

// Server owns the HTTP listener and the wired-up GraphQL endpoint.
type Server struct {
	cfg   *config.Config
	log   *slog.Logger
	store storage.Store

	bus        *pubsub.Bus
	subs       *graphql.SubscriptionHandler
	httpServer *http.Server
	listener   net.Listener

	mu      sync.Mutex
	running bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the operational logger for the server.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithStore sets the persistence backend, overriding the configured driver.
func WithStore(store storage.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// New creates a Server from configuration. Nothing is opened until Start.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg: cfg,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		bus: pubsub.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store, wires the GraphQL endpoint, and begins serving.
// The listener is bound before Start returns, so Addr is valid afterwards.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	if err := s.cfg.Validate(); err != nil {
		return err
	}

	if s.store == nil {
		store, err := s.openStore(ctx)
		if err != nil {
			return err
		}
		s.store = store
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store not reachable: %w", err)
	}

	ttl, err := s.cfg.TokenTTL()
	if err != nil {
		return err
	}
	issuer, err := auth.NewTokenIssuer(s.cfg.Auth.Secret, ttl)
	if err != nil {
		return err
	}

	schema, err := graphql.ParseSchema(graphql.SDL)
	if err != nil {
		return err
	}

	exec := graphql.NewExecutor(schema)
	resolver.New(s.store, issuer, s.bus, s.log).Register(exec)

	handler := graphql.NewHandler(exec, s.log)
	s.subs = graphql.NewSubscriptionHandler(exec, s.log)

	mw := auth.NewMiddleware(s.store, issuer, s.log)

	mux := http.NewServeMux()
	mux.Handle(s.cfg.GraphQLPath, mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			s.subs.ServeHTTP(w, r)
			return
		}
		handler.ServeHTTP(w, r)
	})))

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.HTTPPort))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.cfg.HTTPPort, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: it would sever long-lived subscription sockets.
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	s.log.Info("server started",
		"addr", listener.Addr().String(),
		"path", s.cfg.GraphQLPath,
		"storage", s.cfg.Storage.Driver,
	)
	return nil
}

// openStore opens the configured persistence backend.
func (s *Server) openStore(ctx context.Context) (storage.Store, error) {
	switch s.cfg.Storage.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil
	case config.DriverMongo:
		store, err := mongo.Open(ctx, s.cfg.Storage.URI, s.cfg.Storage.Database)
		if err != nil {
			return nil, fmt.Errorf("opening mongodb: %w", err)
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("ensuring indexes: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", s.cfg.Storage.Driver)
	}
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Store returns the persistence backend once the server has started.
func (s *Server) Store() storage.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// IsRunning reports whether the server is serving requests.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop gracefully shuts down the server: the HTTP listener first, then the
// subscription connections, then the store.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	var errs []error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	if s.subs != nil {
		s.subs.CloseAll("server shutting down")
	}

	if err := s.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	s.running = false
	s.log.Info("server stopped")

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
