package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookinghq/go-token-service/internal/config"
	"github.com/bookinghq/go-token-service/token"
	"github.com/bookinghq/go-token-service/token/lockout"
	"github.com/bookinghq/go-token-service/token/revocation"
	"github.com/bookinghq/go-token-service/token/rotation"
)

// Stores groups the three persistence dependencies. Both the in-memory and
// the Redis implementations satisfy these interfaces; selection happens once
// in cmd/server, never here.
type Stores struct {
	Rotation   rotation.Store
	Revocation revocation.Store
	Lockout    lockout.Store
}

type Server struct {
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	logger  zerolog.Logger
	tokens  *token.Manager
	stores  Stores
	lockout *lockout.Guard
	nowFunc func() time.Time
}

type Option func(*Server)

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func New(cfg config.Config, tokens *token.Manager, stores Stores, logger zerolog.Logger, options ...Option) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		config:  cfg,
		logger:  logger,
		tokens:  tokens,
		stores:  stores,
		lockout: lockout.NewGuard(cfg, stores.Lockout),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	s.initRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET /healthz", s.HealthHandler())

	s.RegisterRouteFunc("POST /token/refresh", ChainMiddleware(s.RefreshHandler(), s.RequestLogging()))
	s.RegisterRouteFunc("POST /auth/logout", ChainMiddleware(s.LogoutHandler(), s.RequestLogging(), s.RequireAuth()))
	s.RegisterRouteFunc("GET /me", ChainMiddleware(s.MeHandler(), s.RequestLogging(), s.RequireAuth()))

	// Internal lockout gate, consumed by the auth orchestration layer around
	// its credential checks (password login, OTP verify, MFA verify).
	s.RegisterRouteFunc("GET /internal/lockout", ChainMiddleware(s.LockoutStatusHandler(), s.RequestLogging()))
	s.RegisterRouteFunc("POST /internal/lockout/failure", ChainMiddleware(s.LockoutFailureHandler(), s.RequestLogging()))
	s.RegisterRouteFunc("POST /internal/lockout/reset", ChainMiddleware(s.LockoutResetHandler(), s.RequestLogging()))
}

// LogRoutes prints the registered route table at startup.
func (s *Server) LogRoutes() {
	for _, route := range s.routes {
		s.logger.Info().Str("route", route).Msg("registered")
	}
}
