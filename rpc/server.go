package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/S3MTFoundationv0/s3mt.xyz/core"
	"github.com/S3MTFoundationv0/s3mt.xyz/observability"
)

const (
	maxRequestBytes = 1 << 20

	requestIDHeader = "X-Request-ID"
)

// ServerConfig tunes the HTTP surface of the node.
type ServerConfig struct {
	// RateLimitPerSecond caps requests per client address; zero disables
	// limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
	// TrustProxyHeaders derives the client address from X-Forwarded-For and
	// X-Real-IP. Only enable behind a proxy that overwrites them.
	TrustProxyHeaders bool
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	Logger            *slog.Logger
}

// Server exposes the presale processor over HTTP.
type Server struct {
	processor *core.Processor
	cfg       ServerConfig
	logger    *slog.Logger
	metrics   *observability.PresaleMetrics
	limiter   *rateLimiter
	handler   http.Handler
	http      *http.Server
}

// NewServer builds the HTTP server around processor.
func NewServer(processor *core.Processor, cfg ServerConfig) (*Server, error) {
	if processor == nil {
		return nil, errors.New("rpc: processor required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		processor: processor,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "rpc")),
		metrics:   observability.Presale(),
		limiter:   newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	}
	s.handler = otelhttp.NewHandler(s.routes(), "presale.rpc")
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	if s.cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.limiter.middleware)
		r.Post("/requests", s.handleSubmit)
		r.Get("/presale/config", s.handleConfig)
		r.Get("/presale/addresses", s.handleAddresses)
		r.Get("/presale/log", s.handleLog)
		r.Get("/presale/stream", s.handleStream)
		r.Get("/accounts/{id}", s.handleAccount)
		r.Get("/token-accounts/derive", s.handleDerive)
	})
	return r
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.http = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.logger.Info("rpc listening", slog.String("addr", ln.Addr().String()))
	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), chimw.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(route, r.Method, status)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", chimw.GetReqID(r.Context())))
	})
}
