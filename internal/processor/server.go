package processor

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pockethour/image-sentinel/internal/logging"
	"github.com/pockethour/image-sentinel/internal/netx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxRequestBytes = 64 << 10

// Server exposes a Processor over HTTP.
type Server struct {
	address  string
	proc     Processor
	logger   logging.Logger
	stats    *Stats
	registry *prometheus.Registry
	metrics  *metrics
	started  time.Time
}

func NewServer(address string, proc Processor, logger logging.Logger) *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		address:  address,
		proc:     proc,
		logger:   logger.With("module", "worker_server"),
		stats:    &Stats{},
		registry: reg,
		metrics:  newMetrics(reg),
		started:  time.Now(),
	}
}

func (s *Server) Stats() *Stats {
	return s.stats
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/process", s.handleProcess)
	r.Post("/verify", s.handleVerify)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return netx.Serve(ctx, srv, s.logger)
}

// begin records the start of a request and returns the matching finisher.
func (s *Server) begin(algorithm string) func(err error) {
	start := time.Now()
	s.stats.total.Add(1)
	s.stats.active.Add(1)
	s.metrics.active.Inc()

	return func(err error) {
		s.stats.active.Add(-1)
		s.metrics.active.Dec()
		s.metrics.duration.WithLabelValues(algorithm).Observe(time.Since(start).Seconds())

		outcome := "success"
		if err != nil {
			outcome = "failure"
			s.stats.failed.Add(1)
		} else if c := s.stats.counter(algorithm); c != nil {
			c.Add(1)
		}
		s.metrics.requests.WithLabelValues(algorithm, outcome).Inc()
	}
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req Request
	if err := netx.DecodeJSON(r.Body, maxRequestBytes, &req); err != nil {
		s.stats.total.Add(1)
		s.stats.failed.Add(1)
		netx.WriteJSON(w, http.StatusBadRequest, Response{Error: err.Error(), Code: CodeInvalidPayload})
		return
	}

	label := req.Algorithm
	if label != AlgorithmWatermark && label != AlgorithmForensics {
		label = "unknown"
	}
	done := s.begin(label)

	resp, err := s.proc.Process(ctx, req)
	done(err)
	if err != nil {
		code, status := CodeFor(err)
		s.logger.Warn(ctx, "processing failed", "request_id", middleware.GetReqID(ctx), "algorithm", req.Algorithm, "error", err)
		netx.WriteJSON(w, status, Response{Error: err.Error(), Code: code})
		return
	}

	s.logger.Info(ctx, "processed", "request_id", middleware.GetReqID(ctx), "algorithm", req.Algorithm, "output", resp.OutputPath)
	netx.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req VerifyRequest
	if err := netx.DecodeJSON(r.Body, maxRequestBytes, &req); err != nil {
		s.stats.total.Add(1)
		s.stats.failed.Add(1)
		netx.WriteJSON(w, http.StatusBadRequest, VerifyResponse{Error: err.Error(), Code: CodeInvalidPayload})
		return
	}

	done := s.begin("verify")
	resp, err := s.proc.Verify(ctx, req)
	done(err)
	if err != nil {
		code, status := CodeFor(err)
		s.logger.Warn(ctx, "verification failed", "request_id", middleware.GetReqID(ctx), "error", err)
		netx.WriteJSON(w, status, VerifyResponse{Error: err.Error(), Code: code})
		return
	}
	netx.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	netx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"uptimeSeconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	netx.WriteJSON(w, http.StatusOK, s.stats.Snapshot())
}
