package hub

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aerocrew/towerchat/internal/config"
	"github.com/aerocrew/towerchat/internal/observability"
)

// Server owns the HTTP listener: the WebSocket endpoint plus the liveness
// and metrics routes.
type Server struct {
	hub      *Hub
	cfg      *config.Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	start    time.Time
}

// NewServer wires the hub to an HTTP listener per cfg.
func NewServer(cfg *config.Config, h *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:    h,
		cfg:    cfg,
		logger: logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin: func(*http.Request) bool {
				// Browser clients authenticate in-band with a bearer
				// credential; origin checking adds nothing here.
				return true
			},
		},
		start: time.Now(),
	}
}

// Handler returns the HTTP mux: WebSocket endpoint, /healthz, /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Server.WSPath, s.handleWS)
	mux.HandleFunc("/healthz", observability.HealthHandler(s.start, s.hub.Registry()))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Server.Addr, "ws_path", s.cfg.Server.WSPath)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sess := newSession(r.Context(), s.hub, conn,
		s.cfg.Hub.SendBuffer, s.cfg.Hub.MaxPayloadBytes, s.cfg.Hub.AuthTimeout, s.logger)
	sess.run()
}
