package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHandler builds the observability router:
//
//	GET /healthz        liveness
//	GET /metrics        Prometheus exposition
//	GET /queries        query log snapshot
//	GET /queries/recent recent searches, ?limit=N
func NewHandler(metrics *Metrics, queries *QueryLog) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if reg := metrics.Registry(); reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	if queries != nil {
		r.Get("/queries", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, queries.Snapshot())
		})
		r.Get("/queries/recent", func(w http.ResponseWriter, req *http.Request) {
			limit := 20
			if v := req.URL.Query().Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n <= 0 {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
					return
				}
				limit = n
			}
			writeJSON(w, http.StatusOK, queries.Recent(limit))
		})
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve runs handler on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics_server_started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics_server_shutdown_failed", slog.String("error", err.Error()))
		return err
	}
	logger.Info("metrics_server_stopped")
	return nil
}
