// Package admin serves the operational HTTP endpoints of the scene server.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/l1jgo/scenegraph/internal/persist"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Status is reported by /health.
type Status struct {
	Scene   string `json:"scene"`
	Frame   uint64 `json:"frame"`
	Objects int    `json:"objects"`
	Uptime  string `json:"uptime"`

	// Database is nil when snapshots are disabled.
	Database *persist.PoolStats `json:"database,omitempty"`
}

// NewMux returns a mux serving /metrics and /health. status is called from
// HTTP goroutines and must be safe for that.
func NewMux(status func() Status) *http.ServeMux {
	var mux http.ServeMux
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return &mux
}

// ListenAndServe runs servers until ctx is done, then shuts them down and
// waits for them to stop.
func ListenAndServe(ctx context.Context, log *zap.Logger, servers ...*http.Server) {
	go func() {
		<-ctx.Done()
		for _, s := range servers {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Warn("shutting down the server failed", zap.String("addr", s.Addr), zap.Error(err))
			}
			cancel()
		}
	}()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(s *http.Server) {
			defer wg.Done()
			log.Info("starting server", zap.String("addr", s.Addr))
			err := s.ListenAndServe()
			if err == nil || errors.Is(err, http.ErrServerClosed) {
				log.Info("stopping server", zap.String("addr", s.Addr))
				return
			}
			log.Warn("server stopped", zap.String("addr", s.Addr), zap.Error(err))
		}(s)
	}
	wg.Wait()
}
