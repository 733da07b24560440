// Package httpapi serves operational endpoints next to the bot.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

type totalsReader interface {
	TotalPaid(ctx context.Context) (decimal.Decimal, error)
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewRouter sets up /healthz, /metrics and /stats.
func NewRouter(gatherer prometheus.Gatherer, totals totalsReader, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/stats", func(c *gin.Context) {
		total, err := totals.TotalPaid(c.Request.Context())
		if err != nil {
			logger.Error("stats: total paid", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"total_paid": total.StringFixed(2)})
	})
	return router
}

func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run слушает addr до отмены ctx, затем корректно останавливает сервер.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ops http server started", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("ops http server stopped")
	return nil
}
