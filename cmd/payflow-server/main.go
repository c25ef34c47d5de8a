// Command payflow-server runs the paywalled resource server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradewise/payflow/config"
	"github.com/tradewise/payflow/logger"
	"github.com/tradewise/payflow/metrics"
	"github.com/tradewise/payflow/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	rec := metrics.NewPrometheusRecorder()

	var facilitator server.Facilitator
	if cfg.FacilitatorURL != "" {
		facilitator = server.NewFacilitatorClient(cfg.FacilitatorURL)
	}

	e := server.New(server.Config{
		Network:        cfg.Network(),
		Recipient:      cfg.Recipient,
		FacilitatorURL: cfg.FacilitatorURL,
	}, facilitator, log, rec)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server starting", map[string]any{
			"addr":    cfg.ListenAddr,
			"network": cfg.Network().String(),
		})
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", map[string]any{"error": err.Error()})
	}
	log.Info("server stopped", nil)
}
