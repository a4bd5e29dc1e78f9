// Command challenger runs the Challenger role of spec.md §4.6: it samples
// random (commitment, chunk) pairs for on-ledger challenges and sweeps
// expired challenges for slashing.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certen/poda/pkg/challenger"
	"github.com/certen/poda/pkg/config"
	"github.com/certen/poda/pkg/ethereum"
	"github.com/certen/poda/pkg/ledger"
)

func main() {
	cfg, err := config.LoadChallengerConfig()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}

	self, err := ethereum.GetPublicAddress(cfg.PrivateKey)
	if err != nil {
		log.Fatal("failed to derive challenger address:", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	l, err := ledger.NewContractLedger(ctx, cfg.RPCURL, cfg.PodaAddress, cfg.PrivateKey)
	if err != nil {
		log.Fatal("failed to connect to ledger:", err)
	}

	logger := log.New(log.Writer(), "[challenger] ", log.LstdFlags)
	c := challenger.New(l, self, logger)

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server error: %v", err)
		}
	}()

	logger.Printf("challenger %s running, sampling %d per round every %ds", self.Hex(), cfg.SampleSize, cfg.IntervalSecs)
	go c.Run(ctx, time.Duration(cfg.IntervalSecs)*time.Second, cfg.SampleSize)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Printf("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("metrics server shutdown error: %v", err)
	}

	logger.Printf("stopped")
}
