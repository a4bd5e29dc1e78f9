// Command dispenser runs the Dispenser role of spec.md §4.4: it erasure
// codes and commits submitted blobs, disperses chunks to active storage
// providers, and reconstructs blobs on retrieval.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/certen/poda/pkg/config"
	"github.com/certen/poda/pkg/dispenser"
	"github.com/certen/poda/pkg/ethereum"
	"github.com/certen/poda/pkg/kzg"
	"github.com/certen/poda/pkg/ledger"
)

func main() {
	cfg, err := config.LoadDispenserConfig()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}

	self, err := ethereum.GetPublicAddress(cfg.PrivateKey)
	if err != nil {
		log.Fatal("failed to derive dispenser address:", err)
	}

	if err := kzg.Init(cfg.KzgCeremonyPath, cfg.TotalChunks-1); err != nil {
		log.Fatal("failed to load kzg ceremony:", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	l, err := ledger.NewContractLedger(ctx, cfg.RPCURL, cfg.PodaAddress, cfg.PrivateKey)
	if err != nil {
		log.Fatal("failed to connect to ledger:", err)
	}

	logger := log.New(log.Writer(), "[dispenser] ", log.LstdFlags)
	client := dispenser.NewProviderClient(30*time.Second, logger)
	d := dispenser.New(l, client, cfg.TotalChunks, cfg.RequiredChunks, cfg.PollInterval, logger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: dispenser.NewServer(d, logger).Mux(),
	}

	go func() {
		logger.Printf("dispenser %s listening on %s", self.Hex(), httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start http server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Printf("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http server shutdown error: %v", err)
	}

	logger.Printf("stopped")
}
