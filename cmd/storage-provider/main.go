// Command storage-provider runs the storage-provider role of spec.md §4.5:
// it serves the verification gate's HTTP surface and, in the background,
// answers challenges issued against chunks it holds.
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

	"github.com/certen/poda/pkg/config"
	"github.com/certen/poda/pkg/ethereum"
	"github.com/certen/poda/pkg/kzg"
	"github.com/certen/poda/pkg/ledger"
	"github.com/certen/poda/pkg/provider"
)

func main() {
	cfg, err := config.LoadStorageProviderConfig()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}

	self, err := ethereum.GetPublicAddress(cfg.PrivateKey)
	if err != nil {
		log.Fatal("failed to derive provider address:", err)
	}

	// 255 covers batches of up to 256 chunks: the gate never opens, it only
	// verifies batch proofs, committing each batch's interpolation polynomial
	// (degree one less than the batch size) in G1.
	if err := kzg.Init(cfg.KzgCeremonyPath, 255); err != nil {
		log.Fatal("failed to load kzg ceremony:", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	l, err := ledger.NewContractLedger(ctx, cfg.RPCURL, cfg.PodaAddress, cfg.PrivateKey)
	if err != nil {
		log.Fatal("failed to connect to ledger:", err)
	}

	var store provider.ChunkStore
	switch cfg.ChunkStoreBackend {
	case "postgres":
		store, err = provider.NewPostgresStore(ctx, cfg.ChunkStoreDSN)
	case "file":
		store, err = provider.NewFileStore(cfg.ChunkStoreDir)
	default:
		log.Fatalf("unknown CHUNK_STORE_BACKEND %q, want file or postgres", cfg.ChunkStoreBackend)
	}
	if err != nil {
		log.Fatal("failed to open chunk store:", err)
	}

	logger := log.New(log.Writer(), "[storage-provider] ", log.LstdFlags)
	gate := provider.NewGate(l, store, self)
	responder := provider.NewResponder(l, store, self, logger)

	mux := provider.NewServer(gate, store, logger).Mux()

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}

	go responder.Run(ctx, cfg.ResponderInterval)

	go func() {
		logger.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server error: %v", err)
		}
	}()

	go func() {
		logger.Printf("storage provider %s listening on %s", self.Hex(), httpServer.Addr)
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
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("metrics server shutdown error: %v", err)
	}

	logger.Printf("stopped")
}
