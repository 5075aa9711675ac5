package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	walletcore "github.com/erc4361/walletcore"
	"github.com/erc4361/walletcore/pkg/bridge"
	"github.com/erc4361/walletcore/pkg/keystore"
	"github.com/erc4361/walletcore/pkg/log"
)

func main() {
	logger := log.NewLoggerIPFS("root")

	config, err := LoadConfig(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	db, err := walletcore.ConnectToDB(config.dbConf, logger)
	if err != nil {
		logger.Fatal("failed to setup database", "error", err)
	}
	registry := walletcore.NewGormUserRegistry(db)

	ks, err := keystore.NewManager(config.daemon.KeystoreDir, logger)
	if err != nil {
		logger.Fatal("failed to initialise keystore", "error", err)
	}

	// An explicit private key seeds the keystore on first run; afterwards the
	// persisted file is authoritative.
	if config.daemon.PrivateKey != "" && !ks.Exists() {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(config.daemon.PrivateKey, "0x"))
		if err != nil {
			logger.Fatal("malformed WALLETD_PRIVATE_KEY", "error", err)
		}
		if err := ks.Import(key, config.daemon.KeystorePassword); err != nil {
			logger.Fatal("failed to import private key", "error", err)
		}
	}

	chain := config.chains[config.chainID]
	backend, err := ethclient.Dial(chain.RPC)
	if err != nil {
		logger.Fatal("failed to connect to chain RPC", "chain", chain.Name, "error", err)
	}

	session := walletcore.NewSession(
		walletcore.WithKeystore(ks),
		walletcore.WithChainBackend(backend),
		walletcore.WithLogger(logger),
	)

	ctx := context.Background()
	address, err := session.Connect(ctx, walletcore.Connection{
		Provider: walletcore.KindLocal,
		ChainID:  config.chainID,
		Password: config.daemon.KeystorePassword,
	}, chain.RPC)
	if err != nil {
		logger.Fatal("failed to connect local wallet", "error", err)
	}
	logger.Info("daemon wallet ready", "address", address.Hex(), "chain", chain.Name)

	// The session token key is the daemon's own wallet key; users registered
	// in the database are the accepted identities.
	signingKey := session.ExportSigningKey()
	if signingKey == nil {
		logger.Fatal("daemon wallet has no local key")
	}
	verifier := walletcore.NewVerifier(registry, signingKey, logger,
		walletcore.WithChallengeStore(walletcore.NewGormChallengeStore(db)))

	metrics := walletcore.NewMetrics()

	node := bridge.NewNode(logger)
	handlers := &routeHandlers{
		session:   session,
		verifier:  verifier,
		metrics:   metrics,
		sessionID: uuid.NewString(),
		domain:    config.daemon.Domain,
		lg:        logger.WithName("routes"),
	}
	handlers.register(node)

	bridgeListenEndpoint := "/ws"
	bridgeMux := http.NewServeMux()
	bridgeMux.HandleFunc(bridgeListenEndpoint, func(w http.ResponseWriter, r *http.Request) {
		metrics.ConnectionsTotal.Inc()
		metrics.ConnectedClients.Inc()
		defer metrics.ConnectedClients.Dec()
		node.HandleConnection(w, r)
	})

	bridgeServer := &http.Server{
		Addr:    config.daemon.ListenAddr,
		Handler: bridgeMux,
	}

	metricsEndpoint := "/metrics"
	// Set up a separate mux for metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle(metricsEndpoint, promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    config.daemon.MetricsAddr,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("Prometheus metrics available", "listenAddr", config.daemon.MetricsAddr, "endpoint", metricsEndpoint)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failure", "error", err)
		}
	}()

	go func() {
		logger.Info("bridge server available", "listenAddr", config.daemon.ListenAddr, "endpoint", bridgeListenEndpoint)
		if err := bridgeServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("bridge server failure", "error", err)
		}
	}()

	// Wait for shutdown signal.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down metrics server", "error", err)
	}

	shutdownCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bridgeServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down bridge server", "error", err)
	}

	if err := session.Disconnect(context.Background()); err != nil {
		logger.Error("failed to disconnect wallet", "error", err)
	}

	logger.Info("shutdown complete")
}
