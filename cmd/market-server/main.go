package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apperrors "github.com/usikolabs/usiko-middleware/pkg/app/errors"
	apphttp "github.com/usikolabs/usiko-middleware/pkg/app/http"
	"github.com/usikolabs/usiko-middleware/pkg/app/httpserver"
	"github.com/usikolabs/usiko-middleware/pkg/bank"
	"github.com/usikolabs/usiko-middleware/pkg/config"
	"github.com/usikolabs/usiko-middleware/pkg/events"
	"github.com/usikolabs/usiko-middleware/pkg/facade"
	"github.com/usikolabs/usiko-middleware/pkg/host"
	"github.com/usikolabs/usiko-middleware/pkg/hts/htssim"
	"github.com/usikolabs/usiko-middleware/pkg/indexdb"
	"github.com/usikolabs/usiko-middleware/pkg/indexer"
	"github.com/usikolabs/usiko-middleware/pkg/market"
	"github.com/usikolabs/usiko-middleware/pkg/pgutil"
	"github.com/usikolabs/usiko-middleware/pkg/royalty"
	"github.com/usikolabs/usiko-middleware/pkg/rpc"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting market server",
		zap.String("config", *configPath),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("token_name", cfg.Token.Name),
		zap.String("token_symbol", cfg.Token.Symbol))

	operator := common.HexToAddress(cfg.Ledger.OperatorAddress)
	treasury := common.HexToAddress(cfg.Ledger.TreasuryAddress)
	feeReceiver := common.HexToAddress(cfg.Platform.FeeReceiver)
	marketOperator := operator
	if cfg.Platform.OperatorAddress != "" {
		marketOperator = common.HexToAddress(cfg.Platform.OperatorAddress)
	}

	// Assemble the ledger components behind one call boundary
	sim := htssim.New()
	eventLog := events.NewLog()
	book := bank.NewBook()
	nfts := facade.New(operator, treasury, sim, eventLog, logger)
	royalties := royalty.NewRegistry(nfts, eventLog, logger)
	mkt, err := market.New(operator, marketOperator, cfg.Platform.FeeBps, feeReceiver,
		nfts, royalties, book, eventLog, logger)
	if err != nil {
		logger.Fatal("Failed to create marketplace", zap.Error(err))
	}
	boundary := host.New(logger, sim, book, nfts, royalties, mkt, eventLog)

	if _, ok := new(big.Int).SetString(cfg.Ledger.CollectionFunding, 10); !ok {
		logger.Fatal("Invalid collection funding amount",
			zap.String("funding", cfg.Ledger.CollectionFunding))
	}

	// Create RPC server
	rpcServer := rpc.NewServer(boundary, nfts, mkt, royalties, logger)

	// Build router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Post("/rpc", rpcServer.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Start the indexer when a database is configured
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Indexer.Enabled {
		db, err := pgutil.ConnectDB(&cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		store := indexdb.NewStore(db)
		if err := store.CreateSchema(ctx); err != nil {
			logger.Fatal("Failed to create index schema", zap.Error(err))
		}

		ix := indexer.New(&lockedLog{h: boundary, log: eventLog}, store, cfg.Indexer.Interval, logger)
		if err := ix.Start(ctx); err != nil {
			logger.Fatal("Failed to start indexer", zap.Error(err))
		}
		defer ix.Stop()

		r.Get("/stats", apphttp.HandleError(statsHandler(store)))
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := httpserver.ServeAndWait(ctx, logger, httpServer, cfg.Shutdown.Timeout); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

// lockedLog reads the notification log under the call boundary's view lock.
type lockedLog struct {
	h   *host.Host
	log *events.Log
}

func (l *lockedLog) Since(seq uint64) []events.Event {
	var out []events.Event
	l.h.View(context.Background(), func(context.Context) error {
		out = l.log.Since(seq)
		return nil
	})
	return out
}

// statsHandler serves the aggregate sales stats from the index store
func statsHandler(store *indexdb.Store) apphttp.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		stats, err := store.GetStats(r.Context())
		if err != nil {
			return apperrors.DependencyError(err, "failed to load market stats")
		}
		w.Header().Set("Content-Type", "application/json")
		return json.NewEncoder(w).Encode(map[string]any{
			"salesCount": stats.SalesCount,
			"volume":     stats.Volume.String(),
			"updatedAt":  stats.UpdatedAt,
		})
	}
}
