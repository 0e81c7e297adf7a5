package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/htngan/walletfeed/internal/core/config"
	"github.com/htngan/walletfeed/internal/core/domain"
	"github.com/htngan/walletfeed/internal/infra/price"
	rediscache "github.com/htngan/walletfeed/internal/infra/redis"
	"github.com/htngan/walletfeed/internal/infra/rpc"
	"github.com/htngan/walletfeed/internal/infra/source/explorer"
	"github.com/htngan/walletfeed/internal/infra/source/indexer"
	"github.com/htngan/walletfeed/internal/infra/source/noderpc"
	"github.com/htngan/walletfeed/internal/infra/source/utxo"
	"github.com/htngan/walletfeed/internal/infra/storage"
	"github.com/htngan/walletfeed/internal/infra/storage/postgres"
	"github.com/htngan/walletfeed/internal/pipeline/classify"
	"github.com/htngan/walletfeed/internal/pipeline/enrich"
	"github.com/htngan/walletfeed/internal/pipeline/orchestrator"
)

var (
	fetchNetwork string
	fetchAddress string
	fetchLimit   int
	fetchPage    int
	fetchEnrich  bool
	fetchSave    bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and normalize transaction history for a wallet",
	Run:   runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchNetwork, "network", "", "network name (e.g. polkadot, ethereum, bitcoin)")
	fetchCmd.Flags().StringVar(&fetchAddress, "address", "", "wallet address or extended public key")
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 25, "maximum number of records")
	fetchCmd.Flags().IntVar(&fetchPage, "page", 0, "result page (zero-based)")
	fetchCmd.Flags().BoolVar(&fetchEnrich, "enrich", false, "attach historical USD values")
	fetchCmd.Flags().BoolVar(&fetchSave, "save", false, "persist results to the configured database")
	_ = fetchCmd.MarkFlagRequired("network")
	_ = fetchCmd.MarkFlagRequired("address")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch, cleanup, err := buildOrchestrator(ctx, cfg, fetchSave)
	if err != nil {
		slog.Error("Failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printProgress(ctx, orch.Progress())
	}()

	result, err := orch.FetchAllTransactions(ctx, fetchNetwork, fetchAddress, orchestrator.Options{
		Limit:  fetchLimit,
		Page:   fetchPage,
		Enrich: fetchEnrich,
		Save:   fetchSave,
	})
	cancel()
	wg.Wait()
	if err != nil {
		slog.Error("Fetch failed", "network", fetchNetwork, "error", err)
		os.Exit(1)
	}

	slog.Info("Fetch complete",
		"run", result.RunID,
		"source", result.Source,
		"fallback", result.UsedFallback,
		"records", len(result.Transactions))

	printTransactions(result.Transactions)
}

// buildOrchestrator wires the shared provider registry, adapters, cache,
// enrichment engine and (optionally) the database store.
func buildOrchestrator(
	ctx context.Context,
	cfg *config.AppConfig,
	needStore bool,
) (*orchestrator.Orchestrator, func(), error) {
	registry := rpc.NewRegistry(30 * time.Second)
	classifier := classify.New()
	networks := cfg.AllNetworks()

	// The price cache is optional: without Redis every run re-queries.
	var cache *rediscache.Client
	if cfg.Redis.URL != "" {
		var err error
		cache, err = rediscache.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Redis unavailable, running without price cache", "error", err)
			cache = nil
		}
	}

	priceProvider := registry.Provider("price", cfg.Price.BaseURL)
	if cfg.Price.APIKey != "" {
		priceProvider.SetHeader("x-cg-demo-api-key", cfg.Price.APIKey)
	}

	var store storage.TransactionStore
	var db *postgres.DB
	if needStore {
		var err error
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			registry.Close()
			_ = cache.Close()
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		store = postgres.NewTxRepo(db)
	}

	orch := orchestrator.New(orchestrator.Config{
		Networks: networks,
		Indexer:  indexer.New(registry, classifier),
		Explorer: explorer.New(registry, cfg.Explorer.BaseURL, cfg.Explorer.APIKey),
		NodeRPC:  noderpc.New(registry),
		UTXO:     utxo.New(registry, classifier),
		Enricher: enrich.New(price.NewClient(priceProvider), cache, networks),
		Store:    store,
	})

	cleanup := func() {
		registry.Close()
		_ = cache.Close()
		if db != nil {
			_ = db.Close()
		}
	}
	return orch, cleanup, nil
}

func printProgress(ctx context.Context, events <-chan domain.ProgressEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			slog.Info("progress",
				"stage", ev.Stage,
				"source", ev.Source,
				"message", ev.Message,
				"records", ev.Records)
		}
	}
}

func printTransactions(txs []*domain.Transaction) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "BLOCK\tTIME\tTYPE\tMETHOD\tVALUE\tSTATUS\tUSD")

	for _, tx := range txs {
		usd := "-"
		if tx.USDValue != nil {
			usd = fmt.Sprintf("%.2f", *tx.USDValue)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s.%s\t%s\t%s\t%s\n",
			tx.BlockNumber,
			tx.Timestamp.Format(time.RFC3339),
			tx.Type,
			tx.Section, tx.Method,
			tx.Value,
			tx.Status,
			usd)
	}
	_ = w.Flush()
}
