package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/htngan/walletfeed/internal/infra/storage/postgres"
)

var (
	historyNetwork string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show previously saved transaction history",
	Run:   runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyNetwork, "network", "", "network name")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum number of records")
	_ = historyCmd.MarkFlagRequired("network")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	txs, err := postgres.NewTxRepo(db).ListByNetwork(ctx, historyNetwork, historyLimit)
	if err != nil {
		slog.Error("Failed to load history", "error", err)
		os.Exit(1)
	}

	printTransactions(txs)
}
