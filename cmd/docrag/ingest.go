package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docrag/internal/indexer"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [source-id]",
	Short: "Run one ingestion pass",
	Long: `Runs one ingestion pass and exits.
If a source ID is provided, only that source is ingested.
Otherwise, all configured sources are ingested.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) > 0 {
		res, err := a.ingest.IngestSource(ctx, args[0])
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return nil
	}

	results, err := a.ingest.IngestAll(ctx)
	for _, res := range results {
		printResult(cmd, res)
	}
	return err
}

func printResult(cmd *cobra.Command, res *indexer.PassResult) {
	if res == nil {
		return
	}
	if res.NoOp {
		cmd.Printf("%s: up to date (%s)\n", res.SourceID, res.Duration)
		return
	}
	cmd.Printf("%s: %d added, %d updated, %d deleted, %d chunks written, %d embedded, %d retried (%s)\n",
		res.SourceID, res.Added, res.Updated, res.Deleted,
		res.ChunksWritten, res.ChunksEmbedded, res.ChunksRetried, res.Duration)
	for _, msg := range res.ErrorMessages() {
		cmd.Printf("  error: %s\n", msg)
	}
}
