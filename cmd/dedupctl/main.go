package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"candidate-dedup/internal/config"
	"candidate-dedup/internal/dedup"
	"candidate-dedup/internal/logger"
	"candidate-dedup/internal/report"
	"candidate-dedup/internal/storage"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	root := &cobra.Command{
		Use:   "dedupctl",
		Short: "Operate the candidate duplicate-detection pipeline",
	}
	root.AddCommand(scanCmd(), queueCmd(), exportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}

// openQueue wires the pipeline against the configured database. The CLI runs
// a single merge at a time, so the in-process locker is enough.
func openQueue() (*dedup.QueueService, *storage.PostgresStore, error) {
	cfg := config.LoadConfig()
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	zlog, err := logger.New(cfg.LogLevel, "console", "dedupctl")
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	return dedup.NewQueueService(store, dedup.NewMemoryLocker(), zlog), store, nil
}

func scanCmd() *cobra.Command {
	var tenant string
	var limit int
	var addToQueue bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the pairwise batch duplicate scan for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, store, err := openQueue()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			start := time.Now()
			summary, err := queue.ScanAllCandidates(ctx, tenant, limit, addToQueue, "cli")
			if err != nil {
				return err
			}

			fmt.Printf("%s scanned %d candidates in %s\n", green("✓"),
				summary.CandidatesScanned, time.Since(start).Round(time.Millisecond))
			fmt.Printf("  duplicates found: %s\n", bold(summary.DuplicatesFound))
			if addToQueue {
				fmt.Printf("  queue items added: %s\n", bold(summary.ItemsAdded))
			} else {
				fmt.Println(yellow("  dry run: nothing queued (pass --queue to persist)"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().IntVar(&limit, "limit", 500, "max candidates to scan")
	cmd.Flags().BoolVar(&addToQueue, "queue", false, "persist flagged pairs to the merge queue")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the merge queue",
	}
	cmd.AddCommand(queueListCmd(), queueStatsCmd())
	return cmd
}

func queueListCmd() *cobra.Command {
	var tenant, status, matchType string
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List merge-queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, store, err := openQueue()
			if err != nil {
				return err
			}
			defer store.Close()

			items, total, err := queue.ListQueueItems(cmd.Context(), tenant, page, pageSize,
				storage.QueueStatus(status), storage.MatchType(matchType))
			if err != nil {
				return err
			}

			fmt.Printf("%s %d items (page %d)\n", bold("total:"), total, page)
			for _, d := range items {
				line := fmt.Sprintf("%s  %-8s  %-6s  %.2f  %s <- %s",
					d.Item.ID, d.Item.Status, d.Item.MatchType, d.Item.MatchScore,
					candidateLabel(d.Primary), candidateLabel(d.Duplicate))
				switch d.Item.Status {
				case storage.StatusPending:
					fmt.Println(yellow(line))
				case storage.StatusMerged:
					fmt.Println(green(line))
				default:
					fmt.Println(line)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().StringVar(&status, "status", "", "filter: pending|merged|rejected|deferred")
	cmd.Flags().StringVar(&matchType, "match-type", "", "filter: hard|strong|fuzzy|review")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "page size")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func queueStatsCmd() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show merge-queue counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, store, err := openQueue()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := queue.QueueStats(cmd.Context(), tenant)
			if err != nil {
				return err
			}

			fmt.Println(bold("merge queue"))
			fmt.Printf("  pending:  %s\n", yellow(stats.Pending))
			fmt.Printf("  merged:   %s\n", green(stats.Merged))
			fmt.Printf("  rejected: %d\n", stats.Rejected)
			fmt.Printf("  deferred: %d\n", stats.Deferred)
			if len(stats.ByMatchType) > 0 {
				fmt.Println(bold("pending by match type"))
				for mt, n := range stats.ByMatchType {
					fmt.Printf("  %-6s: %d\n", mt, n)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func exportCmd() *cobra.Command {
	var tenant, out, status string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the merge queue to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, store, err := openQueue()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			var items []*storage.MergeQueueItem
			for page := 1; ; page++ {
				batch, total, err := store.Queue().List(ctx, tenant, page, 200,
					storage.QueueStatus(status), "")
				if err != nil {
					return err
				}
				items = append(items, batch...)
				if len(items) >= total || len(batch) == 0 {
					break
				}
			}

			stats, err := queue.QueueStats(ctx, tenant)
			if err != nil {
				return err
			}
			if err := report.WriteQueueWorkbook(items, stats, out); err != nil {
				return err
			}
			fmt.Printf("%s wrote %d items to %s\n", green("✓"), len(items), bold(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().StringVar(&out, "out", "merge-queue.xlsx", "output path")
	cmd.Flags().StringVar(&status, "status", "", "filter: pending|merged|rejected|deferred")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func candidateLabel(c *dedup.CandidateSummary) string {
	if c == nil {
		return "(missing)"
	}
	name := fmt.Sprintf("%s %s", c.FirstName, c.LastName)
	if c.Email != "" {
		return fmt.Sprintf("%s <%s>", name, c.Email)
	}
	return name
}
