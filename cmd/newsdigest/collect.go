package main

import (
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LJTian/newsdigest/internal/pipeline"
	"github.com/LJTian/newsdigest/internal/scheduler"
	"github.com/LJTian/newsdigest/internal/storage"
)

var (
	collectOutput string
	collectStore  bool
	collectSample int
)

// 只执行一轮采集任务后退出，适合手动触发或外部定时器调用
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one collection round and write the digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L()
		p, err := buildPipeline(cfg, log)
		if err != nil {
			return err
		}

		output := collectOutput
		if output == "" {
			output = cfg.Store.OutputPath
		}
		sinks := []storage.Sink{storage.NewFileSink(output)}
		if collectStore {
			store, err := openStore(ctx, cfg, p.Sources(), log)
			if err != nil {
				return err
			}
			defer store.Close()
			sinks = append(sinks, store)
		}

		s, err := scheduler.New(cfg.Schedule.Cron, p, sinks, log)
		if err != nil {
			return err
		}
		d, err := s.RunOnce(ctx)
		if err != nil {
			return err
		}

		printSummary(cmd.OutOrStdout(), d, collectSample)
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectOutput, "output", "", "output JSON file (default from config)")
	collectCmd.Flags().BoolVar(&collectStore, "store", false, "also write to Postgres and Redis")
	collectCmd.Flags().IntVar(&collectSample, "sample", 3, "number of items to print")
	rootCmd.AddCommand(collectCmd)
}

// printSummary 输出来源分布和前几条样例
func printSummary(w io.Writer, d pipeline.Digest, sample int) {
	fmt.Fprintf(w, "Run %s (%s): %d news from %d sources\n", d.RunID, d.RunDate, len(d.Items), d.Stats.Sources)
	fmt.Fprintf(w, "candidates=%d kept=%d unique=%d final=%d\n",
		d.Stats.Candidates, d.Stats.Kept, d.Stats.Unique, d.Stats.Final)

	names := make([]string, 0, len(d.Stats.Distribution))
	for name := range d.Stats.Distribution {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := d.Stats.Distribution[names[i]], d.Stats.Distribution[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})

	fmt.Fprintln(w, "\nBy source:")
	for _, name := range names {
		fmt.Fprintf(w, "  %-16s %d\n", name, d.Stats.Distribution[name])
	}

	if sample > len(d.Items) {
		sample = len(d.Items)
	}
	if sample <= 0 {
		return
	}
	fmt.Fprintln(w, "\nSample:")
	for _, it := range d.Items[:sample] {
		fmt.Fprintf(w, "  %d. [%s] %s (%s)\n", it.ID, it.Source, it.Title, it.PublishedDate)
	}
}
