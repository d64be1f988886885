package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spacesedan/racepulse/config"
	"github.com/spacesedan/racepulse/internal/app"
	"github.com/spacesedan/racepulse/internal/clients"
	"github.com/spacesedan/racepulse/internal/clients/kafka_client"
	"github.com/spacesedan/racepulse/internal/collector"
	"github.com/spacesedan/racepulse/internal/ingest"
	"github.com/spacesedan/racepulse/internal/models"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	exportDir string
	dryRun    bool
	noDedupe  bool
	sessions  []string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "collector",
		Short:         "Collect F1 Reddit posts and comments per race session",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.exportDir, "export-dir", "", "Also write each session's new items as CSV into this directory")
	rootCmd.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "Collect without publishing to Kafka")
	rootCmd.PersistentFlags().BoolVar(&opts.noDedupe, "no-dedupe", false, "Do not skip items collected by earlier runs")
	rootCmd.PersistentFlags().StringSliceVar(&opts.sessions, "sessions", []string{"RACE"}, "Sessions to collect (FP1, FP2, FP3, SPRINT_QUALIFYING, SPRINT, QUALIFYING, RACE)")

	rootCmd.AddCommand(newSessionCommand(opts))
	rootCmd.AddCommand(newSeasonCommand(opts))
	rootCmd.AddCommand(newAllCommand(opts))
	rootCmd.AddCommand(newSpecificCommand(opts))
	rootCmd.AddCommand(newWatchCommand(opts))

	return rootCmd
}

func (o *rootOptions) parseSessions() ([]collector.Session, error) {
	sessions := make([]collector.Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		session, err := collector.ParseSession(s)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// withCollector wires the collector from the environment, runs fn and tears
// everything down again.
func (o *rootOptions) withCollector(fn func(ctx context.Context, cfg *config.Config, c *collector.Collector, sessions []collector.Session) error) error {
	sessions, err := o.parseSessions()
	if err != nil {
		return err
	}

	cfg := app.Init()
	ctx, cancel := app.SignalContext()
	defer cancel()

	opts := collector.Options{
		Reddit:       clients.GetRedditClient(),
		Races:        clients.GetErgastClient(),
		Subreddit:    cfg.Subreddit,
		PostLimit:    cfg.PostLimit,
		CommentLimit: cfg.CommentLimit,
	}

	if o.dryRun {
		opts.Publish = func(_ context.Context, topic, _ string, payload interface{}) error {
			items, _ := payload.([]models.TextItem)
			slog.Info("[Main] Dry run, not publishing",
				slog.String("topic", topic),
				slog.Int("items", len(items)))
			return nil
		}
	} else {
		if err := kafka_client.InitKafkaProducer(kafka_client.GetKafkaConfig(cfg)); err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer kafka_client.CloseKafkaProducer()
		opts.Publish = kafka_client.PublishToKafka
	}

	if !o.noDedupe && !o.dryRun {
		opts.Dedupe = clients.InitValkey()
		defer clients.CloseValkey()
	}

	if cfg.StoreBackend == "sqlite" {
		_, sqlite, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer sqlite.Close()
		opts.RaceStore = sqlite
	}

	if o.exportDir != "" {
		if err := os.MkdirAll(o.exportDir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
		opts.Export = csvExporter(o.exportDir)
	}

	c, err := collector.New(opts)
	if err != nil {
		return err
	}
	return fn(ctx, cfg, c, sessions)
}

func csvExporter(dir string) collector.ExportFunc {
	return func(race models.Race, session collector.Session, items []models.TextItem) error {
		path := filepath.Join(dir, ingest.CSVFileName(race.RaceName, string(session)))
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := ingest.WriteCSV(f, items, string(session)); err != nil {
			return err
		}
		slog.Info("[Main] Exported items",
			slog.String("file", path),
			slog.Int("items", len(items)))
		return nil
	}
}

func newSessionCommand(opts *rootOptions) *cobra.Command {
	var season, round int

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Collect the given sessions of one race (default: the next race)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCollector(func(ctx context.Context, _ *config.Config, c *collector.Collector, sessions []collector.Session) error {
				total := 0
				for _, session := range sessions {
					n, err := c.Run(ctx, season, round, session)
					if err != nil {
						return err
					}
					total += n
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Published %d items\n", total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&season, "year", 0, "Season of the race (0: current season)")
	cmd.Flags().IntVar(&round, "round", 0, "Round of the race (0: last race of the season, or next race when --year is 0)")
	return cmd
}

func newSeasonCommand(opts *rootOptions) *cobra.Command {
	var season, startRound, endRound int

	cmd := &cobra.Command{
		Use:   "season",
		Short: "Collect every completed race of a season",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCollector(func(ctx context.Context, _ *config.Config, c *collector.Collector, sessions []collector.Session) error {
				stats, err := c.RunSeason(ctx, season, sessions, startRound, endRound, time.Now().UTC())
				if err != nil {
					return err
				}

				writeStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&season, "year", time.Now().Year(), "Season to collect")
	cmd.Flags().IntVar(&startRound, "start-round", 1, "First round to collect")
	cmd.Flags().IntVar(&endRound, "end-round", 0, "Last round to collect (0: all completed)")
	return cmd
}

func writeStats(w io.Writer, stats collector.Stats) {
	fmt.Fprintf(w, "Total scraping attempts: %d\n", stats.Total)
	fmt.Fprintf(w, "Successful: %d\n", stats.Successful)
	fmt.Fprintf(w, "Failed: %d\n", stats.Failed)
	fmt.Fprintf(w, "Items published: %d\n", stats.Published)
	fmt.Fprintf(w, "Success rate: %.1f%%\n", stats.SuccessRate())
}

func newAllCommand(opts *rootOptions) *cobra.Command {
	var from, to int

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Collect every completed race of every season in a range",
		RunE: func(cmd *cobra.Command, args []string) error {
			if to < from {
				return fmt.Errorf("--to (%d) is before --from (%d)", to, from)
			}
			return opts.withCollector(func(ctx context.Context, _ *config.Config, c *collector.Collector, sessions []collector.Session) error {
				stats, err := c.RunSeasons(ctx, from, to, sessions, time.Now().UTC())
				if err != nil {
					return err
				}
				writeStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&from, "from", collector.FirstSeason, "First season to collect")
	cmd.Flags().IntVar(&to, "to", time.Now().Year(), "Last season to collect")
	return cmd
}

func newSpecificCommand(opts *rootOptions) *cobra.Command {
	var configs, file string

	cmd := &cobra.Command{
		Use:     "specific",
		Short:   "Collect a list of year/round/session targets",
		Example: `  collector specific --configs '[{"year":2025,"round":1,"session":"Race"}]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := loadTargets(configs, file)
			if err != nil {
				return err
			}
			return opts.withCollector(func(ctx context.Context, _ *config.Config, c *collector.Collector, _ []collector.Session) error {
				stats, err := c.RunTargets(ctx, targets)
				if err != nil {
					return err
				}
				writeStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&configs, "configs", "", "JSON list of {year, round, session} targets")
	cmd.Flags().StringVar(&file, "file", "", "Read the JSON target list from this file")
	cmd.MarkFlagsMutuallyExclusive("configs", "file")
	cmd.MarkFlagsOneRequired("configs", "file")
	return cmd
}

func loadTargets(configs, file string) ([]collector.Target, error) {
	data := []byte(configs)
	if file != "" {
		var err error
		if data, err = os.ReadFile(file); err != nil {
			return nil, fmt.Errorf("read targets: %w", err)
		}
	}
	return collector.ParseTargets(data)
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Collect the latest race every COLLECT_INTERVAL until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCollector(func(ctx context.Context, cfg *config.Config, c *collector.Collector, sessions []collector.Session) error {
				ticker := time.NewTicker(cfg.CollectEvery)
				defer ticker.Stop()

				collect := func() {
					season := time.Now().UTC().Year()
					for _, session := range sessions {
						if _, err := c.Run(ctx, season, 0, session); err != nil {
							slog.Error("[Main] Collection failed",
								slog.String("session", string(session)),
								slog.String("error", err.Error()))
						}
					}
				}

				collect()
				for {
					select {
					case <-ctx.Done():
						slog.Info("[Main] Shutting down collector gracefully...")
						return nil
					case <-ticker.C:
						collect()
					}
				}
			})
		},
	}
}
