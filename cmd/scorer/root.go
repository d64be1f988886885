package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spacesedan/racepulse/internal/aggregate"
	"github.com/spacesedan/racepulse/internal/app"
	"github.com/spacesedan/racepulse/internal/clients"
	"github.com/spacesedan/racepulse/internal/db"
	"github.com/spacesedan/racepulse/internal/ingest"
	"github.com/spacesedan/racepulse/internal/models"
	"github.com/spacesedan/racepulse/internal/monitoring"
	"github.com/spacesedan/racepulse/internal/sentiment"
	"github.com/spacesedan/racepulse/internal/utils"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "scorer",
		Short:         "Score F1 Reddit text offline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newFileCommand())
	rootCmd.AddCommand(newTextCommand())
	return rootCmd
}

type fileOptions struct {
	groupKey  string
	output    string
	sqlite    string
	batchSize int
	summary   bool
}

func newFileCommand() *cobra.Command {
	opts := fileOptions{}

	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Score a CSV export or JSON item file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Init()
			ctx, cancel := app.SignalContext()
			defer cancel()

			items, err := ingest.ReadFile(args[0], ingest.Options{GroupKey: opts.groupKey})
			if err != nil {
				return err
			}

			engine, err := app.NewEngine(cfg)
			if err != nil {
				return err
			}
			defer clients.CloseHugot()

			go monitoring.ReportProgress(ctx, engine, cfg.ProgressPeriod)

			var store db.ResultStore
			if opts.sqlite != "" {
				sqlite, err := db.OpenSQLite(opts.sqlite)
				if err != nil {
					return err
				}
				defer sqlite.Close()
				store = sqlite
			}

			out := cmd.OutOrStdout()
			if opts.output != "" && opts.output != "-" {
				f, err := os.Create(opts.output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			batchSize := opts.batchSize
			if batchSize <= 0 {
				batchSize = cfg.ScoringBatch
			}

			results, err := scoreItems(ctx, engine, items, batchSize, out, store)
			if err != nil {
				return err
			}

			if opts.summary {
				return writeSummaries(cmd.ErrOrStderr(), results)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.groupKey, "group-key", "", "Group key for every item, e.g. 2024-8-RACE")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "-", "Where to write the JSON results")
	cmd.Flags().StringVar(&opts.sqlite, "sqlite", "", "Also save results to this SQLite database")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Items per batch (default: SCORING_BATCH_SIZE)")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Print a per-group summary to stderr")
	return cmd
}

func newTextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "text <text>...",
		Short: "Score text given on the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Init()
			engine, err := app.NewEngine(cfg)
			if err != nil {
				return err
			}
			defer clients.CloseHugot()

			items := make([]models.TextItem, len(args))
			for i, text := range args {
				items[i] = models.TextItem{
					ID:        uuid.NewString(),
					RawText:   text,
					CreatedAt: time.Now().UTC(),
					Kind:      models.PrimaryItem,
				}
			}

			results, err := engine.ProcessBatch(cmd.Context(), items)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
}

// scoreItems scores items in batches and streams the results to out as one
// JSON array. A cancelled run still writes the results scored so far and
// returns the context error.
func scoreItems(ctx context.Context, engine *sentiment.Engine, items []models.TextItem, batchSize int, out io.Writer, store db.ResultStore) ([]models.EnsembleResult, error) {
	if _, err := io.WriteString(out, "["); err != nil {
		return nil, err
	}

	var all []models.EnsembleResult
	var runErr error
	first := true

	for i, batch := range utils.Chunk(items, batchSize) {
		results, err := engine.ProcessBatch(ctx, batch)

		for _, r := range results {
			data, mErr := json.Marshal(r)
			if mErr != nil {
				return all, mErr
			}
			if !first {
				if _, wErr := io.WriteString(out, ",\n"); wErr != nil {
					return all, wErr
				}
			}
			first = false
			if _, wErr := out.Write(data); wErr != nil {
				return all, wErr
			}
		}
		all = append(all, results...)

		if store != nil && len(results) > 0 {
			if sErr := store.SaveResults(ctx, results); sErr != nil {
				slog.Error("[Main] Failed to save batch",
					slog.Int("batch", i),
					slog.String("error", sErr.Error()))
				runErr = errors.Join(runErr, sErr)
			}
		}

		if err != nil {
			runErr = errors.Join(runErr, err)
			break
		}
	}

	if _, err := io.WriteString(out, "]\n"); err != nil {
		return all, err
	}

	slog.Info("[Main] Scoring finished",
		slog.Int("items", len(items)),
		slog.Int("scored", len(all)))
	return all, runErr
}

func writeSummaries(w io.Writer, results []models.EnsembleResult) error {
	groups := map[string][]models.EnsembleResult{}
	for _, r := range results {
		groups[r.GroupKey] = append(groups[r.GroupKey], r)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		s := aggregate.Summarize(k, groups[k], 5)

		keywords := make([]string, len(s.TopKeywords))
		for i, c := range s.TopKeywords {
			keywords[i] = fmt.Sprintf("%s(%d)", c.Keyword, c.Count)
		}

		name := k
		if name == "" {
			name = "(no group)"
		}
		_, err := fmt.Fprintf(w, "%s: %d items, mean %.3f (sd %.3f), +%d =%d -%d, keywords: %s\n",
			name, s.Count, s.MeanAdjusted, s.StdDevAdjusted,
			s.Categories[models.Positive], s.Categories[models.Neutral], s.Categories[models.Negative],
			strings.Join(keywords, ", "))
		if err != nil {
			return err
		}
	}
	return nil
}
