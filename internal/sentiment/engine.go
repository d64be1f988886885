package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spacesedan/racepulse/internal/metrics"
	"github.com/spacesedan/racepulse/internal/models"
	"golang.org/x/sync/errgroup"
)

const defaultProgressEvery = 100

// Options configures an Engine. Lexicon and Weights are required; a nil
// Classifier disables the neural scorer for the life of the Engine.
type Options struct {
	Lexicon        *Lexicon
	Weights        Weights
	FallbackPolicy FallbackPolicy
	Classifier     Classifier
	NeuralMaxChars int

	// Workers > 1 scores items of a batch concurrently.
	Workers       int
	ProgressEvery int
}

// Engine holds everything needed to score text: the lexicon, normalizer,
// scorers and fusion weights. It is built once and shared read-only.
type Engine struct {
	lexicon    *Lexicon
	normalizer *Normalizer
	validator  *ConfidenceValidator

	vader    Scorer
	polarity Scorer
	neural   *NeuralScorer

	configured Weights
	weights    Weights
	policy     FallbackPolicy

	workers       int
	progressEvery int

	scored atomic.Int64
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Lexicon == nil {
		return nil, errors.New("[Engine] a lexicon is required")
	}
	if err := opts.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("[Engine] %w", err)
	}

	policy, err := ParseFallbackPolicy(string(opts.FallbackPolicy))
	if err != nil {
		return nil, fmt.Errorf("[Engine] %w", err)
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	progressEvery := opts.ProgressEvery
	if progressEvery < 1 {
		progressEvery = defaultProgressEvery
	}

	neural := NewNeuralScorer(opts.Classifier, opts.NeuralMaxChars)

	e := &Engine{
		lexicon:       opts.Lexicon,
		normalizer:    NewNormalizer(opts.Lexicon),
		validator:     NewConfidenceValidator(opts.Lexicon),
		vader:         NewVaderScorer(),
		polarity:      NewPolarityScorer(),
		neural:        neural,
		configured:    opts.Weights,
		weights:       opts.Weights.Effective(neural.Enabled(), policy),
		policy:        policy,
		workers:       workers,
		progressEvery: progressEvery,
	}

	slog.Info("[Engine] Initialized",
		slog.Bool("neural_enabled", neural.Enabled()),
		slog.String("fallback_policy", string(policy)),
		slog.Float64("weight_vader", e.weights.Vader),
		slog.Float64("weight_polarity", e.weights.Polarity),
		slog.Float64("weight_neural", e.weights.Neural),
		slog.Int("workers", workers))

	return e, nil
}

func (e *Engine) NeuralEnabled() bool { return e.neural.Enabled() }

// Weights returns the weights actually used for fusion, after the fallback
// policy has been applied.
func (e *Engine) Weights() Weights { return e.weights }

func (e *Engine) Normalizer() *Normalizer { return e.normalizer }

func (e *Engine) Lexicon() *Lexicon { return e.lexicon }

// Scored is the number of items scored since the Engine was built.
func (e *Engine) Scored() int64 { return e.scored.Load() }

// ScoreItem runs the whole pipeline for one item. It never fails: scorer
// errors degrade that scorer to neutral and are listed in DegradedModels.
func (e *Engine) ScoreItem(ctx context.Context, item models.TextItem) models.EnsembleResult {
	normalized := e.normalizer.Normalize(item.RawText)
	match := e.lexicon.ScoreText(normalized)

	var degraded []string
	run := func(s Scorer) BaseScore {
		score, ok := e.runScorer(ctx, s, normalized, item.ID)
		if !ok {
			degraded = append(degraded, s.Name())
		}
		return score
	}

	vader := run(e.vader)
	polarity := run(e.polarity)
	neural := run(e.neural)

	adjVader := Adjust(vader.Primary, match)
	adjPolarity := Adjust(polarity.Primary, match)

	ensemble, category := Fuse(adjVader, adjPolarity, neural.Primary, e.weights)
	penalty := e.validator.Validate(item.RawText, normalized)

	keywords := match.MatchedKeywords
	if keywords == nil {
		keywords = []string{}
	}

	e.scored.Add(1)
	metrics.ItemsScored.WithLabelValues(string(category)).Inc()

	return models.EnsembleResult{
		ItemID:            item.ID,
		GroupKey:          item.GroupKey,
		Kind:              item.Kind,
		CreatedAt:         item.CreatedAt,
		EnsembleScore:     ensemble,
		SentimentCategory: category,
		VaderScore:        adjVader,
		PolarityScore:     adjPolarity,
		Subjectivity:      polarity.Secondary["subjectivity"],
		BertScore:         neural.Primary,
		BertLabel:         neural.Label,
		ModelAgreement:    ModelAgreement(adjVader, adjPolarity, neural.Primary),
		ConfidencePenalty: penalty,
		AdjustedScore:     ApplyPenalty(ensemble, penalty),
		CleanedText:       normalized,
		MatchedKeywords:   keywords,
		DegradedModels:    degraded,
	}
}

func (e *Engine) runScorer(ctx context.Context, s Scorer, text, itemID string) (score BaseScore, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("[Engine] Scorer panicked, using neutral score",
				slog.String("model", s.Name()),
				slog.String("item_id", itemID),
				slog.Any("panic", r))
			metrics.AdapterFallbacks.WithLabelValues(s.Name()).Inc()
			score, ok = s.Neutral(), false
		}
	}()

	res, err := s.Score(ctx, text)
	if err != nil {
		slog.Warn("[Engine] Scorer failed, using neutral score",
			slog.String("model", s.Name()),
			slog.String("item_id", itemID),
			slog.String("error", err.Error()))
		metrics.AdapterFallbacks.WithLabelValues(s.Name()).Inc()
		return s.Neutral(), false
	}

	return res, true
}

// ProcessBatch scores items and returns one result per item in input order.
// If ctx is cancelled part way through, the returned slice is the scored
// prefix (result i always belongs to items[i]) together with ctx.Err().
func (e *Engine) ProcessBatch(ctx context.Context, items []models.TextItem) ([]models.EnsembleResult, error) {
	start := time.Now()
	defer func() {
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	if e.workers > 1 && len(items) > 1 {
		return e.processConcurrently(ctx, items, start)
	}

	results := make([]models.EnsembleResult, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			e.logCancelled(len(results), len(items))
			return results, err
		}

		results = append(results, e.ScoreItem(ctx, item))
		e.logProgress(i+1, len(items))
	}

	e.logDone(len(results), start)
	return results, nil
}

func (e *Engine) processConcurrently(ctx context.Context, items []models.TextItem, start time.Time) ([]models.EnsembleResult, error) {
	results := make([]models.EnsembleResult, len(items))
	done := make([]bool, len(items))
	var completed atomic.Int64

	var g errgroup.Group
	g.SetLimit(e.workers)

	for i := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = e.ScoreItem(ctx, items[i])
			done[i] = true
			e.logProgress(int(completed.Add(1)), len(items))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		prefix := 0
		for prefix < len(done) && done[prefix] {
			prefix++
		}
		e.logCancelled(prefix, len(items))
		return results[:prefix], err
	}

	e.logDone(len(results), start)
	return results, nil
}

func (e *Engine) logProgress(n, total int) {
	if n%e.progressEvery != 0 || n == total {
		return
	}
	slog.Info("[Engine] Batch progress",
		slog.Int("scored", n),
		slog.Int("total", total))
}

func (e *Engine) logDone(n int, start time.Time) {
	slog.Info("[Engine] Batch scored",
		slog.Int("items", n),
		slog.Duration("elapsed", time.Since(start)))
}

func (e *Engine) logCancelled(scored, total int) {
	slog.Warn("[Engine] Batch cancelled, returning scored prefix",
		slog.Int("scored", scored),
		slog.Int("total", total))
}
