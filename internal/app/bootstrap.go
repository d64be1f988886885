package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spacesedan/racepulse/config"
	"github.com/spacesedan/racepulse/internal/clients"
	"github.com/spacesedan/racepulse/internal/db"
	"github.com/spacesedan/racepulse/internal/logging"
	"github.com/spacesedan/racepulse/internal/sentiment"
)

// Init loads the env file, the typed configuration and the logger. It exits
// the process on invalid configuration.
func Init() *config.Config {
	config.LoadEnv(config.AppEnv())

	cfg, err := config.Load()
	if err != nil {
		logging.InitLogger("info")
		slog.Error("[Main] Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logging.InitLogger(cfg.LogLevel)
	return cfg
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// NewEngine builds the scoring engine from cfg. The neural classifier is
// loaded here; a failure to load it disables the neural scorer instead of
// failing.
func NewEngine(cfg *config.Config) (*sentiment.Engine, error) {
	lex, err := sentiment.LoadLexicon(cfg.LexiconPath)
	if err != nil {
		return nil, err
	}

	return sentiment.NewEngine(sentiment.Options{
		Lexicon: lex,
		Weights: sentiment.Weights{
			Vader:    cfg.VaderWeight,
			Polarity: cfg.PolarityWeight,
			Neural:   cfg.NeuralWeight,
		},
		FallbackPolicy: sentiment.FallbackPolicy(cfg.FallbackPolicy),
		Classifier:     clients.NewClassifier(cfg),
		NeuralMaxChars: cfg.NeuralMaxChars,
		Workers:        cfg.ScoringWorkers,
	})
}

// OpenStore opens the result store named by STORE_BACKEND. The SQLite store
// is also returned on its own when it is the backend, for race metadata.
func OpenStore(cfg *config.Config) (db.ResultStore, *db.SQLiteStore, error) {
	switch cfg.StoreBackend {
	case "dynamodb":
		return db.NewDynamoStore(clients.GetDynamoDBClient(cfg), cfg.DynamoDBTable), nil, nil
	case "sqlite":
		store, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("[Main] unknown store backend %q", cfg.StoreBackend)
	}
}

// NewSink returns the InfluxDB sink, or nil when INFLUX_URL is unset.
func NewSink(cfg *config.Config) *db.InfluxSink {
	if cfg.InfluxURL == "" {
		return nil
	}
	slog.Info("[Main] Writing results to InfluxDB",
		slog.String("url", cfg.InfluxURL),
		slog.String("bucket", cfg.InfluxBucket))
	return db.NewInfluxSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
}
