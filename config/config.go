package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go-simpler.org/env"
)

// Config is the process configuration shared by every binary. Values come
// from the OS environment after LoadEnv has applied the env file.
type Config struct {
	AppEnv   string `env:"APP_ENV" default:"dev"`
	LogLevel string `env:"LOG_LEVEL" default:"info"`

	VaderWeight    float64 `env:"ENSEMBLE_WEIGHT_VADER" default:"0.4" validate:"gte=0,lte=1"`
	PolarityWeight float64 `env:"ENSEMBLE_WEIGHT_POLARITY" default:"0.3" validate:"gte=0,lte=1"`
	NeuralWeight   float64 `env:"ENSEMBLE_WEIGHT_NEURAL" default:"0.3" validate:"gte=0,lte=1"`

	FallbackPolicy  string `env:"NEURAL_FALLBACK_POLICY" default:"renormalize" validate:"oneof=renormalize zero"`
	NeuralBackend   string `env:"NEURAL_BACKEND" default:"local" validate:"oneof=local remote off"`
	NeuralModelPath string `env:"NEURAL_MODEL_PATH" default:"./models/twitter-roberta-base-sentiment"`
	NeuralModelName string `env:"NEURAL_MODEL_NAME"`
	NeuralEndpoint  string `env:"NEURAL_ENDPOINT"`
	NeuralMaxChars  int    `env:"NEURAL_MAX_CHARS" default:"500" validate:"gte=1"`

	LexiconPath    string `env:"LEXICON_PATH"`
	ScoringWorkers int    `env:"SCORING_WORKERS" default:"1" validate:"gte=1"`
	ScoringBatch   int    `env:"SCORING_BATCH_SIZE" default:"1000" validate:"gte=1"`

	StoreBackend  string `env:"STORE_BACKEND" default:"sqlite" validate:"oneof=sqlite dynamodb"`
	SQLitePath    string `env:"SQLITE_PATH" default:"racepulse.db"`
	DynamoDBTable string `env:"DYNAMODB_TABLE" default:"SentimentResults"`
	AWSRegion     string `env:"AWS_REGION" default:"us-west-2"`
	AWSEndpoint   string `env:"AWS_ENDPOINT"`

	InfluxURL    string `env:"INFLUX_URL"`
	InfluxToken  string `env:"INFLUX_TOKEN"`
	InfluxOrg    string `env:"INFLUX_ORG" default:"racepulse"`
	InfluxBucket string `env:"INFLUX_BUCKET" default:"sentiment"`

	KafkaBroker  string `env:"KAFKA_BROKER" default:"localhost:29092"`
	KafkaGroupID string `env:"KAFKA_CONSUMER_GROUP_ID" default:"racepulse-consumer-group"`
	KafkaTopic   string `env:"KAFKA_CONSUMER_TOPIC" default:"text-items"`

	Subreddit      string        `env:"REDDIT_SUBREDDIT" default:"formula1"`
	PostLimit      int           `env:"REDDIT_POST_LIMIT" default:"50" validate:"gte=1,lte=100"`
	CommentLimit   int           `env:"REDDIT_COMMENT_LIMIT" default:"10" validate:"gte=0"`
	CollectEvery   time.Duration `env:"COLLECT_INTERVAL" default:"30m"`
	ProgressPeriod time.Duration `env:"PROGRESS_INTERVAL" default:"30s"`

	APIPort string `env:"API_PORT" default:"8080"`
}

var ErrWeightsDoNotSumToOne = errors.New("ensemble weights must sum to 1.0")

const weightEpsilon = 1e-9

var validate = validator.New()

func Load() (*Config, error) {
	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("[Config] failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("[Config] invalid configuration: %w", err)
	}

	sum := c.VaderWeight + c.PolarityWeight + c.NeuralWeight
	if math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("[Config] %w: got %.4f", ErrWeightsDoNotSumToOne, sum)
	}

	return nil
}
