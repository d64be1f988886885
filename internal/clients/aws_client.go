package clients

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spacesedan/racepulse/config"
)

var (
	awsCfg  aws.Config
	awsOnce sync.Once

	dynamoClient *dynamodb.Client
	dynamoOnce   sync.Once
)

// GetAWSConfig loads the shared AWS config once. Credentials come from the
// default chain.
func GetAWSConfig(cfg *config.Config) aws.Config {
	awsOnce.Do(func() {
		slog.Info("[AWSClient] Initializing AWS Config...",
			slog.String("region", cfg.AWSRegion))

		loaded, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			slog.Error("[AWSClient] Failed to load AWS config")
			panic(err)
		}

		awsCfg = loaded
		slog.Info("[AWSClient] AWS Config Initialized")
	})

	return awsCfg
}

// GetDynamoDBClient returns the process-wide DynamoDB client. AWS_ENDPOINT
// points it at DynamoDB Local; when unset the regional endpoint is used.
func GetDynamoDBClient(cfg *config.Config) *dynamodb.Client {
	dynamoOnce.Do(func() {
		dynamoClient = dynamodb.NewFromConfig(GetAWSConfig(cfg), func(o *dynamodb.Options) {
			if cfg.AWSEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
			}
		})
		slog.Info("[AWSClient] DynamoDB client ready",
			slog.String("table", cfg.DynamoDBTable),
			slog.String("endpoint", cfg.AWSEndpoint))
	})
	return dynamoClient
}
