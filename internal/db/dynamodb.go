package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/racepulse/internal/metrics"
	"github.com/spacesedan/racepulse/internal/models"
)

const (
	SENTIMENT_RESULTS_TABLE_NAME = "SentimentResults"

	maxBatchSize       = 25
	maxUnprocessedTrys = 3
)

// DynamoAPI is the part of the DynamoDB client the store uses.
type DynamoAPI interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type DynamoStore struct {
	client  DynamoAPI
	table   string
	backoff time.Duration
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	if table == "" {
		table = SENTIMENT_RESULTS_TABLE_NAME
	}
	return &DynamoStore{client: client, table: table, backoff: 500 * time.Millisecond}
}

func (s *DynamoStore) SaveResults(ctx context.Context, results []models.EnsembleResult) error {
	for i := 0; i < len(results); i += maxBatchSize {
		select {
		case <-ctx.Done():
			slog.Warn("[DynamoDB] context canceled")
			return ctx.Err()
		default:
		}

		end := i + maxBatchSize
		if end > len(results) {
			end = len(results)
		}

		if err := s.writeChunk(ctx, results[i:end]); err != nil {
			metrics.StoreWrites.WithLabelValues("dynamodb", "error").Add(float64(end - i))
			return err
		}
		metrics.StoreWrites.WithLabelValues("dynamodb", "ok").Add(float64(end - i))
	}

	slog.Info("[DynamoDB] Successfully stored sentiment results",
		slog.Int("count", len(results)))
	return nil
}

func (s *DynamoStore) writeChunk(ctx context.Context, chunk []models.EnsembleResult) error {
	writeRequests := make([]types.WriteRequest, 0, len(chunk))
	for _, result := range chunk {
		item, err := ResultToDynamoDBItem(result)
		if err != nil {
			return err
		}
		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			s.table: writeRequests,
		},
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to batch write sentiment results: %w", err)
	}

	retryCount := 0
	backoff := s.backoff
	for len(out.UnprocessedItems) > 0 && retryCount < maxUnprocessedTrys {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2

		slog.Warn("[DynamoDB] Retrying unprocessed sentiment items...",
			slog.Int("attempt", retryCount+1),
			slog.Int("remaining", len(out.UnprocessedItems[s.table])))

		out, err = s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] Retry error %w", err)
		}
		retryCount++
	}

	if remaining := len(out.UnprocessedItems[s.table]); remaining > 0 {
		slog.Error("[DynamoDB] Some sentiment items failed after retries",
			slog.Int("remaining", remaining))
		return fmt.Errorf("[DynamoDB] %d items left unprocessed after retries", remaining)
	}
	return nil
}

func (s *DynamoStore) ResultsByGroup(ctx context.Context, groupKey string) ([]models.EnsembleResult, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		FilterExpression: aws.String("group_key = :g"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":g": &types.AttributeValueMemberS{Value: groupKey},
		},
	}

	var results []models.EnsembleResult
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] Scan for results failed: %w", err)
		}

		var page []models.EnsembleResult
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			slog.Error("[DynamoDB] Unable to unmarshal result page", slog.String("error", err.Error()))
			return nil, err
		}
		results = append(results, page...)
	}

	sortResults(results)
	slog.Info("[DynamoDB] Successfully retrieved results",
		slog.String("group_key", groupKey),
		slog.Int("count", len(results)))
	return results, nil
}

func (s *DynamoStore) Close() error { return nil }

func ResultToDynamoDBItem(result models.EnsembleResult) (map[string]types.AttributeValue, error) {
	if result.MatchedKeywords == nil {
		result.MatchedKeywords = []string{}
	}
	item, err := attributevalue.MarshalMap(result)
	if err != nil {
		return nil, fmt.Errorf("[DynamoDB] failed to marshal result %s: %w", result.ItemID, err)
	}
	return item, nil
}
