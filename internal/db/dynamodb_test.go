package db

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/racepulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items in memory. The first unprocessed calls to
// BatchWriteItem hand back the last request as unprocessed.
type fakeDynamo struct {
	items       []map[string]types.AttributeValue
	batchSizes  []int
	unprocessed int
	writeErr    error
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if f.writeErr != nil {
		return nil, f.writeErr
	}

	out := &dynamodb.BatchWriteItemOutput{}
	for table, reqs := range in.RequestItems {
		f.batchSizes = append(f.batchSizes, len(reqs))
		if f.unprocessed > 0 && len(reqs) > 0 {
			f.unprocessed--
			last := reqs[len(reqs)-1]
			reqs = reqs[:len(reqs)-1]
			out.UnprocessedItems = map[string][]types.WriteRequest{table: {last}}
		}
		for _, r := range reqs {
			f.items = append(f.items, r.PutRequest.Item)
		}
	}
	return out, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	want := in.ExpressionAttributeValues[":g"].(*types.AttributeValueMemberS).Value
	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		if g, ok := item["group_key"].(*types.AttributeValueMemberS); ok && g.Value == want {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func newFakeStore(f *fakeDynamo) *DynamoStore {
	s := NewDynamoStore(f, "")
	s.backoff = 0
	return s
}

func TestDynamoStore_ChunksOf25(t *testing.T) {
	fake := &fakeDynamo{}
	store := newFakeStore(fake)

	results := make([]models.EnsembleResult, 60)
	for i := range results {
		results[i] = sampleResult(string(rune('a'+i%26))+string(rune('a'+i/26)), "g", i%60)
	}

	require.NoError(t, store.SaveResults(context.Background(), results))
	assert.Equal(t, []int{25, 25, 10}, fake.batchSizes)
	assert.Len(t, fake.items, 60)
}

func TestDynamoStore_RetriesUnprocessed(t *testing.T) {
	fake := &fakeDynamo{unprocessed: 2}
	store := newFakeStore(fake)

	require.NoError(t, store.SaveResults(context.Background(), []models.EnsembleResult{
		sampleResult("a", "g", 1),
		sampleResult("b", "g", 2),
	}))
	assert.Equal(t, []int{2, 1, 1}, fake.batchSizes)
	assert.Len(t, fake.items, 2)
}

func TestDynamoStore_GivesUpAfterRetries(t *testing.T) {
	fake := &fakeDynamo{unprocessed: 10}
	store := newFakeStore(fake)

	err := store.SaveResults(context.Background(), []models.EnsembleResult{sampleResult("a", "g", 1)})
	assert.Error(t, err)
}

func TestDynamoStore_WriteError(t *testing.T) {
	boom := errors.New("throttled")
	store := newFakeStore(&fakeDynamo{writeErr: boom})

	err := store.SaveResults(context.Background(), []models.EnsembleResult{sampleResult("a", "g", 1)})
	assert.ErrorIs(t, err, boom)
}

func TestDynamoStore_ResultsByGroup(t *testing.T) {
	fake := &fakeDynamo{}
	store := newFakeStore(fake)
	ctx := context.Background()

	require.NoError(t, store.SaveResults(ctx, []models.EnsembleResult{
		sampleResult("late", "race", 50),
		sampleResult("early", "race", 5),
		sampleResult("quali", "quali", 1),
	}))

	got, err := store.ResultsByGroup(ctx, "race")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].ItemID)
	assert.Equal(t, "late", got[1].ItemID)
	assert.Equal(t, []string{"podium"}, got[0].MatchedKeywords)
	assert.Equal(t, models.Positive, got[0].SentimentCategory)
}

func TestResultToDynamoDBItem_Fields(t *testing.T) {
	r := sampleResult("a", "g", 0)
	r.MatchedKeywords = nil

	item, err := ResultToDynamoDBItem(r)
	require.NoError(t, err)

	for _, key := range []string{"id", "group_key", "vader_score", "textblob_polarity", "textblob_subjectivity", "bert_score", "bert_label", "matched_keywords"} {
		assert.Contains(t, item, key)
	}
	assert.NotContains(t, item, "degraded_models")

	var back models.EnsembleResult
	require.NoError(t, attributevalue.UnmarshalMap(item, &back))
	assert.Equal(t, []string{}, back.MatchedKeywords)
}
