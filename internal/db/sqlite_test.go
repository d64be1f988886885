package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spacesedan/racepulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "racepulse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	later := sampleResult("b", "2025-8-RACE", 30)
	earlier := sampleResult("a", "2025-8-RACE", 10)
	earlier.DegradedModels = []string{"neural"}
	other := sampleResult("c", "2025-8-QUALIFYING", 0)

	require.NoError(t, store.SaveResults(ctx, []models.EnsembleResult{later, earlier, other}))

	got, err := store.ResultsByGroup(ctx, "2025-8-RACE")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "a", got[0].ItemID)
	assert.Equal(t, "b", got[1].ItemID)
	assert.True(t, earlier.CreatedAt.Equal(got[0].CreatedAt))
	assert.Equal(t, []string{"neural"}, got[0].DegradedModels)
	assert.Nil(t, got[1].DegradedModels)
	assert.Equal(t, []string{"podium"}, got[1].MatchedKeywords)
	assert.Equal(t, models.Positive, got[1].SentimentCategory)
	assert.Equal(t, models.PrimaryItem, got[1].Kind)
	assert.InDelta(t, 0.378, got[1].AdjustedScore, 1e-12)
}

func TestSQLiteStore_UpsertReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	r := sampleResult("a", "g", 0)
	require.NoError(t, store.SaveResults(ctx, []models.EnsembleResult{r}))

	r.EnsembleScore = -0.7
	r.SentimentCategory = models.Negative
	require.NoError(t, store.SaveResults(ctx, []models.EnsembleResult{r}))

	got, err := store.ResultsByGroup(ctx, "g")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, -0.7, got[0].EnsembleScore)
	assert.Equal(t, models.Negative, got[0].SentimentCategory)
}

func TestSQLiteStore_EmptyKeywordsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	r := sampleResult("a", "g", 0)
	r.MatchedKeywords = nil
	require.NoError(t, store.SaveResults(ctx, []models.EnsembleResult{r}))

	got, err := store.ResultsByGroup(ctx, "g")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotNil(t, got[0].MatchedKeywords)
	assert.Empty(t, got[0].MatchedKeywords)
}

func TestSQLiteStore_UnknownGroup(t *testing.T) {
	got, err := openTestStore(t).ResultsByGroup(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_Races(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	monaco := models.Race{
		Season: 2025, Round: 8, RaceName: "Monaco Grand Prix",
		Date:        time.Date(2025, 5, 25, 13, 0, 0, 0, time.UTC),
		CircuitName: "Circuit de Monaco", Country: "Monaco",
	}
	imola := models.Race{
		Season: 2025, Round: 7, RaceName: "Emilia Romagna Grand Prix",
		Date: time.Date(2025, 5, 18, 13, 0, 0, 0, time.UTC),
	}

	require.NoError(t, store.SaveRace(ctx, monaco))
	require.NoError(t, store.SaveRace(ctx, imola))
	monaco.RaceName = "Grand Prix de Monaco"
	require.NoError(t, store.SaveRace(ctx, monaco))

	races, err := store.Races(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, races, 2)
	assert.Equal(t, 7, races[0].Round)
	assert.Equal(t, "Grand Prix de Monaco", races[1].RaceName)
	assert.True(t, monaco.Date.Equal(races[1].Date))
}

func TestIsSQLiteBusy(t *testing.T) {
	assert.False(t, isSQLiteBusy(nil))
	assert.False(t, isSQLiteBusy(errors.New("no such table")))
	assert.True(t, isSQLiteBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
}
