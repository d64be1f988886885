package sentiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var adapterSamples = []string{
	"what a fantastic qualifying",
	"terrible strategy awful race worst weekend ever",
	"the cars went around the track",
	"great great great but also bad",
}

func TestVaderScorer(t *testing.T) {
	v := NewVaderScorer()
	ctx := context.Background()

	empty, err := v.Score(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, v.Neutral(), empty)

	for _, text := range adapterSamples {
		s, err := v.Score(ctx, text)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s.Primary, -1.0, text)
		assert.LessOrEqual(t, s.Primary, 1.0, text)
	}

	pos, _ := v.Score(ctx, "what a fantastic qualifying")
	assert.Greater(t, pos.Primary, 0.0)
	neg, _ := v.Score(ctx, "terrible strategy awful race worst weekend ever")
	assert.Less(t, neg.Primary, 0.0)
}

func TestPolarityScorer(t *testing.T) {
	p := NewPolarityScorer()
	ctx := context.Background()

	empty, err := p.Score(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, p.Neutral(), empty)

	for _, text := range adapterSamples {
		s, err := p.Score(ctx, text)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s.Primary, -1.0, text)
		assert.LessOrEqual(t, s.Primary, 1.0, text)
		assert.GreaterOrEqual(t, s.Secondary["subjectivity"], 0.0, text)
		assert.LessOrEqual(t, s.Secondary["subjectivity"], 1.0, text)
	}
}

func TestLabelFor(t *testing.T) {
	assert.Equal(t, "positive", labelFor(0.2))
	assert.Equal(t, "negative", labelFor(-0.2))
	assert.Equal(t, "neutral", labelFor(0.19))
}
