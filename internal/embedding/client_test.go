package embedding

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/config"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/utils"
)

func testConfig() config.OpenAIConfig {
	return config.OpenAIConfig{
		EmbeddingModel: "text-embedding-ada-002",
		EmbeddingDim:   8,
		BatchSize:      2,
		BatchDelayMs:   1,
		TimeoutSec:     1,
	}
}

type mapCache struct {
	data map[string][]float32
	sets int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]float32)}
}

func (m *mapCache) GetEmbedding(_ context.Context, textHash string) ([]float32, bool, error) {
	v, ok := m.data[textHash]
	return v, ok, nil
}

func (m *mapCache) SetEmbedding(_ context.Context, textHash string, embedding []float32, _ time.Duration) error {
	m.data[textHash] = embedding
	m.sets++
	return nil
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestEmbed_PlaceholderWhenUnconfigured(t *testing.T) {
	cache := newMapCache()
	client := NewClient(testConfig(), cache, time.Minute)

	vector := client.Embed(context.Background(), "quarterly pricing review")

	require.Len(t, vector, 8)
	assert.InDelta(t, 1.0, vectorNorm(vector), 1e-5)
	for _, v := range vector {
		assert.InDelta(t, vector[0], v, 1e-6)
	}

	// Placeholders are not worth caching.
	assert.Zero(t, cache.sets)
}

func TestEmbedBatch_AlignsOutputWithInput(t *testing.T) {
	cache := newMapCache()
	cached := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	cache.data[utils.HashString("cached text")] = cached

	client := NewClient(testConfig(), cache, time.Minute)

	vectors := client.EmbedBatch(context.Background(), []string{
		"first miss",
		"cached text",
		"second miss",
		"third miss",
	})

	require.Len(t, vectors, 4)
	assert.Equal(t, cached, vectors[1])
	for _, i := range []int{0, 2, 3} {
		require.Len(t, vectors[i], 8)
		assert.InDelta(t, 1.0, vectorNorm(vectors[i]), 1e-5)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	client := NewClient(testConfig(), nil, 0)

	vectors := client.EmbedBatch(context.Background(), nil)

	assert.Empty(t, vectors)
}

func TestNormalizeInput(t *testing.T) {
	assert.Equal(t, "a b c", normalizeInput("a\nb\nc"))

	long := strings.Repeat("x", maxInputLen+50)
	assert.Len(t, normalizeInput(long), maxInputLen)
}

func TestNormalizeL2(t *testing.T) {
	v := normalizeL2([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	zero := normalizeL2([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}
