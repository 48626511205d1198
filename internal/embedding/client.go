package embedding

import (
	"context"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/circuitbreaker"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/config"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/utils"
)

// maxInputLen caps embedding input per provider limits.
const maxInputLen = 8000

// Cache stores vectors keyed by input-text hash. Optional; nil disables
// caching.
type Cache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

// Client produces embeddings for account text. It never fails the
// pipeline: provider errors and a missing API key both degrade to a
// fixed placeholder vector.
type Client struct {
	api        *openai.Client
	model      string
	dim        int
	batchSize  int
	batchDelay time.Duration
	timeout    time.Duration
	cache      Cache
	cacheTTL   time.Duration
	cb         *circuitbreaker.Breaker
	log        *zap.Logger
}

func NewClient(cfg config.OpenAIConfig, cache Cache, cacheTTL time.Duration) *Client {
	log := logger.Named("embedding")

	var api *openai.Client
	if cfg.APIKey != "" {
		api = openai.NewClient(cfg.APIKey)
	} else {
		log.Warn("No OpenAI API key configured, serving placeholder embeddings")
	}

	cb := circuitbreaker.New("openai", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
		MaxProbes:        2,
		Logger:           log,
	})

	log.Info("Embedding client initialized",
		zap.String("model", cfg.EmbeddingModel),
		zap.Int("dim", cfg.EmbeddingDim),
		zap.Int("batch_size", cfg.BatchSize),
	)

	return &Client{
		api:        api,
		model:      cfg.EmbeddingModel,
		dim:        cfg.EmbeddingDim,
		batchSize:  cfg.BatchSize,
		batchDelay: time.Duration(cfg.BatchDelayMs) * time.Millisecond,
		timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		cache:      cache,
		cacheTTL:   cacheTTL,
		cb:         cb,
		log:        log,
	}
}

// Embed returns a unit-length vector for text. On provider failure it
// returns the placeholder vector instead of an error.
func (c *Client) Embed(ctx context.Context, text string) []float32 {
	input := normalizeInput(text)

	if vector, ok := c.cachedVector(ctx, input); ok {
		return vector
	}

	vectors, err := c.requestEmbeddings(ctx, []string{input})
	if err != nil || len(vectors) != 1 {
		c.log.Warn("Embedding generation failed, using placeholder vector", zap.Error(err))
		return c.placeholder()
	}

	c.storeVector(ctx, input, vectors[0])
	return vectors[0]
}

// EmbedBatch embeds texts in provider-sized chunks with a small
// inter-batch delay. Output is positionally aligned with the input;
// failed chunks yield placeholder vectors.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	vectors := make([][]float32, len(texts))
	inputs := make([]string, len(texts))

	missed := make([]int, 0, len(texts))
	for i, text := range texts {
		inputs[i] = normalizeInput(text)
		if vector, ok := c.cachedVector(ctx, inputs[i]); ok {
			vectors[i] = vector
			continue
		}
		missed = append(missed, i)
	}

	for start := 0; start < len(missed); start += c.batchSize {
		end := start + c.batchSize
		if end > len(missed) {
			end = len(missed)
		}
		chunk := missed[start:end]

		batch := make([]string, len(chunk))
		for j, idx := range chunk {
			batch[j] = inputs[idx]
		}

		embedded, err := c.requestEmbeddings(ctx, batch)
		if err != nil || len(embedded) != len(chunk) {
			c.log.Warn("Batch embedding failed, using placeholder vectors",
				zap.Error(err),
				zap.Int("batch_size", len(chunk)),
			)
			for _, idx := range chunk {
				vectors[idx] = c.placeholder()
			}
		} else {
			for j, idx := range chunk {
				vectors[idx] = embedded[j]
				c.storeVector(ctx, inputs[idx], embedded[j])
			}
		}

		if end < len(missed) {
			select {
			case <-ctx.Done():
				for _, idx := range missed[end:] {
					vectors[idx] = c.placeholder()
				}
				return vectors
			case <-time.After(c.batchDelay):
			}
		}
	}

	c.log.Debug("Batch embeddings generated",
		zap.Int("count", len(texts)),
		zap.Int("cache_misses", len(missed)),
	)

	return vectors
}

func (c *Client) requestEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if c.api == nil {
		return nil, circuitbreaker.ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var vectors [][]float32

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: inputs,
			Model: openai.EmbeddingModel(c.model),
		})
		if err != nil {
			return err
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vector := make([]float32, len(data.Embedding))
			copy(vector, data.Embedding)
			vectors[i] = normalizeL2(vector)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return vectors, nil
}

func (c *Client) cachedVector(ctx context.Context, input string) ([]float32, bool) {
	if c.cache == nil {
		return nil, false
	}

	vector, ok, err := c.cache.GetEmbedding(ctx, utils.HashString(input))
	if err != nil {
		c.log.Warn("Embedding cache read failed", zap.Error(err))
		return nil, false
	}
	return vector, ok
}

func (c *Client) storeVector(ctx context.Context, input string, vector []float32) {
	if c.cache == nil {
		return
	}

	if err := c.cache.SetEmbedding(ctx, utils.HashString(input), vector, c.cacheTTL); err != nil {
		c.log.Warn("Embedding cache write failed", zap.Error(err))
	}
}

// placeholder is unit length like real vectors so inner-product scores
// stay bounded when the provider is unavailable.
func (c *Client) placeholder() []float32 {
	vector := make([]float32, c.dim)
	for i := range vector {
		vector[i] = 0.1
	}
	return normalizeL2(vector)
}

func normalizeInput(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) > maxInputLen {
		return string(runes[:maxInputLen])
	}
	return text
}

func normalizeL2(vector []float32) []float32 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vector
	}

	norm := float32(math.Sqrt(sum))
	for i := range vector {
		vector[i] /= norm
	}
	return vector
}
