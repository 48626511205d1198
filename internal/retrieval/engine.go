package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/internal/extract"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/kg/neo4j"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/metrics"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/vector/milvus"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/config"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
)

// Embedder turns query text into a search vector. Implementations never
// fail; a degraded embedder returns a placeholder vector.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

type SemanticSearcher interface {
	Search(ctx context.Context, vector []float32, topK int, account string) ([]milvus.SearchResult, error)
}

type GraphContexter interface {
	PathContext(ctx context.Context, account, seedID string, maxHops int) ([]neo4j.ContextEntity, error)
}

type CommunityDetector interface {
	DetectCommunities(ctx context.Context, account string) ([]neo4j.Community, error)
}

// HybridHit is a semantic hit rescored against graph context. When no
// graph context was available, HybridScore equals the semantic score
// and ContextRelevance is zero.
type HybridHit struct {
	milvus.SearchResult
	HybridScore      float64
	ContextRelevance float64
}

// Result bundles everything one retrieval pass produced. It is the sole
// input of the insight synthesizers.
type Result struct {
	Account      string
	Query        string
	Seeds        []string
	SemanticHits []milvus.SearchResult
	HybridHits   []HybridHit
	GraphContext []neo4j.ContextEntity
	Communities  []neo4j.Community
}

type Engine struct {
	embedder    Embedder
	searcher    SemanticSearcher
	graph       GraphContexter
	communities CommunityDetector

	topK           int
	maxHops        int
	semanticWeight float64
	graphWeight    float64

	log *zap.Logger
}

func NewEngine(embedder Embedder, searcher SemanticSearcher, graph GraphContexter, communities CommunityDetector, cfg config.RetrievalConfig) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = 2
	}
	if cfg.SemanticWeight <= 0 {
		cfg.SemanticWeight = 0.7
	}
	if cfg.GraphWeight <= 0 {
		cfg.GraphWeight = 0.3
	}

	return &Engine{
		embedder:       embedder,
		searcher:       searcher,
		graph:          graph,
		communities:    communities,
		topK:           cfg.TopK,
		maxHops:        cfg.MaxHops,
		semanticWeight: cfg.SemanticWeight,
		graphWeight:    cfg.GraphWeight,
		log:            logger.Named("retrieval"),
	}
}

// Retrieve runs the hybrid retrieval pass for one query. It never
// fails: every stage degrades on error (semantic-only results, skipped
// seeds, empty communities) so callers always get a usable Result.
func (e *Engine) Retrieve(ctx context.Context, account, query string, maxHops int, includeGraph bool) *Result {
	if maxHops <= 0 {
		maxHops = e.maxHops
	}

	res := &Result{Account: account, Query: query}

	fetchK := e.topK
	if includeGraph {
		fetchK = 2 * e.topK
	}

	vector := e.embedder.Embed(ctx, query)

	hits, err := e.searcher.Search(ctx, vector, fetchK, account)
	if err != nil {
		e.log.Warn("Semantic search failed, continuing without vector hits",
			zap.String("account", account),
			zap.Error(err),
		)
		metrics.RetrievalDegraded.WithLabelValues("semantic").Inc()
		hits = nil
	}
	res.SemanticHits = hits

	if includeGraph {
		res.Seeds = ExtractSeeds(hits)
		res.GraphContext = e.pathContexts(ctx, account, res.Seeds, maxHops)
	}

	res.HybridHits = e.rescore(hits, res.GraphContext)

	communities, err := e.communities.DetectCommunities(ctx, account)
	if err != nil {
		e.log.Warn("Community detection failed, continuing without communities",
			zap.String("account", account),
			zap.Error(err),
		)
		metrics.RetrievalDegraded.WithLabelValues("communities").Inc()
		communities = nil
	}
	res.Communities = communities

	metrics.SemanticHitsCount.Observe(float64(len(res.SemanticHits)))
	metrics.GraphContextCount.Observe(float64(len(res.GraphContext)))

	e.log.Info("Retrieval completed",
		zap.String("account", account),
		zap.Int("semantic_hits", len(res.SemanticHits)),
		zap.Int("seeds", len(res.Seeds)),
		zap.Int("graph_entities", len(res.GraphContext)),
		zap.Int("communities", len(res.Communities)),
	)

	return res
}

// ExtractSeeds pulls graph seed ids out of semantic hit metadata:
// participant addresses (normalized the way extraction derives person
// ids) and thread/call/document identifiers. Order follows hit order,
// first occurrence wins.
func ExtractSeeds(hits []milvus.SearchResult) []string {
	seen := make(map[string]bool)
	seeds := make([]string, 0)

	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		seeds = append(seeds, id)
	}

	for _, hit := range hits {
		if raw, ok := hit.Metadata["participants"]; ok {
			for _, participant := range stringValues(raw) {
				add(extract.NormalizeEmailID(participant))
			}
		}

		for _, field := range []string{"thread_id", "call_id", "document_id"} {
			if raw, ok := hit.Metadata[field]; ok {
				add(stringValue(raw))
			}
		}
	}

	return seeds
}

// pathContexts gathers graph context across all seeds. Entities reached
// from several seeds are kept once, at their minimum distance.
func (e *Engine) pathContexts(ctx context.Context, account string, seeds []string, maxHops int) []neo4j.ContextEntity {
	seen := make(map[string]int)
	out := make([]neo4j.ContextEntity, 0)

	for _, seed := range seeds {
		entities, err := e.graph.PathContext(ctx, account, seed, maxHops)
		if err != nil {
			e.log.Warn("Path context failed, skipping seed",
				zap.String("seed", seed),
				zap.Error(err),
			)
			metrics.RetrievalDegraded.WithLabelValues("path_context").Inc()
			continue
		}

		for _, entity := range entities {
			if idx, ok := seen[entity.ID]; ok {
				if entity.Distance < out[idx].Distance {
					out[idx].Distance = entity.Distance
				}
				continue
			}
			seen[entity.ID] = len(out)
			out = append(out, entity)
		}
	}

	return out
}

func (e *Engine) rescore(hits []milvus.SearchResult, graphContext []neo4j.ContextEntity) []HybridHit {
	hybrid := make([]HybridHit, 0, len(hits))
	if len(hits) == 0 {
		return hybrid
	}

	if len(graphContext) == 0 {
		limit := e.topK
		if limit > len(hits) {
			limit = len(hits)
		}
		for _, hit := range hits[:limit] {
			hybrid = append(hybrid, HybridHit{SearchResult: hit, HybridScore: hit.Score})
		}
		return hybrid
	}

	ctxWords := extract.Keywords(ContextText(graphContext))

	for _, hit := range hits {
		relevance := contextRelevance(hit.Text, ctxWords)
		hybrid = append(hybrid, HybridHit{
			SearchResult:     hit,
			HybridScore:      e.semanticWeight*hit.Score + e.graphWeight*relevance,
			ContextRelevance: relevance,
		})
	}

	sort.SliceStable(hybrid, func(i, j int) bool {
		return hybrid[i].HybridScore > hybrid[j].HybridScore
	})

	if len(hybrid) > e.topK {
		hybrid = hybrid[:e.topK]
	}
	return hybrid
}

// ContextText renders graph entities as space-joined "name (labels)"
// fragments, the corpus the overlap ratio is computed against.
func ContextText(entities []neo4j.ContextEntity) string {
	parts := make([]string, 0, len(entities))
	for _, entity := range entities {
		parts = append(parts, fmt.Sprintf("%s (%s)", entity.Name, strings.Join(entity.Labels, ", ")))
	}
	return strings.Join(parts, " ")
}

// contextRelevance is the fraction of context words that also occur in
// the hit text, always within [0,1].
func contextRelevance(text string, ctxWords map[string]bool) float64 {
	if len(ctxWords) == 0 {
		return 0
	}

	overlap := 0
	for word := range extract.Keywords(text) {
		if ctxWords[word] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(ctxWords))
}

func stringValues(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := stringValue(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

func stringValue(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
