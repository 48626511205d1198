package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/internal/extract"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/insight"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/kg/neo4j"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/metrics"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/retrieval"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/storage/models"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/vector/milvus"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/config"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/utils"
)

// Envelope truncation limits: a query response carries only the leading
// semantic hits and graph context entries for reference.
const (
	semanticPreviewLimit = 5
	graphPreviewLimit    = 10
)

// analysisMaxHops bounds traversal for the fixed account-analysis probes.
const analysisMaxHops = 2

const defaultMaxInsights = 20

// insightQueries are the fixed probes a full account analysis runs. Weight
// scales the confidence of every insight a probe yields, and the probe name
// becomes the insight category.
var insightQueries = []struct {
	Category string
	Query    string
	Weight   float64
}{
	{"stakeholder_influence", "Who are the key decision makers and what is their influence network?", 0.9},
	{"communication_patterns", "What are the communication patterns and relationship dynamics?", 0.8},
	{"topic_evolution", "How have key topics and concerns evolved over time?", 0.7},
	{"risk_indicators", "What are the potential risk indicators and warning signs?", 0.8},
	{"opportunity_signals", "What opportunities and growth signals can be identified?", 0.9},
}

func analysisCategories() []string {
	categories := make([]string, len(insightQueries))
	for i, iq := range insightQueries {
		categories[i] = iq.Category
	}
	return categories
}

// Retriever runs one hybrid retrieval pass.
type Retriever interface {
	Retrieve(ctx context.Context, account, query string, maxHops int, includeGraph bool) *retrieval.Result
}

// GraphBuilder merges an extracted entity set into the account graph.
type GraphBuilder interface {
	BuildAccountGraph(ctx context.Context, account string, set extract.EntitySet) (*neo4j.GraphStats, error)
}

// DocumentStore persists embedded documents for semantic search.
type DocumentStore interface {
	Upsert(ctx context.Context, docs []milvus.Document) (int, error)
}

// BatchEmbedder embeds texts, output aligned with input.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) [][]float32
}

// QueryCache caches query envelopes per account. A nil cache disables
// caching without changing behavior.
type QueryCache interface {
	GetQuery(ctx context.Context, account, queryHash string, response any) (bool, error)
	SetQuery(ctx context.Context, account, queryHash string, response any, ttl time.Duration) error
	InvalidateAccount(ctx context.Context, account string) error
}

// History persists pipeline runs. A nil history disables persistence.
type History interface {
	InsertExtractionRun(run *models.ExtractionRun) error
	InsertQueryRecord(record *models.QueryRecord) error
	InsertQueryInsight(in *models.QueryInsight) error
	InsertAnalysisRun(run *models.AnalysisRun) error
}

// QueryResult is the envelope one hybrid query returns.
type QueryResult struct {
	Insights          []insight.Insight     `json:"insights"`
	EntityCount       int                   `json:"entityCount"`
	RelationshipCount int                   `json:"relationshipCount"`
	CommunityCount    int                   `json:"communityCount"`
	SemanticResults   []milvus.SearchResult `json:"semanticResults"`
	GraphContext      []neo4j.ContextEntity `json:"graphContext"`
}

// AccountInsights is the envelope of a full account analysis. Insights holds
// the ranked top slice; InsightCategories counts over the complete ranked
// list, so the per-category totals can exceed what Insights shows.
type AccountInsights struct {
	Insights          []insight.Insight `json:"insights"`
	ExecutiveSummary  string            `json:"executiveSummary"`
	InsightCategories map[string]int    `json:"insightCategories"`
}

// AnalysisResult is everything the full pipeline produced for one payload.
type AnalysisResult struct {
	Account         string            `json:"accountName"`
	GraphStats      *neo4j.GraphStats `json:"graphStats"`
	DocumentsStored int               `json:"documentsStored"`
	Insights        *AccountInsights  `json:"insights"`
}

// Engine orchestrates the pipeline: extraction, graph building, embedding
// storage, hybrid queries, and full account analyses. Collaborator failures
// either degrade inside retrieval or surface as wrapped errors from the
// write paths; history and cache failures only ever log.
type Engine struct {
	extractor *extract.Extractor
	retriever Retriever
	graph     GraphBuilder
	vectors   DocumentStore
	embedder  BatchEmbedder
	cache     QueryCache
	history   History

	maxInsights int
	queryTTL    time.Duration
	log         *zap.Logger
}

func NewEngine(
	extractor *extract.Extractor,
	retriever Retriever,
	graph GraphBuilder,
	vectors DocumentStore,
	embedder BatchEmbedder,
	cache QueryCache,
	history History,
	cfg config.RetrievalConfig,
	queryTTL time.Duration,
) *Engine {
	maxInsights := cfg.MaxInsights
	if maxInsights <= 0 {
		maxInsights = defaultMaxInsights
	}

	return &Engine{
		extractor:   extractor,
		retriever:   retriever,
		graph:       graph,
		vectors:     vectors,
		embedder:    embedder,
		cache:       cache,
		history:     history,
		maxInsights: maxInsights,
		queryTTL:    queryTTL,
		log:         logger.Named("analysis"),
	}
}

// ExtractEntities runs extraction alone and records the run.
func (e *Engine) ExtractEntities(data extract.AccountData) extract.EntitySet {
	set := e.extractor.Extract(data)

	metrics.EntitiesExtracted.WithLabelValues("person").Add(float64(len(set.People)))
	metrics.EntitiesExtracted.WithLabelValues("organization").Add(float64(len(set.Organizations)))
	metrics.EntitiesExtracted.WithLabelValues("topic").Add(float64(len(set.Topics)))
	metrics.EntitiesExtracted.WithLabelValues("event").Add(float64(len(set.Events)))
	metrics.RelationshipsInferred.Add(float64(len(set.Relationships)))

	e.recordExtraction(data.AccountName, set)
	return set
}

// BuildGraph extracts entities and merges them into the account graph.
// Cached query responses for the account are dropped afterwards because
// they no longer reflect what traversal would find.
func (e *Engine) BuildGraph(ctx context.Context, data extract.AccountData) (extract.EntitySet, *neo4j.GraphStats, error) {
	set := e.ExtractEntities(data)

	stats, err := e.graph.BuildAccountGraph(ctx, data.AccountName, set)
	if err != nil {
		return set, nil, fmt.Errorf("failed to build account graph: %w", err)
	}

	metrics.GraphNodesTotal.Set(float64(stats.TotalNodes))
	metrics.GraphRelationshipsTotal.Set(float64(stats.TotalRelationships))

	e.invalidateCache(ctx, data.AccountName)
	return set, stats, nil
}

// StoreEmbeddings embeds every text-bearing source of the payload and
// upserts the documents into the vector store. Returns how many documents
// were stored.
func (e *Engine) StoreEmbeddings(ctx context.Context, data extract.AccountData) (int, error) {
	docs := accountDocuments(data)
	if len(docs) == 0 {
		e.log.Info("No documents to embed", zap.String("account", data.AccountName))
		return 0, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}

	vectors := e.embedder.EmbedBatch(ctx, texts)
	for i := range docs {
		docs[i].Vector = vectors[i]
	}

	stored, err := e.vectors.Upsert(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to store embeddings: %w", err)
	}

	metrics.DocumentsEmbedded.Add(float64(stored))
	e.invalidateCache(ctx, data.AccountName)

	e.log.Info("Embeddings stored",
		zap.String("account", data.AccountName),
		zap.Int("documents", stored),
	)
	return stored, nil
}

// Query runs one hybrid retrieval and synthesis pass and assembles the
// response envelope. Degraded retrieval stages surface as smaller envelopes,
// never as errors.
func (e *Engine) Query(ctx context.Context, account, query string, maxHops int, includeGraph bool) *QueryResult {
	start := time.Now()
	queryHash := utils.HashString(query)

	if cached, ok := e.cachedResult(ctx, account, queryHash); ok {
		metrics.CacheHits.WithLabelValues("query").Inc()
		metrics.QueryTotal.WithLabelValues("cached").Inc()
		e.recordQuery(account, query, cached, true, time.Since(start))
		return cached
	}
	metrics.CacheMisses.WithLabelValues("query").Inc()

	res := e.retriever.Retrieve(ctx, account, query, maxHops, includeGraph)
	insights := insight.Synthesize(res)

	for _, in := range insights {
		metrics.InsightsGenerated.WithLabelValues(in.Type).Inc()
		metrics.InsightConfidence.Observe(in.Confidence)
	}

	result := &QueryResult{
		Insights:          nonNil(insights),
		EntityCount:       len(res.Seeds),
		RelationshipCount: len(res.GraphContext),
		CommunityCount:    len(res.Communities),
		SemanticResults:   nonNil(head(res.SemanticHits, semanticPreviewLimit)),
		GraphContext:      nonNil(head(res.GraphContext, graphPreviewLimit)),
	}

	metrics.QueryTotal.WithLabelValues("success").Inc()
	metrics.QueryDuration.WithLabelValues("query").Observe(time.Since(start).Seconds())

	e.storeCache(ctx, account, queryHash, result)
	e.recordQuery(account, query, result, false, time.Since(start))

	e.log.Info("Query processed",
		zap.String("account", account),
		zap.String("query", query),
		zap.Int("insights", len(result.Insights)),
		zap.Int("entities", result.EntityCount),
	)
	return result
}

// AnalyzeAccount runs the fixed insight probes against an already built
// account graph and aggregates their insights through the ranker.
func (e *Engine) AnalyzeAccount(ctx context.Context, account string) *AccountInsights {
	start := time.Now()

	var candidates []insight.Insight
	for _, iq := range insightQueries {
		res := e.Query(ctx, account, iq.Query, analysisMaxHops, true)
		for _, in := range res.Insights {
			candidates = append(candidates, in.ApplyWeight(iq.Weight, iq.Category))
		}
	}

	ranked := insight.Rank(candidates)

	result := &AccountInsights{
		Insights:          nonNil(head(ranked, e.maxInsights)),
		ExecutiveSummary:  insight.ExecutiveSummary(ranked),
		InsightCategories: insight.CountByCategory(ranked, analysisCategories()),
	}

	metrics.AnalysisTotal.WithLabelValues("success").Inc()
	metrics.QueryDuration.WithLabelValues("analysis").Observe(time.Since(start).Seconds())

	e.recordAnalysis(account, result, time.Since(start))

	e.log.Info("Account analysis completed",
		zap.String("account", account),
		zap.Int("insights", len(result.Insights)),
		zap.String("summary", result.ExecutiveSummary),
	)
	return result
}

// Analyze runs the full pipeline for one payload: extraction, graph build,
// embedding storage, then the account analysis probes.
func (e *Engine) Analyze(ctx context.Context, data extract.AccountData) (*AnalysisResult, error) {
	_, stats, err := e.BuildGraph(ctx, data)
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	stored, err := e.StoreEmbeddings(ctx, data)
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	insights := e.AnalyzeAccount(ctx, data.AccountName)

	return &AnalysisResult{
		Account:         data.AccountName,
		GraphStats:      stats,
		DocumentsStored: stored,
		Insights:        insights,
	}, nil
}

func (e *Engine) cachedResult(ctx context.Context, account, queryHash string) (*QueryResult, bool) {
	if e.cache == nil {
		return nil, false
	}

	var cached QueryResult
	ok, err := e.cache.GetQuery(ctx, account, queryHash, &cached)
	if err != nil {
		e.log.Warn("Query cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return &cached, true
}

func (e *Engine) storeCache(ctx context.Context, account, queryHash string, result *QueryResult) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetQuery(ctx, account, queryHash, result, e.queryTTL); err != nil {
		e.log.Warn("Query cache write failed", zap.Error(err))
	}
}

func (e *Engine) invalidateCache(ctx context.Context, account string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateAccount(ctx, account); err != nil {
		e.log.Warn("Failed to invalidate query cache",
			zap.String("account", account),
			zap.Error(err),
		)
	}
}

func (e *Engine) recordExtraction(account string, set extract.EntitySet) {
	if e.history == nil {
		return
	}

	run := &models.ExtractionRun{
		ID:            uuid.New().String(),
		Account:       account,
		People:        len(set.People),
		Organizations: len(set.Organizations),
		Topics:        len(set.Topics),
		Events:        len(set.Events),
		Relationships: len(set.Relationships),
		CreatedAt:     time.Now(),
	}
	if err := e.history.InsertExtractionRun(run); err != nil {
		e.log.Warn("Failed to record extraction run", zap.Error(err))
	}
}

func (e *Engine) recordQuery(account, query string, result *QueryResult, cached bool, elapsed time.Duration) {
	if e.history == nil {
		return
	}

	record := &models.QueryRecord{
		ID:                uuid.New().String(),
		Account:           account,
		QueryText:         query,
		InsightCount:      len(result.Insights),
		EntityCount:       result.EntityCount,
		RelationshipCount: result.RelationshipCount,
		CommunityCount:    result.CommunityCount,
		Cached:            cached,
		LatencyMS:         int(elapsed.Milliseconds()),
		CreatedAt:         time.Now(),
	}
	if err := e.history.InsertQueryRecord(record); err != nil {
		e.log.Warn("Failed to record query", zap.Error(err))
		return
	}

	// Cached responses already have their insights on file under the
	// original query record.
	if cached {
		return
	}
	for _, in := range result.Insights {
		err := e.history.InsertQueryInsight(&models.QueryInsight{
			QueryID:    record.ID,
			Type:       in.Type,
			Category:   in.Category,
			Confidence: in.Confidence,
			Summary:    in.Summary,
			CreatedAt:  record.CreatedAt,
		})
		if err != nil {
			e.log.Warn("Failed to record insight", zap.Error(err))
			break
		}
	}
}

func (e *Engine) recordAnalysis(account string, result *AccountInsights, elapsed time.Duration) {
	if e.history == nil {
		return
	}

	run := &models.AnalysisRun{
		ID:               uuid.New().String(),
		Account:          account,
		QueriesRun:       len(insightQueries),
		InsightCount:     len(result.Insights),
		ExecutiveSummary: result.ExecutiveSummary,
		Categories:       result.InsightCategories,
		LatencyMS:        int(elapsed.Milliseconds()),
		CreatedAt:        time.Now(),
	}
	if err := e.history.InsertAnalysisRun(run); err != nil {
		e.log.Warn("Failed to record analysis run", zap.Error(err))
	}
}

// accountDocuments flattens the text-bearing sources of one payload into
// vector-store documents. Metadata carries the identifiers seed extraction
// reads (participants, thread_id, call_id, document_id), and those ids line
// up with the event ids the extractor writes so traversal seeds resolve to
// graph nodes. Sources with no usable text are skipped.
func accountDocuments(data extract.AccountData) []milvus.Document {
	var docs []milvus.Document

	for _, thread := range data.Emails {
		for _, msg := range thread.Messages {
			if strings.TrimSpace(msg.Body) == "" {
				continue
			}

			participants := make([]string, 0, len(msg.To)+1)
			if msg.From != "" {
				participants = append(participants, msg.From)
			}
			for _, addr := range msg.To {
				if addr != "" {
					participants = append(participants, addr)
				}
			}

			docs = append(docs, milvus.Document{
				ID:         fmt.Sprintf("email_%s_%s", thread.ThreadID, msg.Timestamp),
				Account:    data.AccountName,
				SourceType: "email",
				Text:       msg.Body,
				Metadata: map[string]any{
					"thread_id":    thread.ThreadID,
					"subject":      msg.Subject,
					"timestamp":    msg.Timestamp,
					"participants": participants,
				},
			})
		}
	}

	for _, call := range data.Calls {
		turns := make([]string, 0, len(call.Transcript))
		for _, turn := range call.Transcript {
			turns = append(turns, turn.Text)
		}
		transcript := strings.TrimSpace(strings.Join(turns, " "))
		if transcript == "" {
			continue
		}

		eventID := call.CallID
		if eventID == "" {
			eventID = "call_" + call.Date
		}

		docs = append(docs, milvus.Document{
			ID:         "call_" + eventID,
			Account:    data.AccountName,
			SourceType: "call",
			Text:       transcript,
			Metadata: map[string]any{
				"call_id":      eventID,
				"date":         call.Date,
				"participants": []string(call.Participants),
			},
		})
	}

	for i, interaction := range data.Interactions {
		if strings.TrimSpace(interaction.Summary) == "" {
			continue
		}

		docs = append(docs, milvus.Document{
			ID:         fmt.Sprintf("interaction_%s_%d", interaction.Date, i),
			Account:    data.AccountName,
			SourceType: "interaction",
			Text:       interaction.Summary,
			Metadata: map[string]any{
				"date":         interaction.Date,
				"participants": []string(interaction.Participants),
			},
		})
	}

	for _, doc := range data.Documents {
		text := strings.TrimSpace(strings.TrimSpace(doc.Title) + " " + extract.StripHTML(doc.Content))
		if text == "" {
			continue
		}

		docs = append(docs, milvus.Document{
			ID:         "document_" + doc.ID,
			Account:    data.AccountName,
			SourceType: "document",
			Text:       text,
			Metadata: map[string]any{
				"document_id":  "document_" + doc.ID,
				"title":        doc.Title,
				"created_date": doc.CreatedDate,
			},
		})
	}

	return docs
}

func head[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
