package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamesMcDaniel04/People.AI-Demo/internal/extract"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/insight"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/kg/neo4j"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/retrieval"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/storage/models"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/vector/milvus"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/config"
)

type fakeRetriever struct {
	results      map[string]*retrieval.Result
	fallback     *retrieval.Result
	queries      []string
	maxHops      []int
	includeGraph []bool
}

func (f *fakeRetriever) Retrieve(_ context.Context, account, query string, maxHops int, includeGraph bool) *retrieval.Result {
	f.queries = append(f.queries, query)
	f.maxHops = append(f.maxHops, maxHops)
	f.includeGraph = append(f.includeGraph, includeGraph)

	if res, ok := f.results[query]; ok {
		return res
	}
	if f.fallback != nil {
		return f.fallback
	}
	return &retrieval.Result{Account: account, Query: query}
}

type fakeGraph struct {
	stats   *neo4j.GraphStats
	err     error
	account string
	set     extract.EntitySet
	calls   int
}

func (f *fakeGraph) BuildAccountGraph(_ context.Context, account string, set extract.EntitySet) (*neo4j.GraphStats, error) {
	f.calls++
	f.account = account
	f.set = set
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

type fakeVectors struct {
	docs  []milvus.Document
	err   error
	calls int
}

func (f *fakeVectors) Upsert(_ context.Context, docs []milvus.Document) (int, error) {
	f.calls++
	f.docs = docs
	if f.err != nil {
		return 0, f.err
	}
	return len(docs), nil
}

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out
}

type fakeCache struct {
	data        map[string][]byte
	sets        int
	ttl         time.Duration
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) GetQuery(_ context.Context, account, queryHash string, response any) (bool, error) {
	data, ok := f.data[account+"|"+queryHash]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, response)
}

func (f *fakeCache) SetQuery(_ context.Context, account, queryHash string, response any, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	f.data[account+"|"+queryHash] = data
	f.sets++
	f.ttl = ttl
	return nil
}

func (f *fakeCache) InvalidateAccount(_ context.Context, account string) error {
	f.invalidated = append(f.invalidated, account)
	for key := range f.data {
		delete(f.data, key)
	}
	return nil
}

type fakeHistory struct {
	extractions []models.ExtractionRun
	queries     []models.QueryRecord
	insights    []models.QueryInsight
	analyses    []models.AnalysisRun
}

func (f *fakeHistory) InsertExtractionRun(run *models.ExtractionRun) error {
	f.extractions = append(f.extractions, *run)
	return nil
}

func (f *fakeHistory) InsertQueryRecord(record *models.QueryRecord) error {
	f.queries = append(f.queries, *record)
	return nil
}

func (f *fakeHistory) InsertQueryInsight(in *models.QueryInsight) error {
	f.insights = append(f.insights, *in)
	return nil
}

func (f *fakeHistory) InsertAnalysisRun(run *models.AnalysisRun) error {
	f.analyses = append(f.analyses, *run)
	return nil
}

func newTestEngine(retriever Retriever, graph GraphBuilder, vectors DocumentStore, cache QueryCache, history History) *Engine {
	return NewEngine(
		extract.NewExtractor(),
		retriever,
		graph,
		vectors,
		&fakeEmbedder{dim: 4},
		cache,
		history,
		config.RetrievalConfig{TopK: 10, MaxHops: 2, SemanticWeight: 0.7, GraphWeight: 0.3, MaxInsights: 20},
		time.Minute,
	)
}

// hopContext fabricates n traversed entities spanning hop distances 1 and 2,
// enough to trigger the multi-hop analyzer and nothing else.
func hopContext(n int) []neo4j.ContextEntity {
	entities := make([]neo4j.ContextEntity, n)
	for i := range entities {
		distance := 2
		if i == 0 {
			distance = 1
		}
		entities[i] = neo4j.ContextEntity{
			ID:       fmt.Sprintf("node_%d", i),
			Name:     fmt.Sprintf("Node %d", i),
			Labels:   []string{"Person"},
			Distance: distance,
		}
	}
	return entities
}

func TestQuery_EnvelopeCounts(t *testing.T) {
	hits := make([]milvus.SearchResult, 8)
	for i := range hits {
		hits[i] = milvus.SearchResult{ID: fmt.Sprintf("doc_%d", i), Score: 0.5, Text: "alpha beta"}
	}
	graphCtx := make([]neo4j.ContextEntity, 12)
	for i := range graphCtx {
		graphCtx[i] = neo4j.ContextEntity{ID: fmt.Sprintf("g_%d", i), Name: "Unseen", Distance: 1}
	}

	retriever := &fakeRetriever{fallback: &retrieval.Result{
		Seeds:        []string{"s1", "s2", "s3"},
		SemanticHits: hits,
		GraphContext: graphCtx,
		Communities:  []neo4j.Community{{ID: 0, Members: []neo4j.CommunityMember{{ID: "a"}, {ID: "b"}}}},
	}}
	history := &fakeHistory{}
	engine := newTestEngine(retriever, &fakeGraph{}, &fakeVectors{}, nil, history)

	res := engine.Query(context.Background(), "Acme Corp", "pricing concerns", 2, true)

	assert.Equal(t, 3, res.EntityCount)
	assert.Equal(t, 12, res.RelationshipCount)
	assert.Equal(t, 1, res.CommunityCount)
	assert.Len(t, res.SemanticResults, 5)
	assert.Len(t, res.GraphContext, 10)
	require.NotNil(t, res.Insights)
	assert.Empty(t, res.Insights)

	require.Len(t, history.queries, 1)
	record := history.queries[0]
	assert.Equal(t, "Acme Corp", record.Account)
	assert.Equal(t, "pricing concerns", record.QueryText)
	assert.Equal(t, 3, record.EntityCount)
	assert.Equal(t, 12, record.RelationshipCount)
	assert.False(t, record.Cached)
	assert.Empty(t, history.insights)
}

func TestQuery_CacheHitSkipsRetrieval(t *testing.T) {
	retriever := &fakeRetriever{fallback: &retrieval.Result{
		Seeds:        []string{"s1"},
		GraphContext: hopContext(3),
	}}
	cache := newFakeCache()
	history := &fakeHistory{}
	engine := newTestEngine(retriever, &fakeGraph{}, &fakeVectors{}, cache, history)

	first := engine.Query(context.Background(), "Acme Corp", "risk signals", 2, true)
	require.Len(t, retriever.queries, 1)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, time.Minute, cache.ttl)

	second := engine.Query(context.Background(), "Acme Corp", "risk signals", 2, true)
	assert.Len(t, retriever.queries, 1, "cache hit must not re-run retrieval")
	assert.Equal(t, first.EntityCount, second.EntityCount)
	assert.Equal(t, first.RelationshipCount, second.RelationshipCount)
	assert.Equal(t, len(first.Insights), len(second.Insights))

	require.Len(t, history.queries, 2)
	assert.False(t, history.queries[0].Cached)
	assert.True(t, history.queries[1].Cached)

	// Insight rows are written once, under the original query.
	assert.Len(t, history.insights, len(first.Insights))
}

func TestQuery_DifferentAccountsDoNotShareCache(t *testing.T) {
	retriever := &fakeRetriever{}
	cache := newFakeCache()
	engine := newTestEngine(retriever, &fakeGraph{}, &fakeVectors{}, cache, &fakeHistory{})

	engine.Query(context.Background(), "Acme Corp", "pricing", 2, true)
	engine.Query(context.Background(), "Globex", "pricing", 2, true)

	assert.Len(t, retriever.queries, 2)
}

func TestQuery_PersistsInsights(t *testing.T) {
	retriever := &fakeRetriever{fallback: &retrieval.Result{
		GraphContext: hopContext(4),
	}}
	history := &fakeHistory{}
	engine := newTestEngine(retriever, &fakeGraph{}, &fakeVectors{}, nil, history)

	res := engine.Query(context.Background(), "Acme Corp", "influence network", 2, true)

	require.Len(t, res.Insights, 1)
	assert.Equal(t, insight.TypeMultiHopReasoning, res.Insights[0].Type)

	require.Len(t, history.insights, 1)
	assert.Equal(t, history.queries[0].ID, history.insights[0].QueryID)
	assert.Equal(t, insight.TypeMultiHopReasoning, history.insights[0].Type)
	assert.InDelta(t, 0.6, history.insights[0].Confidence, 1e-9)
}

func TestAnalyzeAccount_WeightsAndCategories(t *testing.T) {
	// One multi-hop insight per probe, with distinct entity counts so the
	// ranker's (type, summary prefix) dedupe keeps all five.
	results := make(map[string]*retrieval.Result, len(insightQueries))
	for i, iq := range insightQueries {
		results[iq.Query] = &retrieval.Result{GraphContext: hopContext(i + 2)}
	}

	retriever := &fakeRetriever{results: results}
	history := &fakeHistory{}
	engine := newTestEngine(retriever, &fakeGraph{}, &fakeVectors{}, nil, history)

	res := engine.AnalyzeAccount(context.Background(), "Acme Corp")

	require.Len(t, retriever.queries, 5)
	for i, iq := range insightQueries {
		assert.Equal(t, iq.Query, retriever.queries[i])
		assert.Equal(t, 2, retriever.maxHops[i])
		assert.True(t, retriever.includeGraph[i])
	}

	require.Len(t, res.Insights, 5)

	wantOrder := []struct {
		category   string
		confidence float64
	}{
		{"stakeholder_influence", 0.54},
		{"opportunity_signals", 0.54},
		{"communication_patterns", 0.48},
		{"risk_indicators", 0.48},
		{"topic_evolution", 0.42},
	}
	for i, want := range wantOrder {
		assert.Equal(t, want.category, res.Insights[i].Category, "position %d", i)
		assert.InDelta(t, want.confidence, res.Insights[i].Confidence, 1e-9, "position %d", i)
		assert.Equal(t, insight.TypeMultiHopReasoning, res.Insights[i].Type)
	}

	assert.Equal(t, map[string]int{
		"stakeholder_influence":  1,
		"communication_patterns": 1,
		"topic_evolution":        1,
		"risk_indicators":        1,
		"opportunity_signals":    1,
	}, res.InsightCategories)

	assert.Contains(t, res.ExecutiveSummary, "identified 5 insights")

	require.Len(t, history.queries, 5)
	require.Len(t, history.analyses, 1)
	run := history.analyses[0]
	assert.Equal(t, "Acme Corp", run.Account)
	assert.Equal(t, 5, run.QueriesRun)
	assert.Equal(t, 5, run.InsightCount)
	assert.Equal(t, res.InsightCategories, run.Categories)
}

func TestAnalyzeAccount_CapsInsightsButCountsFullList(t *testing.T) {
	results := make(map[string]*retrieval.Result, len(insightQueries))
	for i, iq := range insightQueries {
		results[iq.Query] = &retrieval.Result{GraphContext: hopContext(i + 2)}
	}

	engine := NewEngine(
		extract.NewExtractor(),
		&fakeRetriever{results: results},
		&fakeGraph{},
		&fakeVectors{},
		&fakeEmbedder{dim: 4},
		nil,
		nil,
		config.RetrievalConfig{MaxInsights: 3},
		0,
	)

	res := engine.AnalyzeAccount(context.Background(), "Acme Corp")

	assert.Len(t, res.Insights, 3)
	total := 0
	for _, n := range res.InsightCategories {
		total += n
	}
	assert.Equal(t, 5, total, "category counts cover the full ranked list")
}

func TestAnalyzeAccount_IdenticalInsightsCollapse(t *testing.T) {
	// Every probe returns the same context, so the same summary: the ranker
	// keeps only the first weighted copy.
	retriever := &fakeRetriever{fallback: &retrieval.Result{GraphContext: hopContext(3)}}
	engine := newTestEngine(retriever, &fakeGraph{}, &fakeVectors{}, nil, nil)

	res := engine.AnalyzeAccount(context.Background(), "Acme Corp")

	require.Len(t, res.Insights, 1)
	assert.Equal(t, "stakeholder_influence", res.Insights[0].Category)
	assert.InDelta(t, 0.54, res.Insights[0].Confidence, 1e-9)
	assert.Contains(t, res.ExecutiveSummary, "identified 1 insights")
}

func TestAnalyzeAccount_EmptyResults(t *testing.T) {
	engine := newTestEngine(&fakeRetriever{}, &fakeGraph{}, &fakeVectors{}, nil, nil)

	res := engine.AnalyzeAccount(context.Background(), "Acme Corp")

	require.NotNil(t, res.Insights)
	assert.Empty(t, res.Insights)
	assert.Equal(t, "No significant insights generated from GraphRAG analysis.", res.ExecutiveSummary)
	assert.Equal(t, 0, res.InsightCategories["stakeholder_influence"])
}

func TestBuildGraph_RecordsRunAndInvalidatesCache(t *testing.T) {
	data := extract.AccountData{
		AccountName: "Acme Corp",
		Stakeholders: extract.StakeholderList{
			{Name: "Jane Smith", Email: "jane@acme.com", Organization: "Acme Corp"},
		},
	}

	graph := &fakeGraph{stats: &neo4j.GraphStats{Account: "Acme Corp", TotalNodes: 10, TotalRelationships: 4}}
	cache := newFakeCache()
	history := &fakeHistory{}
	engine := newTestEngine(&fakeRetriever{}, graph, &fakeVectors{}, cache, history)

	set, stats, err := engine.BuildGraph(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, 1, graph.calls)
	assert.Equal(t, "Acme Corp", graph.account)
	assert.Same(t, graph.stats, stats)
	assert.Len(t, set.People, 1)
	assert.Len(t, set.Organizations, 1)

	require.Len(t, history.extractions, 1)
	assert.Equal(t, 1, history.extractions[0].People)
	assert.Equal(t, "Acme Corp", history.extractions[0].Account)

	assert.Equal(t, []string{"Acme Corp"}, cache.invalidated)
}

func TestBuildGraph_PropagatesStoreError(t *testing.T) {
	graph := &fakeGraph{err: errors.New("connection refused")}
	cache := newFakeCache()
	engine := newTestEngine(&fakeRetriever{}, graph, &fakeVectors{}, cache, nil)

	_, _, err := engine.BuildGraph(context.Background(), extract.AccountData{AccountName: "Acme Corp"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build account graph")
	assert.Empty(t, cache.invalidated, "stale cache survives only until a successful write")
}

func TestStoreEmbeddings_BuildsAllSourceDocuments(t *testing.T) {
	data := extract.AccountData{
		AccountName: "Acme Corp",
		Emails: extract.ThreadList{{
			ThreadID: "t1",
			Messages: extract.MessageList{
				{
					From:      "jane@acme.com",
					To:        extract.StringList{"bob@corp.io"},
					Subject:   "Pricing",
					Body:      "Let's discuss pricing.",
					Timestamp: "2024-01-15T10:00:00Z",
				},
				{From: "bob@corp.io", Body: "   "},
			},
		}},
		Calls: extract.CallList{{
			CallID:       "call_001",
			Date:         "2024-01-16",
			Participants: extract.StringList{"Jane Smith"},
			Transcript:   extract.TurnList{{Speaker: "Jane", Text: "Budget approved."}},
		}},
		Interactions: extract.InteractionList{{
			Type:         "meeting",
			Date:         "2024-01-17",
			Summary:      "Quarterly review meeting",
			Participants: extract.StringList{"jane@acme.com"},
		}},
		Documents: extract.DocumentList{{
			ID:          "d1",
			Title:       "Proposal",
			Content:     "<p>Renewal proposal</p>",
			CreatedDate: "2024-01-18",
		}},
	}

	vectors := &fakeVectors{}
	cache := newFakeCache()
	engine := newTestEngine(&fakeRetriever{}, &fakeGraph{}, vectors, cache, nil)

	stored, err := engine.StoreEmbeddings(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 4, stored)

	require.Len(t, vectors.docs, 4)
	byID := make(map[string]milvus.Document, len(vectors.docs))
	for _, doc := range vectors.docs {
		byID[doc.ID] = doc
		assert.Len(t, doc.Vector, 4)
		assert.Equal(t, "Acme Corp", doc.Account)
	}

	email := byID["email_t1_2024-01-15T10:00:00Z"]
	assert.Equal(t, "email", email.SourceType)
	assert.Equal(t, "Let's discuss pricing.", email.Text)
	assert.Equal(t, []string{"jane@acme.com", "bob@corp.io"}, email.Metadata["participants"])
	assert.Equal(t, "t1", email.Metadata["thread_id"])

	call := byID["call_call_001"]
	assert.Equal(t, "call", call.SourceType)
	assert.Equal(t, "Budget approved.", call.Text)
	assert.Equal(t, "call_001", call.Metadata["call_id"])

	interaction := byID["interaction_2024-01-17_0"]
	assert.Equal(t, "Quarterly review meeting", interaction.Text)

	document := byID["document_d1"]
	assert.Equal(t, "Proposal Renewal proposal", document.Text)
	assert.Equal(t, "document_d1", document.Metadata["document_id"])

	assert.Equal(t, []string{"Acme Corp"}, cache.invalidated)
}

func TestStoreEmbeddings_EmptyPayload(t *testing.T) {
	vectors := &fakeVectors{}
	cache := newFakeCache()
	engine := newTestEngine(&fakeRetriever{}, &fakeGraph{}, vectors, cache, nil)

	stored, err := engine.StoreEmbeddings(context.Background(), extract.AccountData{AccountName: "Acme Corp"})
	require.NoError(t, err)
	assert.Zero(t, stored)
	assert.Zero(t, vectors.calls)
	assert.Empty(t, cache.invalidated)
}

func TestAccountDocuments_MetadataFeedsSeedExtraction(t *testing.T) {
	data := extract.AccountData{
		AccountName: "Acme Corp",
		Emails: extract.ThreadList{{
			ThreadID: "t1",
			Messages: extract.MessageList{{
				From:      "jane@acme.com",
				To:        extract.StringList{"bob@corp.io"},
				Body:      "pricing discussion",
				Timestamp: "2024-01-15",
			}},
		}},
		Calls: extract.CallList{{
			CallID:       "call_001",
			Date:         "2024-01-16",
			Participants: extract.StringList{"Jane Smith"},
			Transcript:   extract.TurnList{{Text: "Budget approved."}},
		}},
		Interactions: extract.InteractionList{{
			Date:         "2024-01-17",
			Summary:      "review",
			Participants: extract.StringList{"jane@acme.com"},
		}},
		Documents: extract.DocumentList{{ID: "d1", Title: "Proposal", Content: "Renewal terms"}},
	}

	docs := accountDocuments(data)
	hits := make([]milvus.SearchResult, len(docs))
	for i, doc := range docs {
		hits[i] = milvus.SearchResult{ID: doc.ID, Metadata: doc.Metadata}
	}

	seeds := retrieval.ExtractSeeds(hits)
	assert.Equal(t, []string{
		"jane_at_acme_com",
		"bob_at_corp_io",
		"t1",
		"Jane Smith",
		"call_001",
		"document_d1",
	}, seeds)
}

func TestAnalyze_FullPipeline(t *testing.T) {
	data := extract.AccountData{
		AccountName: "Acme Corp",
		Emails: extract.ThreadList{{
			ThreadID: "t1",
			Messages: extract.MessageList{{
				From: "jane@acme.com", Body: "pricing discussion", Timestamp: "2024-01-15",
			}},
		}},
	}

	graph := &fakeGraph{stats: &neo4j.GraphStats{TotalNodes: 12, TotalRelationships: 6}}
	vectors := &fakeVectors{}
	retriever := &fakeRetriever{fallback: &retrieval.Result{GraphContext: hopContext(3)}}
	history := &fakeHistory{}
	engine := newTestEngine(retriever, graph, vectors, nil, history)

	res, err := engine.Analyze(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", res.Account)
	assert.Same(t, graph.stats, res.GraphStats)
	assert.Equal(t, 1, res.DocumentsStored)
	require.NotNil(t, res.Insights)
	require.Len(t, res.Insights.Insights, 1)

	assert.Len(t, history.extractions, 1)
	assert.Len(t, history.queries, 5)
	assert.Len(t, history.analyses, 1)
}

func TestAnalyze_GraphFailureAborts(t *testing.T) {
	graph := &fakeGraph{err: errors.New("neo4j down")}
	vectors := &fakeVectors{}
	engine := newTestEngine(&fakeRetriever{}, graph, vectors, nil, nil)

	_, err := engine.Analyze(context.Background(), extract.AccountData{AccountName: "Acme Corp"})

	require.Error(t, err)
	assert.Zero(t, vectors.calls, "embedding storage must not run after a failed graph build")
}

func TestAnalyze_UpsertFailureAborts(t *testing.T) {
	data := extract.AccountData{
		AccountName: "Acme Corp",
		Emails: extract.ThreadList{{
			ThreadID: "t1",
			Messages: extract.MessageList{{From: "jane@acme.com", Body: "hello", Timestamp: "2024-01-15"}},
		}},
	}

	graph := &fakeGraph{stats: &neo4j.GraphStats{}}
	vectors := &fakeVectors{err: errors.New("milvus unavailable")}
	retriever := &fakeRetriever{}
	engine := newTestEngine(retriever, graph, vectors, nil, nil)

	_, err := engine.Analyze(context.Background(), data)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store embeddings")
	assert.Empty(t, retriever.queries, "analysis probes must not run after a failed upsert")
}
