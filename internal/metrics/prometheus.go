package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphrag_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_query_total",
			Help: "Total number of hybrid queries processed",
		},
		[]string{"status"},
	)

	AnalysisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_analysis_total",
			Help: "Total number of full account analyses",
		},
		[]string{"status"},
	)

	RetrievalDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_retrieval_degraded_total",
			Help: "Retrieval stages that degraded instead of failing",
		},
		[]string{"stage"},
	)

	SemanticHitsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphrag_semantic_hits_count",
			Help:    "Number of semantic hits per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	GraphContextCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphrag_graph_context_count",
			Help:    "Number of graph context entities per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	EntitiesExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_entities_extracted_total",
			Help: "Total entities extracted by variant",
		},
		[]string{"variant"},
	)

	RelationshipsInferred = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graphrag_relationships_inferred_total",
			Help: "Total relationships inferred between entities",
		},
	)

	GraphNodesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphrag_graph_nodes_total",
			Help: "Nodes in the account graph after the last build",
		},
	)

	GraphRelationshipsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphrag_graph_relationships_total",
			Help: "Relationships in the account graph after the last build",
		},
	)

	InsightsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_insights_generated_total",
			Help: "Total insights generated by type",
		},
		[]string{"type"},
	)

	InsightConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "graphrag_insight_confidence",
			Help:    "Confidence of ranked insights",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphrag_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsEmbedded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graphrag_documents_embedded_total",
			Help: "Total documents embedded and stored",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(AnalysisTotal)
	prometheus.MustRegister(RetrievalDegraded)
	prometheus.MustRegister(SemanticHitsCount)
	prometheus.MustRegister(GraphContextCount)
	prometheus.MustRegister(EntitiesExtracted)
	prometheus.MustRegister(RelationshipsInferred)
	prometheus.MustRegister(GraphNodesTotal)
	prometheus.MustRegister(GraphRelationshipsTotal)
	prometheus.MustRegister(InsightsGenerated)
	prometheus.MustRegister(InsightConfidence)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsEmbedded)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
