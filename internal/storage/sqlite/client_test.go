package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamesMcDaniel04/People.AI-Demo/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestInitSchema_CreatesTables(t *testing.T) {
	c := newTestClient(t)

	tables := []string{"extraction_runs", "query_history", "query_insights", "analysis_runs"}
	for _, table := range tables {
		var name string
		err := c.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found", table)
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	c := newTestClient(t)
	assert.NoError(t, c.InitSchema())
}

func TestExtractionRunRoundTrip(t *testing.T) {
	c := newTestClient(t)

	run := &models.ExtractionRun{
		ID:            "run-1",
		Account:       "Acme Corp",
		People:        4,
		Organizations: 2,
		Topics:        3,
		Events:        7,
		Relationships: 11,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, c.InsertExtractionRun(run))

	var people, relationships int
	err := c.db.QueryRow(
		"SELECT people, relationships FROM extraction_runs WHERE id = ?", run.ID,
	).Scan(&people, &relationships)
	require.NoError(t, err)
	assert.Equal(t, 4, people)
	assert.Equal(t, 11, relationships)
}

func TestQueryHistory_OrderAndFilter(t *testing.T) {
	c := newTestClient(t)

	now := time.Now()
	older := &models.QueryRecord{
		ID:           "q-1",
		Account:      "Acme Corp",
		QueryText:    "who are the decision makers",
		InsightCount: 3,
		LatencyMS:    120,
		CreatedAt:    now.Add(-time.Minute),
	}
	newer := &models.QueryRecord{
		ID:           "q-2",
		Account:      "Acme Corp",
		QueryText:    "what risks exist",
		InsightCount: 1,
		Cached:       true,
		LatencyMS:    2,
		CreatedAt:    now,
	}
	other := &models.QueryRecord{
		ID:        "q-3",
		Account:   "Globex",
		QueryText: "communication patterns",
		CreatedAt: now,
	}
	require.NoError(t, c.InsertQueryRecord(older))
	require.NoError(t, c.InsertQueryRecord(newer))
	require.NoError(t, c.InsertQueryRecord(other))

	records, err := c.GetQueryHistory("Acme Corp", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "q-2", records[0].ID)
	assert.True(t, records[0].Cached)
	assert.Equal(t, "q-1", records[1].ID)
	assert.False(t, records[1].Cached)
	assert.Equal(t, "who are the decision makers", records[1].QueryText)
}

func TestQueryHistory_Limit(t *testing.T) {
	c := newTestClient(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, c.InsertQueryRecord(&models.QueryRecord{
			ID:        string(rune('a' + i)),
			Account:   "Acme Corp",
			QueryText: "q",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := c.GetQueryHistory("Acme Corp", 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "e", records[0].ID)
}

func TestRecentInsights_JoinsAccount(t *testing.T) {
	c := newTestClient(t)

	now := time.Now()
	require.NoError(t, c.InsertQueryRecord(&models.QueryRecord{
		ID: "q-1", Account: "Acme Corp", QueryText: "q", CreatedAt: now,
	}))
	require.NoError(t, c.InsertQueryRecord(&models.QueryRecord{
		ID: "q-2", Account: "Globex", QueryText: "q", CreatedAt: now,
	}))

	require.NoError(t, c.InsertQueryInsight(&models.QueryInsight{
		QueryID:    "q-1",
		Type:       "cross_source_correlation",
		Category:   "stakeholder_influence",
		Confidence: 0.8,
		Summary:    "found correlated entities",
		CreatedAt:  now,
	}))
	require.NoError(t, c.InsertQueryInsight(&models.QueryInsight{
		QueryID:    "q-1",
		Type:       "community_influence",
		Confidence: 0.72,
		Summary:    "community structure detected",
		CreatedAt:  now,
	}))
	require.NoError(t, c.InsertQueryInsight(&models.QueryInsight{
		QueryID:    "q-2",
		Type:       "temporal_evolution",
		Confidence: 0.7,
		Summary:    "other account insight",
		CreatedAt:  now,
	}))

	insights, err := c.GetRecentInsights("Acme Corp", 10)
	require.NoError(t, err)
	require.Len(t, insights, 2)

	// Same created_at resolves by id descending, so the later insert leads.
	assert.Equal(t, "community_influence", insights[0].Type)
	assert.Equal(t, "cross_source_correlation", insights[1].Type)
	assert.Equal(t, "stakeholder_influence", insights[1].Category)
	assert.InDelta(t, 0.8, insights[1].Confidence, 1e-9)
}

func TestQueryInsight_RequiresExistingQuery(t *testing.T) {
	c := newTestClient(t)

	err := c.InsertQueryInsight(&models.QueryInsight{
		QueryID:    "missing",
		Type:       "cross_source_correlation",
		Confidence: 0.4,
	})
	assert.Error(t, err)
}

func TestAnalysisRunRoundTrip(t *testing.T) {
	c := newTestClient(t)

	now := time.Now()
	require.NoError(t, c.InsertAnalysisRun(&models.AnalysisRun{
		ID:               "a-1",
		Account:          "Acme Corp",
		QueriesRun:       5,
		InsightCount:     12,
		ExecutiveSummary: "GraphRAG analysis identified 12 insights across multiple dimensions.",
		Categories:       map[string]int{"stakeholder_influence": 4, "risk_indicators": 0},
		LatencyMS:        950,
		CreatedAt:        now.Add(-time.Minute),
	}))
	require.NoError(t, c.InsertAnalysisRun(&models.AnalysisRun{
		ID:        "a-2",
		Account:   "Acme Corp",
		CreatedAt: now,
	}))

	runs, err := c.GetAnalysisRuns("Acme Corp", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "a-2", runs[0].ID)
	assert.Equal(t, "a-1", runs[1].ID)
	assert.Equal(t, 5, runs[1].QueriesRun)
	assert.Equal(t, 12, runs[1].InsightCount)
	assert.Equal(t, map[string]int{"stakeholder_influence": 4, "risk_indicators": 0}, runs[1].Categories)
}

func TestGetAnalysisRuns_EmptyAccount(t *testing.T) {
	c := newTestClient(t)

	runs, err := c.GetAnalysisRuns("nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
