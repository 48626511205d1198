package models

import "time"

// ExtractionRun records per-variant entity counts for one extraction pass.
type ExtractionRun struct {
	ID            string    `json:"id"`
	Account       string    `json:"account"`
	People        int       `json:"people"`
	Organizations int       `json:"organizations"`
	Topics        int       `json:"topics"`
	Events        int       `json:"events"`
	Relationships int       `json:"relationships"`
	CreatedAt     time.Time `json:"createdAt"`
}

// QueryRecord is one hybrid query with its envelope counts. Cached marks
// responses served from the query cache without running retrieval.
type QueryRecord struct {
	ID                string    `json:"id"`
	Account           string    `json:"account"`
	QueryText         string    `json:"queryText"`
	InsightCount      int       `json:"insightCount"`
	EntityCount       int       `json:"entityCount"`
	RelationshipCount int       `json:"relationshipCount"`
	CommunityCount    int       `json:"communityCount"`
	Cached            bool      `json:"cached"`
	LatencyMS         int       `json:"latencyMs"`
	CreatedAt         time.Time `json:"createdAt"`
}

// QueryInsight is one generated insight persisted under its query.
type QueryInsight struct {
	ID         int       `json:"id"`
	QueryID    string    `json:"queryId"`
	Type       string    `json:"type"`
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	Summary    string    `json:"summary"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AnalysisRun records one full account analysis: how many insight queries
// ran, how many ranked insights were returned, and the per-category counts.
type AnalysisRun struct {
	ID               string         `json:"id"`
	Account          string         `json:"account"`
	QueriesRun       int            `json:"queriesRun"`
	InsightCount     int            `json:"insightCount"`
	ExecutiveSummary string         `json:"executiveSummary"`
	Categories       map[string]int `json:"categories"`
	LatencyMS        int            `json:"latencyMs"`
	CreatedAt        time.Time      `json:"createdAt"`
}
