package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/internal/storage/models"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
)

// Client persists pipeline history: extraction runs, query envelopes with
// their insights, and full analysis runs. Writes are fire-and-forget from
// the pipeline's point of view; a failed insert never fails a request.
type Client struct {
	db  *sql.DB
	log *zap.Logger
}

func NewClient(dbPath string) (*Client, error) {
	// DSN options apply to every pooled connection, unlike PRAGMA via Exec.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	log := logger.Named("sqlite")
	log.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db, log: log}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping() error {
	return c.db.Ping()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS extraction_runs (
		id TEXT PRIMARY KEY,
		account TEXT NOT NULL,
		people INTEGER NOT NULL DEFAULT 0,
		organizations INTEGER NOT NULL DEFAULT 0,
		topics INTEGER NOT NULL DEFAULT 0,
		events INTEGER NOT NULL DEFAULT 0,
		relationships INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_extraction_account ON extraction_runs(account);
	CREATE INDEX IF NOT EXISTS idx_extraction_created ON extraction_runs(created_at);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		account TEXT NOT NULL,
		query_text TEXT NOT NULL,
		insight_count INTEGER NOT NULL DEFAULT 0,
		entity_count INTEGER NOT NULL DEFAULT 0,
		relationship_count INTEGER NOT NULL DEFAULT 0,
		community_count INTEGER NOT NULL DEFAULT 0,
		cached INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_account ON query_history(account);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);

	CREATE TABLE IF NOT EXISTS query_insights (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id TEXT NOT NULL,
		type TEXT NOT NULL,
		category TEXT,
		confidence REAL NOT NULL,
		summary TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (query_id) REFERENCES query_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_insights_query ON query_insights(query_id);
	CREATE INDEX IF NOT EXISTS idx_insights_type ON query_insights(type);

	CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		account TEXT NOT NULL,
		queries_run INTEGER NOT NULL DEFAULT 0,
		insight_count INTEGER NOT NULL DEFAULT 0,
		executive_summary TEXT,
		categories TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analysis_account ON analysis_runs(account);
	CREATE INDEX IF NOT EXISTS idx_analysis_created ON analysis_runs(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	c.log.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertExtractionRun(run *models.ExtractionRun) error {
	query := `
		INSERT INTO extraction_runs (id, account, people, organizations, topics, events, relationships, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		run.ID,
		run.Account,
		run.People,
		run.Organizations,
		run.Topics,
		run.Events,
		run.Relationships,
		run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert extraction run: %w", err)
	}

	c.log.Debug("Extraction run recorded",
		zap.String("run_id", run.ID),
		zap.String("account", run.Account),
	)
	return nil
}

func (c *Client) InsertQueryRecord(record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, account, query_text, insight_count, entity_count,
			relationship_count, community_count, cached, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	cached := 0
	if record.Cached {
		cached = 1
	}

	_, err := c.db.Exec(
		query,
		record.ID,
		record.Account,
		record.QueryText,
		record.InsightCount,
		record.EntityCount,
		record.RelationshipCount,
		record.CommunityCount,
		cached,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	c.log.Debug("Query recorded",
		zap.String("query_id", record.ID),
		zap.String("account", record.Account),
		zap.Int("insights", record.InsightCount),
	)
	return nil
}

func (c *Client) InsertQueryInsight(in *models.QueryInsight) error {
	query := `
		INSERT INTO query_insights (query_id, type, category, confidence, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := c.db.Exec(
		query,
		in.QueryID,
		in.Type,
		in.Category,
		in.Confidence,
		in.Summary,
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query insight: %w", err)
	}

	return nil
}

func (c *Client) InsertAnalysisRun(run *models.AnalysisRun) error {
	categoriesJSON, _ := json.Marshal(run.Categories)

	query := `
		INSERT INTO analysis_runs (id, account, queries_run, insight_count, executive_summary,
			categories, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		run.ID,
		run.Account,
		run.QueriesRun,
		run.InsightCount,
		run.ExecutiveSummary,
		string(categoriesJSON),
		run.LatencyMS,
		run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis run: %w", err)
	}

	c.log.Debug("Analysis run recorded",
		zap.String("analysis_id", run.ID),
		zap.String("account", run.Account),
		zap.Int("insights", run.InsightCount),
	)
	return nil
}

func (c *Client) GetAnalysisRuns(account string, limit int) ([]models.AnalysisRun, error) {
	query := `
		SELECT id, account, queries_run, insight_count, executive_summary, categories, latency_ms, created_at
		FROM analysis_runs
		WHERE account = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []models.AnalysisRun
	for rows.Next() {
		var r models.AnalysisRun
		var categoriesJSON string
		var createdAt int64

		err := rows.Scan(&r.ID, &r.Account, &r.QueriesRun, &r.InsightCount,
			&r.ExecutiveSummary, &categoriesJSON, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		json.Unmarshal([]byte(categoriesJSON), &r.Categories)
		r.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return runs, nil
}

func (c *Client) GetQueryHistory(account string, limit int) ([]models.QueryRecord, error) {
	query := `
		SELECT id, account, query_text, insight_count, entity_count, relationship_count,
			community_count, cached, latency_ms, created_at
		FROM query_history
		WHERE account = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var r models.QueryRecord
		var cached int
		var createdAt int64

		err := rows.Scan(&r.ID, &r.Account, &r.QueryText, &r.InsightCount, &r.EntityCount,
			&r.RelationshipCount, &r.CommunityCount, &cached, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Cached = cached != 0
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return records, nil
}

// GetRecentInsights returns the newest persisted insights for an account,
// joined through their owning queries.
func (c *Client) GetRecentInsights(account string, limit int) ([]models.QueryInsight, error) {
	query := `
		SELECT qi.id, qi.query_id, qi.type, qi.category, qi.confidence, qi.summary, qi.created_at
		FROM query_insights qi
		INNER JOIN query_history qh ON qh.id = qi.query_id
		WHERE qh.account = ?
		ORDER BY qi.created_at DESC, qi.id DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent insights: %w", err)
	}
	defer rows.Close()

	var insights []models.QueryInsight
	for rows.Next() {
		var in models.QueryInsight
		var createdAt int64

		err := rows.Scan(&in.ID, &in.QueryID, &in.Type, &in.Category, &in.Confidence, &in.Summary, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		in.CreatedAt = time.Unix(createdAt, 0)
		insights = append(insights, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return insights, nil
}
