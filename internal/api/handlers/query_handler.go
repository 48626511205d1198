package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/internal/analysis"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/storage/models"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/storage/sqlite"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
)

const (
	defaultQueryMaxHops = 3
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type QueryHandler struct {
	engine  *analysis.Engine
	history *sqlite.Client
}

func NewQueryHandler(engine *analysis.Engine, history *sqlite.Client) *QueryHandler {
	return &QueryHandler{
		engine:  engine,
		history: history,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		AccountName  string `json:"accountName"`
		Query        string `json:"query"`
		MaxHops      int    `json:"maxHops"`
		IncludeGraph *bool  `json:"includeGraph"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.AccountName == "" || req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "accountName and query are required",
		})
	}

	if req.MaxHops <= 0 {
		req.MaxHops = defaultQueryMaxHops
	}
	includeGraph := true
	if req.IncludeGraph != nil {
		includeGraph = *req.IncludeGraph
	}

	start := time.Now()
	result := h.engine.Query(c.Context(), req.AccountName, req.Query, req.MaxHops, includeGraph)

	return c.JSON(fiber.Map{
		"accountName":       req.AccountName,
		"insights":          result.Insights,
		"entityCount":       result.EntityCount,
		"relationshipCount": result.RelationshipCount,
		"communityCount":    result.CommunityCount,
		"semanticResults":   result.SemanticResults,
		"graphContext":      result.GraphContext,
		"processingTime":    time.Since(start).Seconds(),
	})
}

func (h *QueryHandler) GetAnalyses(c *fiber.Ctx) error {
	account := c.Query("account")
	if account == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "account is required",
		})
	}

	runs, err := h.history.GetAnalysisRuns(account, historyLimit(c))
	if err != nil {
		logger.Error("Failed to load analysis history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load analysis history",
		})
	}
	if runs == nil {
		runs = []models.AnalysisRun{}
	}

	return c.JSON(fiber.Map{
		"account":  account,
		"analyses": runs,
	})
}

func (h *QueryHandler) GetQueries(c *fiber.Ctx) error {
	account := c.Query("account")
	if account == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "account is required",
		})
	}

	records, err := h.history.GetQueryHistory(account, historyLimit(c))
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load query history",
		})
	}
	if records == nil {
		records = []models.QueryRecord{}
	}

	return c.JSON(fiber.Map{
		"account": account,
		"queries": records,
	})
}

func (h *QueryHandler) GetInsights(c *fiber.Ctx) error {
	account := c.Query("account")
	if account == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "account is required",
		})
	}

	insights, err := h.history.GetRecentInsights(account, historyLimit(c))
	if err != nil {
		logger.Error("Failed to load recent insights", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load recent insights",
		})
	}
	if insights == nil {
		insights = []models.QueryInsight{}
	}

	return c.JSON(fiber.Map{
		"account":  account,
		"insights": insights,
	})
}

func historyLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit
}
