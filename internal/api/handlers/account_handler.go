package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/internal/analysis"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/extract"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
)

// AccountHandler exposes the pipeline stages over HTTP: extraction alone,
// graph building, embedding storage, and the full analysis.
type AccountHandler struct {
	engine *analysis.Engine
}

func NewAccountHandler(engine *analysis.Engine) *AccountHandler {
	return &AccountHandler{
		engine: engine,
	}
}

func (h *AccountHandler) ExtractEntities(c *fiber.Ctx) error {
	var req struct {
		AccountData          extract.AccountData `json:"accountData"`
		ExtractRelationships *bool               `json:"extractRelationships"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.AccountData.AccountName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "accountData.accountName is required",
		})
	}

	set := h.engine.ExtractEntities(req.AccountData)
	if req.ExtractRelationships != nil && !*req.ExtractRelationships {
		set.Relationships = []extract.Relationship{}
	}

	return c.JSON(fiber.Map{
		"accountName": req.AccountData.AccountName,
		"entities":    set,
		"entityCount": set.EntityCount(),
		"extractedAt": time.Now().Unix(),
	})
}

func (h *AccountHandler) BuildGraph(c *fiber.Ctx) error {
	var req struct {
		AccountData extract.AccountData `json:"accountData"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.AccountData.AccountName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "accountData.accountName is required",
		})
	}

	_, stats, err := h.engine.BuildGraph(c.Context(), req.AccountData)
	if err != nil {
		logger.Error("Failed to build account graph",
			zap.String("account", req.AccountData.AccountName),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build account graph",
		})
	}

	return c.JSON(fiber.Map{
		"accountName": req.AccountData.AccountName,
		"graphStats":  stats,
		"builtAt":     time.Now().Unix(),
	})
}

func (h *AccountHandler) StoreEmbeddings(c *fiber.Ctx) error {
	var data extract.AccountData

	if err := c.BodyParser(&data); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if data.AccountName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "accountName is required",
		})
	}

	stored, err := h.engine.StoreEmbeddings(c.Context(), data)
	if err != nil {
		logger.Error("Failed to store embeddings",
			zap.String("account", data.AccountName),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store embeddings",
		})
	}

	return c.JSON(fiber.Map{
		"accountName":     data.AccountName,
		"documentsStored": stored,
		"storedAt":        time.Now().Unix(),
	})
}

func (h *AccountHandler) Analyze(c *fiber.Ctx) error {
	var data extract.AccountData

	if err := c.BodyParser(&data); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if data.AccountName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "accountName is required",
		})
	}

	start := time.Now()

	result, err := h.engine.Analyze(c.Context(), data)
	if err != nil {
		logger.Error("Failed to analyze account",
			zap.String("account", data.AccountName),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to analyze account",
		})
	}

	return c.JSON(fiber.Map{
		"accountName":     result.Account,
		"graphStats":      result.GraphStats,
		"documentsStored": result.DocumentsStored,
		"insights":        result.Insights,
		"processingTime":  time.Since(start).Seconds(),
		"analyzedAt":      time.Now().Unix(),
	})
}
