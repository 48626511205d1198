package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/internal/analysis"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/extract"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
)

// WebSocketHandler streams a full account analysis stage by stage:
// extraction counts, graph stats, embedding counts, then one frame per
// ranked insight and a completion frame. Clients submit analyze messages
// and can run several analyses over one connection.
type WebSocketHandler struct {
	engine *analysis.Engine
}

func NewWebSocketHandler(engine *analysis.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type        string              `json:"type"`
			AccountData extract.AccountData `json:"accountData"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "analyze" {
			continue
		}

		if msg.AccountData.AccountName == "" {
			h.sendError(c, "accountData.accountName is required")
			continue
		}

		logger.Info("Streaming account analysis",
			zap.String("account", msg.AccountData.AccountName),
		)

		if err := h.streamAnalysis(c, msg.AccountData); err != nil {
			logger.Error("Failed to stream analysis",
				zap.String("account", msg.AccountData.AccountName),
				zap.Error(err),
			)
			h.sendError(c, "Analysis failed")
		}
	}
}

func (h *WebSocketHandler) streamAnalysis(c *websocket.Conn, data extract.AccountData) error {
	ctx := context.Background()
	start := time.Now()

	// BuildGraph runs extraction itself, so the extraction frame reuses
	// its returned set instead of extracting a second time.
	set, stats, err := h.engine.BuildGraph(ctx, data)
	if err != nil {
		return err
	}

	err = h.sendStage(c, "extraction", map[string]interface{}{
		"people":        len(set.People),
		"organizations": len(set.Organizations),
		"topics":        len(set.Topics),
		"events":        len(set.Events),
		"relationships": len(set.Relationships),
	})
	if err != nil {
		return err
	}

	if err := h.sendStage(c, "graph", map[string]interface{}{"graphStats": stats}); err != nil {
		return err
	}

	stored, err := h.engine.StoreEmbeddings(ctx, data)
	if err != nil {
		return err
	}
	if err := h.sendStage(c, "embeddings", map[string]interface{}{"documentsStored": stored}); err != nil {
		return err
	}

	insights := h.engine.AnalyzeAccount(ctx, data.AccountName)

	for i, ins := range insights.Insights {
		msg := map[string]interface{}{
			"type":    "insight",
			"index":   i,
			"total":   len(insights.Insights),
			"insight": ins,
		}
		if err := c.WriteJSON(msg); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":              "complete",
		"accountName":       data.AccountName,
		"insightCount":      len(insights.Insights),
		"executiveSummary":  insights.ExecutiveSummary,
		"insightCategories": insights.InsightCategories,
		"processingTime":    time.Since(start).Seconds(),
	})
}

func (h *WebSocketHandler) sendStage(c *websocket.Conn, stage string, detail map[string]interface{}) error {
	msg := map[string]interface{}{
		"type":  "stage",
		"stage": stage,
	}
	for k, v := range detail {
		msg[k] = v
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}
