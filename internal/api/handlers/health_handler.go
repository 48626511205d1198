package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/JamesMcDaniel04/People.AI-Demo/internal/cache/redis"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/kg/neo4j"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/storage/sqlite"
	"github.com/JamesMcDaniel04/People.AI-Demo/internal/vector/milvus"
)

// HealthHandler reports per-collaborator reachability. Boot fails fast
// when a collaborator is missing, so a degraded report here means a
// dependency went away after startup.
type HealthHandler struct {
	graph   *neo4j.Client
	vectors *milvus.Client
	cache   *redis.Client
	history *sqlite.Client
}

func NewHealthHandler(graph *neo4j.Client, vectors *milvus.Client, cache *redis.Client, history *sqlite.Client) *HealthHandler {
	return &HealthHandler{
		graph:   graph,
		vectors: vectors,
		cache:   cache,
		history: history,
	}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx := c.Context()

	services := map[string]bool{
		"neo4j":  h.graph.Ping(ctx) == nil,
		"milvus": h.vectors.Ping(ctx) == nil,
		"redis":  h.cache.Ping(ctx) == nil,
		"sqlite": h.history.Ping() == nil,
	}

	status := "healthy"
	for _, up := range services {
		if !up {
			status = "degraded"
			break
		}
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"services":  services,
		"timestamp": time.Now().Unix(),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ready",
	})
}
