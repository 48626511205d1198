package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
)

var (
	sqlInjectionPattern = regexp.MustCompile(`(?i)(union|select|insert|update|delete|drop|create|alter|exec|script|javascript|onerror|onload)`)
	xssPattern          = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)
)

type Config struct {
	MaxQueryLength      int
	MaxAccountLength    int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware screens write requests before they reach the handlers:
// content-type allow list, required account/query fields, length caps,
// and injection screening on free-form query text. Account names are not
// pattern-screened because legitimate company names trip the keyword
// lists.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 5000
	}
	if cfg.MaxAccountLength == 0 {
		cfg.MaxAccountLength = 256
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("validation")
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		if contentType := c.Get("Content-Type"); contentType != "" {
			allowed := false
			for _, allowedType := range cfg.AllowedContentTypes {
				if strings.Contains(contentType, allowedType) {
					allowed = true
					break
				}
			}
			if !allowed {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		switch c.Path() {
		case "/api/v1/query":
			return validateQuery(c, cfg)
		case "/api/v1/extract", "/api/v1/graph/build":
			return validateWrappedAccount(c, cfg)
		case "/api/v1/embeddings", "/api/v1/analyze":
			return validateAccount(c, cfg)
		}

		return c.Next()
	}
}

func validateQuery(c *fiber.Ctx, cfg Config) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON format",
		})
	}

	account, ok := req["accountName"].(string)
	if !ok || account == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "accountName is required and must be a string",
		})
	}
	if len(account) > cfg.MaxAccountLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "accountName exceeds maximum length",
		})
	}

	query, ok := req["query"].(string)
	if !ok || query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query is required and must be a string",
		})
	}
	if len(query) > cfg.MaxQueryLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query exceeds maximum length",
		})
	}

	if sqlInjectionPattern.MatchString(query) || xssPattern.MatchString(query) {
		cfg.Logger.Warn("Rejected suspicious query content",
			zap.String("ip", c.IP()),
			zap.String("account", account),
		)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid query content",
		})
	}

	return c.Next()
}

// validateWrappedAccount covers bodies shaped {"accountData": {...}}.
func validateWrappedAccount(c *fiber.Ctx, cfg Config) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON format",
		})
	}

	data, ok := req["accountData"].(map[string]interface{})
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "accountData is required",
		})
	}

	return requireAccountName(c, cfg, data)
}

// validateAccount covers bodies that are the account payload itself.
func validateAccount(c *fiber.Ctx, cfg Config) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON format",
		})
	}

	return requireAccountName(c, cfg, req)
}

func requireAccountName(c *fiber.Ctx, cfg Config, body map[string]interface{}) error {
	account, ok := body["accountName"].(string)
	if !ok || account == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "accountName is required and must be a string",
		})
	}
	if len(account) > cfg.MaxAccountLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "accountName exceeds maximum length",
		})
	}

	return c.Next()
}
