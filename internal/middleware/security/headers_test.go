package security

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headersFor(t *testing.T, cfg HeadersConfig) map[string]string {
	t.Helper()

	app := fiber.New()
	app.Use(HeadersMiddleware(cfg))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	out := make(map[string]string)
	for _, name := range []string{
		"X-Frame-Options",
		"X-Content-Type-Options",
		"Referrer-Policy",
		"Content-Security-Policy",
		"Cache-Control",
		"Strict-Transport-Security",
	} {
		out[name] = resp.Header.Get(name)
	}
	return out
}

func TestProductionHeaders(t *testing.T) {
	headers := headersFor(t, HeadersConfig{
		AllowedOrigins: []string{"https://app.example.com", "wss://app.example.com"},
	})

	assert.Equal(t, "DENY", headers["X-Frame-Options"])
	assert.Equal(t, "nosniff", headers["X-Content-Type-Options"])
	assert.Equal(t, "strict-origin-when-cross-origin", headers["Referrer-Policy"])
	assert.Equal(t, "no-store", headers["Cache-Control"])
	assert.Contains(t, headers["Strict-Transport-Security"], "max-age=31536000")

	csp := headers["Content-Security-Policy"]
	assert.Contains(t, csp, "default-src 'none'")
	assert.Contains(t, csp, "connect-src 'self' https://app.example.com wss://app.example.com")
}

func TestDevelopmentSkipsHSTS(t *testing.T) {
	headers := headersFor(t, HeadersConfig{IsDevelopment: true})

	assert.Empty(t, headers["Strict-Transport-Security"])
	assert.Equal(t, "DENY", headers["X-Frame-Options"])
}

func TestNoOriginsKeepsSelfOnly(t *testing.T) {
	headers := headersFor(t, HeadersConfig{})

	assert.Contains(t, headers["Content-Security-Policy"], "connect-src 'self'")
	assert.NotContains(t, headers["Content-Security-Policy"], "connect-src 'self' ")
}
