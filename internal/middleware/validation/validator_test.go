package validation

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))

	ok := func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
	app.Post("/api/v1/query", ok)
	app.Post("/api/v1/extract", ok)
	app.Post("/api/v1/graph/build", ok)
	app.Post("/api/v1/embeddings", ok)
	app.Post("/api/v1/analyze", ok)
	app.Post("/api/v1/other", ok)
	app.Get("/api/v1/analyses", ok)

	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, string) {
	t.Helper()

	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(payload)
}

func TestQueryValidation(t *testing.T) {
	app := newTestApp(Config{MaxQueryLength: 50})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "valid request",
			body:       `{"accountName": "Acme Corp", "query": "who are the key stakeholders"}`,
			wantStatus: fiber.StatusOK,
		},
		{
			name:       "missing account name",
			body:       `{"query": "who are the key stakeholders"}`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "accountName is required",
		},
		{
			name:       "missing query",
			body:       `{"accountName": "Acme Corp"}`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "query is required",
		},
		{
			name:       "query over length cap",
			body:       `{"accountName": "Acme Corp", "query": "` + strings.Repeat("x", 51) + `"}`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "maximum length",
		},
		{
			name:       "sql injection keywords",
			body:       `{"accountName": "Acme Corp", "query": "'; DROP TABLE accounts"}`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "Invalid query content",
		},
		{
			name:       "script tag",
			body:       `{"accountName": "Acme Corp", "query": "<script>alert(1)</script>"}`,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "Invalid query content",
		},
		{
			name:       "malformed json",
			body:       `{"accountName": `,
			wantStatus: fiber.StatusBadRequest,
			wantError:  "Invalid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := postJSON(t, app, "/api/v1/query", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantError != "" {
				assert.Contains(t, body, tt.wantError)
			}
		})
	}
}

func TestWrappedAccountValidation(t *testing.T) {
	app := newTestApp(Config{})

	for _, path := range []string{"/api/v1/extract", "/api/v1/graph/build"} {
		status, _ := postJSON(t, app, path, `{"accountData": {"accountName": "Acme Corp"}}`)
		assert.Equal(t, fiber.StatusOK, status, path)

		status, body := postJSON(t, app, path, `{"accountName": "Acme Corp"}`)
		assert.Equal(t, fiber.StatusBadRequest, status, path)
		assert.Contains(t, body, "accountData is required")

		status, body = postJSON(t, app, path, `{"accountData": {}}`)
		assert.Equal(t, fiber.StatusBadRequest, status, path)
		assert.Contains(t, body, "accountName is required")
	}
}

func TestFlatAccountValidation(t *testing.T) {
	app := newTestApp(Config{})

	for _, path := range []string{"/api/v1/embeddings", "/api/v1/analyze"} {
		status, _ := postJSON(t, app, path, `{"accountName": "Acme Corp", "emails": []}`)
		assert.Equal(t, fiber.StatusOK, status, path)

		status, body := postJSON(t, app, path, `{"emails": []}`)
		assert.Equal(t, fiber.StatusBadRequest, status, path)
		assert.Contains(t, body, "accountName is required")
	}
}

func TestAccountNameLengthCap(t *testing.T) {
	app := newTestApp(Config{MaxAccountLength: 10})

	status, body := postJSON(t, app, "/api/v1/analyze", `{"accountName": "`+strings.Repeat("a", 11)+`"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body, "accountName exceeds maximum length")
}

func TestContentTypeAllowList(t *testing.T) {
	app := newTestApp(Config{})

	req := httptest.NewRequest("POST", "/api/v1/query", strings.NewReader("query=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestUnvalidatedRoutesPassThrough(t *testing.T) {
	app := newTestApp(Config{})

	status, _ := postJSON(t, app, "/api/v1/other", `{}`)
	assert.Equal(t, fiber.StatusOK, status)

	req := httptest.NewRequest("GET", "/api/v1/analyses", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
