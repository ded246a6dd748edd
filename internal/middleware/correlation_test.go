package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDMintsIdentifier(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())

	var seen string
	app.Get("/", func(c *fiber.Ctx) error {
		seen = GetCorrelationID(c)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	require.Equal(t, seen, resp.Header.Get("X-Correlation-ID"))
}

func TestCorrelationIDHonoursClientHeader(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "exam-client-42")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "exam-client-42", resp.Header.Get("X-Correlation-ID"))
}
