package logger

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCRUDRecordsTenantAndResource(t *testing.T) {
	hook := logrustest.NewLocal(GetAuditLogger())
	defer hook.Reset()

	app := fiber.New()
	app.Post("/subscriptions/:id", func(c fiber.Ctx) error {
		c.Locals("tenant_id", "tenant-a")
		LogCRUD("update", "subscription", c.Params("id"), c, nil)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("POST", "/subscriptions/abc123", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, "crud_update", entry.Data["action"])
	assert.Equal(t, "tenant-a", entry.Data["tenant_id"])

	details, ok := entry.Data["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "update", details["operation"])
	assert.Equal(t, "subscription", details["resource_type"])
	assert.Equal(t, "abc123", details["resource_id"])
	assert.Equal(t, "req-42", details["request_id"])
}

func TestLogCRUDOmitsEmptyResourceID(t *testing.T) {
	hook := logrustest.NewLocal(GetAuditLogger())
	defer hook.Reset()

	app := fiber.New()
	app.Post("/queues", func(c fiber.Ctx) error {
		LogCRUD("insert", "queueconfig", "", c, nil)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/queues", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, hook.Entries, 1)
	details, ok := hook.LastEntry().Data["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "insert", details["operation"])
	_, hasID := details["resource_id"]
	assert.False(t, hasID, "không có resource id thì không ghi field")
}
