// Package analyticshdl chứa HTTP handler cho domain analytics.
// File: handler.analytics.go - giữ tên cấu trúc cũ (handler.<entity>.go).
package analyticshdl

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"port_stream/internal/api/middleware"
	"port_stream/internal/common"
	"port_stream/internal/stream"
)

// Mặc định lấy 1 giờ gần nhất khi client không truyền khoảng thời gian
const defaultSnapshotRange = time.Hour

// AnalyticsHandler phục vụ snapshot số liệu của tầng phân phối sự kiện
type AnalyticsHandler struct {
	analytics *stream.Analytics
	runtime   *stream.Router
	registry  *stream.ConnectionRegistry
}

// NewAnalyticsHandler tạo mới AnalyticsHandler
func NewAnalyticsHandler(a *stream.Analytics, rt *stream.Router, reg *stream.ConnectionRegistry) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: a, runtime: rt, registry: reg}
}

// Snapshot trả về tổng lũy kế + chuỗi thời gian (GET /analytics/snapshot).
// Query: from/to (unix milli), granularity (minute|hour). Chuỗi lọc theo tenant của request.
func (h *AnalyticsHandler) Snapshot(c fiber.Ctx) error {
	now := time.Now()
	since := now.Add(-defaultSnapshotRange)
	until := now

	if v := c.Query("from"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			middleware.HandleErrorResponse(c, common.NewError(
				common.ErrCodeValidationFormat, "Tham số from phải là unix milli", common.StatusBadRequest, err,
			))
			return nil
		}
		since = time.UnixMilli(ms)
	}
	if v := c.Query("to"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			middleware.HandleErrorResponse(c, common.NewError(
				common.ErrCodeValidationFormat, "Tham số to phải là unix milli", common.StatusBadRequest, err,
			))
			return nil
		}
		until = time.UnixMilli(ms)
	}

	tenantID, _ := c.Locals("tenant_id").(string)
	snap := h.analytics.TakeSnapshot(since, until, c.Query("granularity"), tenantID)

	return middleware.JSONResponse(c, common.StatusOK, fiber.Map{
		"code":    common.StatusOK,
		"message": common.MsgSuccess,
		"data":    snap,
		"status":  "success",
	})
}

// Live trả về số liệu realtime hiện tại: connection đang mở và subscription của tenant
func (h *AnalyticsHandler) Live(c fiber.Ctx) error {
	tenantID, _ := c.Locals("tenant_id").(string)

	return middleware.JSONResponse(c, common.StatusOK, fiber.Map{
		"code":    common.StatusOK,
		"message": common.MsgSuccess,
		"data": fiber.Map{
			"connections":   h.registry.Count(),
			"subscriptions": h.runtime.CountByTenant(tenantID),
		},
		"status": "success",
	})
}
