// Package eventhdl chứa HTTP handler cho domain event.
// File: handler.event.go - giữ tên cấu trúc cũ (handler.<entity>.go).
package eventhdl

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v3"

	"port_stream/internal/api/middleware"
	eventdto "port_stream/internal/api/event/dto"
	"port_stream/internal/common"
	"port_stream/internal/global"
	"port_stream/internal/stream"
)

// EventHandler xử lý publish sự kiện vào router.
// Không có bản persist — event sống trong router/queue, analytics chỉ đếm.
type EventHandler struct {
	runtime *stream.Router
}

// NewEventHandler tạo mới EventHandler
func NewEventHandler(rt *stream.Router) *EventHandler {
	return &EventHandler{runtime: rt}
}

// Publish nhận sự kiện từ producer và phân phối đồng bộ tới các subscription khớp.
// subscribersNotified đếm số subscription thực sự nhận event sau shaping —
// event bị throttle nuốt hoặc đang gom trong cửa sổ aggregation không được tính.
func (h *EventHandler) Publish(c fiber.Ctx) error {
	var input eventdto.EventPublishInput

	decoder := json.NewDecoder(bytes.NewReader(c.Body()))
	decoder.UseNumber()
	if err := decoder.Decode(&input); err != nil {
		middleware.HandleErrorResponse(c, common.NewError(
			common.ErrCodeValidationFormat,
			fmt.Sprintf("Dữ liệu gửi lên không đúng định dạng JSON. Chi tiết: %v", err),
			common.StatusBadRequest,
			err,
		))
		return nil
	}
	if err := global.Validate.Struct(&input); err != nil {
		middleware.HandleErrorResponse(c, common.NewError(
			common.ErrCodeValidationInput, common.MsgValidationError, common.StatusBadRequest, err,
		))
		return nil
	}

	tenantID, _ := c.Locals("tenant_id").(string)
	if input.TenantID != "" && input.TenantID != tenantID {
		middleware.HandleErrorResponse(c, common.NewError(
			common.ErrCodeAuthToken, "Không có quyền publish cho tenant này", common.StatusForbidden, nil,
		))
		return nil
	}
	if input.TenantID == "" {
		input.TenantID = tenantID
	}

	e := stream.NewEvent(input.TenantID, input.Topic, input.Payload)
	e.Source = input.Source
	e.Metadata = input.Metadata

	notified, err := h.runtime.Publish(c.Context(), e)
	if err != nil {
		middleware.HandleErrorResponse(c, common.NewError(
			common.ErrCodeEventInvalid,
			fmt.Sprintf("Event không hợp lệ: %v", err),
			common.StatusBadRequest,
			err,
		))
		return nil
	}

	return middleware.JSONResponse(c, common.StatusOK, fiber.Map{
		"code":    common.StatusOK,
		"message": common.MsgSuccess,
		"data": eventdto.EventPublishResult{
			EventID:             e.ID,
			SubscribersNotified: notified,
		},
		"status": "success",
	})
}
