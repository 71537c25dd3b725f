// Package subscriptionhdl chứa HTTP handler cho domain subscription.
// File: handler.subscription.go - giữ tên cấu trúc cũ (handler.<entity>.go).
package subscriptionhdl

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	basehdl "port_stream/internal/api/base/handler"
	subscriptiondto "port_stream/internal/api/subscription/dto"
	"port_stream/internal/api/subscription/models"
	subscriptionsvc "port_stream/internal/api/subscription/service"
	"port_stream/internal/common"
	"port_stream/internal/stream"
	"port_stream/internal/utility"
)

// SubscriptionHandler xử lý các request liên quan đến subscription.
// CRUD chuẩn từ BaseHandler; pause/resume là endpoint riêng vì phải
// đổi cả bản persist lẫn bản runtime trong router.
type SubscriptionHandler struct {
	basehdl.BaseHandler[models.StreamSubscription, subscriptiondto.SubscriptionCreateInput, subscriptiondto.SubscriptionUpdateInput]
	service *subscriptionsvc.SubscriptionService
	runtime *stream.Router
}

// NewSubscriptionHandler tạo mới SubscriptionHandler
func NewSubscriptionHandler(rt *stream.Router) (*SubscriptionHandler, error) {
	service, err := subscriptionsvc.NewSubscriptionService()
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription service: %v", err)
	}

	baseHandler := basehdl.NewBaseHandler[models.StreamSubscription, subscriptiondto.SubscriptionCreateInput, subscriptiondto.SubscriptionUpdateInput](service)
	return &SubscriptionHandler{
		BaseHandler: *baseHandler,
		service:     service,
		runtime:     rt,
	}, nil
}

// Pause tạm dừng một subscription: persist status=paused + pause trong router.
// Subscription paused vẫn nằm trong router, pipeline bị reset (xả buffer, bỏ cửa sổ gộp dở).
func (h *SubscriptionHandler) Pause(c fiber.Ctx) error {
	return h.setStatus(c, models.StatusPaused)
}

// Resume kích hoạt lại một subscription đã pause
func (h *SubscriptionHandler) Resume(c fiber.Ctx) error {
	return h.setStatus(c, models.StatusActive)
}

func (h *SubscriptionHandler) setStatus(c fiber.Ctx, status string) error {
	return h.SafeHandler(c, func() error {
		id := c.Params("id")
		if !primitive.IsValidObjectID(id) {
			h.HandleResponse(c, nil, common.NewError(
				common.ErrCodeValidationFormat,
				fmt.Sprintf("ID '%s' không đúng định dạng MongoDB ObjectID (phải là chuỗi hex 24 ký tự)", id),
				common.StatusBadRequest,
				nil,
			))
			return nil
		}

		if err := h.ValidateTenantAccess(c, id); err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		sub, err := h.service.FindOneById(c.Context(), utility.String2ObjectID(id))
		if err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		// Cancelled/expired không đổi trạng thái được nữa
		if sub.Status == models.StatusCancelled || sub.Status == models.StatusExpired {
			h.HandleResponse(c, nil, common.NewError(
				common.ErrCodeBusinessState,
				fmt.Sprintf("Subscription đang ở trạng thái %s, không thể chuyển sang %s", sub.Status, status),
				common.StatusConflict,
				nil,
			))
			return nil
		}

		if err := h.service.SetStatus(c.Context(), sub.ID, status, time.Now().UnixMilli()); err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		// SetStatus đi qua UpdateById nên data change event đã nạp lại router;
		// gọi trực tiếp để trạng thái runtime đổi ngay, không đợi goroutine event.
		switch status {
		case models.StatusPaused:
			h.runtime.PauseSubscription(sub.ID.Hex())
		case models.StatusActive:
			h.runtime.ResumeSubscription(sub.ID.Hex())
		}

		h.HandleResponse(c, fiber.Map{"id": sub.ID.Hex(), "status": status}, nil)
		return nil
	})
}
