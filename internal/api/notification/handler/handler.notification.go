// Package notifhdl chứa HTTP handler cho domain notification.
// File: handler.notification.go - giữ tên cấu trúc cũ (handler.<entity>.go).
package notifhdl

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	basehdl "port_stream/internal/api/base/handler"
	notifdto "port_stream/internal/api/notification/dto"
	notifmodels "port_stream/internal/api/notification/models"
	notifsvc "port_stream/internal/api/notification/service"
	"port_stream/internal/common"
	"port_stream/internal/dispatch"
	"port_stream/internal/logger"
	"port_stream/internal/utility"
)

// NotificationHandler xử lý các request notification.
// CRUD chuẩn từ BaseHandler; Dispatch là endpoint riêng đưa notification
// vào vòng giao (retry/escalation/delivery window) của dispatcher.
type NotificationHandler struct {
	basehdl.BaseHandler[notifmodels.Notification, notifdto.NotificationCreateInput, notifdto.NotificationUpdateInput]
	service    *notifsvc.NotificationService
	dispatcher *dispatch.Dispatcher
}

// NewNotificationHandler tạo mới NotificationHandler
func NewNotificationHandler(d *dispatch.Dispatcher) (*NotificationHandler, error) {
	service, err := notifsvc.NewNotificationService()
	if err != nil {
		return nil, fmt.Errorf("failed to create notification service: %v", err)
	}

	baseHandler := basehdl.NewBaseHandler[notifmodels.Notification, notifdto.NotificationCreateInput, notifdto.NotificationUpdateInput](service)
	return &NotificationHandler{
		BaseHandler: *baseHandler,
		service:     service,
		dispatcher:  d,
	}, nil
}

// Dispatch tạo notification và đưa ngay vào vòng giao.
// Vòng giao chạy nền (retry có sleep) — response trả về pending cùng id để client theo dõi.
func (h *NotificationHandler) Dispatch(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		var input notifdto.NotificationCreateInput
		if err := h.ParseRequestBody(c, &input); err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		model, err := h.TransformCreateInputToModel(&input)
		if err != nil {
			h.HandleResponse(c, nil, common.NewError(
				common.ErrCodeValidationFormat,
				fmt.Sprintf("Lỗi transform dữ liệu: %v", err),
				common.StatusBadRequest,
				err,
			))
			return nil
		}

		if model.TenantID != "" {
			if err := h.ValidateTenantOwnership(c, model.TenantID); err != nil {
				h.HandleResponse(c, nil, err)
				return nil
			}
		} else {
			model.TenantID = h.GetTenantIDFromContext(c)
		}

		now := time.Now().UnixMilli()
		model.ID = primitive.NewObjectID()
		model.Status = notifmodels.StatusPending
		model.CreatedAt = now
		model.UpdatedAt = now

		if err := h.service.Save(c.Context(), model); err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		go func(n *notifmodels.Notification) {
			if err := h.dispatcher.Dispatch(context.Background(), n); err != nil {
				logger.GetErrorLogger().WithError(err).WithFields(map[string]interface{}{
					"notificationId": n.ID.Hex(),
					"tenantId":       n.TenantID,
				}).Error("🔔 [DISPATCH] Vòng giao notification lỗi")
			}
		}(model)

		h.HandleResponse(c, fiber.Map{
			"id":     model.ID.Hex(),
			"status": notifmodels.StatusPending,
		}, nil)
		return nil
	})
}

// MarkRead đánh dấu một notification đã được người vận hành đọc
func (h *NotificationHandler) MarkRead(c fiber.Ctx) error {
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

		data, err := h.service.UpdateById(c.Context(), utility.String2ObjectID(id), map[string]interface{}{
			"status":    notifmodels.StatusRead,
			"updatedAt": time.Now().UnixMilli(),
		})
		h.HandleResponse(c, data, err)
		return nil
	})
}
