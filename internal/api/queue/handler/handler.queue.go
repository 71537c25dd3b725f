// Package queuehdl chứa HTTP handler cho domain queue.
// File: handler.queue.go - giữ tên cấu trúc cũ (handler.<entity>.go).
package queuehdl

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	basehdl "port_stream/internal/api/base/handler"
	queuedto "port_stream/internal/api/queue/dto"
	"port_stream/internal/api/queue/models"
	queuesvc "port_stream/internal/api/queue/service"
	"port_stream/internal/stream"
)

// QueueHandler xử lý các request cấu hình priority queue
type QueueHandler struct {
	basehdl.BaseHandler[models.StreamQueue, queuedto.QueueCreateInput, queuedto.QueueUpdateInput]
	manager *stream.QueueManager
}

// NewQueueHandler tạo mới QueueHandler
func NewQueueHandler(qm *stream.QueueManager) (*QueueHandler, error) {
	service, err := queuesvc.NewQueueService()
	if err != nil {
		return nil, fmt.Errorf("failed to create queue service: %v", err)
	}

	baseHandler := basehdl.NewBaseHandler[models.StreamQueue, queuedto.QueueCreateInput, queuedto.QueueUpdateInput](service)
	return &QueueHandler{
		BaseHandler: *baseHandler,
		manager:     qm,
	}, nil
}

// Depth trả về độ sâu hiện tại của một queue runtime (GET /queue/depth?topic=...)
func (h *QueueHandler) Depth(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		tenantID := h.GetTenantIDFromContext(c)
		topic := c.Query("topic")

		q, ok := h.manager.Lookup(tenantID, topic)
		if !ok {
			h.HandleResponse(c, fiber.Map{"topic": topic, "depth": 0, "exists": false}, nil)
			return nil
		}
		h.HandleResponse(c, fiber.Map{"topic": topic, "depth": q.Len(), "exists": true}, nil)
		return nil
	})
}
