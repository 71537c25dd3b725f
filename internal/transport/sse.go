package transport

import (
	"bufio"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"port_stream/internal/logger"
	"port_stream/internal/stream"
)

const (
	sseRetryMs           = 3000
	sseHeartbeatInterval = 25 * time.Second
)

// SSEServer phục vụ GET /stream/:subscriptionId — stream một chiều các
// shaped event của một subscription có sẵn qua Server-Sent Events.
type SSEServer struct {
	registry *stream.ConnectionRegistry
	router   *stream.Router
	retryMs  int // giá trị retry gửi xuống client, <=0 dùng default
}

func NewSSEServer(registry *stream.ConnectionRegistry, router *stream.Router, retryMs int) *SSEServer {
	if retryMs <= 0 {
		retryMs = sseRetryMs
	}
	return &SSEServer{registry: registry, router: router, retryMs: retryMs}
}

// Handler xác thực bearer, tra subscription, rồi gắn một connection SSE
// vào room của subscription. Connection sống đến khi client ngắt.
func (s *SSEServer) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		if !checkAuth(c) {
			return c.Status(fiber.StatusUnauthorized).JSON(ServerMessage{
				Type: MsgError, Code: "AUTH_FAILED", Message: "Bearer token không hợp lệ",
			})
		}
		tenant := tenantID(c)

		subID := c.Params("subscriptionId")
		sub, ok := s.router.Get(subID)
		if !ok || sub.TenantID != tenant {
			return c.Status(fiber.StatusNotFound).JSON(ServerMessage{
				Type: MsgError, Code: ErrCodeNotFound, Message: "Subscription không tồn tại",
			})
		}
		if sub.Room == "" {
			return c.Status(fiber.StatusBadRequest).JSON(ServerMessage{
				Type: MsgError, Code: ErrCodeBadCommand, Message: "Subscription không gắn room để stream",
			})
		}

		connID := uuid.NewString()
		conn := s.registry.Register(connID, tenant, sub.OwnerID, "sse", wsSendBuffer)
		s.registry.Join(connID, sub.Room)

		logger.GetAppLogger().WithFields(map[string]interface{}{
			"connectionId":   connID,
			"subscriptionId": subID,
			"tenantId":       tenant,
		}).Info("🔌 [WS] Mở SSE stream cho subscription")

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		c.RequestCtx().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer s.registry.Disconnect(connID)
			s.streamLoop(w, conn)
		})
		return nil
	}
}

// streamLoop ghi event theo wire format SSE, heartbeat comment giữ kết nối.
// Ghi lỗi (client ngắt) thì thoát — Disconnect dọn room và subscription SSE.
func (s *SSEServer) streamLoop(w *bufio.Writer, conn *stream.Connection) {
	fmt.Fprintf(w, "retry: %d\n\n", s.retryMs)
	if err := w.Flush(); err != nil {
		return
	}

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case payload, open := <-conn.Send():
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			if err := w.Flush(); err != nil {
				return
			}
			conn.Touch(time.Now())
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}
