// Package router đăng ký các route thuộc domain queue: cấu hình queue + depth runtime.
package router

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	"port_stream/internal/api/middleware"
	queuehdl "port_stream/internal/api/queue/handler"
	apirouter "port_stream/internal/api/router"
	"port_stream/internal/stream"
)

// Register trả về hàm đăng ký route queue lên v1, gắn với QueueManager runtime.
func Register(qm *stream.QueueManager) apirouter.RegisterFunc {
	return func(v1 fiber.Router, r *apirouter.Router) error {
		h, err := queuehdl.NewQueueHandler(qm)
		if err != nil {
			return fmt.Errorf("create queue handler: %w", err)
		}
		r.RegisterCRUDRoutes(v1, "/queue", h, apirouter.NamedItemConfig)

		chain := []fiber.Handler{middleware.AuthMiddleware(), middleware.TenantContextMiddleware()}
		apirouter.RegisterRouteWithMiddleware(v1, "/queue", "GET", "/depth", chain, h.Depth)
		return nil
	}
}
