// Package router đăng ký các route thuộc domain event: publish.
package router

import (
	"github.com/gofiber/fiber/v3"

	eventhdl "port_stream/internal/api/event/handler"
	"port_stream/internal/api/middleware"
	apirouter "port_stream/internal/api/router"
	"port_stream/internal/stream"
)

// Register trả về hàm đăng ký route event lên v1, gắn với router runtime.
func Register(rt *stream.Router) apirouter.RegisterFunc {
	return func(v1 fiber.Router, r *apirouter.Router) error {
		h := eventhdl.NewEventHandler(rt)

		chain := []fiber.Handler{middleware.AuthMiddleware(), middleware.TenantContextMiddleware()}
		apirouter.RegisterRouteWithMiddleware(v1, "/event", "POST", "/publish", chain, h.Publish)
		return nil
	}
}
