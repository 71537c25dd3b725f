// Package router đăng ký các route thuộc domain subscription: CRUD + pause/resume.
package router

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	"port_stream/internal/api/middleware"
	apirouter "port_stream/internal/api/router"
	subscriptionhdl "port_stream/internal/api/subscription/handler"
	"port_stream/internal/stream"
)

// Register trả về hàm đăng ký route subscription lên v1, gắn với router runtime.
func Register(rt *stream.Router) apirouter.RegisterFunc {
	return func(v1 fiber.Router, r *apirouter.Router) error {
		h, err := subscriptionhdl.NewSubscriptionHandler(rt)
		if err != nil {
			return fmt.Errorf("create subscription handler: %w", err)
		}
		r.RegisterCRUDRoutes(v1, "/subscription", h, apirouter.ReadWriteConfig)

		chain := []fiber.Handler{middleware.AuthMiddleware(), middleware.TenantContextMiddleware()}
		apirouter.RegisterRouteWithMiddleware(v1, "/subscription", "PUT", "/pause/:id", chain, h.Pause)
		apirouter.RegisterRouteWithMiddleware(v1, "/subscription", "PUT", "/resume/:id", chain, h.Resume)
		return nil
	}
}
