// Package router đăng ký các route thuộc domain notification: CRUD + dispatch + mark-read.
package router

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	"port_stream/internal/api/middleware"
	notifhdl "port_stream/internal/api/notification/handler"
	apirouter "port_stream/internal/api/router"
	"port_stream/internal/dispatch"
)

// Register trả về hàm đăng ký route notification lên v1, gắn với dispatcher.
func Register(d *dispatch.Dispatcher) apirouter.RegisterFunc {
	return func(v1 fiber.Router, r *apirouter.Router) error {
		h, err := notifhdl.NewNotificationHandler(d)
		if err != nil {
			return fmt.Errorf("create notification handler: %w", err)
		}
		r.RegisterCRUDRoutes(v1, "/notification", h, apirouter.ReadWriteConfig)

		chain := []fiber.Handler{middleware.AuthMiddleware(), middleware.TenantContextMiddleware()}
		apirouter.RegisterRouteWithMiddleware(v1, "/notification", "POST", "/dispatch", chain, h.Dispatch)
		apirouter.RegisterRouteWithMiddleware(v1, "/notification", "PUT", "/read/:id", chain, h.MarkRead)
		return nil
	}
}
