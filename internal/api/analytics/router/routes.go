// Package router đăng ký các route thuộc domain analytics: snapshot + live.
package router

import (
	"github.com/gofiber/fiber/v3"

	analyticshdl "port_stream/internal/api/analytics/handler"
	"port_stream/internal/api/middleware"
	apirouter "port_stream/internal/api/router"
	"port_stream/internal/stream"
)

// Register trả về hàm đăng ký route analytics lên v1.
func Register(a *stream.Analytics, rt *stream.Router, reg *stream.ConnectionRegistry) apirouter.RegisterFunc {
	return func(v1 fiber.Router, r *apirouter.Router) error {
		h := analyticshdl.NewAnalyticsHandler(a, rt, reg)

		chain := []fiber.Handler{middleware.AuthMiddleware(), middleware.TenantContextMiddleware()}
		apirouter.RegisterRouteWithMiddleware(v1, "/analytics", "GET", "/snapshot", chain, h.Snapshot)
		apirouter.RegisterRouteWithMiddleware(v1, "/analytics", "GET", "/live", chain, h.Live)
		return nil
	}
}
