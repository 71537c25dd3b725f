// Package router đăng ký các route thuộc domain integration: CRUD.
package router

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	integrationhdl "port_stream/internal/api/integration/handler"
	apirouter "port_stream/internal/api/router"
)

// Register đăng ký tất cả route integration lên v1.
func Register(v1 fiber.Router, r *apirouter.Router) error {
	h, err := integrationhdl.NewIntegrationHandler()
	if err != nil {
		return fmt.Errorf("create integration handler: %w", err)
	}
	r.RegisterCRUDRoutes(v1, "/integration", h, apirouter.ReadWriteConfig)
	return nil
}
