package middleware

import (
	"strings"

	"port_stream/internal/common"

	"github.com/gofiber/fiber/v3"
)

// TenantContextMiddleware đọc tenant ID từ header X-Tenant-Id và lưu vào context.
// Mọi dữ liệu (subscription, queue, notification, integration) đều được cô lập theo tenant:
// các handler CRUD tự động thêm filter tenantId từ giá trị này.
func TenantContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		tenantID := strings.TrimSpace(c.Get("X-Tenant-Id"))
		if tenantID == "" {
			HandleErrorResponse(c, common.NewError(
				common.ErrCodeValidationInput,
				"Thiếu header X-Tenant-Id",
				common.StatusBadRequest,
				nil,
			))
			return nil
		}

		if !isValidTenantID(tenantID) {
			HandleErrorResponse(c, common.NewError(
				common.ErrCodeValidationInput,
				"Tenant ID không hợp lệ: chỉ cho phép chữ, số, '_' và '-' (tối đa 64 ký tự)",
				common.StatusBadRequest,
				nil,
			))
			return nil
		}

		c.Locals("tenant_id", tenantID)
		return c.Next()
	}
}

// isValidTenantID kiểm tra tenant ID chỉ gồm chữ, số, '_' và '-'
func isValidTenantID(id string) bool {
	if len(id) > 64 {
		return false
	}
	for _, r := range id {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum && r != '_' && r != '-' {
			return false
		}
	}
	return true
}
