package middleware

import (
	"crypto/subtle"
	"strings"

	"port_stream/internal/common"
	"port_stream/internal/global"

	"github.com/gofiber/fiber/v3"
)

// AuthMiddleware xác thực request bằng API token tĩnh (Bearer token).
// Việc cấp phát và quản lý token nằm ngoài hệ thống — ở đây chỉ so sánh
// với API_TOKEN trong config. Dùng subtle.ConstantTimeCompare để tránh timing attack.
func AuthMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			HandleErrorResponse(c, common.ErrTokenMissing)
			return nil
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader || token == "" {
			// Không có prefix "Bearer " hoặc token rỗng
			HandleErrorResponse(c, common.ErrTokenInvalid)
			return nil
		}

		expected := global.MongoDB_ServerConfig.APIToken
		if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			HandleErrorResponse(c, common.ErrTokenInvalid)
			return nil
		}

		return c.Next()
	}
}
