package transport

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"

	"port_stream/internal/global"
)

// bearerToken lấy token từ Authorization header hoặc query "token"
// (client WebSocket trên browser không gắn được header tùy biến).
func bearerToken(c fiber.Ctx) string {
	auth := c.Get("Authorization")
	if auth != "" {
		if !strings.HasPrefix(auth, "Bearer ") {
			return ""
		}
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}

// checkAuth xác thực bearer token TRƯỚC khi chấp nhận kết nối realtime
func checkAuth(c fiber.Ctx) bool {
	token := bearerToken(c)
	if token == "" || global.MongoDB_ServerConfig == nil {
		return false
	}
	expected := global.MongoDB_ServerConfig.APIToken
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

// tenantID lấy định danh tenant từ header X-Tenant-Id hoặc query "tenantId"
func tenantID(c fiber.Ctx) string {
	if t := c.Get("X-Tenant-Id"); t != "" {
		return t
	}
	return c.Query("tenantId")
}
