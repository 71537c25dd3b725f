package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"

	analyticsrouter "port_stream/internal/api/analytics/router"
	basehdl "port_stream/internal/api/base/handler"
	eventrouter "port_stream/internal/api/event/router"
	integrationrouter "port_stream/internal/api/integration/router"
	notifrouter "port_stream/internal/api/notification/router"
	queuerouter "port_stream/internal/api/queue/router"
	apirouter "port_stream/internal/api/router"
	subscriptionrouter "port_stream/internal/api/subscription/router"
	"port_stream/internal/common"
	"port_stream/internal/global"
	"port_stream/internal/logger"
	"port_stream/internal/transport"
)

// InitFiberApp khởi tạo ứng dụng Fiber với các middleware cần thiết
// và đăng ký toàn bộ route (control plane + WebSocket + SSE).
func InitFiberApp(rt *StreamRuntime) *fiber.App {
	// Khởi tạo app với cấu hình nâng cao
	app := fiber.New(fiber.Config{
		// =========================================
		// 1. CẤU HÌNH CƠ BẢN
		// =========================================
		AppName:       "Port Stream API", // Tên ứng dụng hiển thị
		ServerHeader:  "Port Stream API", // Header server trong response
		StrictRouting: true,              // /foo và /foo/ là khác nhau
		CaseSensitive: true,              // /Foo và /foo là khác nhau
		UnescapePath:  true,              // Tự động decode URL-encoded paths
		Immutable:     false,             // Tính năng immutable cho ctx

		// =========================================
		// 2. CẤU HÌNH PERFORMANCE
		// =========================================
		BodyLimit:       10 * 1024 * 1024, // Max size của request body (10MB)
		Concurrency:     256 * 1024,       // Số lượng goroutines tối đa
		ReadBufferSize:  4096,             // Buffer size cho request reading
		WriteBufferSize: 4096,             // Buffer size cho response writing

		// =========================================
		// 3. CẤU HÌNH TIMEOUT
		// =========================================
		ReadTimeout:  15 * time.Second,  // Timeout đọc request
		WriteTimeout: 30 * time.Second,  // Timeout ghi response
		IdleTimeout:  120 * time.Second, // Timeout cho idle connections (WS/SSE giữ riêng qua hijack)

		// =========================================
		// 4. CẤU HÌNH ERROR HANDLING
		// =========================================
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"
			errorCode := common.ErrCodeInternalServer.Code

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
				// Map HTTP status code to error code
				switch code {
				case fiber.StatusBadRequest:
					errorCode = common.ErrCodeValidationInput.Code
				case fiber.StatusUnauthorized, fiber.StatusForbidden:
					errorCode = common.ErrCodeAuthToken.Code
				case fiber.StatusNotFound:
					errorCode = common.ErrCodeDatabaseQuery.Code
				case fiber.StatusConflict:
					errorCode = common.ErrCodeDatabaseQuery.Code
				}
			}

			// Kiểm tra xem có phải lỗi TLS handshake không (HTTPS đến HTTP server)
			// TLS handshake bắt đầu với byte 0x16 0x03 0x01
			errMsg := err.Error()
			isTLSHandshake := strings.Contains(errMsg, "unsupported http request method") &&
				(strings.Contains(errMsg, "\\x16\\x03\\x01") ||
					strings.Contains(errMsg, "\x16\x03\x01") ||
					strings.Contains(errMsg, "error when reading request headers"))

			// Nếu là TLS handshake, không log (hành vi bình thường) và hướng dẫn client
			if isTLSHandshake {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"code":    common.ErrCodeValidationInput.Code,
					"message": "Server chỉ hỗ trợ HTTP. Vui lòng sử dụng http:// thay vì https://",
					"status":  "error",
				})
			}

			// Log error cho các lỗi khác
			logger.GetErrorLogger().WithFields(map[string]interface{}{
				"code":      code,
				"errorCode": errorCode,
				"message":   message,
				"path":      c.Path(),
				"method":    c.Method(),
			}).Error("Request error")

			// Return JSON error với format thống nhất
			return c.Status(code).JSON(fiber.Map{
				"code":    errorCode,
				"message": message,
				"status":  "error",
			})
		},
	})

	// =========================================
	// MIDDLEWARE STACK
	// =========================================

	// 1. Request ID Middleware - Tạo ID duy nhất cho mỗi request để trace
	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return fmt.Sprintf("%d", time.Now().UnixNano())
		},
	}))

	// 2. CORS Middleware - PHẢI ĐẶT Ở ĐẦU để xử lý preflight requests trước các middleware khác
	corsOrigins := global.MongoDB_ServerConfig.CORS_Origins
	var allowOrigins []string
	if corsOrigins == "*" {
		// Development mode: cho phép tất cả
		allowOrigins = []string{"*"}
	} else {
		// Production mode: chỉ cho phép các origins cụ thể
		allowOrigins = strings.Split(corsOrigins, ",")
		for i, origin := range allowOrigins {
			allowOrigins[i] = strings.TrimSpace(origin)
		}
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Request-ID",
			"X-Requested-With",
			"X-Tenant-Id", // Header cho tenant context (quan trọng)
		},
		AllowCredentials: global.MongoDB_ServerConfig.CORS_AllowCredentials,
		ExposeHeaders:    []string{"Content-Length", "Content-Range", "X-Request-ID"},
		MaxAge:           24 * 60 * 60, // Thời gian cache preflight requests (24 giờ)
	}))

	// 3. Security Headers Middleware - Thêm các security headers
	app.Use(func(c fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	})

	// 4. Rate Limiting Middleware - Giới hạn số request
	// Chỉ bật rate limit nếu được enable và Max > 0
	if global.MongoDB_ServerConfig.RateLimit_Enabled && global.MongoDB_ServerConfig.RateLimit_Max > 0 {
		rateLimitMax := global.MongoDB_ServerConfig.RateLimit_Max
		rateLimitWindow := time.Duration(global.MongoDB_ServerConfig.RateLimit_Window) * time.Second
		app.Use(limiter.New(limiter.Config{
			Max:        rateLimitMax,
			Expiration: rateLimitWindow,
			KeyGenerator: func(c fiber.Ctx) string {
				return c.IP() // Giới hạn theo IP
			},
			LimitReached: func(c fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"code":    common.ErrCodeBusinessOperation.Code,
					"message": "Quá nhiều yêu cầu, vui lòng thử lại sau",
					"status":  "error",
				})
			},
			SkipFailedRequests:     false,
			SkipSuccessfulRequests: false,
			Next: func(c fiber.Ctx) bool {
				// Bỏ qua rate limit cho health check, stream và OPTIONS requests (preflight)
				return c.Path() == "/health" ||
					c.Path() == "/api/v1/system/health" ||
					strings.HasPrefix(c.Path(), "/ws/") ||
					strings.HasPrefix(c.Path(), "/api/v1/stream/") ||
					c.Method() == "OPTIONS"
			},
		}))
		logger.GetAppLogger().Infof("Rate limiting enabled: %d requests per %d seconds", rateLimitMax, global.MongoDB_ServerConfig.RateLimit_Window)
	} else {
		logger.GetAppLogger().Info("Rate limiting disabled")
	}

	// 5. Recover Middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			// Log panic với stack trace
			logger.GetErrorLogger().WithFields(map[string]interface{}{
				"panic":  e,
				"path":   c.Path(),
				"method": c.Method(),
			}).Error("Panic recovered")

			c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"code":    common.ErrCodeInternalServer.Code,
				"message": "Internal Server Error",
				"status":  "error",
			})
		},
		Next: func(c fiber.Ctx) bool {
			// Bỏ qua health check
			return c.Path() == "/health" ||
				c.Path() == "/api/v1/system/health"
		},
	}))

	// =========================================
	// ROUTES
	// =========================================
	setupRoutes(app, rt)

	return app
}

// setupRoutes đăng ký toàn bộ route: control plane CRUD theo domain,
// endpoint WebSocket theo kênh, SSE stream và health check.
func setupRoutes(app *fiber.App, rt *StreamRuntime) {
	// Control plane /api/v1
	err := apirouter.SetupRoutes(app,
		subscriptionrouter.Register(rt.Router),
		queuerouter.Register(rt.Queues),
		integrationrouter.Register,
		notifrouter.Register(rt.Dispatcher),
		eventrouter.Register(rt.Router),
		analyticsrouter.Register(rt.Analytics, rt.Router, rt.Registry),
	)
	if err != nil {
		logger.GetAppLogger().Fatalf("Failed to setup routes: %v", err)
	}

	// Health check
	systemHandler, err := basehdl.NewSystemHandler()
	if err != nil {
		logger.GetAppLogger().Fatalf("Failed to create system handler: %v", err)
	}
	app.Get("/api/v1/system/health", systemHandler.HandleHealth)

	// Số liệu tổng toàn hệ thống (không lọc tenant) cho vận hành
	app.Get("/api/v1/system/stats", func(c fiber.Ctx) error {
		now := time.Now()
		snap := rt.Analytics.TakeSnapshot(now.Add(-time.Hour), now, c.Query("granularity"), "")
		return c.Status(common.StatusOK).JSON(fiber.Map{
			"code":    common.StatusOK,
			"message": common.MsgSuccess,
			"data": fiber.Map{
				"connections": rt.Registry.Count(),
				"totals":      snap.Totals,
				"latency": fiber.Map{
					"avgRouteMs": snap.AvgRouteLatencyMs,
					"maxRouteMs": snap.MaxRouteLatencyMs,
				},
			},
			"status": "success",
		})
	})

	cfg := global.MongoDB_ServerConfig

	// WebSocket - một endpoint cho mỗi kênh
	ws := transport.NewWSServer(rt.Registry, rt.Router, nil, transport.WSConfig{
		SendBuffer:   cfg.WSSendBuffer,
		WriteTimeout: time.Duration(cfg.WSWriteTimeout) * time.Second,
		PingInterval: time.Duration(cfg.WSPingInterval) * time.Second,
	})
	app.Get("/ws/operations", ws.Handler(transport.ChannelOperations))
	app.Get("/ws/equipment", ws.Handler(transport.ChannelEquipment))
	app.Get("/ws/notifications", ws.Handler(transport.ChannelNotifications))

	// SSE - stream một chiều theo subscription
	sse := transport.NewSSEServer(rt.Registry, rt.Router, cfg.SSERetryMillis)
	app.Get("/api/v1/stream/:subscriptionId", sse.Handler())
}
