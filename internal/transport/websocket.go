package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"port_stream/internal/logger"
	"port_stream/internal/stream"
)

// Defaults cho WSConfig khi field không được set
const (
	wsSendBuffer   = 256
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WSConfig tham số vận hành của server WebSocket. Field zero dùng default.
type WSConfig struct {
	SendBuffer   int           // buffer kênh gửi mỗi connection
	WriteTimeout time.Duration // deadline ghi một frame
	PingInterval time.Duration // chu kỳ ping giữ kết nối
}

func resolveWSConfig(cfg WSConfig) WSConfig {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = wsSendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = wsWriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = wsPingInterval
	}
	return cfg
}

// SnapshotFunc trả về snapshot trạng thái hiện tại của một category
// (vessel, crane, gate...) cho lệnh snapshot của client.
type SnapshotFunc func(ctx context.Context, tenantID, category string) (interface{}, error)

// ChannelRoom room mặc định của một kênh WebSocket trong một tenant —
// mọi connection của kênh đều join room này khi kết nối.
func ChannelRoom(tenantID, channel string) string {
	return "tenant:" + tenantID + ":chan:" + channel
}

// ConnRoom room riêng của một connection — subscription tạo qua WebSocket
// broadcast vào đây để chỉ connection đó nhận.
func ConnRoom(connID string) string {
	return "conn:" + connID
}

// WSServer phục vụ các endpoint WebSocket /ws/operations, /ws/equipment,
// /ws/notifications. Mỗi connection có một write pump riêng đọc từ send
// buffer của registry; lệnh client (subscribe/unsubscribe/ping/snapshot)
// xử lý trên read loop.
type WSServer struct {
	registry *stream.ConnectionRegistry
	router   *stream.Router
	snapshot SnapshotFunc
	cfg      WSConfig
	upgrader websocket.FastHTTPUpgrader
}

// NewWSServer tạo server WebSocket. snapshot có thể nil (lệnh snapshot trả lỗi).
func NewWSServer(registry *stream.ConnectionRegistry, router *stream.Router, snapshot SnapshotFunc, cfg WSConfig) *WSServer {
	return &WSServer{
		registry: registry,
		router:   router,
		snapshot: snapshot,
		cfg:      resolveWSConfig(cfg),
		upgrader: websocket.FastHTTPUpgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin do reverse proxy phía trước kiểm soát
			CheckOrigin: func(ctx *fasthttp.RequestCtx) bool { return true },
		},
	}
}

// Handler trả về fiber handler nâng cấp WebSocket cho một kênh.
// Bearer token được kiểm TRƯỚC khi accept; sai token đóng luôn kết nối.
func (s *WSServer) Handler(channel string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if !checkAuth(c) {
			return c.Status(fiber.StatusUnauthorized).JSON(ServerMessage{
				Type: MsgError, Code: "AUTH_FAILED", Message: "Bearer token không hợp lệ",
			})
		}
		tenant := tenantID(c)
		if tenant == "" {
			return c.Status(fiber.StatusBadRequest).JSON(ServerMessage{
				Type: MsgError, Code: "TENANT_MISSING", Message: "Thiếu định danh tenant",
			})
		}
		clientID := c.Query("clientId")

		err := s.upgrader.Upgrade(c.RequestCtx(), func(ws *websocket.Conn) {
			s.serveConn(ws, tenant, clientID, channel)
		})
		if err != nil {
			logger.GetAppLogger().WithError(err).WithFields(map[string]interface{}{
				"channel":  channel,
				"tenantId": tenant,
			}).Warn("🔌 [WS] Upgrade WebSocket thất bại")
		}
		return err
	}
}

// serveConn vòng đời một connection: đăng ký registry, join room kênh,
// chạy write pump, đọc lệnh cho đến khi client đóng.
func (s *WSServer) serveConn(ws *websocket.Conn, tenant, clientID, channel string) {
	connID := uuid.NewString()
	conn := s.registry.Register(connID, tenant, clientID, channel, s.cfg.SendBuffer)
	defer s.registry.Disconnect(connID)

	s.registry.Join(connID, ChannelRoom(tenant, channel))
	s.registry.Join(connID, ConnRoom(connID))

	done := make(chan struct{})
	go s.writePump(ws, conn, done)
	defer close(done)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		conn.Touch(time.Now())
		s.handleCommand(conn, data)
	}
}

// writePump chuyển payload từ send buffer xuống socket, kèm ping giữ kết nối
func (s *WSServer) writePump(ws *websocket.Conn, conn *stream.Connection, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	defer ws.Close()

	for {
		select {
		case payload, open := <-conn.Send():
			if !open {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(s.cfg.WriteTimeout))
				return
			}
			ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// handleCommand xử lý một lệnh client. Lỗi luôn trả về typed error event —
// không bao giờ đóng kết nối vì một lệnh sai.
func (s *WSServer) handleCommand(conn *stream.Connection, data []byte) {
	var cmd ClientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.pushError(conn.ID, ErrCodeBadCommand, "Lệnh không phải JSON hợp lệ")
		return
	}

	switch cmd.Action {
	case ActionSubscribe:
		s.handleSubscribe(conn, cmd)
	case ActionUnsubscribe:
		s.handleUnsubscribe(conn, cmd)
	case ActionPing:
		s.handlePing(conn, cmd)
	case ActionSnapshot:
		s.handleSnapshot(conn, cmd)
	default:
		s.pushError(conn.ID, ErrCodeBadCommand, fmt.Sprintf("Action không được hỗ trợ: %s", cmd.Action))
	}
}

func (s *WSServer) handleSubscribe(conn *stream.Connection, cmd ClientCommand) {
	if cmd.Topic == "" || hasEmptySegment(cmd.Topic) {
		s.pushError(conn.ID, ErrCodeBadTopic, "Topic pattern rỗng hoặc sai định dạng")
		return
	}

	sub := &stream.Subscription{
		ID:           uuid.NewString(),
		TenantID:     conn.TenantID,
		OwnerID:      conn.ClientID,
		ConnectionID: conn.ID,
		Topic:        cmd.Topic,
		Filters:      cmd.Filters,
		Binding:      stream.BindingRoom,
		Room:         ConnRoom(conn.ID),
	}
	if cmd.Shaping != nil {
		sub.Shaping = *cmd.Shaping
	}
	s.router.AddSubscription(sub)

	s.push(conn.ID, ServerMessage{
		Type:           MsgSubscribed,
		SubscriptionID: sub.ID,
		ServerTS:       time.Now().UnixMilli(),
	})
}

func (s *WSServer) handleUnsubscribe(conn *stream.Connection, cmd ClientCommand) {
	sub, ok := s.router.Get(cmd.SubscriptionID)
	if !ok || sub.ConnectionID != conn.ID {
		s.pushError(conn.ID, ErrCodeNotFound, "Subscription không tồn tại trên connection này")
		return
	}
	s.router.RemoveSubscription(cmd.SubscriptionID)
	s.push(conn.ID, ServerMessage{
		Type:           MsgUnsubscribed,
		SubscriptionID: cmd.SubscriptionID,
		ServerTS:       time.Now().UnixMilli(),
	})
}

// handlePing đo round-trip latency từ ts client gửi lên và lưu vào connection
func (s *WSServer) handlePing(conn *stream.Connection, cmd ClientCommand) {
	now := time.Now().UnixMilli()
	if cmd.TS > 0 && cmd.TS <= now {
		conn.SetLatency(now - cmd.TS)
	}
	s.push(conn.ID, ServerMessage{Type: MsgPong, TS: cmd.TS, ServerTS: now})
}

func (s *WSServer) handleSnapshot(conn *stream.Connection, cmd ClientCommand) {
	if s.snapshot == nil {
		s.pushError(conn.ID, ErrCodeSnapshotFail, "Snapshot không được hỗ trợ")
		return
	}
	data, err := s.snapshot(context.Background(), conn.TenantID, cmd.Category)
	if err != nil {
		s.pushError(conn.ID, ErrCodeSnapshotFail, err.Error())
		return
	}
	s.push(conn.ID, ServerMessage{
		Type:     MsgSnapshot,
		Data:     data,
		ServerTS: time.Now().UnixMilli(),
	})
}

func (s *WSServer) push(connID string, msg ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.registry.SendTo(connID, payload)
}

func (s *WSServer) pushError(connID, code, message string) {
	s.push(connID, ServerMessage{
		Type:     MsgError,
		Code:     code,
		Message:  message,
		ServerTS: time.Now().UnixMilli(),
	})
}

func hasEmptySegment(topic string) bool {
	for _, seg := range strings.Split(topic, ".") {
		if seg == "" {
			return true
		}
	}
	return false
}
