package stream

import (
	"sync"
	"time"

	"port_stream/internal/logger"
)

// Connection một kết nối realtime (websocket hoặc SSE) đã đăng ký.
// send là buffered channel — writer pump của transport đọc ra và ghi xuống socket.
type Connection struct {
	ID           string
	TenantID     string
	ClientID     string // định danh client tự khai (user, thiết bị...)
	Channel      string // kênh transport: operations, equipment, notifications, sse
	send         chan []byte
	mu           sync.Mutex
	rooms        map[string]bool
	lastActivity time.Time
	latencyMs    int64
	closed       bool
}

// Send trả về channel để writer pump của transport đọc
func (c *Connection) Send() <-chan []byte {
	return c.send
}

// Rooms snapshot danh sách room của connection
func (c *Connection) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	return out
}

// Touch cập nhật thời điểm hoạt động gần nhất (mỗi message nhận được)
func (c *Connection) Touch(now time.Time) {
	c.mu.Lock()
	c.lastActivity = now
	c.mu.Unlock()
}

// SetLatency lưu round-trip latency đo từ ping/pong
func (c *Connection) SetLatency(ms int64) {
	c.mu.Lock()
	c.latencyMs = ms
	c.mu.Unlock()
}

// LatencyMs round-trip latency gần nhất
func (c *Connection) LatencyMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latencyMs
}

// LastActivity thời điểm hoạt động gần nhất
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// push đưa payload vào send buffer. Buffer đầy ⇒ DROP (không block
// goroutine phát — client chậm tự chịu mất message), trả về false.
func (c *Connection) push(payload []byte) bool {
	// Giữ lock qua cả select: Disconnect đóng c.send cũng dưới c.mu,
	// nên send không bao giờ chạy trên channel đã đóng. Select có default
	// không block nên giữ lock ở đây không làm nghẽn các goroutine khác.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// ConnectionRegistry quản lý connection và room membership.
// Room là nhóm giao message: broadcast tới room đẩy payload vào send buffer
// của từng connection trong room.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	rooms map[string]map[string]*Connection

	// onDisconnect được gọi ĐỒNG BỘ trong Disconnect, sau khi connection
	// đã rời registry — router dùng để hủy các subscription thuộc connection.
	onDisconnect func(connID string)
}

// NewConnectionRegistry tạo registry rỗng
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: map[string]*Connection{},
		rooms: map[string]map[string]*Connection{},
	}
}

// OnDisconnect đăng ký callback dọn dẹp khi connection đóng. Gọi khi init.
func (r *ConnectionRegistry) OnDisconnect(fn func(connID string)) {
	r.onDisconnect = fn
}

// Register thêm connection mới với send buffer kích thước bufferSize
func (r *ConnectionRegistry) Register(id, tenantID, clientID, channel string, bufferSize int) *Connection {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	c := &Connection{
		ID:           id,
		TenantID:     tenantID,
		ClientID:     clientID,
		Channel:      channel,
		send:         make(chan []byte, bufferSize),
		rooms:        map[string]bool{},
		lastActivity: time.Now(),
	}

	r.mu.Lock()
	r.conns[id] = c
	r.mu.Unlock()

	logger.GetAppLogger().WithFields(map[string]interface{}{
		"connectionId": id,
		"tenantId":     tenantID,
		"channel":      channel,
	}).Info("🔌 [REGISTRY] Connection đăng ký")
	return c
}

// Get tra connection theo ID
func (r *ConnectionRegistry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Join đưa connection vào room. Connection không tồn tại ⇒ no-op trả false.
func (r *ConnectionRegistry) Join(connID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return false
	}
	if r.rooms[room] == nil {
		r.rooms[room] = map[string]*Connection{}
	}
	r.rooms[room][connID] = c

	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
	return true
}

// Leave gỡ connection khỏi room; room rỗng bị xóa
func (r *ConnectionRegistry) Leave(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, room)
}

func (r *ConnectionRegistry) leaveLocked(connID, room string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	c, in := members[connID]
	if !in {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

// Broadcast đẩy payload tới mọi connection trong room.
// Trả về (delivered, dropped): dropped là số connection có send buffer đầy.
func (r *ConnectionRegistry) Broadcast(room string, payload []byte) (int, int) {
	r.mu.RLock()
	members := make([]*Connection, 0, len(r.rooms[room]))
	for _, c := range r.rooms[room] {
		members = append(members, c)
	}
	r.mu.RUnlock()

	delivered, dropped := 0, 0
	for _, c := range members {
		if c.push(payload) {
			delivered++
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		logger.GetAppLogger().WithFields(map[string]interface{}{
			"room":      room,
			"delivered": delivered,
			"dropped":   dropped,
		}).Warn("🔌 [REGISTRY] Một số connection chậm, message bị drop")
	}
	return delivered, dropped
}

// SendTo đẩy payload tới một connection cụ thể
func (r *ConnectionRegistry) SendTo(connID string, payload []byte) bool {
	r.mu.RLock()
	c, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return c.push(payload)
}

// Disconnect gỡ connection khỏi mọi room, đóng send channel rồi gọi
// callback dọn dẹp ĐỒNG BỘ — khi Disconnect trả về, mọi subscription
// thuộc connection đã bị hủy xong.
func (r *ConnectionRegistry) Disconnect(connID string) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)
	c.mu.Lock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()
	for _, room := range rooms {
		r.leaveLocked(connID, room)
	}
	r.mu.Unlock()

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()

	if r.onDisconnect != nil {
		r.onDisconnect(connID)
	}

	logger.GetAppLogger().WithFields(map[string]interface{}{
		"connectionId": connID,
		"tenantId":     c.TenantID,
	}).Info("🔌 [REGISTRY] Connection đóng, đã dọn dẹp room và subscription")
}

// RoomSize số connection trong room
func (r *ConnectionRegistry) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Count tổng connection đang mở
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
