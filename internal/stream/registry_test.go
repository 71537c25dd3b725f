package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryJoinLeaveBroadcast(t *testing.T) {
	r := NewConnectionRegistry()
	c1 := r.Register("conn-1", "tenant-a", "user-1", "operations", 8)
	c2 := r.Register("conn-2", "tenant-a", "user-2", "operations", 8)

	assert.True(t, r.Join("conn-1", "room:berth-b3"))
	assert.True(t, r.Join("conn-2", "room:berth-b3"))
	assert.False(t, r.Join("conn-missing", "room:berth-b3"))
	assert.Equal(t, 2, r.RoomSize("room:berth-b3"))

	delivered, dropped := r.Broadcast("room:berth-b3", []byte(`{"hello":1}`))
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 0, dropped)

	// Cả hai connection nhận được payload trên send channel
	for _, c := range []*Connection{c1, c2} {
		select {
		case msg := <-c.Send():
			assert.JSONEq(t, `{"hello":1}`, string(msg))
		default:
			t.Fatal("connection không nhận được broadcast")
		}
	}

	r.Leave("conn-1", "room:berth-b3")
	assert.Equal(t, 1, r.RoomSize("room:berth-b3"))
	assert.Empty(t, c1.Rooms())
}

func TestRegistrySlowConsumerDropsNotBlocks(t *testing.T) {
	r := NewConnectionRegistry()
	r.Register("conn-slow", "tenant-a", "", "operations", 2)
	r.Join("conn-slow", "room:yard")

	// Buffer 2: hai message đầu vào, message thứ ba bị drop thay vì block
	for i := 0; i < 2; i++ {
		d, dr := r.Broadcast("room:yard", []byte(`{}`))
		assert.Equal(t, 1, d)
		assert.Equal(t, 0, dr)
	}
	d, dr := r.Broadcast("room:yard", []byte(`{}`))
	assert.Equal(t, 0, d)
	assert.Equal(t, 1, dr)
}

func TestRegistryDisconnectCleansUp(t *testing.T) {
	r := NewConnectionRegistry()
	var cascaded []string
	r.OnDisconnect(func(connID string) { cascaded = append(cascaded, connID) })

	c := r.Register("conn-1", "tenant-a", "", "equipment", 8)
	r.Join("conn-1", "room:a")
	r.Join("conn-1", "room:b")

	r.Disconnect("conn-1")

	// Callback chạy ĐỒNG BỘ trước khi Disconnect trả về
	assert.Equal(t, []string{"conn-1"}, cascaded)
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 0, r.RoomSize("room:a"))
	assert.Equal(t, 0, r.RoomSize("room:b"))

	// send channel đã đóng
	_, open := <-c.Send()
	assert.False(t, open)

	// Disconnect lần hai là no-op
	r.Disconnect("conn-1")
	assert.Equal(t, []string{"conn-1"}, cascaded)
}

func TestRegistryPushAfterDisconnectReturnsFalse(t *testing.T) {
	r := NewConnectionRegistry()
	c := r.Register("conn-1", "tenant-a", "", "operations", 8)
	r.Disconnect("conn-1")

	// Connection đã đóng: push trả về false, không ghi vào channel đã đóng
	assert.False(t, c.push([]byte(`{}`)))
}

func TestRegistryConcurrentSendAndDisconnect(t *testing.T) {
	// Gửi dồn dập trong lúc connection đóng: không được panic vì ghi
	// vào channel đã đóng, push sau khi đóng chỉ trả về false
	for i := 0; i < 50; i++ {
		r := NewConnectionRegistry()
		c := r.Register("conn-1", "tenant-a", "", "operations", 1)
		r.Join("conn-1", "room:ops")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.push([]byte(`{}`))
			}
		}()
		go func() {
			defer wg.Done()
			r.Disconnect("conn-1")
		}()
		wg.Wait()
	}
}

func TestRegistrySendToAndActivity(t *testing.T) {
	r := NewConnectionRegistry()
	c := r.Register("conn-1", "tenant-a", "", "notifications", 8)

	require.True(t, r.SendTo("conn-1", []byte(`{"n":1}`)))
	assert.False(t, r.SendTo("conn-missing", nil))

	msg := <-c.Send()
	assert.JSONEq(t, `{"n":1}`, string(msg))

	at := time.Now().Add(time.Minute)
	c.Touch(at)
	assert.Equal(t, at, c.LastActivity())

	c.SetLatency(42)
	assert.Equal(t, int64(42), c.LatencyMs())
}
