package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"port_stream/internal/stream"
)

func newTestWS(t *testing.T, snapshot SnapshotFunc) (*WSServer, *stream.Connection) {
	t.Helper()
	registry := stream.NewConnectionRegistry()
	router := stream.NewRouter(2, 0, nil)
	router.Start(context.Background())
	t.Cleanup(router.Stop)

	s := NewWSServer(registry, router, snapshot, WSConfig{})
	conn := registry.Register("conn-test", "tenant-a", "operator-1", ChannelOperations, 16)
	return s, conn
}

func TestResolveWSConfigDefaults(t *testing.T) {
	cfg := resolveWSConfig(WSConfig{})
	assert.Equal(t, wsSendBuffer, cfg.SendBuffer)
	assert.Equal(t, wsWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, wsPingInterval, cfg.PingInterval)

	cfg = resolveWSConfig(WSConfig{SendBuffer: 32, WriteTimeout: 5 * time.Second, PingInterval: 15 * time.Second})
	assert.Equal(t, 32, cfg.SendBuffer)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.PingInterval)
}

func readMsg(t *testing.T, conn *stream.Connection) ServerMessage {
	t.Helper()
	select {
	case payload := <-conn.Send():
		var msg ServerMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("không nhận được message từ server")
		return ServerMessage{}
	}
}

func cmdJSON(t *testing.T, cmd ClientCommand) []byte {
	t.Helper()
	b, err := json.Marshal(cmd)
	require.NoError(t, err)
	return b
}

func TestHandleSubscribeAndUnsubscribe(t *testing.T) {
	s, conn := newTestWS(t, nil)

	s.handleCommand(conn, cmdJSON(t, ClientCommand{
		Action: ActionSubscribe,
		Topic:  "crane.*.changed",
		Filters: []stream.Filter{
			{Field: "zone", Operator: stream.OpEq, Value: "north"},
		},
	}))

	msg := readMsg(t, conn)
	assert.Equal(t, MsgSubscribed, msg.Type)
	require.NotEmpty(t, msg.SubscriptionID)

	sub, ok := s.router.Get(msg.SubscriptionID)
	require.True(t, ok)
	assert.Equal(t, "tenant-a", sub.TenantID)
	assert.Equal(t, "conn-test", sub.ConnectionID)
	assert.Equal(t, ConnRoom("conn-test"), sub.Room)

	s.handleCommand(conn, cmdJSON(t, ClientCommand{
		Action:         ActionUnsubscribe,
		SubscriptionID: msg.SubscriptionID,
	}))
	msg = readMsg(t, conn)
	assert.Equal(t, MsgUnsubscribed, msg.Type)

	_, ok = s.router.Get(msg.SubscriptionID)
	assert.False(t, ok)
}

func TestHandleSubscribeBadTopic(t *testing.T) {
	s, conn := newTestWS(t, nil)

	for _, topic := range []string{"", "crane..changed", ".crane"} {
		s.handleCommand(conn, cmdJSON(t, ClientCommand{Action: ActionSubscribe, Topic: topic}))
		msg := readMsg(t, conn)
		assert.Equal(t, MsgError, msg.Type)
		assert.Equal(t, ErrCodeBadTopic, msg.Code)
	}
}

func TestHandleUnsubscribeForeignSubscription(t *testing.T) {
	s, conn := newTestWS(t, nil)

	// Subscription thuộc connection khác không thể bị unsubscribe từ đây
	foreign := &stream.Subscription{
		ID:           "sub-foreign",
		TenantID:     "tenant-a",
		ConnectionID: "conn-khac",
		Topic:        "a.b",
		Binding:      stream.BindingRoom,
		Room:         "room:x",
	}
	s.router.AddSubscription(foreign)

	s.handleCommand(conn, cmdJSON(t, ClientCommand{
		Action:         ActionUnsubscribe,
		SubscriptionID: "sub-foreign",
	}))
	msg := readMsg(t, conn)
	assert.Equal(t, MsgError, msg.Type)
	assert.Equal(t, ErrCodeNotFound, msg.Code)

	_, ok := s.router.Get("sub-foreign")
	assert.True(t, ok, "subscription của connection khác không bị xóa")
}

func TestHandlePingRecordsLatency(t *testing.T) {
	s, conn := newTestWS(t, nil)

	sent := time.Now().Add(-50 * time.Millisecond).UnixMilli()
	s.handleCommand(conn, cmdJSON(t, ClientCommand{Action: ActionPing, TS: sent}))

	msg := readMsg(t, conn)
	assert.Equal(t, MsgPong, msg.Type)
	assert.Equal(t, sent, msg.TS)
	assert.NotZero(t, msg.ServerTS)
	assert.GreaterOrEqual(t, conn.LatencyMs(), int64(50))
}

func TestHandleSnapshot(t *testing.T) {
	s, conn := newTestWS(t, func(ctx context.Context, tenant, category string) (interface{}, error) {
		if category == "vessel" {
			return map[string]interface{}{"vessels": 3, "tenant": tenant}, nil
		}
		return nil, errors.New("category không hỗ trợ")
	})

	s.handleCommand(conn, cmdJSON(t, ClientCommand{Action: ActionSnapshot, Category: "vessel"}))
	msg := readMsg(t, conn)
	assert.Equal(t, MsgSnapshot, msg.Type)
	require.NotNil(t, msg.Data)

	s.handleCommand(conn, cmdJSON(t, ClientCommand{Action: ActionSnapshot, Category: "bogus"}))
	msg = readMsg(t, conn)
	assert.Equal(t, MsgError, msg.Type)
	assert.Equal(t, ErrCodeSnapshotFail, msg.Code)
}

func TestHandleCommandMalformed(t *testing.T) {
	s, conn := newTestWS(t, nil)

	s.handleCommand(conn, []byte("không phải json"))
	msg := readMsg(t, conn)
	assert.Equal(t, MsgError, msg.Type)
	assert.Equal(t, ErrCodeBadCommand, msg.Code)

	s.handleCommand(conn, cmdJSON(t, ClientCommand{Action: "teleport"}))
	msg = readMsg(t, conn)
	assert.Equal(t, ErrCodeBadCommand, msg.Code)
}

func TestSubscribedEventsReachConnectionRoom(t *testing.T) {
	s, conn := newTestWS(t, nil)

	// Emit wiring: broadcast shaped event vào room của subscription
	s.router = stream.NewRouter(2, 0, func(sub *stream.Subscription, shaped []*stream.Event) {
		for _, e := range shaped {
			payload, _ := json.Marshal(ServerMessage{Type: MsgEvent, SubscriptionID: sub.ID, Data: e})
			s.registry.Broadcast(sub.Room, payload)
		}
	})
	s.router.Start(context.Background())
	t.Cleanup(s.router.Stop)
	s.registry.Join(conn.ID, ConnRoom(conn.ID))

	s.handleCommand(conn, cmdJSON(t, ClientCommand{Action: ActionSubscribe, Topic: "gate.truck.arrived"}))
	sub := readMsg(t, conn)
	require.Equal(t, MsgSubscribed, sub.Type)

	e := stream.NewEvent("tenant-a", "gate.truck.arrived", json.RawMessage(`{"gate":"G2"}`))
	n, err := s.router.Publish(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msg := readMsg(t, conn)
	assert.Equal(t, MsgEvent, msg.Type)
	assert.Equal(t, sub.SubscriptionID, msg.SubscriptionID)
}
