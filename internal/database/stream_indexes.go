// Package database - Index bổ sung cho tầng phân phối sự kiện (compound, sparse) không thể định nghĩa qua model tags.
package database

import (
	"context"
	"strings"

	"port_stream/internal/global"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateStreamIndexes tạo các index bổ sung cho các collection của tầng phân phối sự kiện.
// Gọi sau khi kết nối MongoDB thành công, trước khi server nhận request.
func CreateStreamIndexes(ctx context.Context, db *mongo.Database) error {
	// stream_subscriptions: (tenantId, topicPattern) — lookup subscription theo topic khi khôi phục router
	subscriptions := db.Collection(global.MongoDB_ColNames.StreamSubscriptions)
	if _, err := subscriptions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "tenantId", Value: 1},
			{Key: "topicPattern", Value: 1},
		},
		Options: options.Index().SetName("subscription_tenant_topic"),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// stream_subscriptions: (tenantId, status) — liệt kê subscription đang active của một tenant
	if _, err := subscriptions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "tenantId", Value: 1},
			{Key: "status", Value: 1},
		},
		Options: options.Index().SetName("subscription_tenant_status"),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// stream_queues: (tenantId, name) unique — mỗi tenant không có hai queue trùng tên
	queues := db.Collection(global.MongoDB_ColNames.StreamQueues)
	if _, err := queues.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "tenantId", Value: 1},
			{Key: "name", Value: 1},
		},
		Options: options.Index().SetName("queue_tenant_name").SetUnique(true),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// notifications: (status, expiresAt) — sweep các notification pending đã hết hạn
	notifications := db.Collection(global.MongoDB_ColNames.Notifications)
	if _, err := notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "expiresAt", Value: 1},
		},
		Options: options.Index().SetName("notification_status_expires"),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// notifications: (subscriptionId, createdAt) — lịch sử notification theo subscription
	if _, err := notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "subscriptionId", Value: 1},
			{Key: "createdAt", Value: -1},
		},
		Options: options.Index().SetName("notification_subscription_created").SetSparse(true),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// stream_integrations: (tenantId, type) — lookup integration theo loại channel
	integrations := db.Collection(global.MongoDB_ColNames.StreamIntegrations)
	if _, err := integrations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "tenantId", Value: 1},
			{Key: "type", Value: 1},
		},
		Options: options.Index().SetName("integration_tenant_type"),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	return nil
}

func isIndexExistsError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "already exists") || strings.Contains(s, "duplicate")
}
