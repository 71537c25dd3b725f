// Package subscriptionsvc chứa service data access cho domain subscription.
// File: service.subscription.go - giữ tên cấu trúc cũ (service.<entity>.go).
package subscriptionsvc

import (
	"context"
	"fmt"

	basesvc "port_stream/internal/api/base/service"
	"port_stream/internal/api/subscription/models"
	"port_stream/internal/common"
	"port_stream/internal/global"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubscriptionService là service quản lý subscription persist (CRUD).
type SubscriptionService struct {
	*basesvc.BaseServiceMongoImpl[models.StreamSubscription]
}

// NewSubscriptionService tạo mới SubscriptionService
func NewSubscriptionService() (*SubscriptionService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.StreamSubscriptions)
	if !exist {
		return nil, fmt.Errorf("failed to get stream_subscriptions collection: %v", common.ErrNotFound)
	}

	return &SubscriptionService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.StreamSubscription](collection),
	}, nil
}

// FindRoutable trả về mọi subscription cần nạp vào router (active + paused)
func (s *SubscriptionService) FindRoutable(ctx context.Context) ([]models.StreamSubscription, error) {
	filter := bson.M{"status": bson.M{"$in": []string{models.StatusActive, models.StatusPaused}}}
	return s.Find(ctx, filter, nil)
}

// MarkExpired đánh dấu expired mọi subscription có expiresAt đã qua, trả về số bản ghi đổi
func (s *SubscriptionService) MarkExpired(ctx context.Context, nowMs int64) (int64, error) {
	filter := bson.M{
		"status":    bson.M{"$in": []string{models.StatusActive, models.StatusPaused}},
		"expiresAt": bson.M{"$gt": 0, "$lte": nowMs},
	}
	update := bson.M{"$set": bson.M{"status": models.StatusExpired, "updatedAt": nowMs}}
	return s.UpdateMany(ctx, filter, update, nil)
}

// FlushMetrics ghi số liệu tích lũy của một subscription vào bản persist.
// Ghi thẳng vào collection, không qua base service để không phát data change
// event — router sẽ nạp lại subscription oan mỗi lần flush.
func (s *SubscriptionService) FlushMetrics(ctx context.Context, id primitive.ObjectID, m models.SubscriptionMetrics) error {
	_, err := s.Collection().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"metrics": m}})
	if err != nil {
		return common.ConvertMongoError(err)
	}
	return nil
}

// SetStatus đổi trạng thái một subscription theo id
func (s *SubscriptionService) SetStatus(ctx context.Context, id primitive.ObjectID, status string, nowMs int64) error {
	_, err := s.UpdateById(ctx, id, bson.M{"$set": bson.M{"status": status, "updatedAt": nowMs}})
	return err
}
