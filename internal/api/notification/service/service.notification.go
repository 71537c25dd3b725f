// Package notifsvc chứa service data access cho domain notification.
// File: service.notification.go - giữ tên cấu trúc cũ (service.<entity>.go).
package notifsvc

import (
	"context"
	"fmt"

	basesvc "port_stream/internal/api/base/service"
	notifmodels "port_stream/internal/api/notification/models"
	"port_stream/internal/common"
	"port_stream/internal/global"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationService là service quản lý notification (CRUD + persist cho dispatcher).
type NotificationService struct {
	*basesvc.BaseServiceMongoImpl[notifmodels.Notification]
}

// NewNotificationService tạo mới NotificationService
func NewNotificationService() (*NotificationService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.Notifications)
	if !exist {
		return nil, fmt.Errorf("failed to get notifications collection: %v", common.ErrNotFound)
	}

	return &NotificationService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[notifmodels.Notification](collection),
	}, nil
}

// Save persist trạng thái notification (thỏa dispatch.NotificationSaver).
// Replace + upsert thẳng trên collection: dispatcher gọi nhiều lần trong một
// vòng giao (pending → từng attempt → trạng thái cuối), không phát data change event.
func (s *NotificationService) Save(ctx context.Context, n *notifmodels.Notification) error {
	_, err := s.Collection().ReplaceOne(
		ctx,
		bson.M{"_id": n.ID},
		n,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return common.ConvertMongoError(err)
	}
	return nil
}

// SweepExpired đánh dấu expired mọi notification pending đã quá hạn, trả về số bản ghi đổi
func (s *NotificationService) SweepExpired(ctx context.Context, nowMs int64) (int64, error) {
	filter := bson.M{
		"status":    notifmodels.StatusPending,
		"expiresAt": bson.M{"$gt": 0, "$lte": nowMs},
	}
	update := bson.M{"$set": bson.M{"status": notifmodels.StatusExpired, "updatedAt": nowMs}}
	return s.UpdateMany(ctx, filter, update, nil)
}
