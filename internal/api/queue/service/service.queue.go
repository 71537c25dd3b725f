// Package queuesvc chứa service data access cho domain queue.
// File: service.queue.go - giữ tên cấu trúc cũ (service.<entity>.go).
package queuesvc

import (
	"context"
	"fmt"

	basesvc "port_stream/internal/api/base/service"
	"port_stream/internal/api/events"
	"port_stream/internal/api/queue/models"
	"port_stream/internal/common"
	"port_stream/internal/global"
	"port_stream/internal/logger"
	"port_stream/internal/stream"

	"go.mongodb.org/mongo-driver/bson"
)

// QueueService là service quản lý cấu hình priority queue (CRUD).
type QueueService struct {
	*basesvc.BaseServiceMongoImpl[models.StreamQueue]
}

// NewQueueService tạo mới QueueService
func NewQueueService() (*QueueService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.StreamQueues)
	if !exist {
		return nil, fmt.Errorf("failed to get stream_queues collection: %v", common.ErrNotFound)
	}

	return &QueueService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.StreamQueue](collection),
	}, nil
}

// FindActive trả về mọi cấu hình queue đang active (để khôi phục QueueManager khi khởi động)
func (s *QueueService) FindActive(ctx context.Context) ([]models.StreamQueue, error) {
	return s.Find(ctx, bson.M{"isActive": true}, nil)
}

// RegisterQueueSync đồng bộ CRUD trên stream_queues vào QueueManager runtime:
// insert/update/upsert thay queue (entry đang chờ của queue cũ bị bỏ),
// delete hoặc isActive=false gỡ queue. Gọi một lần khi init.
func RegisterQueueSync(qm *stream.QueueManager) {
	events.OnDataChanged(func(ctx context.Context, e events.DataChangeEvent) {
		if e.CollectionName != global.MongoDB_ColNames.StreamQueues {
			return
		}

		doc, ok := e.Document.(models.StreamQueue)
		if !ok {
			return
		}

		switch e.Operation {
		case events.OpDelete:
			qm.Remove(doc.TenantID, doc.Topic)
		case events.OpInsert, events.OpUpdate, events.OpUpsert:
			if doc.IsActive {
				qm.Replace(stream.ResolveQueueConfig(doc.ToConfig()))
			} else {
				qm.Remove(doc.TenantID, doc.Topic)
			}
		}

		logger.GetAppLogger().WithFields(map[string]interface{}{
			"tenantId":  doc.TenantID,
			"queue":     doc.Name,
			"topic":     doc.Topic,
			"operation": e.Operation,
		}).Debug("📦 [QUEUE] Đồng bộ cấu hình queue vào QueueManager")
	})
}

// RestoreQueues nạp mọi cấu hình queue active từ DB vào QueueManager khi khởi động
func RestoreQueues(ctx context.Context, s *QueueService, qm *stream.QueueManager) (int, error) {
	configs, err := s.FindActive(ctx)
	if err != nil {
		return 0, err
	}
	for i := range configs {
		qm.Replace(stream.ResolveQueueConfig(configs[i].ToConfig()))
	}
	logger.GetAppLogger().WithFields(map[string]interface{}{
		"count": len(configs),
	}).Info("📦 [QUEUE] Khôi phục cấu hình queue từ MongoDB")
	return len(configs), nil
}
