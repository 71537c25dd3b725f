// Package integrationsvc chứa service data access cho domain integration.
// File: service.integration.go - giữ tên cấu trúc cũ (service.<entity>.go).
package integrationsvc

import (
	"context"
	"fmt"

	basesvc "port_stream/internal/api/base/service"
	"port_stream/internal/api/integration/models"
	"port_stream/internal/common"
	"port_stream/internal/global"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IntegrationService là service quản lý integration outbound (CRUD + lookup cho dispatcher).
type IntegrationService struct {
	*basesvc.BaseServiceMongoImpl[models.Integration]
}

// NewIntegrationService tạo mới IntegrationService
func NewIntegrationService() (*IntegrationService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.StreamIntegrations)
	if !exist {
		return nil, fmt.Errorf("failed to get stream_integrations collection: %v", common.ErrNotFound)
	}

	return &IntegrationService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.Integration](collection),
	}, nil
}

// ResolveActive tra integration active của tenant theo loại channel.
// Dispatcher gọi mỗi lần giao — bản mới nhất thắng khi tenant có nhiều integration cùng loại.
func (s *IntegrationService) ResolveActive(ctx context.Context, tenantID, channelType string) (*models.Integration, error) {
	filter := bson.M{
		"tenantId": tenantID,
		"type":     channelType,
		"isActive": true,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	integ, err := s.FindOne(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("không có integration %s active cho tenant %s: %w", channelType, tenantID, err)
	}
	return &integ, nil
}
