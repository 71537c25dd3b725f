// Package integrationhdl chứa HTTP handler cho domain integration.
// File: handler.integration.go - giữ tên cấu trúc cũ (handler.<entity>.go).
package integrationhdl

import (
	"fmt"

	basehdl "port_stream/internal/api/base/handler"
	integrationdto "port_stream/internal/api/integration/dto"
	"port_stream/internal/api/integration/models"
	integrationsvc "port_stream/internal/api/integration/service"
)

// IntegrationHandler xử lý các request cấu hình integration outbound
type IntegrationHandler struct {
	basehdl.BaseHandler[models.Integration, integrationdto.IntegrationCreateInput, integrationdto.IntegrationUpdateInput]
}

// NewIntegrationHandler tạo mới IntegrationHandler
func NewIntegrationHandler() (*IntegrationHandler, error) {
	service, err := integrationsvc.NewIntegrationService()
	if err != nil {
		return nil, fmt.Errorf("failed to create integration service: %v", err)
	}

	baseHandler := basehdl.NewBaseHandler[models.Integration, integrationdto.IntegrationCreateInput, integrationdto.IntegrationUpdateInput](service)
	return &IntegrationHandler{
		BaseHandler: *baseHandler,
	}, nil
}
