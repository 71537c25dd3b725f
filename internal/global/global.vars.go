package global

import (
	"port_stream/config"
	"port_stream/internal/registry"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoDB_Stream_CollectionName chứa tên các collection trong MongoDB
type MongoDB_Stream_CollectionName struct {
	StreamSubscriptions string // Tên collection cho subscription của tầng phân phối sự kiện
	StreamQueues        string // Tên collection cho cấu hình message queue
	Notifications       string // Tên collection cho notification
	StreamIntegrations  string // Tên collection cho cấu hình integration (email, telegram, webhook)
}

// Các biến toàn cục
var Validate *validator.Validate                                                         // Biến để xác thực dữ liệu
var MongoDB_Session *mongo.Client                                                        // Phiên kết nối tới MongoDB
var MongoDB_ServerConfig *config.Configuration                                           // Cấu hình của server
var MongoDB_ColNames MongoDB_Stream_CollectionName = *new(MongoDB_Stream_CollectionName) // Tên các collection

// Các Registry
var RegistryCollections = registry.NewRegistry[*mongo.Collection]() // Registry chứa các collections
var RegistryDatabase = registry.NewRegistry[*mongo.Database]()      // Registry chứa các databases
