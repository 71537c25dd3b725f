package main

import (
	"context"

	"port_stream/config"
	intmodels "port_stream/internal/api/integration/models"
	notifmodels "port_stream/internal/api/notification/models"
	queuemodels "port_stream/internal/api/queue/models"
	submodels "port_stream/internal/api/subscription/models"
	"port_stream/internal/database"
	"port_stream/internal/global"

	"github.com/sirupsen/logrus"
)

// Hàm khởi tạo các biến toàn cục
func InitGlobal() {
	initColNames()         // Khởi tạo tên các collection trong database
	initValidator()        // Khởi tạo validator
	initConfig()           // Khởi tạo cấu hình server
	initDatabase_MongoDB() // Khởi tạo kết nối database
}

// Hàm khởi tạo tên các collection trong database
func initColNames() {
	global.MongoDB_ColNames.StreamSubscriptions = "stream_subscriptions"
	global.MongoDB_ColNames.StreamQueues = "stream_queues"
	global.MongoDB_ColNames.Notifications = "notifications"
	global.MongoDB_ColNames.StreamIntegrations = "stream_integrations"

	logrus.Info("Initialized collection names") // Ghi log thông báo đã khởi tạo tên các collection
}

// Hàm khởi tạo validator
func initValidator() {
	global.InitValidator()
	logrus.Info("Initialized validator") // Ghi log thông báo đã khởi tạo validator
}

// Hàm khởi tạo cấu hình server
func initConfig() {
	global.MongoDB_ServerConfig = config.NewConfig()
	if global.MongoDB_ServerConfig == nil {
		logrus.Fatalf("Failed to initialize config: config is nil") // Ghi log lỗi nếu khởi tạo cấu hình thất bại
	}
	logrus.Info("Initialized server config") // Ghi log thông báo đã khởi tạo cấu hình server
}

// Hàm khởi tạo kết nối database
func initDatabase_MongoDB() {
	var err error
	global.MongoDB_Session, err = database.GetInstance(global.MongoDB_ServerConfig)
	if err != nil {
		logrus.Fatalf("Failed to get database instance: %v", err) // Ghi log lỗi nếu kết nối database thất bại
	}
	logrus.Info("Connected to MongoDB")

	// Khởi tạo database và các collection nếu chưa có
	if err := database.EnsureDatabaseAndCollections(global.MongoDB_Session); err != nil {
		logrus.Fatalf("Failed to ensure database and collections: %v", err)
	}
	logrus.Info("Ensured database and collections")

	// Index theo tag trên model
	dbName := global.MongoDB_ServerConfig.MongoDB_DBName
	db := global.MongoDB_Session.Database(dbName)
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.StreamSubscriptions), submodels.StreamSubscription{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.StreamQueues), queuemodels.StreamQueue{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.Notifications), notifmodels.Notification{})
	database.CreateIndexes(context.TODO(), db.Collection(global.MongoDB_ColNames.StreamIntegrations), intmodels.Integration{})

	// Index compound không biểu diễn được qua tag
	if err := database.CreateStreamIndexes(context.TODO(), db); err != nil {
		logrus.Fatalf("Failed to create stream indexes: %v", err)
	}
	logrus.Info("Created indexes")
}
