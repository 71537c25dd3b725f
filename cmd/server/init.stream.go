package main

import (
	"context"
	"time"

	integrationsvc "port_stream/internal/api/integration/service"
	notifsvc "port_stream/internal/api/notification/service"
	queuesvc "port_stream/internal/api/queue/service"
	subscriptionsvc "port_stream/internal/api/subscription/service"
	"port_stream/internal/dispatch"
	"port_stream/internal/global"
	"port_stream/internal/logger"
	"port_stream/internal/stream"
	"port_stream/internal/transport"
	"port_stream/internal/worker"
)

// StreamRuntime gom các thành phần runtime của tầng phân phối sự kiện.
// Được dựng một lần ở main, truyền vào các domain router khi đăng ký route.
type StreamRuntime struct {
	Registry   *stream.ConnectionRegistry
	Queues     *stream.QueueManager
	Analytics  *stream.Analytics
	Router     *stream.Router
	Dispatcher *dispatch.Dispatcher

	Subscriptions *subscriptionsvc.SubscriptionService
	QueueConfigs  *queuesvc.QueueService
	Notifications *notifsvc.NotificationService
	Integrations  *integrationsvc.IntegrationService
}

// InitStreamRuntime dựng và khởi động toàn bộ runtime: router shard, registry,
// queue manager, dispatcher, đồng bộ cấu hình từ MongoDB và các background worker.
func InitStreamRuntime(ctx context.Context) (*StreamRuntime, error) {
	log := logger.GetAppLogger()
	cfg := global.MongoDB_ServerConfig

	registry := stream.NewConnectionRegistry()
	queues := stream.NewQueueManager()
	queues.SetDefaults(cfg.QueueDefaultMaxSize, int64(cfg.QueueDefaultTTL)*1000)
	analytics := stream.NewAnalytics()

	router := stream.NewRouter(cfg.RouterShards, cfg.RouterShardQueue,
		transport.NewEmitter(registry, queues, analytics))
	router.SetStats(analytics)
	router.Start(ctx)

	// Connection đóng thì mọi subscription của nó cũng gỡ khỏi router
	registry.OnDisconnect(func(connID string) {
		router.CancelByConnection(connID)
	})

	subscriptions, err := subscriptionsvc.NewSubscriptionService()
	if err != nil {
		return nil, err
	}
	queueConfigs, err := queuesvc.NewQueueService()
	if err != nil {
		return nil, err
	}
	notifications, err := notifsvc.NewNotificationService()
	if err != nil {
		return nil, err
	}
	integrations, err := integrationsvc.NewIntegrationService()
	if err != nil {
		return nil, err
	}

	dispatcher := dispatch.NewDispatcher(dispatch.DefaultSenders(integrations), notifications, analytics)
	dispatcher.SetChannelTimeout(time.Duration(cfg.DispatchTimeout) * time.Second)

	// CRUD qua control plane tự lan truyền vào runtime qua data change event
	subscriptionsvc.RegisterRouterSync(router)
	queuesvc.RegisterQueueSync(queues)

	// Khôi phục trạng thái persist trước khi nhận traffic
	restored, err := subscriptionsvc.RestoreSubscriptions(ctx, subscriptions, router)
	if err != nil {
		return nil, err
	}
	restoredQueues, err := queuesvc.RestoreQueues(ctx, queueConfigs, queues)
	if err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"subscriptions": restored,
		"queues":        restoredQueues,
	}).Info("Stream runtime restored from MongoDB")

	// Background workers
	consumer := worker.NewQueueConsumerWorker(queues, dispatcher,
		time.Duration(cfg.DispatchBatchWait)*time.Second, 50)
	go consumer.Start(ctx)

	expiry := worker.NewExpiryWorker(notifications, subscriptions, router, analytics, 30*time.Second)
	go expiry.Start(ctx)

	return &StreamRuntime{
		Registry:      registry,
		Queues:        queues,
		Analytics:     analytics,
		Router:        router,
		Dispatcher:    dispatcher,
		Subscriptions: subscriptions,
		QueueConfigs:  queueConfigs,
		Notifications: notifications,
		Integrations:  integrations,
	}, nil
}
