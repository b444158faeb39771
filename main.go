package main

import (
	"context"
	"log"
	"strings"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	api "mailpilot-backend/cmd/api"
	acctdomain "mailpilot-backend/internal/account/domain"
	acctRepo "mailpilot-backend/internal/account/repository"
	alertdomain "mailpilot-backend/internal/alert/domain"
	alertRepo "mailpilot-backend/internal/alert/repository"
	msgdomain "mailpilot-backend/internal/message/domain"
	msgRepo "mailpilot-backend/internal/message/repository"
	"mailpilot-backend/internal/notification/dispatcher"
	notifdomain "mailpilot-backend/internal/notification/domain"
	notifRepo "mailpilot-backend/internal/notification/repository"
	"mailpilot-backend/internal/realtime"
	ruledomain "mailpilot-backend/internal/rule/domain"
	ruleRepo "mailpilot-backend/internal/rule/repository"
	"mailpilot-backend/internal/sync/scheduler"
	syncUsecase "mailpilot-backend/internal/sync/usecase"
	webhookDelivery "mailpilot-backend/internal/webhook/delivery"
	"mailpilot-backend/internal/worker"
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/crypto"
	"mailpilot-backend/pkg/database"
	"mailpilot-backend/pkg/gmail"
	"mailpilot-backend/pkg/push"
	"mailpilot-backend/pkg/queue"
	"mailpilot-backend/pkg/slack"
)

func main() {
	// Load configuration
	cfg := config.Load()
	ctx := context.Background()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&acctdomain.Account{},
		&msgdomain.ProcessedMessage{},
		&ruledomain.Rule{},
		&alertdomain.Alert{},
		&notifdomain.DeviceToken{},
		&notifdomain.ChatConfig{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize crypto box for tokens and webhook URLs
	box, err := crypto.NewBox(cfg.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize encryption:", err)
	}

	// Initialize repositories (dependency injection)
	accountRepository := acctRepo.NewAccountRepository(db)
	processedRepository := msgRepo.NewProcessedMessageRepository(db)
	ruleRepository := ruleRepo.NewRuleRepository(db)
	alertRepository := alertRepo.NewAlertRepository(db)
	deviceTokenRepository := notifRepo.NewDeviceTokenRepository(db)
	chatConfigRepository := notifRepo.NewChatConfigRepository(db)

	// Initialize AMQP client and pipeline topology
	queueClient, err := queue.NewClient(cfg.AMQPURL)
	if err != nil {
		log.Fatal("Failed to connect to AMQP broker:", err)
	}
	defer queueClient.Close()

	if err := queue.SetupTopology(queueClient); err != nil {
		log.Fatal("Failed to set up queue topology:", err)
	}
	publisher := queue.NewPublisher(queueClient)

	// Initialize Gmail service
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)

	// Initialize realtime hub and Pub/Sub broadcast
	hub := realtime.NewHub()
	var realtimePublisher syncUsecase.RealtimePublisher
	if cfg.GoogleProjectID != "" {
		var opts []option.ClientOption
		if cfg.GoogleCredentials != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentials))
		}
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GoogleProjectID, opts...)
		if err != nil {
			log.Printf("[WARN] Failed to initialize Pub/Sub client (realtime disabled): %v", err)
		} else {
			realtimePublisher = realtime.NewPublisher(pubsubClient, shortTopicName(cfg.RealtimeTopic))

			sub, err := ensureSubscription(ctx, pubsubClient, shortTopicName(cfg.RealtimeTopic))
			if err != nil {
				log.Printf("[WARN] Failed to set up realtime subscription: %v", err)
			} else {
				go func() {
					if err := hub.Run(ctx, sub); err != nil {
						log.Printf("[ERROR] Realtime subscriber stopped: %v", err)
					}
				}()
			}
		}
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, realtime broadcast disabled")
	}

	// Initialize push senders (each platform is optional)
	senders := make(map[string]push.Sender)
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := push.NewFCMClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (Android push disabled): %v", err)
		} else {
			senders[notifdomain.PlatformAndroid] = fcmClient
		}
	}
	if cfg.APNSKeyPath != "" {
		apnsClient, err := push.NewAPNSClient(cfg.APNSKeyPath, cfg.APNSKeyID, cfg.APNSTeamID, cfg.APNSBundleID, cfg.IsProduction())
		if err != nil {
			log.Printf("[WARN] Failed to initialize APNs client (iOS push disabled): %v", err)
		} else {
			senders[notifdomain.PlatformIOS] = apnsClient
		}
	}

	// Initialize chat webhook client and dispatcher
	slackClient := slack.NewClient(cfg.SlackWebhookTimeout)
	notificationDispatcher := dispatcher.NewDispatcher(deviceTokenRepository, chatConfigRepository, senders, slackClient, box)

	// Initialize sync engine
	syncEngine := syncUsecase.NewSyncUsecase(
		accountRepository,
		processedRepository,
		ruleRepository,
		alertRepository,
		gmailService,
		box,
		publisher,
		realtimePublisher,
	)

	// Start queue workers
	jobWorker := worker.NewWorker(queueClient, syncEngine, notificationDispatcher)
	if err := jobWorker.Start(ctx); err != nil {
		log.Fatal("Failed to start workers:", err)
	}

	// Start maintenance scheduler (watch renewal, token cleanup)
	maintenance := scheduler.NewScheduler(
		accountRepository,
		deviceTokenRepository,
		gmailService,
		box,
		publisher,
		cfg.GmailWatchTopic,
		cfg.WatchRenewInterval,
		cfg.DeviceTokenMaxAge,
	)
	go maintenance.Run(ctx)

	// Initialize HTTP handler
	webhookHandler := webhookDelivery.NewWebhookHandler(cfg, publisher)
	handler := api.NewHandler(webhookHandler, hub, cfg)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// shortTopicName strips a full resource name down to the topic id
func shortTopicName(name string) string {
	if parts := strings.Split(name, "/"); len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return name
}

// ensureSubscription creates the broadcast subscription if it does not
// exist yet
func ensureSubscription(ctx context.Context, client *pubsub.Client, topicName string) (*pubsub.Subscription, error) {
	subName := topicName + "-fanout"
	sub := client.Subscription(subName)

	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return sub, nil
	}

	return client.CreateSubscription(ctx, subName, pubsub.SubscriptionConfig{
		Topic: client.Topic(topicName),
	})
}
