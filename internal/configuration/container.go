package configuration

import (
	"context"
	"fmt"
	"log"
	"time"

	"nexchat/internal/db"
	"nexchat/internal/handler"
	"nexchat/internal/hub"
	"nexchat/internal/media"
	"nexchat/internal/model"
	"nexchat/internal/repo"
	"nexchat/internal/service"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Container struct {
	ChatHandler   handler.ChatHandler
	StatusHandler handler.StatusHandler
	Hub           *hub.Hub
	Config        Config
	Logger        *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	con, err := db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
	if err != nil {
		return nil, err
	}

	logger, _ := zap.NewProduction()

	userStore := db.NewRepository[model.User](con, config.ChatDatabase.UsersCollection)
	conversationStore := db.NewRepository[model.Conversation](con, config.ChatDatabase.ConversationsCollection)
	messageStore := db.NewRepository[model.Message](con, config.ChatDatabase.MessagesCollection)
	statusStore := db.NewRepository[model.StatusPost](con, config.ChatDatabase.StatusesCollection)

	userRepo := repo.NewUserRepository(userStore, logger)
	conversationRepo := repo.NewConversationRepository(conversationStore, logger)
	messageRepo := repo.NewMessageRepository(messageStore, logger)
	statusRepo := repo.NewStatusRepository(statusStore, logger)

	presence := hub.NewPresenceRegistry(userRepo)
	typing := hub.NewTypingTracker(presence, hub.DefaultTypingTTL)

	uploader := media.NewHTTPUploader(config.Media.UploadURL, logger)

	chatService := service.NewChatService(conversationRepo, messageRepo, userRepo, uploader, presence, logger)
	statusService := service.NewStatusService(statusRepo, userRepo, uploader, presence, logger)

	chatHandler := handler.NewChatHandler(chatService)
	statusHandler := handler.NewStatusHandler(statusService)

	hub.SetAllowedOrigins(config.Server.AllowedOrigins)
	h := hub.NewHub(presence, typing, chatService)

	return &Container{
		ChatHandler:   chatHandler,
		StatusHandler: statusHandler,
		Hub:           h,
		Config:        *config,
		Logger:        logger,
		mongoClient:   con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
