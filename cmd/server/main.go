package main

import (
	"context"
	"log"

	"dadyar-backend/config"
	"dadyar-backend/handlers"
	"dadyar-backend/llm"
	"dadyar-backend/repository"
	"dadyar-backend/service"
	"dadyar-backend/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	db, err := initPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to initialize Postgres:", err)
	}
	defer db.Close()

	// Initialize storage
	fileStorage, err := storage.NewStorageFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Println("Storage initialized")

	// Initialize repositories
	chunkRepo := repository.NewLegalChunkRepository(db)
	sourceDocRepo := repository.NewSourceDocumentRepository(db)
	interactionRepo := repository.NewChatInteractionRepository(db)

	// Initialize Gemini clients
	embedder := llm.NewEmbedder(llm.EmbedderConfig{
		APIKey:    cfg.GeminiAPIKey,
		Model:     cfg.EmbeddingModel,
		RateLimit: cfg.EmbeddingRateLimit,
	})

	chatClient, err := llm.NewChatClient(context.Background(), cfg.GeminiAPIKey, cfg.ChatModel)
	if err != nil {
		log.Fatal("Failed to initialize Gemini:", err)
	}
	log.Println("Gemini client initialized")

	// Initialize services
	ingestService := service.NewIngestService(
		service.IngestWithStore(chunkRepo),
		service.IngestWithEmbedder(embedder),
	)
	searchService := service.NewSearchService(embedder, chunkRepo)
	chatService := service.NewChatService(
		service.ChatWithEmbedder(embedder),
		service.ChatWithSearcher(chunkRepo),
		service.ChatWithModel(chatClient),
		service.ChatWithInteractionLog(interactionRepo),
		service.ChatWithRetrievalPolicy(cfg.ChatMatchThreshold, cfg.ChatMatchCount),
	)

	// Initialize handlers
	legalDocsHandler := handlers.NewLegalDocsHandler(
		ingestService,
		searchService,
		chatService,
		chatClient,
		sourceDocRepo,
		fileStorage,
	)

	// Setup Gin router
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		api.POST("/legal-docs/scrape", legalDocsHandler.ScrapeLegalDocs)
		api.POST("/legal-docs/paste", legalDocsHandler.PasteLegalDocs)
		api.POST("/legal-docs/upload", legalDocsHandler.UploadLegalDocs)
		api.POST("/legal-docs/search", legalDocsHandler.SearchLegalDocs)
		api.POST("/legal-docs/chat", legalDocsHandler.ChatLegalDocs)
		api.GET("/legal-docs/sources/:id", legalDocsHandler.DownloadSourceDoc)
	}

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func initPostgres(connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, err
	}

	// Enable pgvector extension
	ctx := context.Background()
	_, err = pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		log.Printf("Warning: Failed to create pgvector extension: %v", err)
		log.Println("This may be normal if extension is already installed or requires superuser privileges")
	} else {
		log.Println("pgvector extension enabled")
	}

	log.Println("Postgres connection established with pgvector support")
	return pool, nil
}
