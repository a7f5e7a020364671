package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/callsight/callsight/src/cache"
	"github.com/callsight/callsight/src/config"
	"github.com/callsight/callsight/src/embedding"
	"github.com/callsight/callsight/src/handlers"
	"github.com/callsight/callsight/src/inference"
	"github.com/callsight/callsight/src/models"
	"github.com/callsight/callsight/src/orchestrator"
	"github.com/callsight/callsight/src/pipeline"
	"github.com/callsight/callsight/src/vectorstore"
)

func init() {

	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	} else {
		log.Println("✅ Loaded .env file")
	}
}

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("✓ Config loaded successfully")

	var inferenceCache models.InferenceCache
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewInferenceCache(&cfg.Redis, &cfg.Cache)
		if err != nil {
			log.Fatalf("Failed to initialize Redis cache: %v", err)
		}
		defer redisCache.Close()
		inferenceCache = redisCache
		log.Printf("✓ Redis inference cache connected (max %d entries, TTL %s)", cfg.Cache.MaxSize, cfg.Cache.TTL)
	} else {
		log.Println("ℹ️  Inference cache disabled")
	}

	localEngine, err := inference.NewOllamaEngine(&cfg.Ollama)
	if err != nil {
		log.Fatalf("Failed to initialize Ollama engine: %v", err)
	}
	log.Printf("✓ Ollama engine ready: %s (hebrew: %s)", cfg.Ollama.Model, cfg.Ollama.HebrewModel)

	var remoteEngine models.LLMBackend
	if cfg.Remote.Enabled {
		remote, err := inference.NewRemoteEngine(&cfg.Remote)
		if err != nil {
			log.Fatalf("Failed to initialize remote engine: %v", err)
		}
		remoteEngine = remote
		log.Printf("✓ Remote engine ready: %s", cfg.Remote.Model)
	} else {
		log.Println("ℹ️  Remote backend disabled, running local-only")
	}

	llmOrchestrator := orchestrator.NewOrchestrator(cfg, localEngine, remoteEngine, inferenceCache)
	log.Printf("✓ Orchestrator initialized (hebrew routing: %v, fallback: %v)",
		cfg.Orchestrator.HebrewRouting, cfg.Orchestrator.FallbackEnabled)

	embeddingBackend := embedding.NewOpenAIBackend(&cfg.Embedding)
	embeddingClient := embedding.NewClient(&cfg.Embedding, embeddingBackend)
	log.Printf("✓ Embedding client ready: %s (dim %d)", cfg.Embedding.Model, cfg.Embedding.Dimension)

	store, err := vectorstore.NewQdrantStore(&cfg.Qdrant, cfg.Embedding.Dimension, embeddingClient)
	if err != nil {
		log.Fatalf("Failed to initialize Qdrant store: %v", err)
	}

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), cfg.Qdrant.Timeout)
	if err := store.EnsureSchema(schemaCtx); err != nil {
		log.Printf("⚠️  Qdrant schema setup failed: %v (vector storage degraded)", err)
	} else {
		log.Printf("✓ Qdrant collection %q ready", cfg.Qdrant.Collection)
	}
	cancelSchema()

	callPipeline := pipeline.NewPipeline(&cfg.Pipeline, embeddingClient, llmOrchestrator, store)
	log.Printf("✓ Processing pipeline initialized (embeddings: %v, llm: %v, vectors: %v)",
		cfg.Pipeline.EnableEmbeddings, cfg.Pipeline.EnableLLM, cfg.Pipeline.EnableVectorStorage)

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	llmHandler := handlers.NewLLMHandler(llmOrchestrator)
	embeddingHandler := handlers.NewEmbeddingHandler(embeddingClient)
	vectorHandler := handlers.NewVectorHandler(store)
	pipelineHandler := handlers.NewPipelineHandler(callPipeline)

	r.GET("/health", handlers.HandleServiceHealth)

	v1 := r.Group("/api/v1")
	{
		llm := v1.Group("/llm")
		{
			llm.POST("/generate", llmHandler.HandleGenerate)
			llm.POST("/summarize", llmHandler.HandleSummarize)
			llm.POST("/batch-summarize", llmHandler.HandleBatchSummarize)
			llm.GET("/stats", llmHandler.HandleStats)
			llm.POST("/cache/clear", llmHandler.HandleCacheClear)
			llm.GET("/health", llmHandler.HandleHealth)
		}

		embeddings := v1.Group("/embeddings")
		{
			embeddings.POST("/generate", embeddingHandler.HandleGenerate)
			embeddings.POST("/batch", embeddingHandler.HandleBatch)
			embeddings.POST("/search", embeddingHandler.HandleSearch)
			embeddings.GET("/stats", embeddingHandler.HandleStats)
		}

		vectors := v1.Group("/vector")
		{
			vectors.POST("/add", vectorHandler.HandleAdd)
			vectors.POST("/batch-add", vectorHandler.HandleBatchAdd)
			vectors.POST("/search", vectorHandler.HandleSearch)
			vectors.GET("/stats", vectorHandler.HandleStats)
		}

		pipe := v1.Group("/pipeline")
		{
			pipe.POST("/process-call", pipelineHandler.HandleProcessCall)
			pipe.POST("/process-batch", pipelineHandler.HandleProcessBatch)
			pipe.POST("/search", pipelineHandler.HandleSearch)
			pipe.GET("/stats", pipelineHandler.HandleStats)
			pipe.GET("/health", pipelineHandler.HandleHealth)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Printf("🚀 CallSight analytics backend running on port %s", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func corsMiddleware() gin.HandlerFunc {
	// Get allowed origins from environment variable
	// Default to localhost for development if not set
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	var allowedOrigins []string

	if allowedOriginsEnv != "" {
		allowedOrigins = strings.Split(allowedOriginsEnv, ",")
		for i := range allowedOrigins {
			allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
		}
	} else {
		allowedOrigins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Allow requests without Origin header (e.g., health checks, curl)
		if origin == "" {
			c.Next()
			return
		}

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				allowed = true
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}

		if !allowed {
			c.AbortWithStatus(403)
			return
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
