package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dadyar-backend/config"
	"dadyar-backend/llm"
	"dadyar-backend/repository"
	"dadyar-backend/service"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	dir := flag.String("dir", "./legal_ref", "directory of legal documents to ingest")
	category := flag.String("category", "labor_law", "category assigned to every ingested document")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()

	// Verify table exists
	var tableExists bool
	err = pool.QueryRow(ctx, "SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'legal_chunks')").Scan(&tableExists)
	if err != nil {
		log.Fatalf("Failed to check table existence: %v", err)
	}
	if !tableExists {
		log.Fatal("legal_chunks table does not exist. Please run: go run cmd/create-schema/main.go")
	}

	chunkRepo := repository.NewLegalChunkRepository(pool)
	embedder := llm.NewEmbedder(llm.EmbedderConfig{
		APIKey:    cfg.GeminiAPIKey,
		Model:     cfg.EmbeddingModel,
		RateLimit: cfg.EmbeddingRateLimit,
	})
	ingestService := service.NewIngestService(
		service.IngestWithStore(chunkRepo),
		service.IngestWithEmbedder(embedder),
	)

	files, err := os.ReadDir(*dir)
	if err != nil {
		log.Fatalf("Failed to read directory: %v", err)
	}

	processed, skipped, failed := 0, 0, 0

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		filename := file.Name()
		filePath := filepath.Join(*dir, filename)
		sourceURL := "file://" + filename

		// Skip files that already have chunks in the database
		count, err := chunkRepo.CountBySourceURL(ctx, sourceURL)
		if err != nil {
			log.Printf("Warning: failed to check existing chunks for %s: %v", filename, err)
		} else if count > 0 {
			log.Printf("Skipping %s (already processed: %d chunks)", filename, count)
			skipped++
			continue
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			log.Printf("Error reading %s: %v", filename, err)
			failed++
			continue
		}

		log.Printf("Processing: %s", filename)

		var result *service.IngestResult
		ext := strings.ToLower(filepath.Ext(filename))
		if ext == ".html" || ext == ".htm" {
			result, err = ingestService.IngestHTML(ctx, string(content), sourceURL, *category)
		} else {
			result, err = ingestService.IngestText(ctx, string(content), sourceURL, *category)
		}
		if err != nil {
			log.Printf("Error ingesting %s: %v", filename, err)
			failed++
			continue
		}

		for _, line := range result.Logs {
			log.Printf("  %s", line)
		}
		log.Printf("Finished %s: saved %d of %d chunks", filename, result.Stats.SavedCount, result.Stats.TotalChunks)
		processed++

		// Spread the load on the embedding API between documents
		time.Sleep(2 * time.Second)
	}

	log.Printf("Ingest complete: %d processed, %d skipped, %d failed", processed, skipped, failed)
}
