package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"dadyar-backend/llm"
	"dadyar-backend/models"
	"dadyar-backend/service"
	"dadyar-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Ingester runs the ingestion pipeline for one source.
type Ingester interface {
	ScrapeURL(ctx context.Context, sourceURL string) (string, error)
	IngestHTML(ctx context.Context, html, sourceURL, category string) (*service.IngestResult, error)
	IngestText(ctx context.Context, text, sourceURL, category string) (*service.IngestResult, error)
}

// Searcher answers similarity search requests.
type Searcher interface {
	Search(ctx context.Context, req service.SearchRequest) ([]models.SimilarityMatch, error)
}

// Chatter answers chat queries over the legal corpus.
type Chatter interface {
	Ask(ctx context.Context, query string) (*models.ChatAnswer, error)
}

// TextExtractor extracts plain text from an uploaded document.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
}

// SourceDocumentStore records uploaded files.
type SourceDocumentStore interface {
	Create(ctx context.Context, doc *models.SourceDocument) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SourceDocument, error)
}

// LegalDocsHandler handles HTTP requests for the legal document pipeline
type LegalDocsHandler struct {
	ingester         Ingester
	searcher         Searcher
	chatter          Chatter
	extractor        TextExtractor
	sourceDocs       SourceDocumentStore
	storage          storage.Storage
	maxFileSize      int64
	allowedMimeTypes map[string]bool
}

// NewLegalDocsHandler creates a new legal docs handler
func NewLegalDocsHandler(
	ingester Ingester,
	searcher Searcher,
	chatter Chatter,
	extractor TextExtractor,
	sourceDocs SourceDocumentStore,
	fileStorage storage.Storage,
) *LegalDocsHandler {
	return &LegalDocsHandler{
		ingester:    ingester,
		searcher:    searcher,
		chatter:     chatter,
		extractor:   extractor,
		sourceDocs:  sourceDocs,
		storage:     fileStorage,
		maxFileSize: 10 * 1024 * 1024, // 10MB
		allowedMimeTypes: map[string]bool{
			"application/pdf": true,
			"text/plain":      true,
			"text/html":       true,
			"application/msword": true, // .doc
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true, // .docx
		},
	}
}

// ScrapeRequest represents the request body for scrape ingestion
type ScrapeRequest struct {
	SourceURL string `json:"source_url" binding:"required"`
	Category  string `json:"category" binding:"required"`
}

// ScrapeLegalDocs handles POST /api/legal-docs/scrape
func (h *LegalDocsHandler) ScrapeLegalDocs(c *gin.Context) {
	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	html, err := h.ingester.ScrapeURL(c.Request.Context(), req.SourceURL)
	if err != nil {
		respondError(c, http.StatusBadRequest, "FETCH_FAILED", err.Error())
		return
	}

	result, err := h.ingester.IngestHTML(c.Request.Context(), html, req.SourceURL, req.Category)
	if err != nil {
		respondIngestError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"logs":    result.Logs,
		"stats":   result.Stats,
	})
}

// PasteRequest represents the request body for pasted-HTML ingestion
type PasteRequest struct {
	HTMLContent string `json:"html_content" binding:"required"`
	SourceURL   string `json:"source_url"`
	Category    string `json:"category" binding:"required"`
}

// PasteLegalDocs handles POST /api/legal-docs/paste
func (h *LegalDocsHandler) PasteLegalDocs(c *gin.Context) {
	var req PasteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.ingester.IngestHTML(c.Request.Context(), req.HTMLContent, req.SourceURL, req.Category)
	if err != nil {
		respondIngestError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"logs":    result.Logs,
		"stats":   result.Stats,
	})
}

// UploadLegalDocs handles POST /api/legal-docs/upload (multipart)
func (h *LegalDocsHandler) UploadLegalDocs(c *gin.Context) {
	category := c.PostForm("category")
	if category == "" {
		respondError(c, http.StatusBadRequest, "MISSING_CATEGORY", "category is required")
		return
	}
	sourceURL := c.PostForm("source_url")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "File is required")
		return
	}

	if fileHeader.Size > h.maxFileSize {
		respondError(c, http.StatusBadRequest, "FILE_TOO_LARGE",
			fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxFileSize))
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if !h.allowedMimeTypes[mimeType] {
		respondError(c, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE",
			fmt.Sprintf("File type %s is not supported", mimeType))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "FILE_OPEN_ERROR", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "FILE_READ_ERROR", err.Error())
		return
	}

	// Keep the original file around. A storage failure must not block
	// ingestion, it only loses the archived copy.
	doc := &models.SourceDocument{
		ID:       uuid.New(),
		Filename: fileHeader.Filename,
		MimeType: mimeType,
		Size:     fileHeader.Size,
		Category: category,
	}
	storagePath, err := h.storage.Upload(c.Request.Context(), doc.ID, fileHeader.Filename, bytes.NewReader(data))
	if err != nil {
		log.Printf("Warning: failed to archive uploaded file %s: %v", fileHeader.Filename, err)
	} else {
		doc.StoragePath = storagePath
		if err := h.sourceDocs.Create(c.Request.Context(), doc); err != nil {
			log.Printf("Warning: failed to record uploaded file %s: %v", fileHeader.Filename, err)
		}
	}

	text, err := h.extractText(c.Request.Context(), data, mimeType)
	if err != nil {
		respondUpstreamError(c, err, "EXTRACTION_FAILED")
		return
	}

	if sourceURL == "" {
		sourceURL = "upload://" + fileHeader.Filename
	}

	result, err := h.ingester.IngestText(c.Request.Context(), text, sourceURL, category)
	if err != nil {
		respondIngestError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"logs":    result.Logs,
		"stats":   result.Stats,
	})
}

// extractText pulls plain text from the uploaded bytes, delegating anything
// that is not already text to the extraction model.
func (h *LegalDocsHandler) extractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	switch mimeType {
	case "text/plain":
		return string(data), nil
	case "text/html":
		// Normalization happens inside the ingest pipeline for HTML, but
		// uploads go through IngestText, so extract here.
		return h.extractor.ExtractText(ctx, data, mimeType)
	default:
		return h.extractor.ExtractText(ctx, data, mimeType)
	}
}

// DownloadSourceDoc handles GET /api/legal-docs/sources/:id and streams the
// archived original file back to the caller.
func (h *LegalDocsHandler) DownloadSourceDoc(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid document ID")
		return
	}

	doc, err := h.sourceDocs.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Source document not found")
		return
	}

	reader, err := h.storage.Download(c.Request.Context(), doc.StoragePath)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DOWNLOAD_FAILED", err.Error())
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Header("Content-Type", doc.MimeType)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		log.Printf("Warning: failed to stream source document %s: %v", id, err)
	}
}

// SearchRequest represents the request body for similarity search
type SearchRequest struct {
	Query          string   `json:"query" binding:"required"`
	Category       string   `json:"category"`
	MatchCount     int      `json:"match_count"`
	MatchThreshold *float64 `json:"match_threshold"`
}

// SearchLegalDocs handles POST /api/legal-docs/search
func (h *LegalDocsHandler) SearchLegalDocs(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	results, err := h.searcher.Search(c.Request.Context(), service.SearchRequest{
		Query:          req.Query,
		Category:       req.Category,
		MatchCount:     req.MatchCount,
		MatchThreshold: req.MatchThreshold,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidThreshold) {
			respondError(c, http.StatusBadRequest, "INVALID_THRESHOLD", err.Error())
			return
		}
		respondUpstreamError(c, err, "SEARCH_FAILED")
		return
	}

	if results == nil {
		results = []models.SimilarityMatch{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"results":  results,
		"query":    req.Query,
		"category": req.Category,
	})
}

// ChatRequest represents the request body for the chat endpoint
type ChatRequest struct {
	Query string `json:"query" binding:"required"`
}

// ChatLegalDocs handles POST /api/legal-docs/chat
func (h *LegalDocsHandler) ChatLegalDocs(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	answer, err := h.chatter.Ask(c.Request.Context(), req.Query)
	if err != nil {
		respondUpstreamError(c, err, "CHAT_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"answer":  answer.Answer,
		"sources": answer.Sources,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondIngestError maps pipeline-start failures to terminal responses.
func respondIngestError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInsufficientContent) {
		respondError(c, http.StatusBadRequest, "INSUFFICIENT_CONTENT",
			"Document contains less than the minimum amount of text")
		return
	}
	respondUpstreamError(c, err, "INGEST_FAILED")
}

// respondUpstreamError passes rate-limit and quota statuses through and
// collapses everything else to a generic 500.
func respondUpstreamError(c *gin.Context, err error, code string) {
	switch {
	case errors.Is(err, llm.ErrRateLimited) || errors.Is(err, llm.ErrChatRateLimited):
		respondError(c, http.StatusTooManyRequests, "RATE_LIMITED",
			"Upstream API rate limit exceeded, try again later")
	case errors.Is(err, llm.ErrQuotaExhausted) || errors.Is(err, llm.ErrChatQuotaExhausted):
		respondError(c, http.StatusPaymentRequired, "QUOTA_EXHAUSTED",
			"Upstream API quota exhausted")
	default:
		respondError(c, http.StatusInternalServerError, code, err.Error())
	}
}
