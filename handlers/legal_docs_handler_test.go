package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dadyar-backend/handlers"
	"dadyar-backend/llm"
	"dadyar-backend/models"
	"dadyar-backend/service"
)

type stubIngester struct {
	scrapeHTML string
	scrapeErr  error
	result     *service.IngestResult
	err        error
	gotHTML    string
	gotText    string
	gotSource  string
	gotCat     string
}

func (s *stubIngester) ScrapeURL(_ context.Context, sourceURL string) (string, error) {
	if s.scrapeErr != nil {
		return "", s.scrapeErr
	}
	return s.scrapeHTML, nil
}

func (s *stubIngester) IngestHTML(_ context.Context, html, sourceURL, category string) (*service.IngestResult, error) {
	s.gotHTML, s.gotSource, s.gotCat = html, sourceURL, category
	return s.result, s.err
}

func (s *stubIngester) IngestText(_ context.Context, text, sourceURL, category string) (*service.IngestResult, error) {
	s.gotText, s.gotSource, s.gotCat = text, sourceURL, category
	return s.result, s.err
}

type stubSearcher struct {
	results []models.SimilarityMatch
	err     error
	got     service.SearchRequest
}

func (s *stubSearcher) Search(_ context.Context, req service.SearchRequest) ([]models.SimilarityMatch, error) {
	s.got = req
	return s.results, s.err
}

type stubChatter struct {
	answer *models.ChatAnswer
	err    error
}

func (s *stubChatter) Ask(_ context.Context, _ string) (*models.ChatAnswer, error) {
	return s.answer, s.err
}

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) ExtractText(_ context.Context, _ []byte, _ string) (string, error) {
	return s.text, s.err
}

type stubDocStore struct {
	created *models.SourceDocument
	doc     *models.SourceDocument
	getErr  error
}

func (s *stubDocStore) Create(_ context.Context, doc *models.SourceDocument) error {
	s.created = doc
	return nil
}

func (s *stubDocStore) GetByID(_ context.Context, _ uuid.UUID) (*models.SourceDocument, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.doc, nil
}

type stubStorage struct {
	uploaded []byte
	path     string
	content  string
}

func (s *stubStorage) Upload(_ context.Context, docID uuid.UUID, filename string, data io.Reader) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.uploaded = b
	if s.path == "" {
		s.path = "sources/" + docID.String()
	}
	return s.path, nil
}

func (s *stubStorage) Download(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.content)), nil
}

type handlerStubs struct {
	ingester  *stubIngester
	searcher  *stubSearcher
	chatter   *stubChatter
	extractor *stubExtractor
	docs      *stubDocStore
	storage   *stubStorage
}

func setupRouter() (*gin.Engine, *handlerStubs) {
	gin.SetMode(gin.TestMode)

	stubs := &handlerStubs{
		ingester: &stubIngester{
			result: &service.IngestResult{
				Logs:  []string{"Split into 2 chunks", "Done: saved 2 of 2 chunks"},
				Stats: service.IngestStats{TotalChunks: 2, SavedCount: 2, ContentLength: 500},
			},
		},
		searcher:  &stubSearcher{},
		chatter:   &stubChatter{answer: &models.ChatAnswer{Answer: "پاسخ", Sources: []models.ChatSource{}}},
		extractor: &stubExtractor{text: strings.Repeat("متن استخراج‌شده از سند. ", 20)},
		docs:      &stubDocStore{},
		storage:   &stubStorage{},
	}

	h := handlers.NewLegalDocsHandler(
		stubs.ingester,
		stubs.searcher,
		stubs.chatter,
		stubs.extractor,
		stubs.docs,
		stubs.storage,
	)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/legal-docs/scrape", h.ScrapeLegalDocs)
	api.POST("/legal-docs/paste", h.PasteLegalDocs)
	api.POST("/legal-docs/upload", h.UploadLegalDocs)
	api.POST("/legal-docs/search", h.SearchLegalDocs)
	api.POST("/legal-docs/chat", h.ChatLegalDocs)
	api.GET("/legal-docs/sources/:id", h.DownloadSourceDoc)
	return r, stubs
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp.Error.Code
}

func TestScrapeLegalDocs_Success(t *testing.T) {
	r, stubs := setupRouter()
	stubs.ingester.scrapeHTML = "<html>قانون</html>"

	w := postJSON(r, "/api/legal-docs/scrape", gin.H{
		"source_url": "https://example.com/law",
		"category":   "labor_law",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>قانون</html>", stubs.ingester.gotHTML)
	assert.Equal(t, "https://example.com/law", stubs.ingester.gotSource)
	assert.Equal(t, "labor_law", stubs.ingester.gotCat)

	var resp struct {
		Success bool                `json:"success"`
		Logs    []string            `json:"logs"`
		Stats   service.IngestStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Stats.SavedCount)
	assert.NotEmpty(t, resp.Logs)
}

func TestScrapeLegalDocs_MissingFields(t *testing.T) {
	r, _ := setupRouter()

	w := postJSON(r, "/api/legal-docs/scrape", gin.H{"source_url": "https://example.com"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))
}

func TestScrapeLegalDocs_FetchFailed(t *testing.T) {
	r, stubs := setupRouter()
	stubs.ingester.scrapeErr = service.ErrFetchFailed

	w := postJSON(r, "/api/legal-docs/scrape", gin.H{
		"source_url": "https://example.com/law",
		"category":   "labor_law",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "FETCH_FAILED", errorCode(t, w))
}

func TestPasteLegalDocs_Success(t *testing.T) {
	r, stubs := setupRouter()

	w := postJSON(r, "/api/legal-docs/paste", gin.H{
		"html_content": "<p>ماده 1 - متن قانون</p>",
		"category":     "social_security",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>ماده 1 - متن قانون</p>", stubs.ingester.gotHTML)
	assert.Equal(t, "social_security", stubs.ingester.gotCat)
}

func TestPasteLegalDocs_InsufficientContent(t *testing.T) {
	r, stubs := setupRouter()
	stubs.ingester.result = nil
	stubs.ingester.err = service.ErrInsufficientContent

	w := postJSON(r, "/api/legal-docs/paste", gin.H{
		"html_content": "<p>کوتاه</p>",
		"category":     "labor_law",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INSUFFICIENT_CONTENT", errorCode(t, w))
}

func multipartUpload(t *testing.T, filename, contentType, category string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("category", category))

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadLegalDocs_PlainText(t *testing.T) {
	r, stubs := setupRouter()

	content := []byte(strings.Repeat("ماده 1 - متن قانون کار. ", 20))
	body, contentType := multipartUpload(t, "law.txt", "text/plain", "labor_law", content)

	req := httptest.NewRequest("POST", "/api/legal-docs/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	// text/plain bypasses the extraction model
	assert.Equal(t, string(content), stubs.ingester.gotText)
	assert.Equal(t, "upload://law.txt", stubs.ingester.gotSource)
	// Original archived and recorded
	assert.Equal(t, content, stubs.storage.uploaded)
	require.NotNil(t, stubs.docs.created)
	assert.Equal(t, "law.txt", stubs.docs.created.Filename)
	assert.Equal(t, stubs.storage.path, stubs.docs.created.StoragePath)
}

func TestUploadLegalDocs_PDFGoesThroughExtractor(t *testing.T) {
	r, stubs := setupRouter()

	body, contentType := multipartUpload(t, "ruling.pdf", "application/pdf", "court_rulings", []byte("%PDF-1.4 fake"))

	req := httptest.NewRequest("POST", "/api/legal-docs/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, stubs.extractor.text, stubs.ingester.gotText)
}

func TestUploadLegalDocs_MissingCategory(t *testing.T) {
	r, _ := setupRouter()

	body, contentType := multipartUpload(t, "law.txt", "text/plain", "", []byte("متن"))

	req := httptest.NewRequest("POST", "/api/legal-docs/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_CATEGORY", errorCode(t, w))
}

func TestUploadLegalDocs_UnsupportedType(t *testing.T) {
	r, _ := setupRouter()

	body, contentType := multipartUpload(t, "law.exe", "application/octet-stream", "labor_law", []byte("MZ"))

	req := httptest.NewRequest("POST", "/api/legal-docs/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNSUPPORTED_FILE_TYPE", errorCode(t, w))
}

func TestSearchLegalDocs_Success(t *testing.T) {
	r, stubs := setupRouter()
	article := "24"
	stubs.searcher.results = []models.SimilarityMatch{
		{Content: "ماده 24 - حق سنوات", Category: "labor_law", ArticleNumber: &article, Similarity: 0.82},
	}

	w := postJSON(r, "/api/legal-docs/search", gin.H{
		"query":       "حق سنوات",
		"category":    "labor_law",
		"match_count": 5,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "حق سنوات", stubs.searcher.got.Query)
	assert.Equal(t, 5, stubs.searcher.got.MatchCount)

	var resp struct {
		Success bool                     `json:"success"`
		Results []models.SimilarityMatch `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 0.82, resp.Results[0].Similarity)
}

func TestSearchLegalDocs_EmptyResultsNotNull(t *testing.T) {
	r, _ := setupRouter()

	w := postJSON(r, "/api/legal-docs/search", gin.H{"query": "نامرتبط"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}

func TestSearchLegalDocs_RateLimited(t *testing.T) {
	r, stubs := setupRouter()
	stubs.searcher.err = llm.ErrRateLimited

	w := postJSON(r, "/api/legal-docs/search", gin.H{"query": "حق سنوات"})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, w))
}

func TestSearchLegalDocs_QuotaExhausted(t *testing.T) {
	r, stubs := setupRouter()
	stubs.searcher.err = llm.ErrQuotaExhausted

	w := postJSON(r, "/api/legal-docs/search", gin.H{"query": "حق سنوات"})

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "QUOTA_EXHAUSTED", errorCode(t, w))
}

func TestSearchLegalDocs_InvalidThreshold(t *testing.T) {
	r, stubs := setupRouter()
	stubs.searcher.err = service.ErrInvalidThreshold

	w := postJSON(r, "/api/legal-docs/search", gin.H{"query": "q", "match_threshold": 1.5})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_THRESHOLD", errorCode(t, w))
}

func TestChatLegalDocs_Success(t *testing.T) {
	r, stubs := setupRouter()
	article := "24"
	stubs.chatter.answer = &models.ChatAnswer{
		Answer: "بر اساس ماده 24 حق سنوات تعلق می‌گیرد.",
		Sources: []models.ChatSource{
			{ArticleNumber: &article, Category: "labor_law", Similarity: 0.82},
		},
	}

	w := postJSON(r, "/api/legal-docs/chat", gin.H{"query": "حق سنوات چیست؟"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool                `json:"success"`
		Answer  string              `json:"answer"`
		Sources []models.ChatSource `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Answer, "ماده 24")
	require.Len(t, resp.Sources, 1)
}

func TestChatLegalDocs_MissingQuery(t *testing.T) {
	r, _ := setupRouter()

	w := postJSON(r, "/api/legal-docs/chat", gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))
}

func TestChatLegalDocs_UpstreamErrors(t *testing.T) {
	r, stubs := setupRouter()

	stubs.chatter.answer = nil
	stubs.chatter.err = llm.ErrChatRateLimited
	w := postJSON(r, "/api/legal-docs/chat", gin.H{"query": "سوال"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	stubs.chatter.err = llm.ErrChatQuotaExhausted
	w = postJSON(r, "/api/legal-docs/chat", gin.H{"query": "سوال"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	stubs.chatter.err = errors.New("boom")
	w = postJSON(r, "/api/legal-docs/chat", gin.H{"query": "سوال"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "CHAT_FAILED", errorCode(t, w))
}

func TestDownloadSourceDoc(t *testing.T) {
	r, stubs := setupRouter()
	id := uuid.New()
	stubs.docs.doc = &models.SourceDocument{
		ID:          id,
		Filename:    "law.pdf",
		MimeType:    "application/pdf",
		StoragePath: "sources/ab/" + id.String(),
	}
	stubs.storage.content = "%PDF-1.4 fake"

	req := httptest.NewRequest("GET", "/api/legal-docs/sources/"+id.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "law.pdf")
	assert.Equal(t, "%PDF-1.4 fake", w.Body.String())
}

func TestDownloadSourceDoc_InvalidID(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest("GET", "/api/legal-docs/sources/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, w))
}

func TestDownloadSourceDoc_NotFound(t *testing.T) {
	r, stubs := setupRouter()
	stubs.docs.getErr = errors.New("no rows")

	req := httptest.NewRequest("GET", "/api/legal-docs/sources/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}
