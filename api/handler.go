package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/fapiaoflow/invoice-normalize-service/internal/auth"
	"github.com/fapiaoflow/invoice-normalize-service/internal/db"
	"github.com/fapiaoflow/invoice-normalize-service/internal/fields"
	"github.com/fapiaoflow/invoice-normalize-service/internal/models"
	"github.com/fapiaoflow/invoice-normalize-service/internal/ocr"
	"github.com/fapiaoflow/invoice-normalize-service/internal/services"
	"github.com/fapiaoflow/invoice-normalize-service/internal/storage"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.0.0"
)

// Handler handles HTTP requests for invoice recognition and normalization
type Handler struct {
	config    *models.Config
	provider  ocr.Provider
	validator *services.AmountValidator

	// The adapter keeps mutable counters and is not safe for concurrent
	// use; all access goes through mu.
	mu      sync.Mutex
	adapter *fields.Adapter
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config, provider ocr.Provider) *Handler {
	return &Handler{
		config:    config,
		provider:  provider,
		adapter:   fields.NewAdapter(slog.Default()),
		validator: services.NewAmountValidator(),
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Main endpoints
	router.HandleFunc("/api/recognize", h.Recognize).Methods("POST")
	router.HandleFunc("/api/normalize", h.Normalize).Methods("POST")

	// Invoice CRUD
	router.HandleFunc("/api/invoices", h.ListInvoices).Methods("GET")
	router.HandleFunc("/api/invoice/{id}", h.GetInvoice).Methods("GET")
	router.HandleFunc("/api/invoice/{id}", h.DeleteInvoice).Methods("DELETE")

	// Adapter statistics
	router.HandleFunc("/api/adapter/stats", h.AdapterStats).Methods("GET")
	router.HandleFunc("/api/adapter/stats", h.ResetAdapterStats).Methods("DELETE")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Memory    MemoryStats   `json:"memory"`
	Database  ServiceStatus `json:"database"`
	Storage   ServiceStatus `json:"storage"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Database: h.checkDatabase(),
		Storage:  h.checkStorage(),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase() ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}
	return ServiceStatus{
		Available: true,
		Version:   "PostgreSQL",
	}
}

// checkStorage verifies MinIO connection
func (h *Handler) checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}
	return ServiceStatus{
		Available: true,
		Version:   "MinIO S3",
	}
}

// Recognize handles document upload, OCR recognition and field normalization
func (h *Handler) Recognize(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	start := time.Now()

	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "file too large or invalid form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "no file provided (use 'file' field)")
		return
	}
	defer file.Close()

	document, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	typeHint := r.FormValue("invoiceType")

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	filename := fmt.Sprintf("%s_%s%s",
		time.Now().Format("20060102_150405"),
		uuid.New().String()[:8],
		storage.GetFileExtension(contentType),
	)

	// Upload to MinIO (if configured)
	var documentURL string
	if storage.Client != nil {
		documentURL, err = storage.UploadDocument(
			ctx,
			claims.UserID,
			filename,
			bytes.NewReader(document),
			int64(len(document)),
			contentType,
		)
		if err != nil {
			// Document storage is optional, recognition proceeds without it
			slog.Warn("failed to upload document", "error", err)
			documentURL = ""
		}
	}

	result, err := h.provider.Recognize(ctx, document, filename, typeHint)
	if err != nil {
		json.NewEncoder(w).Encode(models.RecognizeResponse{
			Success:       false,
			Error:         err.Error(),
			TotalDuration: time.Since(start).Seconds(),
		})
		return
	}

	invoiceType := result.InvoiceType
	if invoiceType == "" {
		invoiceType = typeHint
	}

	h.mu.Lock()
	normalized := h.adapter.AdaptFields(result.Fields, invoiceType)
	h.mu.Unlock()
	normalized["validation"] = h.validator.Validate(fields.ParseInvoiceType(invoiceType), normalized)

	response := models.RecognizeResponse{
		Success:       true,
		Fields:        normalized,
		InvoiceType:   fields.ParseInvoiceType(invoiceType).String(),
		DocumentURL:   documentURL,
		OCRDuration:   result.Duration,
		TotalDuration: time.Since(start).Seconds(),
	}

	if db.Pool != nil {
		userID, err := uuid.Parse(claims.UserID)
		if err == nil {
			inv, err := db.InvoiceFromFields(userID, response.InvoiceType, normalized)
			if err == nil {
				inv.DocumentURL = documentURL
				if err := db.SaveInvoice(ctx, inv); err != nil {
					slog.Warn("failed to save invoice", "error", err)
				} else {
					response.SavedToDB = true
				}
			}
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Normalize runs the field adapter on an already-obtained raw OCR result
func (h *Handler) Normalize(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req models.NormalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.mu.Lock()
	normalized := h.adapter.AdaptFieldMap(req.RawFields, req.InvoiceType)
	h.mu.Unlock()
	normalized["validation"] = h.validator.Validate(fields.ParseInvoiceType(req.InvoiceType), normalized)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.RecognizeResponse{
		Success:     true,
		Fields:      normalized,
		InvoiceType: fields.ParseInvoiceType(req.InvoiceType).String(),
	})
}

// ListInvoices returns invoices for the authenticated user
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	invoices, err := db.ListInvoices(ctx, userID, limit, offset)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list invoices: %v", err))
		return
	}

	// Generate presigned URLs for stored documents
	for i := range invoices {
		if invoices[i].DocumentURL != "" && storage.Client != nil {
			if presignedURL, err := storage.GetPresignedURL(ctx, invoices[i].DocumentURL); err == nil {
				invoices[i].DocumentURL = presignedURL
			}
		}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"invoices": invoices,
		"count":    len(invoices),
	})
}

// GetInvoice returns a single invoice
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	invoiceID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	invoice, err := db.GetInvoice(ctx, userID, invoiceID)
	if err != nil {
		h.sendError(w, http.StatusNotFound, "invoice not found")
		return
	}

	if invoice.DocumentURL != "" && storage.Client != nil {
		if presignedURL, err := storage.GetPresignedURL(ctx, invoice.DocumentURL); err == nil {
			invoice.DocumentURL = presignedURL
		}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"invoice": invoice,
	})
}

// DeleteInvoice removes an invoice and its stored document
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	invoiceID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	if storage.Client != nil {
		if invoice, err := db.GetInvoice(ctx, userID, invoiceID); err == nil && invoice.DocumentURL != "" {
			_ = storage.DeleteDocument(ctx, invoice.DocumentURL)
		}
	}

	if err := db.DeleteInvoice(ctx, userID, invoiceID); err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to delete invoice")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "invoice deleted",
	})
}

// AdapterStats returns the adapter's processing counters
func (h *Handler) AdapterStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.mu.Lock()
	stats := h.adapter.Stats()
	h.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

// ResetAdapterStats zeroes the adapter's processing counters
func (h *Handler) ResetAdapterStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.mu.Lock()
	h.adapter.ResetStats()
	h.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "stats reset",
	})
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
