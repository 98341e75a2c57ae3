package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fapiaoflow/invoice-normalize-service/internal/fields"
	"github.com/fapiaoflow/invoice-normalize-service/internal/models"
	"github.com/fapiaoflow/invoice-normalize-service/internal/ocr"
)

type stubProvider struct {
	result *ocr.Result
	err    error
}

func (s *stubProvider) Recognize(ctx context.Context, document []byte, filename, typeHint string) (*ocr.Result, error) {
	return s.result, s.err
}

func newTestHandler() *Handler {
	return NewHandler(&models.Config{}, &stubProvider{})
}

func TestNormalizeEndpoint(t *testing.T) {
	h := newTestHandler()

	body, err := json.Marshal(models.NormalizeRequest{
		InvoiceType: "增值税发票",
		RawFields: map[string]any{
			"InvoiceNum":      "25442000000036649215",
			"InvoiceDate":     "2025年3月5日",
			"TotalAmount":     "100.00",
			"AmountInFiguers": "106.00",
			"TotalTax":        "6.00",
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/normalize", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.RecognizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, "vat_invoice", resp.InvoiceType)
	assert.Equal(t, "25442000000036649215", resp.Fields["invoice_number"])
	assert.Equal(t, "2025年3月5日", resp.Fields["invoice_date"])
	assert.Equal(t, "2025-03-05", resp.Fields["consumption_date"])
	assert.Equal(t, "106.00", resp.Fields["total_amount"])
	assert.Equal(t, "100.00", resp.Fields["amount_without_tax"])
	assert.Contains(t, resp.Fields, "validation")
}

func TestNormalizeEndpointInvalidBody(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/normalize", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNormalizeEndpointEmptyFields(t *testing.T) {
	h := newTestHandler()

	body, _ := json.Marshal(models.NormalizeRequest{InvoiceType: "", RawFields: nil})
	req := httptest.NewRequest(http.MethodPost, "/api/normalize", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.RecognizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, fields.TypeUnknown.String(), resp.InvoiceType)
}

func TestAdapterStatsEndpoint(t *testing.T) {
	h := newTestHandler()
	router := h.SetupRoutes()

	body, _ := json.Marshal(models.NormalizeRequest{
		InvoiceType: "增值税发票",
		RawFields: map[string]any{
			"InvoiceNum":  "123456789",
			"InvoiceDate": "2025-03-05",
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/normalize", bytes.NewReader(body))
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/adapter/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool         `json:"success"`
		Stats   fields.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Greater(t, resp.Stats.ProcessedFields, 0)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/adapter/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/adapter/stats", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Stats.ProcessedFields)
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.SetupRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.False(t, resp.Database.Available)
	assert.False(t, resp.Storage.Available)
}
