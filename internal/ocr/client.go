package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/fapiaoflow/invoice-normalize-service/internal/fields"
	"github.com/fapiaoflow/invoice-normalize-service/internal/models"
)

// Result is one recognized document as returned by the vendor: its free-text
// invoice type string, the raw field object in document order, and the
// untouched response body for persistence/debugging.
type Result struct {
	InvoiceType string
	Fields      []fields.Field
	Raw         json.RawMessage
	Duration    float64 // vendor call time in seconds
}

// Provider is the OCR vendor boundary. The vendor is an external cloud
// service; everything behind this interface is out of the normalization
// pipeline's hands.
type Provider interface {
	Recognize(ctx context.Context, document []byte, filename string, typeHint string) (*Result, error)
}

// Client calls the cloud OCR vendor over HTTP. The vendor's response format
// is undocumented and varies per invoice type; the client only peels off the
// envelope and hands the field object to the adapter untouched.
type Client struct {
	cfg        models.OCRConfig
	httpClient *http.Client
}

func NewClient(cfg models.OCRConfig) *Client {
	timeout := time.Duration(cfg.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// vendorEnvelope is the stable outer shape of the vendor response. Only the
// envelope is typed; words_result is decoded order-preserving because its
// keys are the whole point of the normalization pipeline.
type vendorEnvelope struct {
	ErrorCode   int             `json:"error_code"`
	ErrorMsg    string          `json:"error_msg"`
	InvoiceType string          `json:"invoice_type"`
	WordsResult json.RawMessage `json:"words_result"`
}

// Recognize uploads a scanned document and returns the raw recognized
// fields. typeHint is passed through to the vendor when the caller already
// knows the invoice category; empty means auto-detect.
func (c *Client) Recognize(ctx context.Context, document []byte, filename string, typeHint string) (*Result, error) {
	start := time.Now()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build vendor request: %w", err)
	}
	if _, err := part.Write(document); err != nil {
		return nil, fmt.Errorf("failed to build vendor request: %w", err)
	}
	_ = writer.WriteField("app_id", c.cfg.AppID)
	if typeHint != "" {
		_ = writer.WriteField("invoice_type", typeHint)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build vendor request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build vendor request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vendor OCR call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vendor OCR returned status %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	return ParseResponse(respBody, time.Since(start).Seconds())
}

// ParseResponse peels the vendor envelope off a raw response body.
func ParseResponse(body []byte, duration float64) (*Result, error) {
	var env vendorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse vendor response: %w", err)
	}
	if env.ErrorCode != 0 {
		return nil, fmt.Errorf("vendor OCR error %d: %s", env.ErrorCode, env.ErrorMsg)
	}
	if len(env.WordsResult) == 0 {
		return &Result{InvoiceType: env.InvoiceType, Duration: duration, Raw: body}, nil
	}

	pairs, err := fields.DecodeFields(env.WordsResult)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vendor fields: %w", err)
	}
	return &Result{
		InvoiceType: env.InvoiceType,
		Fields:      pairs,
		Raw:         body,
		Duration:    duration,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
