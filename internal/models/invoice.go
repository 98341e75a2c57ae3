package models

// RecognizeResponse is the output of document recognition: the canonical
// normalized record plus processing metadata. Fields is the adapter's output
// verbatim: canonical snake_case keys, values preserving the vendor's JSON
// types.
type RecognizeResponse struct {
	Success bool           `json:"success"`
	Fields  map[string]any `json:"fields,omitempty"`
	Error   string         `json:"error,omitempty"`

	InvoiceType string `json:"invoiceType,omitempty"`
	DocumentURL string `json:"documentUrl,omitempty"`
	SavedToDB   bool   `json:"savedToDb"`

	// Processing metadata
	OCRDuration   float64 `json:"ocrDuration,omitempty"` // vendor call time in seconds
	TotalDuration float64 `json:"totalDuration"`         // total processing time
}

// NormalizeRequest is the input of the direct normalization endpoint: an
// already-obtained raw OCR field object plus the vendor's invoice type
// string (free text, may be empty).
type NormalizeRequest struct {
	InvoiceType string         `json:"invoiceType"`
	RawFields   map[string]any `json:"rawFields"`
}

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// OCR vendor config
	OCR OCRConfig `yaml:"ocr"`
}

// OCRConfig represents the cloud OCR vendor configuration. The vendor API is
// a black box returning undocumented raw JSON; only its endpoint and
// credentials live here.
type OCRConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AppID     string `yaml:"app_id"`
	SecretKey string `yaml:"secret_key"`
	TimeoutS  int    `yaml:"timeout_seconds"`
}
