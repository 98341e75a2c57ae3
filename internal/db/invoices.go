package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Invoice represents a normalized invoice record stored in the database.
// Amount columns are stored as strings to preserve exact decimal values.
type Invoice struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"user_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	InvoiceCode      string          `json:"invoice_code,omitempty"`
	InvoiceType      string          `json:"invoice_type"`
	InvoiceDate      string          `json:"invoice_date,omitempty"`
	ConsumptionDate  string          `json:"consumption_date,omitempty"`
	SellerName       string          `json:"seller_name,omitempty"`
	BuyerName        string          `json:"buyer_name,omitempty"`
	TotalAmount      string          `json:"total_amount,omitempty"`
	TaxAmount        string          `json:"tax_amount,omitempty"`
	AmountWithoutTax string          `json:"amount_without_tax,omitempty"`
	Details          json.RawMessage `json:"details,omitempty"`
	RawFields        json.RawMessage `json:"raw_fields,omitempty"`
	DocumentURL      string          `json:"document_url,omitempty"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// stringField pulls a string value out of a normalized field map,
// tolerating non-string values by ignoring them.
func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return s
}

// InvoiceFromFields builds an Invoice row from a normalized field map.
func InvoiceFromFields(userID uuid.UUID, invoiceType string, fields map[string]any) (*Invoice, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal normalized fields: %w", err)
	}

	inv := &Invoice{
		ID:               uuid.New(),
		UserID:           userID,
		InvoiceNumber:    stringField(fields, "invoice_number"),
		InvoiceCode:      stringField(fields, "invoice_code"),
		InvoiceType:      invoiceType,
		InvoiceDate:      stringField(fields, "invoice_date"),
		ConsumptionDate:  stringField(fields, "consumption_date"),
		SellerName:       stringField(fields, "seller_name"),
		BuyerName:        stringField(fields, "buyer_name"),
		TotalAmount:      stringField(fields, "total_amount"),
		TaxAmount:        stringField(fields, "tax_amount"),
		AmountWithoutTax: stringField(fields, "amount_without_tax"),
		RawFields:        raw,
		Status:           "processed",
	}

	if details, ok := fields["invoice_details"]; ok {
		if data, err := json.Marshal(details); err == nil {
			inv.Details = data
		}
	}

	return inv, nil
}

// SaveInvoice inserts a normalized invoice record
func SaveInvoice(ctx context.Context, inv *Invoice) error {
	if Pool == nil {
		return fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO invoices (
			id, user_id, invoice_number, invoice_code, invoice_type,
			invoice_date, consumption_date, seller_name, buyer_name,
			total_amount, tax_amount, amount_without_tax,
			details, raw_fields, document_url, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		RETURNING created_at, updated_at`

	err := Pool.QueryRow(ctx, query,
		inv.ID, inv.UserID, inv.InvoiceNumber, inv.InvoiceCode, inv.InvoiceType,
		inv.InvoiceDate, inv.ConsumptionDate, inv.SellerName, inv.BuyerName,
		inv.TotalAmount, inv.TaxAmount, inv.AmountWithoutTax,
		inv.Details, inv.RawFields, inv.DocumentURL, inv.Status,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	slog.Info("invoice saved", "id", inv.ID, "invoice_number", inv.InvoiceNumber, "type", inv.InvoiceType)
	return nil
}

// GetInvoice retrieves a single invoice by ID, scoped to the owning user
func GetInvoice(ctx context.Context, userID, id uuid.UUID) (*Invoice, error) {
	if Pool == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, user_id, invoice_number, invoice_code, invoice_type,
		       invoice_date, consumption_date, seller_name, buyer_name,
		       total_amount, tax_amount, amount_without_tax,
		       details, raw_fields, document_url, status, created_at, updated_at
		FROM invoices
		WHERE id = $1 AND user_id = $2`

	inv := &Invoice{}
	err := Pool.QueryRow(ctx, query, id, userID).Scan(
		&inv.ID, &inv.UserID, &inv.InvoiceNumber, &inv.InvoiceCode, &inv.InvoiceType,
		&inv.InvoiceDate, &inv.ConsumptionDate, &inv.SellerName, &inv.BuyerName,
		&inv.TotalAmount, &inv.TaxAmount, &inv.AmountWithoutTax,
		&inv.Details, &inv.RawFields, &inv.DocumentURL, &inv.Status,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// ListInvoices retrieves invoices for a user, newest first
func ListInvoices(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Invoice, error) {
	if Pool == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, user_id, invoice_number, invoice_code, invoice_type,
		       invoice_date, consumption_date, seller_name, buyer_name,
		       total_amount, tax_amount, amount_without_tax,
		       details, raw_fields, document_url, status, created_at, updated_at
		FROM invoices
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv := &Invoice{}
		err := rows.Scan(
			&inv.ID, &inv.UserID, &inv.InvoiceNumber, &inv.InvoiceCode, &inv.InvoiceType,
			&inv.InvoiceDate, &inv.ConsumptionDate, &inv.SellerName, &inv.BuyerName,
			&inv.TotalAmount, &inv.TaxAmount, &inv.AmountWithoutTax,
			&inv.Details, &inv.RawFields, &inv.DocumentURL, &inv.Status,
			&inv.CreatedAt, &inv.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice row: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice rows: %w", err)
	}
	return invoices, nil
}

// DeleteInvoice removes an invoice, scoped to the owning user
func DeleteInvoice(ctx context.Context, userID, id uuid.UUID) error {
	if Pool == nil {
		return fmt.Errorf("database not initialized")
	}

	tag, err := Pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice not found")
	}
	return nil
}
