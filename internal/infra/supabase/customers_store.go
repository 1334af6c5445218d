package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/chimu-org-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Customers store (implements port.CustomerStore)
// ============================================================

const customersTable = "customers"

func (c *Client) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindByEmail")
	defer span.End()
	span.SetAttributes(attribute.String("customer.email", email))

	body, err := c.doRequest(ctx, http.MethodGet, customersTable+"?"+emailQuery(email)+"&limit=1", nil, "")
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: email}
	}
	out := rows[0].toDomain()
	return &out, nil
}

func (c *Client) FindMany(ctx context.Context, f domain.CustomerFilter) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindMany")
	defer span.End()

	if f.EmailIn != nil && len(f.EmailIn) == 0 {
		return []domain.Customer{}, nil
	}
	body, err := c.doRequest(ctx, http.MethodGet, customersTable+"?"+filterQuery(f).Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(body)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Customer, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	span.SetAttributes(attribute.Int("rows", len(out)))
	return out, nil
}

func (c *Client) Create(ctx context.Context, cust *domain.Customer) error {
	ctx, span := tracer.Start(ctx, "Supabase.Create")
	defer span.End()

	now := time.Now().UTC()
	if cust.CreatedAt.IsZero() {
		cust.CreatedAt = now
	}
	cust.UpdatedAt = now

	_, err := c.doRequest(ctx, http.MethodPost, customersTable, toRow(cust), "return=minimal")
	var se *statusError
	if errors.As(err, &se) && se.Status == http.StatusConflict {
		return &domain.ErrDuplicateKey{Key: cust.Email}
	}
	return err
}

func (c *Client) Save(ctx context.Context, cust *domain.Customer) error {
	ctx, span := tracer.Start(ctx, "Supabase.Save")
	defer span.End()

	cust.UpdatedAt = time.Now().UTC()
	body, err := c.doRequest(ctx, http.MethodPatch, customersTable+"?"+emailQuery(cust.Email), toRow(cust), "return=representation")
	if err != nil {
		return err
	}
	rows, err := decodeRows(body)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &domain.ErrNotFound{Resource: "customer", ID: cust.Email}
	}
	return nil
}

func (c *Client) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteByEmail")
	defer span.End()

	body, err := c.doRequest(ctx, http.MethodDelete, customersTable+"?"+emailQuery(email), nil, "return=representation")
	if err != nil {
		return 0, err
	}
	rows, err := decodeRows(body)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, customersTable+"?select=email&limit=1", nil, "")
	return err
}

func decodeRows(body []byte) ([]customerRow, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var rows []customerRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode customers: %w", err)
	}
	return rows, nil
}
