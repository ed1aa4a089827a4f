// Package apiclient is a small HTTP client for the simulator's /api/v1 surface,
// used by the CLI and by end-to-end tests.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alovak/paysim/processor/models"
)

type Client struct {
	Base  string
	HTTP  *http.Client
	Token string
}

// New returns a client for the server at base, e.g. "http://localhost:8000".
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/") + "/api/v1", HTTP: hc}
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status=%d code=%s: %s", e.Status, e.Code, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func (c *Client) CreateCustomer(ctx context.Context, req models.CreateCustomer) (*models.Customer, error) {
	out := &models.Customer{}
	return out, c.do(ctx, http.MethodPost, "/clientes", req, out)
}

func (c *Client) CreateCard(ctx context.Context, req models.CreateCard) (*models.Card, error) {
	out := &models.Card{}
	return out, c.do(ctx, http.MethodPost, "/tarjetas", req, out)
}

func (c *Client) CreateCharge(ctx context.Context, req models.CreateCharge) (*models.Charge, error) {
	out := &models.Charge{}
	return out, c.do(ctx, http.MethodPost, "/cobros", req, out)
}

func (c *Client) GetCharge(ctx context.Context, id string) (*models.Charge, error) {
	out := &models.Charge{}
	return out, c.do(ctx, http.MethodGet, "/cobros/"+url.PathEscape(id), nil, out)
}

func (c *Client) CustomerCharges(ctx context.Context, customerID string, page models.Page) ([]models.Charge, error) {
	q := url.Values{}
	if page.Skip > 0 {
		q.Set("skip", fmt.Sprint(page.Skip))
	}
	if page.Limit > 0 {
		q.Set("limit", fmt.Sprint(page.Limit))
	}
	path := "/cobros/cliente/" + url.PathEscape(customerID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []models.Charge
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

func (c *Client) RefundCharge(ctx context.Context, id, reason string) (*models.Charge, error) {
	out := &models.Charge{}
	return out, c.do(ctx, http.MethodPost, "/cobros/"+url.PathEscape(id)+"/reembolso", models.RefundCharge{Reason: reason}, out)
}

func (c *Client) GenerateTestCard(ctx context.Context, req models.TestCardRequest) (*models.TestCard, error) {
	out := &models.TestCard{}
	return out, c.do(ctx, http.MethodPost, "/tarjetas-prueba/generar", req, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Code != "" {
			apiErr.Code, apiErr.Message = payload.Code, payload.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}
