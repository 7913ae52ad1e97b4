package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"corpempire/internal/bank"
	"corpempire/internal/economy"
)

// APIError is a non-2xx answer from the admin API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

func (c *Client) RunCycle(ctx context.Context) (economy.CycleSummary, error) {
	var out economy.CycleSummary
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/cycle/run", nil, &out, "")
	return out, err
}

func (c *Client) Status(ctx context.Context) (economy.Status, error) {
	var out economy.Status
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/admin/cycle/status", nil, &out, "")
	return out, err
}

func (c *Client) Ledger(ctx context.Context, period economy.Period) (economy.LedgerEntry, error) {
	var out economy.LedgerEntry
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/admin/ledger/"+url.PathEscape(period.String()), nil, &out, "")
	return out, err
}

func (c *Client) QuoteLoan(ctx context.Context, req bank.Request) (bank.Quote, error) {
	var out bank.Quote
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/loans/quote", req, &out, "")
	return out, err
}

func (c *Client) OriginateLoan(ctx context.Context, req bank.Request, idem string) (economy.Loan, error) {
	var out economy.Loan
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/loans", req, &out, idem)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
