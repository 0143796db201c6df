package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/noehblabla33-a11y/frigo/internal/model"
)

const requestTimeout = 10 * time.Second

// Client wraps the four remote operations of the fridge inventory service.
// It holds no business logic; every failure is surfaced as a typed error
// exactly once, with no automatic retry.
type Client struct {
	mu         sync.RWMutex
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a gateway client. The base URL and API key may be empty
// at construction time; calls made before Reconfigure supplies both fail
// with ErrNotConfigured.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Reconfigure replaces the remote target. Safe to call between requests.
func (c *Client) Reconfigure(baseURL, apiKey string) {
	c.mu.Lock()
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.apiKey = apiKey
	c.mu.Unlock()
}

func (c *Client) target() (string, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.baseURL == "" || c.apiKey == "" {
		return "", "", ErrNotConfigured
	}
	return c.baseURL, c.apiKey, nil
}

// do builds and executes one request, mapping failures onto the gateway
// error taxonomy. A non-nil out is filled from the response body.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	baseURL, apiKey, err := c.target()
	if err != nil {
		return err
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("X-API-Key", apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

// CheckHealth verifies the remote service is reachable and responding.
func (c *Client) CheckHealth(ctx context.Context) (map[string]string, error) {
	var status map[string]string
	if err := c.do(ctx, "health check", http.MethodGet, "/health", nil, &status); err != nil {
		return nil, err
	}
	return status, nil
}

type fetchResponse struct {
	Success       bool                 `json:"success"`
	Items         []model.ShoppingItem `json:"items"`
	Count         int                  `json:"count"`
	TotalEstimate float64              `json:"total_estime"`
}

// FetchList retrieves the current shopping list from the fridge service.
func (c *Client) FetchList(ctx context.Context) (*model.ListSnapshot, error) {
	var fr fetchResponse
	if err := c.do(ctx, "fetch list", http.MethodGet, "/courses", nil, &fr); err != nil {
		return nil, err
	}

	return &model.ListSnapshot{
		Items:         fr.Items,
		TotalEstimate: fr.TotalEstimate,
		SavedAt:       time.Now(),
	}, nil
}

type syncRequest struct {
	Purchases []model.PurchaseEntry `json:"achats"`
}

type syncResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ModifiedCount int64  `json:"items_modifies"`
}

// SubmitPurchases pushes purchased items to the server, which updates its
// inventory and acknowledges how many items it modified.
func (c *Client) SubmitPurchases(ctx context.Context, purchases []model.PurchaseEntry) (*model.SyncAck, error) {
	var sr syncResponse
	if err := c.do(ctx, "submit purchases", http.MethodPost, "/courses/sync", syncRequest{Purchases: purchases}, &sr); err != nil {
		return nil, err
	}

	return &model.SyncAck{ModifiedCount: sr.ModifiedCount, Message: sr.Message}, nil
}

// DeleteItem removes one item from the remote list.
func (c *Client) DeleteItem(ctx context.Context, id int64) (bool, error) {
	var body map[string]any
	if err := c.do(ctx, "delete item", http.MethodDelete, fmt.Sprintf("/courses/%d", id), nil, &body); err != nil {
		return false, err
	}

	if success, ok := body["success"].(bool); ok {
		return success, nil
	}
	return true, nil
}
