// Package erpnext is an HTTP client for the ERPNext REST API. It handles
// token authentication, retries with exponential backoff and circuit breaking,
// and exposes the typed calls the promise service needs.
package erpnext

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
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrPermissionDenied marks an HTTP 403 from ERPNext. Callers translate it
// into an access-denied supply outcome instead of failing the calculation.
var ErrPermissionDenied = errors.New("erpnext: permission denied")

const (
	maxAttempts      = 3
	breakerThreshold = 5
	breakerTimeout   = 60 * time.Second
)

type circuitBreaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	open        bool
}

func (cb *circuitBreaker) isOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.open {
		return false
	}
	if time.Since(cb.lastFailure) > breakerTimeout {
		// Half-open: let the next request probe.
		cb.open = false
		cb.failures = 0
		log.Info().Msg("circuit breaker half-open, attempting recovery")
		return false
	}
	return true
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = time.Now()
	if cb.failures >= breakerThreshold {
		if !cb.open {
			log.Warn().Int("failures", cb.failures).Msg("circuit breaker opened")
		}
		cb.open = true
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.open = false
}

// Client talks to one ERPNext site. Safe for concurrent use.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
	breaker    *circuitBreaker
}

func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: fmt.Sprintf("token %s:%s", apiKey, apiSecret),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		breaker: &circuitBreaker{},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	if c.breaker.isOpen() {
		return errors.New("erpnext: circuit breaker is open, service temporarily unavailable")
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("erpnext: encode request: %w", err)
		}
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var lastErr error
	backoff := time.Second
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			log.Warn().Int("attempt", attempt).Str("url", reqURL).Msg("retrying erpnext request")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("erpnext: build request: %w", err)
		}
		req.Header.Set("Authorization", c.authHeader)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Transport errors are retryable.
			c.breaker.recordFailure()
			lastErr = fmt.Errorf("erpnext: request failed: %w", err)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			c.breaker.recordFailure()
			lastErr = fmt.Errorf("erpnext: read response: %w", readErr)
			continue
		}

		if resp.StatusCode == http.StatusForbidden {
			c.breaker.recordSuccess()
			return fmt.Errorf("%w: %s", ErrPermissionDenied, strings.TrimSpace(string(respBody)))
		}
		if resp.StatusCode >= 400 {
			c.breaker.recordFailure()
			return fmt.Errorf("erpnext: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}

		c.breaker.recordSuccess()
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("erpnext: decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

// BinDetails is a stock ledger snapshot for an item in one warehouse.
type BinDetails struct {
	ItemCode     string  `json:"item_code"`
	Warehouse    string  `json:"warehouse"`
	ActualQty    float64 `json:"actual_qty"`
	ReservedQty  float64 `json:"reserved_qty"`
	ProjectedQty float64 `json:"projected_qty"`
}

// GetBinDetails fetches the bin for an item/warehouse pair. A missing bin is
// reported as an all-zero balance, matching ERPNext semantics for items that
// never had stock movements there.
func (c *Client) GetBinDetails(ctx context.Context, itemCode, warehouse string) (BinDetails, error) {
	filters, _ := json.Marshal([][]string{
		{"item_code", "=", itemCode},
		{"warehouse", "=", warehouse},
	})
	fields, _ := json.Marshal([]string{"item_code", "warehouse", "actual_qty", "reserved_qty", "projected_qty"})

	query := url.Values{}
	query.Set("filters", string(filters))
	query.Set("fields", string(fields))

	var resp struct {
		Data []BinDetails `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/resource/Bin", query, nil, &resp); err != nil {
		return BinDetails{}, err
	}
	if len(resp.Data) == 0 {
		return BinDetails{ItemCode: itemCode, Warehouse: warehouse}, nil
	}
	return resp.Data[0], nil
}

// POItem is one pending purchase-order line for an item.
type POItem struct {
	POID         string  `json:"po_id"`
	ItemCode     string  `json:"item_code"`
	Qty          float64 `json:"qty"`
	ReceivedQty  float64 `json:"received_qty"`
	PendingQty   float64 `json:"pending_qty"`
	ScheduleDate string  `json:"schedule_date"`
	Warehouse    string  `json:"warehouse"`
}

type poListEntry struct {
	Name         string       `json:"name"`
	ScheduleDate string       `json:"schedule_date"`
	Items        []poItemLine `json:"items"`
}

type poItemLine struct {
	ItemCode     string  `json:"item_code"`
	Qty          float64 `json:"qty"`
	ReceivedQty  float64 `json:"received_qty"`
	ScheduleDate string  `json:"schedule_date"`
	Warehouse    string  `json:"warehouse"`
}

// GetIncomingPurchaseOrders lists submitted, not-yet-received purchase order
// lines for an item, ordered by schedule date.
func (c *Client) GetIncomingPurchaseOrders(ctx context.Context, itemCode string) ([]POItem, error) {
	filters, _ := json.Marshal([][]interface{}{
		{"docstatus", "=", 1},
		{"status", "in", []string{"To Receive and Bill", "To Receive"}},
	})
	fields, _ := json.Marshal([]string{"name", "schedule_date", "supplier", "status"})

	query := url.Values{}
	query.Set("filters", string(filters))
	query.Set("fields", string(fields))
	query.Set("order_by", "schedule_date asc")
	query.Set("limit_page_length", "100")

	var listResp struct {
		Data []poListEntry `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/resource/Purchase Order", query, nil, &listResp); err != nil {
		return nil, err
	}

	var result []POItem
	for _, po := range listResp.Data {
		items := po.Items
		if len(items) == 0 {
			// List endpoints omit child tables; fetch the full document.
			var docResp struct {
				Data poListEntry `json:"data"`
			}
			path := "/api/resource/Purchase Order/" + url.PathEscape(po.Name)
			if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &docResp); err != nil {
				return nil, err
			}
			items = docResp.Data.Items
		}

		for _, line := range items {
			if line.ItemCode != itemCode || line.Qty <= line.ReceivedQty {
				continue
			}
			schedule := line.ScheduleDate
			if schedule == "" {
				schedule = po.ScheduleDate
			}
			result = append(result, POItem{
				POID:         po.Name,
				ItemCode:     line.ItemCode,
				Qty:          line.Qty,
				ReceivedQty:  line.ReceivedQty,
				PendingQty:   line.Qty - line.ReceivedQty,
				ScheduleDate: schedule,
				Warehouse:    line.Warehouse,
			})
		}
	}
	return result, nil
}

// GetSalesOrder fetches a Sales Order document by name.
func (c *Client) GetSalesOrder(ctx context.Context, salesOrderID string) (map[string]interface{}, error) {
	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	path := "/api/resource/Sales Order/" + url.PathEscape(salesOrderID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// AddComment attaches a comment to any document.
func (c *Client) AddComment(ctx context.Context, doctype, docname, content string) error {
	body := map[string]string{
		"reference_doctype": doctype,
		"reference_name":    docname,
		"content":           content,
		"comment_type":      "Comment",
	}
	return c.doJSON(ctx, http.MethodPost, "/api/resource/Comment", nil, body, nil)
}

// UpdateSalesOrderField sets a single field on a Sales Order.
func (c *Client) UpdateSalesOrderField(ctx context.Context, salesOrderID, field string, value interface{}) error {
	path := "/api/resource/Sales Order/" + url.PathEscape(salesOrderID)
	return c.doJSON(ctx, http.MethodPut, path, nil, map[string]interface{}{field: value}, nil)
}

// MaterialRequestItem is one line of a Material Request to create.
type MaterialRequestItem struct {
	ItemCode     string  `json:"item_code"`
	Qty          float64 `json:"qty"`
	ScheduleDate string  `json:"schedule_date"`
	Warehouse    string  `json:"warehouse,omitempty"`
}

// CreateMaterialRequest creates a purchase-type Material Request and returns
// the created document name.
func (c *Client) CreateMaterialRequest(ctx context.Context, items []MaterialRequestItem, priority string) (string, error) {
	if len(items) == 0 {
		return "", errors.New("erpnext: material request needs at least one item")
	}

	body := map[string]interface{}{
		"doctype":               "Material Request",
		"material_request_type": "Purchase",
		"transaction_date":      time.Now().Format("2006-01-02"),
		"schedule_date":         items[0].ScheduleDate,
		"priority":              priority,
		"items":                 items,
	}

	var resp struct {
		Data struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/resource/Material Request", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Data.Name, nil
}

// HealthCheck reports whether ERPNext is reachable and the token is valid.
func (c *Client) HealthCheck(ctx context.Context) bool {
	err := c.doJSON(ctx, http.MethodGet, "/api/method/frappe.auth.get_logged_user", nil, nil, nil)
	if err != nil {
		log.Error().Err(err).Msg("erpnext health check failed")
		return false
	}
	return true
}

// BaseURL exposes the configured site URL for building document links.
func (c *Client) BaseURL() string { return c.baseURL }
