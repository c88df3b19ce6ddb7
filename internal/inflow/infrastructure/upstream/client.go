package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmehra2102/inflow-order-sync/internal/inflow/domain"
)

const (
	DefaultBaseURL    = "https://cloudapi.inflowinventory.com"
	DefaultAPIVersion = "2024-03-12"
	DefaultTimeout    = 30 * time.Second

	includeParam = "pickLines.product,shipLines,packLines.product,lines"
	maxErrorBody = 512
)

type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the inFlow sales-orders endpoint. It keeps no state between
// calls beyond the HTTP connection pool.
type Client struct {
	log        *slog.Logger
	httpClient *http.Client
	baseURL    string
	companyID  string
	apiVersion string
	timeout    time.Duration
	tokens     TokenProvider
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithAPIVersion(v string) Option {
	return func(c *Client) { c.apiVersion = v }
}

// WithTimeout bounds every request, including reading the body. It applies to
// a copy of the HTTP client, never to the one passed to WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func NewClient(log *slog.Logger, companyID string, tokens TokenProvider, opts ...Option) *Client {
	c := &Client{
		log:        log,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
		companyID:  companyID,
		apiVersion: DefaultAPIVersion,
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

func (c *Client) FetchPage(ctx context.Context, q domain.PageQuery) ([]domain.OrderRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if c.companyID == "" {
		return nil, &domain.ConfigurationError{Reason: "inFlow company id is not set"}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &domain.ConfigurationError{Reason: "retrieve inFlow API key", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.salesOrdersURL(q), nil)
	if err != nil {
		return nil, &domain.UpstreamError{Op: "list sales orders", ErrCode: domain.CodeInvalidInput, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json;version="+c.apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Op: "list sales orders", ErrCode: transportCode(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.UpstreamError{Op: "list sales orders", StatusCode: resp.StatusCode, ErrCode: transportCode(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.UpstreamError{
			Op:         "list sales orders",
			StatusCode: resp.StatusCode,
			ErrCode:    statusCode(resp.StatusCode),
			Err:        fmt.Errorf("unexpected response: %s", truncate(body)),
		}
	}

	records, err := decodeOrders(body)
	if err != nil {
		return nil, &domain.UpstreamError{Op: "list sales orders", StatusCode: resp.StatusCode, ErrCode: domain.CodeMalformed, Err: err}
	}

	c.log.DebugContext(ctx, "inflow page fetched",
		"skip", q.Skip, "count", q.Count, "status_filter", q.InventoryStatus, "records", len(records))
	return records, nil
}

func (c *Client) GetByOrderNumber(ctx context.Context, orderNumber string) (domain.OrderRecord, error) {
	if orderNumber == "" {
		return domain.OrderRecord{}, fmt.Errorf("%w: order number is required", domain.ErrInvalidQuery)
	}
	q := domain.NewPageQuery(1, 0)
	q.OrderNumber = orderNumber

	records, err := c.FetchPage(ctx, q)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	if len(records) == 0 {
		return domain.OrderRecord{}, domain.ErrOrderNotFound
	}
	return records[0], nil
}

func (c *Client) salesOrdersURL(q domain.PageQuery) string {
	params := url.Values{}
	params.Set("include", includeParam)
	params.Set("filter[isActive]", strconv.FormatBool(q.IsActive))
	params.Set("count", strconv.Itoa(q.Count))
	params.Set("skip", strconv.Itoa(q.Skip))
	params.Set("sort", q.Sort)
	params.Set("sortDesc", strconv.FormatBool(q.SortDesc))
	if q.InventoryStatus != "" {
		params.Set("filter[inventoryStatus][]", q.InventoryStatus)
	}
	if q.OrderNumber != "" {
		params.Set("filter[orderNumber]", q.OrderNumber)
	}
	return fmt.Sprintf("%s/%s/sales-orders?%s", c.baseURL, url.PathEscape(c.companyID), params.Encode())
}

// decodeOrders accepts a bare array or an object with an "items" array. Any
// other well-formed document means no results.
func decodeOrders(body []byte) ([]domain.OrderRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return nil, errors.New("response is not valid JSON")
	}

	switch trimmed[0] {
	case '[':
		var records []domain.OrderRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	case '{':
		var envelope struct {
			Items json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, err
		}
		items := bytes.TrimSpace(envelope.Items)
		if len(items) == 0 || items[0] != '[' {
			return []domain.OrderRecord{}, nil
		}
		var records []domain.OrderRecord
		if err := json.Unmarshal(items, &records); err != nil {
			return nil, err
		}
		return records, nil
	default:
		return []domain.OrderRecord{}, nil
	}
}

func transportCode(err error) domain.ErrorCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.CodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.CodeTimeout
	}
	return domain.CodeNetwork
}

func statusCode(status int) domain.ErrorCode {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.CodeUnauthorized
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return domain.CodeTimeout
	default:
		return domain.CodeUpstream
	}
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
