package remote

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

	"github.com/rs/zerolog"

	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/core/outbox"
)

// maxErrorBody caps how much of an error response is kept for messages.
const maxErrorBody = 512

// HTTPClient implements Client against the checklist service REST API.
type HTTPClient struct {
	base  *url.URL
	token string
	http  *http.Client
	log   zerolog.Logger
}

// NewHTTPClient builds a client for the given base URL. The timeout bounds
// each request; a timed-out call is classified as unavailable, same as a
// connection failure.
func NewHTTPClient(baseURL, token string, timeout time.Duration, log zerolog.Logger) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &HTTPClient{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: timeout},
		log:   log,
	}, nil
}

var _ Client = (*HTTPClient)(nil)

// FetchOrder returns the order's checklist-relevant fields.
func (c *HTTPClient) FetchOrder(ctx context.Context, orderID string) (Order, error) {
	var order Order
	err := c.do(ctx, "fetch order", http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, nil, &order)
	return order, err
}

// FetchTemplate returns the checklist template for a service category,
// including catalog required-flag overrides.
func (c *HTTPClient) FetchTemplate(ctx context.Context, category string) (checklist.Template, error) {
	var tmpl checklist.Template
	err := c.do(ctx, "fetch template", http.MethodGet, "/categories/"+url.PathEscape(category)+"/template", nil, nil, &tmpl)
	return tmpl, err
}

// FetchInstanceByOrder returns the authoritative instance for an order.
// Returns ErrNotFound while the server has not created one yet.
func (c *HTTPClient) FetchInstanceByOrder(ctx context.Context, orderID string) (checklist.Instance, error) {
	var inst checklist.Instance
	err := c.do(ctx, "fetch instance", http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/checklist", nil, nil, &inst)
	return inst, err
}

// CreateInstance creates the instance for an order on the server.
func (c *HTTPClient) CreateInstance(ctx context.Context, orderID, templateID string) (checklist.Instance, error) {
	body := map[string]string{
		"order_id":    orderID,
		"template_id": templateID,
	}
	var inst checklist.Instance
	err := c.do(ctx, "create instance", http.MethodPost, "/checklists", nil, body, &inst)
	return inst, err
}

// UpdateState replays a start/pause/resume transition against the server.
// The server normalizes on instance id plus transition kind, so replays of
// an already-applied transition return the current instance unchanged.
func (c *HTTPClient) UpdateState(ctx context.Context, instanceID string, kind outbox.Kind) (checklist.Instance, error) {
	body := map[string]string{"transition": string(kind)}
	var inst checklist.Instance
	err := c.do(ctx, "update state", http.MethodPost, "/checklists/"+url.PathEscape(instanceID)+"/state", nil, body, &inst)
	return inst, err
}

// SubmitResponse upserts one item response on the server.
func (c *HTTPClient) SubmitResponse(ctx context.Context, instanceID string, resp checklist.Response) (checklist.Response, error) {
	var out checklist.Response
	err := c.do(ctx, "submit response", http.MethodPut,
		"/checklists/"+url.PathEscape(instanceID)+"/responses/"+url.PathEscape(resp.ItemID), nil, resp, &out)
	return out, err
}

// FinalizeInstance finalizes the instance. The idempotency key makes the
// call safe to replay: the server recognizes a repeated key and returns the
// already-finalized instance.
func (c *HTTPClient) FinalizeInstance(ctx context.Context, instanceID string, in checklist.FinalizeInput, idempotencyKey string) (checklist.Instance, error) {
	headers := http.Header{}
	headers.Set("Idempotency-Key", idempotencyKey)
	var inst checklist.Instance
	err := c.do(ctx, "finalize instance", http.MethodPost,
		"/checklists/"+url.PathEscape(instanceID)+"/finalize", headers, in, &inst)
	return inst, err
}

// do executes one JSON request/response exchange and classifies failures.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, headers http.Header, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("op", op).Msg("remote call failed")
		return classify(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case retriableStatus(resp.StatusCode):
		return &UnavailableError{Op: op, Err: &StatusError{Op: op, Code: resp.StatusCode, Body: readErrorBody(resp.Body)}}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Op: op, Code: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
