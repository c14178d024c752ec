package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPProvider talks to the wallet provider's checkout REST API. The sandbox
// authenticates with the public client id; a buyer-declined or voided order
// surfaces as ErrCancelled so the caller can message it distinctly.
type HTTPProvider struct {
	baseURL  string
	clientID string
	http     *http.Client
	logger   *slog.Logger
}

func NewHTTPProvider(baseURL, clientID string, logger *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL:  baseURL,
		clientID: clientID,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// SetHTTPClient replaces the underlying transport, for tests.
func (p *HTTPProvider) SetHTTPClient(hc *http.Client) {
	p.http = hc
}

func (p *HTTPProvider) CreateOrder(ctx context.Context, req ProviderOrderRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := p.post(ctx, "/v2/checkout/orders", req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("provider returned no order id")
	}
	return resp.ID, nil
}

func (p *HTTPProvider) CaptureOrder(ctx context.Context, providerOrderID string) (*ProviderCapture, error) {
	var capture ProviderCapture
	if err := p.post(ctx, "/v2/checkout/orders/"+providerOrderID+"/capture", nil, &capture); err != nil {
		return nil, err
	}
	if capture.Status == "VOIDED" || capture.Status == "CANCELLED" {
		return nil, fmt.Errorf("%w: provider order %s", ErrCancelled, providerOrderID)
	}
	return &capture, nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode provider request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.clientID, "")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		p.logger.Error("provider rejected request", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("provider responded %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
