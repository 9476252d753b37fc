package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// HTTPProvider calls a remote evidence service. The service accepts a JSON
// Request on POST {baseURL}/collect and answers with a Contribution; it
// exposes GET {baseURL}/health for liveness.
type HTTPProvider struct {
	id      string
	kind    ProviderType
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider builds a provider with a per-call timeout.
func NewHTTPProvider(id string, kind ProviderType, baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		id:      id,
		kind:    kind,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) ID() string { return p.id }

func (p *HTTPProvider) Capabilities() Capabilities {
	return Capabilities{Protocol: ProtocolHTTP, Type: p.kind, Version: "v1"}
}

func (p *HTTPProvider) Collect(ctx context.Context, req Request) (*Contribution, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, NewProviderError(ErrorInternal, p.id, "encode request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/collect", bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError(ErrorInternal, p.id, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, p.transportError(ctx, err)
	}
	defer resp.Body.Close()

	if err := p.statusError(resp); err != nil {
		return nil, err
	}

	var c Contribution
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&c); err != nil {
		return nil, NewProviderError(ErrorBadData, p.id, "decode response", err)
	}
	if err := p.checkContract(&c); err != nil {
		return nil, err
	}
	c.ProviderID = p.id
	if c.CheckedAt.IsZero() {
		c.CheckedAt = time.Now().UTC()
	}
	return &c, nil
}

func (p *HTTPProvider) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return NewProviderError(ErrorInternal, p.id, "build request", err)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return p.transportError(ctx, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return p.statusError(resp)
}

// checkContract rejects responses for the wrong evidence type or without the
// section the type requires.
func (p *HTTPProvider) checkContract(c *Contribution) error {
	if c.Type != "" && c.Type != p.kind {
		return NewProviderError(ErrorContractMismatch, p.id, fmt.Sprintf("expected %s evidence, got %s", p.kind, c.Type), nil)
	}
	c.Type = p.kind

	var missing bool
	switch p.kind {
	case ProviderTypeDocument:
		missing = c.Document == nil
	case ProviderTypeBiometric:
		missing = c.Biometrics == nil
	case ProviderTypeExternal:
		missing = c.External == nil
	}
	if missing {
		return NewProviderError(ErrorBadData, p.id, fmt.Sprintf("response has no %s section", p.kind), nil)
	}
	return nil
}

func (p *HTTPProvider) transportError(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return NewProviderError(ErrorTimeout, p.id, "request timed out", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewProviderError(ErrorTimeout, p.id, "request timed out", err)
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return NewProviderError(ErrorCancelled, p.id, "request cancelled by caller", err)
	default:
		return NewProviderError(ErrorProviderOutage, p.id, "request failed", err)
	}
}

func (p *HTTPProvider) statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return NewProviderError(ErrorNotFound, p.id, "no record for subject", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewProviderError(ErrorRateLimited, p.id, "rate limited", nil)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return NewProviderError(ErrorAuthentication, p.id, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		return NewProviderError(ErrorBadData, p.id, fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return NewProviderError(ErrorProviderOutage, p.id, fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		return NewProviderError(ErrorInternal, p.id, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
}
