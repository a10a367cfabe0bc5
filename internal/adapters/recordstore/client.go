// Package recordstore is the HTTP client for the external accreditation
// record store. Every call carries the signed-in user's bearer token, goes
// through a shared circuit breaker and is never retried.
package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"accredit-dashboard/internal/core/domain"
	"accredit-dashboard/internal/pkg/metrics"

	"github.com/sony/gobreaker"
)

const maxBodyBytes = 16 << 20

// Client is safe for concurrent use; tokens are passed per call
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	metrics    *metrics.Metrics
}

// NewClient creates a record store client. baseURL includes the API prefix,
// e.g. http://localhost:8000/api. breaker and m may be nil.
func NewClient(baseURL string, timeout time.Duration, breaker *gobreaker.CircuitBreaker, m *metrics.Metrics) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		metrics:    m,
	}
}

// IsBreakerFailure reports whether err should count against the circuit.
// Client errors and cancelled requests say nothing about upstream health.
func IsBreakerFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}

// LoginResult is the record store's answer to a successful sign-in
type LoginResult struct {
	Token   string         `json:"token"`
	Profile domain.Profile `json:"profile"`
}

type credentials struct {
	Code     string `json:"code"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

// Login exchanges an employee code and password for a bearer token
func (c *Client) Login(ctx context.Context, code, password string) (*LoginResult, error) {
	var result LoginResult
	if err := c.call(ctx, "login", http.MethodPost, "/auth/login", "", credentials{Code: code, Password: password}, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, fmt.Errorf("%w: login response carried no token", domain.ErrUpstream)
	}
	return &result, nil
}

// Register creates an employee account and returns the record store's confirmation
func (c *Client) Register(ctx context.Context, code, name, password string) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.call(ctx, "register", http.MethodPost, "/auth/register", "", credentials{Code: code, Name: name, Password: password}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) ListFacilities(ctx context.Context, token string) ([]domain.Facility, error) {
	var out []domain.Facility
	if err := c.call(ctx, "list_facilities", http.MethodGet, "/facility", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListProfessionals(ctx context.Context, token string) ([]domain.Professional, error) {
	var out []domain.Professional
	if err := c.call(ctx, "list_professionals", http.MethodGet, "/health-professional", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create posts a new record; the body never carries an id
func (c *Client) Create(ctx context.Context, token string, record domain.Accreditable) error {
	return c.call(ctx, "create_"+opSuffix(record.Kind()), http.MethodPost, path(record.Kind()), token, outbound(record, true), nil)
}

// Update replaces every mutable field of the record with the given id
func (c *Client) Update(ctx context.Context, token string, id domain.RecordID, record domain.Accreditable) error {
	return c.call(ctx, "update_"+opSuffix(record.Kind()), http.MethodPut, recordPath(record.Kind(), id), token, outbound(record, false), nil)
}

func (c *Client) Delete(ctx context.Context, token string, kind domain.RecordKind, id domain.RecordID) error {
	return c.call(ctx, "delete_"+opSuffix(kind), http.MethodDelete, recordPath(kind, id), token, nil, nil)
}

// recordPath addresses one record; the id is a single escaped segment
func recordPath(kind domain.RecordKind, id domain.RecordID) string {
	return path(kind) + "/" + url.PathEscape(id.String())
}

// Ping reports whether the record store answers at all
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/facility", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}

func path(kind domain.RecordKind) string {
	return "/" + string(kind)
}

func opSuffix(kind domain.RecordKind) string {
	if kind == domain.FacilityKind {
		return "facility"
	}
	return "professional"
}

// outbound normalizes a record for the wire: claim status uses the record
// store's spelling, and create bodies drop the id.
func outbound(record domain.Accreditable, create bool) domain.Accreditable {
	switch r := record.(type) {
	case domain.Facility:
		r.Status = r.Status.Normalize()
		if create {
			r.ID = ""
		}
		return r
	case domain.Professional:
		r.Status = r.Status.Normalize()
		if create {
			r.ID = ""
		}
		return r
	}
	return record
}

func (c *Client) call(ctx context.Context, op, method, path, token string, body, target any) error {
	start := time.Now()

	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(func() (interface{}, error) {
			return nil, c.do(ctx, method, path, token, body, target)
		})
	} else {
		err = c.do(ctx, method, path, token, body, target)
	}

	c.metrics.ObserveUpstream(op, outcome(err), time.Since(start))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	return err
}

// do performs one request and decodes the payload into target
func (c *Client) do(ctx context.Context, method, path, token string, body, target any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", domain.ErrUpstream, err)
	}

	if resp.StatusCode >= 400 {
		return newAPIError(resp.StatusCode, raw)
	}

	if target == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapEnvelope(raw), target); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", domain.ErrUpstream, err)
	}
	return nil
}

// unwrapEnvelope returns the "data" member of an object body, or the body itself
func unwrapEnvelope(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return trimmed
	}
	if data, ok := envelope["data"]; ok {
		return data
	}
	return trimmed
}

func outcome(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &apiErr) && apiErr.StatusCode < 500:
		return "client_error"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	default:
		return "error"
	}
}
