// Package client talks to the MovePosition risk and ticket service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dwdwow/mp-go/constants"
)

// maxErrorBody caps how much of a failed response is kept on APIError
const maxErrorBody = 4096

// APIError is a non-2xx answer from the risk service
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Code       string
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: status %d: %s - %s", e.Method, e.Path, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Temporary reports whether the service signalled overload or an internal fault
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// API is the JSON transport shared by the risk service calls
type API struct {
	BaseURL    string
	HTTPClient *http.Client
	limiter    *rate.Limiter
}

// NewAPI creates a new API client.
// An empty baseURL means MainnetAPIURL and a zero timeout means DefaultTimeout.
func NewAPI(baseURL string, timeout time.Duration) *API {
	if baseURL == "" {
		baseURL = constants.MainnetAPIURL
	}
	if timeout == 0 {
		timeout = constants.DefaultTimeout * time.Second
	}

	return &API{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// SetRateLimit caps outgoing requests. A non-positive rate removes the limit.
func (a *API) SetRateLimit(perSecond float64, burst int) {
	if perSecond <= 0 {
		a.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	a.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (a *API) get(ctx context.Context, urlPath string, result any) error {
	return a.do(ctx, http.MethodGet, urlPath, nil, result)
}

func (a *API) post(ctx context.Context, urlPath string, payload any, result any) error {
	body := []byte("{}")
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("encode %s body: %w", urlPath, err)
		}
	}
	return a.do(ctx, http.MethodPost, urlPath, body, result)
}

func (a *API) do(ctx context.Context, method, urlPath string, body []byte, result any) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+urlPath, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, urlPath, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, urlPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return parseAPIError(method, urlPath, resp.StatusCode, raw)
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, urlPath, err)
	}
	return nil
}

// parseAPIError keeps the raw body unless it carries a JSON message
func parseAPIError(method, urlPath string, status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Method:     method,
		Path:       urlPath,
		Message:    strings.TrimSpace(string(body)),
	}

	var payload struct {
		Code    string `json:"code"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return apiErr
	}
	apiErr.Code = payload.Code
	switch {
	case payload.Message != "":
		apiErr.Message = payload.Message
	case payload.Error != "":
		apiErr.Message = payload.Error
	}
	return apiErr
}
