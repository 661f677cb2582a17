// Package client is a typed HTTP client for the flight delay prediction API.
package client

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"flight-delay/internal/ml"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flight-delay API: %d %s", e.StatusCode, e.Message)
}

type Client struct {
	base string
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Predict submits one flight for prediction. Fields are sent as given so the
// server performs all validation.
func (c *Client) Predict(input map[string]interface{}) (*ml.PredictionResult, error) {
	result := &ml.PredictionResult{}
	errResp := &ml.ErrorResponse{}
	resp, err := c.rest.R().
		SetBody(input).
		SetResult(result).
		SetError(errResp).
		Post(c.base + "/predict")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp, errResp)
	}
	return result, nil
}

// ModelInfo fetches the loaded model's description.
func (c *Client) ModelInfo() (*ml.ModelInfo, error) {
	info := &ml.ModelInfo{}
	errResp := &ml.ErrorResponse{}
	resp, err := c.rest.R().
		SetResult(info).
		SetError(errResp).
		Get(c.base + "/model-info")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp, errResp)
	}
	return info, nil
}

// Health fetches the health probe.
func (c *Client) Health() (*ml.HealthStatus, error) {
	health := &ml.HealthStatus{}
	errResp := &ml.ErrorResponse{}
	resp, err := c.rest.R().
		SetResult(health).
		SetError(errResp).
		Get(c.base + "/health")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp, errResp)
	}
	return health, nil
}

// Recent lists journaled predictions, newest first. A limit of zero uses the
// server default.
func (c *Client) Recent(limit int) ([]ml.PredictionEvent, error) {
	var events []ml.PredictionEvent
	errResp := &ml.ErrorResponse{}
	req := c.rest.R().
		SetResult(&events).
		SetError(errResp)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := req.Get(c.base + "/api/predictions")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp, errResp)
	}
	return events, nil
}

func apiError(resp *resty.Response, body *ml.ErrorResponse) error {
	msg := body.Error
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: msg}
}
