// Package replicate is a thin client for the Replicate predictions API.
// Long-running models (upscale, OCR) are submitted and then polled through
// jobpoll; background removal uses the synchronous wait mode.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"creditgate/internal/jobpoll"
	"creditgate/internal/provider"
)

const DefaultBaseURL = "https://api.replicate.com/v1"

// Statuses reported by the predictions API. Everything else counts as pending.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	poll       jobpoll.Config
}

func New(token, baseURL string, poll jobpoll.Config) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if poll.MaxAttempts == 0 {
		poll = jobpoll.DefaultConfig()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
		poll:       poll,
	}
}

// CreatePrediction submits a job. With wait=true the request blocks on the
// provider side until the model finishes or their sync window closes.
func (c *Client) CreatePrediction(ctx context.Context, version string, input map[string]any, wait bool) (*Prediction, error) {
	body, err := json.Marshal(map[string]any{"version": version, "input": input})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if wait {
		req.Header.Set("Prefer", "wait")
	}
	return c.do(req)
}

// GetPrediction fetches the current status of a submitted job.
func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+id, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// Run submits a prediction and polls it to a terminal status.
func (c *Client) Run(ctx context.Context, version string, input map[string]any) (json.RawMessage, error) {
	pred, err := c.CreatePrediction(ctx, version, input, false)
	if err != nil {
		return nil, err
	}
	if out, done, err := terminal(pred); done || err != nil {
		return out, err
	}

	return jobpoll.Await(ctx, c.poll, func(ctx context.Context) (json.RawMessage, bool, error) {
		p, err := c.GetPrediction(ctx, pred.ID)
		if err != nil {
			return nil, false, err
		}
		return terminal(p)
	})
}

func terminal(p *Prediction) (json.RawMessage, bool, error) {
	switch p.Status {
	case StatusSucceeded:
		return p.Output, true, nil
	case StatusFailed, StatusCanceled:
		return nil, false, fmt.Errorf("%w: %s", jobpoll.ErrJobFailed, p.Error)
	}
	return nil, false, nil
}

func (c *Client) do(req *http.Request) (*Prediction, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", provider.ErrRequestFailed, resp.StatusCode)
	}

	var pred Prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", provider.ErrRequestFailed, err)
	}
	return &pred, nil
}
