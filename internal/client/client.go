// Package client talks to a storage layer that serves organization datasets
// and cost classifications over HTTP.
package client

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
	"time"

	"github.com/hyperengineering/autoroi/internal/normalize"
	"github.com/hyperengineering/autoroi/internal/types"
)

var (
	// ErrLoadFailed means the primary dataset fetch reported failure or
	// returned no data. It is fatal to the load attempt.
	ErrLoadFailed = errors.New("dataset load failed")

	// ErrClassificationUnavailable means no usable cost classification was
	// returned. Callers substitute an empty classification.
	ErrClassificationUnavailable = errors.New("cost classification unavailable")
)

// DefaultTimeout bounds each request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Client is an HTTP storage client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a Client. An empty apiKey sends no Authorization header.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// LoadData fetches an organization's dataset. A transport failure, a
// non-success reply or a missing data field wraps ErrLoadFailed. A data
// field of the wrong shape returns the normalizer's ShapeError.
func (c *Client) LoadData(ctx context.Context, orgID string) (*types.Dataset, error) {
	path := "/data/load?organizationId=" + url.QueryEscape(orgID)

	var resp types.LoadResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrLoadFailed, orDefault(resp.Error, "storage reported failure"))
	}
	if isAbsent(resp.Data) {
		return nil, fmt.Errorf("%w: response has no data", ErrLoadFailed)
	}
	return normalize.Parse(resp.Data)
}

// LoadCostClassification fetches an organization's cost classification.
// Every failure, including a malformed payload, wraps
// ErrClassificationUnavailable.
func (c *Client) LoadCostClassification(ctx context.Context, orgID string) (*types.CostClassification, error) {
	path := "/cost-classification/" + url.PathEscape(orgID)

	var resp types.ClassificationResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassificationUnavailable, err)
	}
	if !resp.Success || isAbsent(resp.Classification) {
		return nil, fmt.Errorf("%w: %s", ErrClassificationUnavailable, orDefault(resp.Error, "no classification"))
	}
	cls, err := normalize.ParseCostClassification(resp.Classification)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassificationUnavailable, err)
	}
	return cls, nil
}

// SaveData posts an organization's dataset to the storage layer.
func (c *Client) SaveData(ctx context.Context, orgID string, ds types.Dataset) error {
	body := types.SaveDataRequest{
		OrganizationID: orgID,
		Groups:         ds.Groups,
		Processes:      ds.Processes,
	}
	// The server rejects null collections.
	if body.Groups == nil {
		body.Groups = []types.GroupDefaults{}
	}
	if body.Processes == nil {
		body.Processes = []types.Process{}
	}
	resp, err := c.sendRequest(ctx, http.MethodPost, "/data/save", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("save data: %s", statusError(resp))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	resp, err := c.sendRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Storage replies carry {success:false} bodies on 404; decode those too.
	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusNotFound {
		return errors.New(statusError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// sendRequest sends an authenticated request to the storage layer
func (c *Client) sendRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.http.Do(req)
}

func statusError(resp *http.Response) string {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}

func isAbsent(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
