// Package upload talks to the backend's script endpoints: it uploads a
// speech script and returns the outline the backend split it into.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhaorenjie77/smart-teleprompter/internal/outline"
)

const (
	ScriptPath = "/upload_script"
	HealthPath = "/health"
)

// Client calls the backend over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

type scriptResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TotalSegments int    `json:"total_segments"`
	Segments      []struct {
		ID   int    `json:"id"`
		Text string `json:"text"`
	} `json:"segments"`
	Detail json.RawMessage `json:"detail"`
}

// UploadScript sends the script at path and returns its segments in
// speaking order.
func (c *Client) UploadScript(ctx context.Context, path string) ([]outline.Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+ScriptPath, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload script: %w", err)
	}
	defer resp.Body.Close()

	var sr scriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("upload script: status %d: decode response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !sr.Success {
		return nil, fmt.Errorf("upload script: status %d: %s", resp.StatusCode, detail(sr))
	}

	items := make([]outline.Item, len(sr.Segments))
	for i, seg := range sr.Segments {
		items[i] = outline.Item{ID: seg.ID, Text: seg.Text}
	}
	return items, nil
}

// Health checks that the backend is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+HealthPath, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	var hr struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return fmt.Errorf("health check: status %d: decode response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || hr.Status != "ok" {
		return fmt.Errorf("health check: status %d: %q", resp.StatusCode, hr.Status)
	}
	return nil
}

// detail extracts the backend's error description. It is a plain string
// for handler errors and a list of objects for request validation errors.
func detail(sr scriptResponse) string {
	var s string
	if err := json.Unmarshal(sr.Detail, &s); err == nil && s != "" {
		return s
	}
	if len(sr.Detail) > 0 && string(sr.Detail) != "null" {
		return string(sr.Detail)
	}
	if sr.Message != "" {
		return sr.Message
	}
	return "upload failed"
}
