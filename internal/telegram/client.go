// Package telegram talks to the bot platform's file API and models its webhook payload.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrUnusableFile is returned when getFile does not yield a downloadable path.
var ErrUnusableFile = errors.New("telegram returned no usable file path")

// APIError is a non-successful reply from the platform.
type APIError struct {
	Status      int
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram api: %d %s", e.Status, e.Description)
	}
	return fmt.Sprintf("telegram api: status %d", e.Status)
}

// Client calls the bot platform over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient constructs a client for the bot identified by token.
// A zero timeout leaves transfers unbounded.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// GetFile resolves a file reference into a downloadable path.
func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	u := fmt.Sprintf("%s/bot%s/getFile?file_id=%s", c.baseURL, c.token, url.QueryEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return File{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return File{}, fmt.Errorf("telegram getFile: %w", redact(err, c.token))
	}
	defer resp.Body.Close()

	var out apiResponse[File]
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return File{}, &APIError{Status: resp.StatusCode}
		}
		return File{}, fmt.Errorf("decode getFile response: %w", err)
	}
	if !out.OK || resp.StatusCode >= http.StatusBadRequest {
		return File{}, &APIError{Status: resp.StatusCode, Description: out.Description}
	}
	if out.Result.FilePath == "" {
		return File{}, ErrUnusableFile
	}
	return out.Result, nil
}

// Download streams the file at filePath. The caller must close the reader.
func (c *Client) Download(ctx context.Context, filePath string) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, strings.TrimLeft(filePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w", redact(err, c.token))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode}
	}
	return resp.Body, nil
}

// redact strips the bot token from transport errors, which embed the request URL.
func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}
