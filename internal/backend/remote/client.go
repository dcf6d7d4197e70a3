// Package remote talks to a transcription service running as a separate local process.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"workx/internal/domain"
)

const DefaultBaseURL = "http://127.0.0.1:8080"

// Config controls how the service is located and called.
type Config struct {
	BaseURL string
	// PortFile is the JSON file ({"port": N}) the service writes when it picks a port.
	PortFile       string
	RequestTimeout time.Duration
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("service returned %d: %s", e.Status, e.Message)
}

// Client implements ports.Backend and ports.HealthChecker over HTTP.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	raw, err := ResolveBaseURL(cfg.BaseURL, cfg.PortFile)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid service base URL %q", raw)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	logger.Debug("remote backend configured", "base_url", base.String())
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
	}, nil
}

// ResolveBaseURL prefers an explicit URL, then the port file, then DefaultBaseURL.
func ResolveBaseURL(baseURL string, portFile string) (string, error) {
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		return strings.TrimRight(baseURL, "/"), nil
	}
	if strings.TrimSpace(portFile) == "" {
		return DefaultBaseURL, nil
	}

	contents, err := os.ReadFile(portFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultBaseURL, nil
		}
		return "", fmt.Errorf("read port file: %w", err)
	}
	var info struct {
		Port int `json:"port"`
	}
	if err := json.Unmarshal(contents, &info); err != nil {
		return "", fmt.Errorf("parse port file %q: %w", portFile, err)
	}
	if info.Port <= 0 || info.Port > 65535 {
		return "", fmt.Errorf("port file %q has invalid port %d", portFile, info.Port)
	}
	return fmt.Sprintf("http://127.0.0.1:%d", info.Port), nil
}

// BaseURL returns the resolved service URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &out); err != nil {
		return err
	}
	if out.Status != "healthy" {
		return fmt.Errorf("service reported status %q", out.Status)
	}
	return nil
}

func (c *Client) ListAudioDevices(ctx context.Context) ([]domain.AudioDevice, error) {
	var out struct {
		Devices []domain.AudioDevice `json:"devices"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/audio/devices", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

type recordingRequest struct {
	DeviceID string `json:"deviceId"`
}

func (c *Client) StartFixedRecording(ctx context.Context, deviceID string) error {
	return c.do(ctx, http.MethodPost, "/api/recordings/fixed", nil, recordingRequest{DeviceID: deviceID}, nil)
}

func (c *Client) StartContinuousRecording(ctx context.Context, deviceID string) error {
	return c.do(ctx, http.MethodPost, "/api/recordings/continuous", nil, recordingRequest{DeviceID: deviceID}, nil)
}

func (c *Client) StopContinuousRecording(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/recordings/continuous", nil, nil, nil)
}

// ListTranscriptFiles accepts both the split {"source","target"} shape and a flat {"files"} list.
func (c *Client) ListTranscriptFiles(ctx context.Context) (domain.TranscriptListing, error) {
	var out struct {
		Source []string `json:"source"`
		Target []string `json:"target"`
		Files  []string `json:"files"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/transcripts", nil, nil, &out); err != nil {
		return domain.TranscriptListing{}, err
	}
	if len(out.Source) == 0 && len(out.Target) == 0 {
		return domain.TranscriptListing{Source: out.Files}, nil
	}
	return domain.TranscriptListing{Source: out.Source, Target: out.Target}, nil
}

func (c *Client) ReadTranscriptFile(ctx context.Context, path string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	query := url.Values{"path": []string{path}}
	if err := c.do(ctx, http.MethodGet, "/api/transcripts/content", query, nil, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method string, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp.Body, resp.Status)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func errorMessage(body io.Reader, fallback string) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return fallback
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
