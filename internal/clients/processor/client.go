package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yungbote/knowledge-registry/internal/platform/httpx"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

// ProcessRequest carries one content item to the downstream processor.
type ProcessRequest struct {
	DocumentID       string         `json:"document_id"`
	SourceRID        string         `json:"source_rid"`
	CID              string         `json:"cid"`
	AgentID          string         `json:"agent_id"`
	ContentType      string         `json:"content_type"`
	Title            string         `json:"title,omitempty"`
	OriginalFilename string         `json:"original_filename,omitempty"`
	Content          string         `json:"content"`
	ContentEncoding  string         `json:"content_encoding"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// ProcessResult reports what the processor did with the content.
type ProcessResult struct {
	FragmentCount    int    `json:"fragment_count"`
	ProcessingTimeMs int64  `json:"processing_time_ms,omitempty"`
	Message          string `json:"message,omitempty"`
}

// Client talks to the downstream knowledge processor.
type Client interface {
	Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error)
	Health(ctx context.Context) error

	// Probe refreshes the availability flag from /health and returns it.
	Probe(ctx context.Context) bool
	Available() bool
}

type client struct {
	log          *logger.Logger
	baseURL      string
	token        string
	httpClient   *http.Client
	healthClient *http.Client

	maxRetries int
	available  atomic.Bool
}

func NewClient(log *logger.Logger) (Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("PROCESSOR_BASE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing PROCESSOR_BASE_URL")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	token := strings.TrimSpace(os.Getenv("PROCESSOR_TOKEN"))

	timeoutSec := 120
	if v := os.Getenv("PROCESSOR_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	healthTimeoutSec := 5
	if v := os.Getenv("PROCESSOR_HEALTH_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			healthTimeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := os.Getenv("PROCESSOR_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	return &client{
		log:          log.With("service", "ProcessorClient"),
		baseURL:      baseURL,
		token:        token,
		httpClient:   &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		healthClient: &http.Client{Timeout: time.Duration(healthTimeoutSec) * time.Second},
		maxRetries:   maxRetries,
	}, nil
}

type processorHTTPError struct {
	StatusCode int
	Body       string
}

func (e *processorHTTPError) Error() string {
	return fmt.Sprintf("processor http %d: %s", e.StatusCode, e.Body)
}

func (e *processorHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, httpClient *http.Client, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	if httpClient == nil {
		httpClient = c.httpClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &processorHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, c.httpClient, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("processor decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("Processor request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func (c *client) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	if strings.TrimSpace(req.DocumentID) == "" {
		return nil, fmt.Errorf("document id required")
	}

	var out ProcessResult
	if err := c.do(ctx, http.MethodPost, "/process", req, &out); err != nil {
		return nil, err
	}
	if out.FragmentCount < 0 {
		out.FragmentCount = 0
	}
	return &out, nil
}

func (c *client) Health(ctx context.Context) error {
	_, _, err := c.doOnce(ctx, c.healthClient, http.MethodGet, "/health", nil)
	return err
}

func (c *client) Probe(ctx context.Context) bool {
	err := c.Health(ctx)
	ok := err == nil
	prev := c.available.Swap(ok)
	if prev != ok {
		if ok {
			c.log.Info("Processor became available", "base_url", c.baseURL)
		} else {
			c.log.Warn("Processor became unavailable", "base_url", c.baseURL, "error", err.Error())
		}
	}
	return ok
}

func (c *client) Available() bool {
	return c.available.Load()
}
