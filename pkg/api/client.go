package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chainvote/pkg/config"
	"chainvote/pkg/data"
)

const (
	maxResponseBytes = 1 << 20
	requestIDHeader  = "X-Request-ID"
)

// Client talks to the remote election API.
// Every call is bounded by a timeout; none are retried.
type Client struct {
	baseURL     string
	http        *http.Client
	timeout     time.Duration
	slowTimeout time.Duration
	logger      *zap.Logger
}

// envelope is the part of every response the client relies on
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewClient creates a client for the base URL resolved from cfg
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL:     cfg.ResolveBaseURL(),
		http:        &http.Client{},
		timeout:     cfg.API.RequestTimeout,
		slowTimeout: cfg.API.SlowRequestTimeout,
		logger:      logger.Named("api"),
	}
}

// BaseURL returns the resolved API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out, c.timeout)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out, c.timeout)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, timeout time.Duration) error {
	op := method + " " + path

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &data.ConnectivityError{Op: op, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Request failed",
			zap.String("op", op),
			zap.String("requestID", requestID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return &data.ConnectivityError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &data.ConnectivityError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	c.logger.Debug("Request completed",
		zap.String("op", op),
		zap.String("requestID", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &data.ConnectivityError{Op: op, Err: fmt.Errorf("malformed response (status %d): %w", resp.StatusCode, err)}
	}

	if !env.Success {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = fallbackMessage(resp.StatusCode)
		}
		return &data.ServerRejection{Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &data.ConnectivityError{Op: op, Err: fmt.Errorf("decoding payload: %w", err)}
		}
	}

	return nil
}

func fallbackMessage(status int) string {
	if text := http.StatusText(status); text != "" && status >= 400 {
		return text
	}
	return "Request failed"
}
