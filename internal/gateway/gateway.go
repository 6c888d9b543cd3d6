// Package gateway talks to the single remote endpoint that persists the
// project data. Every call is a POST whose action, entity type and id travel
// in the query string; bodies are raw JSON sent as text/plain so browsers and
// proxies treat the call as a simple request.
package gateway

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

	"go.uber.org/zap"

	"pmsync/internal/models"
)

const (
	ActionBulkLoad = "bulkLoad"
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"

	contentType = "text/plain;charset=UTF-8"
	maxBody     = 32 << 20
)

// Config selects the endpoint. An empty BaseURL puts the client in offline
// mode: loads return empty collections and writes are skipped.
type Config struct {
	BaseURL   string
	APIKey    string
	UseAPIKey bool
	Timeout   time.Duration
}

// Error is the one failure shape the gateway reports. Message holds the
// endpoint's own error text when it sent one.
type Error struct {
	Action  string
	Type    models.EntityType
	ID      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	target := string(e.Type)
	if e.ID != "" {
		target += "/" + e.ID
	}
	if target == "" {
		return fmt.Sprintf("gateway %s: %s", e.Action, e.Message)
	}
	return fmt.Sprintf("gateway %s %s: %s", e.Action, target, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Client is stateless between calls and safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New builds a client for cfg. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger.Named("gateway"),
	}
}

// Configured reports whether an endpoint URL is set.
func (c *Client) Configured() bool {
	return c.cfg.BaseURL != ""
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Load fetches every collection in one request.
func (c *Client) Load(ctx context.Context) (models.Collections, error) {
	if !c.Configured() {
		c.logger.Warn("endpoint not configured, starting with empty data")
		return models.EmptyCollections(), nil
	}

	env, err := c.do(ctx, ActionBulkLoad, "", "", nil)
	if err != nil {
		return models.Collections{}, err
	}

	var out models.Collections
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &out); err != nil {
			return models.Collections{}, &Error{Action: ActionBulkLoad, Message: "malformed data", Err: err}
		}
	}
	return out.Normalize(), nil
}

// Create asks the endpoint to persist a new record.
func (c *Client) Create(ctx context.Context, t models.EntityType, record any) error {
	if !c.Configured() {
		return nil
	}
	body, err := json.Marshal(record)
	if err != nil {
		return &Error{Action: ActionCreate, Type: t, Message: "encode record", Err: err}
	}
	_, err = c.do(ctx, ActionCreate, t, "", body)
	return err
}

// Update sends a partial record for id.
func (c *Client) Update(ctx context.Context, t models.EntityType, id string, patch any) error {
	if !c.Configured() {
		return nil
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return &Error{Action: ActionUpdate, Type: t, ID: id, Message: "encode patch", Err: err}
	}
	_, err = c.do(ctx, ActionUpdate, t, id, body)
	return err
}

// Delete removes id from the endpoint.
func (c *Client) Delete(ctx context.Context, t models.EntityType, id string) error {
	if !c.Configured() {
		return nil
	}
	_, err := c.do(ctx, ActionDelete, t, id, nil)
	return err
}

func (c *Client) buildURL(action string, t models.EntityType, id string) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("action", action)
	if t != "" {
		q.Set("type", string(t))
	}
	if id != "" {
		q.Set("id", id)
	}
	if c.cfg.UseAPIKey && c.cfg.APIKey != "" {
		q.Set("apiKey", c.cfg.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, action string, t models.EntityType, id string, body []byte) (envelope, error) {
	fail := func(msg string, err error) (envelope, error) {
		c.logger.Error("request failed",
			zap.String("action", action),
			zap.String("type", string(t)),
			zap.String("id", id),
			zap.String("message", msg),
			zap.Error(err))
		return envelope{}, &Error{Action: action, Type: t, ID: id, Message: msg, Err: err}
	}

	target, err := c.buildURL(action, t, id)
	if err != nil {
		return fail("invalid endpoint url", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, reader)
	if err != nil {
		return fail("build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fail("transport failure", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fail("read response", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("http status %d", resp.StatusCode)
		if decodeErr == nil && env.Error != "" {
			msg = env.Error
		}
		return fail(msg, errors.New(resp.Status))
	}
	if decodeErr != nil {
		return fail("malformed response", decodeErr)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "API request failed"
		}
		return fail(msg, nil)
	}

	c.logger.Debug("request confirmed", zap.String("action", action), zap.String("type", string(t)), zap.String("id", id))
	return env, nil
}
