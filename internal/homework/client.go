package homework

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

	logx "hwbot/pkg/logx"
)

const (
	DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	DefaultTimeout  = 30 * time.Second

	// maxBodyBytes bounds how much of a response we are willing to buffer.
	maxBodyBytes = 4 << 20
)

type ClientConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Client performs a single status query per Fetch call. It never retries;
// retry policy belongs to the caller.
type Client struct {
	cfg  ClientConfig
	http *http.Client
	log  logx.Logger
}

func NewClient(cfg ClientConfig, hc *http.Client, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("status api token is empty")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("status api endpoint: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: hc, log: log}, nil
}

// Fetch asks for every homework updated since cursor and returns the decoded
// JSON body. The body is untrusted until it passes Validate.
func (c *Client) Fetch(ctx context.Context, cursor Cursor) (any, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, &TransportError{Endpoint: c.cfg.Endpoint, Err: err}
	}
	q := u.Query()
	q.Set("from_date", cursor.String())
	u.RawQuery = q.Encode()

	rctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, &TransportError{Endpoint: c.cfg.Endpoint, Err: err}
	}
	req.Header.Set("Authorization", "OAuth "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	c.log.Debug("querying status api", logx.String("endpoint", c.cfg.Endpoint), logx.Int64("from_date", int64(cursor)))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: c.cfg.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Endpoint: c.cfg.Endpoint, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode/100 != 2 {
		return nil, &ServiceUnavailableError{
			Endpoint: c.cfg.Endpoint,
			Code:     resp.StatusCode,
			Reason:   reason(resp, body),
		}
	}

	var out any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, &ValidationError{Problems: []string{"body is not JSON: " + err.Error()}}
	}
	c.log.Debug("status api answered", logx.Int("http", resp.StatusCode))
	return out, nil
}

// reason prefers the API's own error message over the generic status text.
func reason(resp *http.Response, body []byte) string {
	var apiErr struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil {
		switch {
		case apiErr.Message != "" && apiErr.Code != "":
			return apiErr.Code + ": " + apiErr.Message
		case apiErr.Message != "":
			return apiErr.Message
		}
	}
	if txt := http.StatusText(resp.StatusCode); txt != "" {
		return txt
	}
	return resp.Status
}
