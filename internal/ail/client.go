// Package ail submits records to the AIL framework JSON import API.
package ail

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 30 * time.Second

// StatusError reports a non-2xx response from the AIL API.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ail %s: status %d", e.Endpoint, e.Code)
}

// Client talks to one AIL instance. Payloads are base64-encoded and
// accompanied by their sha256, matching the import item contract.
type Client struct {
	logger  *slog.Logger
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient builds a client for the AIL API at baseURL. verifyCert
// disables TLS verification when false; self-hosted AIL instances commonly
// run on self-signed certificates.
func NewClient(log *slog.Logger, baseURL, apiKey string, verifyCert bool) *Client {
	if log == nil {
		log = slog.Default()
	}
	transport := http.DefaultTransport
	if !verifyCert {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		logger:  log.With(slog.String("component", "ail")),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout, Transport: transport},
	}
}

// Ping verifies the instance is reachable and the key is accepted. A
// failed ping at startup is fatal to the feeder.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/ping", nil, &out); err != nil {
		return err
	}
	if out.Status != "pong" {
		return fmt.Errorf("ail ping: unexpected status %q", out.Status)
	}
	return nil
}

// Submit feeds one record: meta is the nested canonical document, payload
// the raw content bytes.
func (c *Client) Submit(ctx context.Context, meta map[string]any, payload []byte, source, sourceUUID string) error {
	digest := sha256.Sum256(payload)
	item := map[string]any{
		"data":             base64.StdEncoding.EncodeToString(payload),
		"data-sha256":      hex.EncodeToString(digest[:]),
		"default-encoding": "UTF-8",
		"meta":             meta,
		"source":           source,
		"source-uuid":      sourceUUID,
	}

	if err := c.do(ctx, http.MethodPost, "/import/json/item", item, nil); err != nil {
		return err
	}

	c.logger.Debug("record submitted", slog.String("source", source))
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return fmt.Errorf("encode %s body: %w", endpoint, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, &body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ail %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", endpoint, err)
		}
	}
	return nil
}
