// Package provider is a typed HTTP client for the external AI chat API.
// studychat sends one request per chat message and relays the reply.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is the chat endpoint used when none is configured.
const DefaultURL = "https://api.gemimi.ai/chat"

// maxErrorBodyBytes caps how much of a failed response body ends up in an error.
const maxErrorBodyBytes = 512

// ErrEmptyAPIKey is returned by Chat when called without a credential.
var ErrEmptyAPIKey = errors.New("provider: empty api key")

// Client wraps the provider chat API.
type Client struct {
	URL        string
	httpClient *http.Client
}

// NewClient creates a client for the chat endpoint at url.
// timeout bounds the whole exchange, body included. Zero means no limit.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		URL:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Request is the body of POST <url>.
type Request struct {
	Message      string `json:"message"`
	StudentLevel string `json:"studentLevel"`
}

// Response is the decoded provider reply. Fields other than reply are ignored.
// Reply is empty when the provider sent no usable reply text.
type Response struct {
	Reply string `json:"reply"`
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

// Chat sends one message, authenticated with apiKey as a bearer token.
// Transport failures, non-2xx statuses and bodies that are not JSON are
// errors. Any other JSON body is accepted; see replyText.
func (c *Client) Chat(ctx context.Context, apiKey string, req Request) (Response, error) {
	if apiKey == "" {
		return Response{}, ErrEmptyAPIKey
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return Response{}, fmt.Errorf("provider %d: %s", resp.StatusCode, string(b))
	}

	var raw interface{}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Response{}, fmt.Errorf("decode: %w", err)
	}
	return Response{Reply: replyText(raw)}, nil
}

// replyText extracts the reply from a decoded body. Numbers and true are
// relayed as their JSON text. A body that is not an object, a missing or null
// reply, an object or array reply, false and zero all yield "".
func replyText(body interface{}) string {
	obj, ok := body.(map[string]interface{})
	if !ok {
		return ""
	}
	switch v := obj["reply"].(type) {
	case string:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil && f == 0 {
			return ""
		}
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return ""
	default:
		return ""
	}
}
