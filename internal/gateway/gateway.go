// Package gateway is the synchronous JSON-over-HTTP client against the chat
// gateway's local API: one call per endpoint, a merged keyword-argument
// body, and a uniform {status, msg, wording, data} response envelope.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rakunlabs/nezumi/internal/entity"
	"github.com/worldline-go/klient"
)

// Error is returned when the gateway itself reports status=="failed". It
// carries both fields from the envelope so the dispatcher can surface them.
type Error struct {
	Msg     string
	Wording string
}

func (e *Error) Error() string {
	if e.Wording != "" {
		return e.Wording
	}
	return e.Msg
}

type envelope struct {
	Status  string          `json:"status"`
	Msg     string          `json:"msg"`
	Wording string          `json:"wording"`
	Data    json.RawMessage `json:"data"`
}

// Client calls the gateway's documented endpoints.
type Client struct {
	client  *klient.Client
	timeout time.Duration
}

// New builds a Client against baseURL. Every call is bounded by timeout
// unless the caller's context already carries an earlier deadline.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	c, err := klient.New(
		klient.WithBaseURL(baseURL),
		klient.WithLogger(slog.Default()),
	)
	if err != nil {
		return nil, fmt.Errorf("gateway: new client: %w", err)
	}

	return &Client{client: c, timeout: timeout}, nil
}

// Call invokes endpoint with args as the merged JSON body, decoding the
// response's data field into out (which may be nil to discard it).
func (c *Client) Call(ctx context.Context, endpoint string, args map[string]any, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("gateway: encode %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway: build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var env envelope
	if err := c.client.Do(req, func(r *http.Response) error {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &env)
	}); err != nil {
		return fmt.Errorf("gateway: call %s: %w", endpoint, err)
	}

	if env.Status == "failed" {
		return &Error{Msg: env.Msg, Wording: env.Wording}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("gateway: decode %s response: %w", endpoint, err)
	}
	return nil
}

// Send dispatches message to context, using the private endpoint for a
// positive context and the group endpoint for a negative one. message is
// encoded to the gateway's bracketed form via the entity package first.
func (c *Client) Send(ctx context.Context, convContext int64, message string) error {
	encoded := entity.Encode(message)

	if convContext > 0 {
		return c.Call(ctx, "send_private_msg", map[string]any{
			"user_id": convContext,
			"message": encoded,
		}, nil)
	}
	return c.Call(ctx, "send_msg", map[string]any{
		"group_id": -convContext,
		"message":  encoded,
	}, nil)
}

// SendFile likewise maps to the private or group file-upload endpoint based
// on the sign of context.
func (c *Client) SendFile(ctx context.Context, convContext int64, path string, name string) error {
	args := map[string]any{"file": path}
	if name != "" {
		args["name"] = name
	}

	if convContext > 0 {
		args["user_id"] = convContext
		return c.Call(ctx, "upload_private_file", args, nil)
	}
	args["group_id"] = -convContext
	return c.Call(ctx, "upload_group_file", args, nil)
}
