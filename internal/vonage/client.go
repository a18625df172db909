package vonage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DefaultMessagesURL is the production Vonage Messages API endpoint.
const DefaultMessagesURL = "https://api.nexmo.com/v1/messages"

const (
	channelWhatsApp = "whatsapp"
	messageTypeText = "text"
)

// StatusError is returned when Vonage answers with anything other than 202 Accepted.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vonage rejected message: status %d: %s", e.StatusCode, e.Body)
}

// Opts holds configuration options for the Vonage client.
type Opts struct {
	Endpoint   string
	From       string
	HTTPClient *http.Client
}

// Option defines a configuration option for the Vonage client.
type Option func(*Opts)

// WithEndpoint overrides the Messages API URL.
func WithEndpoint(url string) Option {
	return func(o *Opts) { o.Endpoint = url }
}

// WithFrom sets the WhatsApp sender number.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

type sendRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
	Channel     string `json:"channel"`
}

type sendResponse struct {
	MessageUUID string `json:"message_uuid"`
}

// Client sends WhatsApp text messages through the Vonage Messages API.
type Client struct {
	endpoint string
	from     string
	issuer   *TokenIssuer
	http     *http.Client
}

// NewClient creates a Vonage client. A token issuer and sender number are required.
func NewClient(issuer *TokenIssuer, opts ...Option) (*Client, error) {
	cfg := Opts{Endpoint: DefaultMessagesURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if issuer == nil {
		return nil, fmt.Errorf("vonage token issuer must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("vonage from number must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	slog.Debug("Vonage client config loaded", "endpoint", cfg.Endpoint, "from_set", cfg.From != "")
	return &Client{
		endpoint: cfg.Endpoint,
		from:     cfg.From,
		issuer:   issuer,
		http:     cfg.HTTPClient,
	}, nil
}

// SendMessage posts a text message to the recipient. Only 202 Accepted counts as success.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	token, err := c.issuer.Issue()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(sendRequest{
		From:        c.from,
		To:          to,
		MessageType: messageTypeText,
		Text:        body,
		Channel:     channelWhatsApp,
	})
	if err != nil {
		return fmt.Errorf("failed to encode vonage payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build vonage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	slog.Debug("Vonage SendMessage posting", "to", to, "body_length", len(body))
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		slog.Debug("Vonage SendMessage could not read response body", "to", to, "status_code", resp.StatusCode, "error", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var accepted sendResponse
	if err := json.Unmarshal(respBody, &accepted); err != nil {
		slog.Warn("Vonage SendMessage accepted with unreadable body", "to", to, "error", err)
		return nil
	}
	slog.Info("Vonage message accepted", "to", to, "message_uuid", accepted.MessageUUID)
	return nil
}
