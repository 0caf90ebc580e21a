package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EmailMessage is one transactional email ready for submission.
type EmailMessage struct {
	To       string `json:"to"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html"`
	TextBody string `json:"text"`
}

// MailClient submits messages to the transactional email provider's HTTP
// API. Actual delivery, bounces and retries are the provider's concern.
type MailClient struct {
	endpoint   string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewMailClient constructs a mail client. An empty endpoint or API key
// leaves the client unconfigured; senders check IsConfigured before use.
func NewMailClient(endpoint, apiKey, from string, timeout time.Duration) *MailClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MailClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// IsConfigured reports whether the client can submit messages.
func (c *MailClient) IsConfigured() bool {
	return c != nil && c.endpoint != "" && c.apiKey != "" && c.from != ""
}

// Send submits the message and returns the provider's message ID.
func (c *MailClient) Send(ctx context.Context, msg EmailMessage) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("mail client not configured")
	}
	if msg.From == "" {
		msg.From = c.from
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/send", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("email provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var response struct {
		MessageID string `json:"messageId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}
	return response.MessageID, nil
}
