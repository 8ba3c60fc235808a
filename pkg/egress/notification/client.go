/*
Copyright 2026 Brightline Collections.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package notification implements D4: the notification client, fanning a
// single Notification out to one or more channels. The generic HTTP webhook
// channel posts to a configurable endpoint; a Slack channel posts through
// github.com/slack-go/slack. The service entrypoint registers only the
// webhook channel, so C8's "notify internal operators" step goes through it.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
)

// Notification is the payload posted to /notifications/send.
type Notification struct {
	Channel   string         `json:"channel"`
	Recipient string         `json:"recipient"`
	Content   Content        `json:"content"`
	Priority  string         `json:"priority"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Content is a notification's subject/body pair.
type Content struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Channel delivers a Notification somewhere.
type Channel interface {
	Send(ctx context.Context, n Notification) error
}

// Client fans a Notification out to every registered Channel.
type Client struct {
	channels []Channel
}

// New creates a Client fanning out to the given channels.
func New(channels ...Channel) *Client {
	return &Client{channels: channels}
}

// Send delivers n to every channel, returning the first error but
// attempting all channels regardless (matching C8's best-effort fan-out).
func (c *Client) Send(ctx context.Context, n Notification) error {
	var firstErr error
	for _, ch := range c.channels {
		if err := ch.Send(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WebhookChannel posts the notification as JSON to a generic HTTP endpoint.
type WebhookChannel struct {
	URL  string
	HTTP *http.Client
}

// NewWebhookChannel creates a WebhookChannel with a 30s default budget.
func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookChannel{URL: url, HTTP: &http.Client{Timeout: timeout}}
}

// Send posts n to the webhook URL.
func (w *WebhookChannel) Send(ctx context.Context, n Notification) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(n); err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeInternal, "encoding notification")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, &buf)
	if err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeInternal, "building notification request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.HTTP.Do(req)
	if err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeNetwork, "notification webhook request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return orcherrors.Newf(orcherrors.ErrorTypeExternalService, "notification webhook returned %d", resp.StatusCode)
	}
	return nil
}

// SlackChannel posts internal-operator notifications to a Slack webhook.
type SlackChannel struct {
	WebhookURL string
}

// NewSlackChannel creates a SlackChannel posting to webhookURL.
func NewSlackChannel(webhookURL string) *SlackChannel {
	return &SlackChannel{WebhookURL: webhookURL}
}

// Send posts n as a Slack message.
func (s *SlackChannel) Send(ctx context.Context, n Notification) error {
	msg := &slack.WebhookMessage{
		Text: n.Content.Subject + "\n" + n.Content.Body,
	}
	if err := slack.PostWebhookContext(ctx, s.WebhookURL, msg); err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeExternalService, "slack webhook post failed")
	}
	return nil
}
