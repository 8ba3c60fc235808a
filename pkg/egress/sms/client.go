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

// Package sms implements D3: the SMS gateway egress client.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
)

// SendRequest is the outbound POST /sms/send payload.
type SendRequest struct {
	To             string `json:"to"`
	Body           string `json:"body"`
	ConversationID string `json:"conversation_id"`
}

// SendResult is the gateway's acknowledgement.
type SendResult struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// Message is one turn of a GET /conversations/{phone} history response.
type Message struct {
	Direction string    `json:"direction"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Client is D3's interface.
type Client interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
	History(ctx context.Context, phone string) ([]Message, error)
	PauseMessaging(ctx context.Context, workflowID uuid.UUID) error
}

// HTTPClient is the concrete net/http-backed implementation.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient creates a client with a 30s default timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{BaseURL: baseURL, HTTP: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return orcherrors.Wrap(err, orcherrors.ErrorTypeInternal, "encoding sms gateway request")
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &buf)
	if err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeInternal, "building sms gateway request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeNetwork, "sms gateway request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return orcherrors.Newf(orcherrors.ErrorTypeExternalService, "sms gateway returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeExternalService, "decoding sms gateway response")
	}
	return nil
}

// Send posts a message for delivery.
func (c *HTTPClient) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	var out SendResult
	err := c.doJSON(ctx, http.MethodPost, "/sms/send", req, &out)
	return out, err
}

// History fetches a phone number's conversation turns.
func (c *HTTPClient) History(ctx context.Context, phone string) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/conversations/%s", phone), nil, &out)
	return out.Messages, err
}

// PauseMessaging instructs the gateway to stop sending for a workflow, the
// action C8's fan-out step 3 performs on a trigger- or timeout-based
// escalation.
func (c *HTTPClient) PauseMessaging(ctx context.Context, workflowID uuid.UUID) error {
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/workflows/%s/pause", workflowID), nil, nil)
}
