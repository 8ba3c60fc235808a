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

// Package tenant implements D1: the tenant-data egress client, a thin
// net/http + encoding/json wrapper the orchestrator always calls through
// protected() (circuitbreaker + retry).
package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
)

// Context is the tenant-data payload from GET /monitor/tenant/{id}.
type Context struct {
	TenantID            string  `json:"tenant_id"`
	AmountOwed          float64 `json:"amount_owed"`
	TenantPortion       float64 `json:"tenant_portion"`
	DaysLate            int     `json:"days_late"`
	ReliabilityScore    float64 `json:"reliability_score"`
	FailedPaymentPlans  int     `json:"failed_payment_plans"`
	LanguagePreference  string  `json:"language_preference"`
}

// Client is D1's interface; C10 depends on this, not the concrete HTTP type.
type Client interface {
	Get(ctx context.Context, tenantID string) (Context, error)
}

// HTTPClient is the concrete net/http-backed implementation.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient creates a client with a 60s default timeout; callers can
// still pass a shorter context deadline.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Get fetches tenantID's monitoring context.
func (c *HTTPClient) Get(ctx context.Context, tenantID string) (Context, error) {
	url := fmt.Sprintf("%s/monitor/tenant/%s", c.BaseURL, tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Context{}, orcherrors.Wrap(err, orcherrors.ErrorTypeInternal, "building tenant-data request")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Context{}, orcherrors.Wrap(err, orcherrors.ErrorTypeNetwork, "tenant-data request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Context{}, orcherrors.Newf(orcherrors.ErrorTypeExternalService, "tenant-data returned %d", resp.StatusCode).
			WithCode(fmt.Sprintf("ORC_%d_TENANT_DATA", resp.StatusCode))
	}

	var out Context
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Context{}, orcherrors.Wrap(err, orcherrors.ErrorTypeExternalService, "decoding tenant-data response")
	}
	return out, nil
}
