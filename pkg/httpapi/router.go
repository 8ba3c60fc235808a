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

package httpapi

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/brightline/collections-orchestrator/pkg/domain"
	"github.com/brightline/collections-orchestrator/pkg/orchestrator"
)

// MessageIngester is C10's operation this router's POST /v1/messages drives.
type MessageIngester interface {
	Ingest(ctx context.Context, msg domain.InboundMessage) (orchestrator.Result, error)
}

// WorkflowRetrier is C10's re-entry point for POST /v1/workflows/{id}/retry.
type WorkflowRetrier interface {
	Retry(ctx context.Context, wf *domain.Workflow, msg domain.InboundMessage, reason string, force bool) (orchestrator.Result, error)
}

// WorkflowGetter resolves a workflow id to its current record, so /retry can
// reconstruct the Workflow the orchestrator needs.
type WorkflowGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
}

// ApprovalActor is C9's operation POST /v1/approvals/{id}/actions drives.
type ApprovalActor interface {
	Action(ctx context.Context, queueID uuid.UUID, action domain.ManagerAction) error
}

// ManualEscalator is C8's operation POST /v1/escalations drives.
type ManualEscalator interface {
	FromManual(ctx context.Context, workflowID uuid.UUID, customerPhone string, reason domain.TriggerReason) error
}

// HealthChecker surfaces C1's per-dependency breaker state and C3's
// aggregate degradation mode for the ops-facing health routes. May be nil,
// in which case only the bare liveness route is mounted.
type HealthChecker interface {
	Health() HealthReport
}

// Server holds D7's HTTP dependencies.
type Server struct {
	ingest     MessageIngester
	retry      WorkflowRetrier
	workflows  WorkflowGetter
	approvals  ApprovalActor
	escalation ManualEscalator
	health     HealthChecker
	registry   *prometheus.Registry
	logger     logrus.FieldLogger
}

// New constructs a Server wired to its collaborators. registry and health
// may both be nil to omit the /metrics route and the detailed/dependencies
// health routes, respectively.
func New(ingest MessageIngester, retry WorkflowRetrier, workflows WorkflowGetter,
	approvals ApprovalActor, escalation ManualEscalator, health HealthChecker,
	registry *prometheus.Registry, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		ingest: ingest, retry: retry, workflows: workflows,
		approvals: approvals, escalation: escalation, health: health,
		registry: registry, logger: logger,
	}
}

// Routes returns the chi.Router mounting every route the ingress exposes.
func (s *Server) Routes(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/v1/messages", s.handleIngest)
	r.Post("/v1/approvals/{id}/actions", s.handleApprovalAction)
	r.Post("/v1/escalations", s.handleManualEscalation)
	r.Post("/v1/workflows/{id}/retry", s.handleRetry)

	r.Get("/health", s.handleHealth)
	if s.health != nil {
		r.Get("/health/detailed", s.handleHealthDetailed)
		r.Get("/health/dependencies", s.handleHealthDependencies)
	}

	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	return r
}
