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

// Command collections-orchestrator is D8: the process entrypoint. It loads
// configuration, wires every component from C1 through C11 and D1 through
// D7, and serves HTTP until SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/brightline/collections-orchestrator/internal/config"
	"github.com/brightline/collections-orchestrator/pkg/approval"
	"github.com/brightline/collections-orchestrator/pkg/degradation"
	"github.com/brightline/collections-orchestrator/pkg/domain"
	"github.com/brightline/collections-orchestrator/pkg/egress/llm"
	"github.com/brightline/collections-orchestrator/pkg/egress/notification"
	"github.com/brightline/collections-orchestrator/pkg/egress/sms"
	"github.com/brightline/collections-orchestrator/pkg/egress/tenant"
	"github.com/brightline/collections-orchestrator/pkg/escalation"
	"github.com/brightline/collections-orchestrator/pkg/httpapi"
	"github.com/brightline/collections-orchestrator/pkg/metrics"
	"github.com/brightline/collections-orchestrator/pkg/orchestrator"
	"github.com/brightline/collections-orchestrator/pkg/storage/postgres"
	rediscache "github.com/brightline/collections-orchestrator/pkg/storage/redis"
	"github.com/brightline/collections-orchestrator/pkg/timeout"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the orchestrator's YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("fatal")
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	logger.WithField("listen_addr", cfg.Server.ListenAddr).Info("starting collections-orchestrator")

	tracerProvider, err := newTracerProvider()
	if err != nil {
		return fmt.Errorf("constructing trace provider: %w", err)
	}
	otel.SetTracerProvider(tracerProvider)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracer provider shutdown failed")
		}
	}()

	sink := metrics.New()

	db, err := postgres.Open(cfg.Storage.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	if err := postgres.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
	defer redisClient.Close()

	workflowStore := postgres.NewWorkflowStore(db)
	approvalStore := postgres.NewApprovalStore(db)
	auditStore := postgres.NewAuditStore(db)
	paymentPlanStore := postgres.NewPaymentPlanStore(db)
	escalationStore := postgres.NewEscalationStore(db)
	timeoutStore := postgres.NewTimeoutStore(db)
	_ = paymentPlanStore // not yet called: the orchestrator doesn't expose a validation-report writer hook

	tenantHTTP := tenant.NewHTTPClient(cfg.TenantData.URL, cfg.TenantData.Timeout)
	tenantCache := rediscache.NewTenantContextCache(redisClient, cfg.Storage.CacheTTL, tenantHTTP)

	smsHTTP := sms.NewHTTPClient(cfg.SMSGateway.URL, cfg.SMSGateway.Timeout)

	llmClient, err := newLLMClient(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("constructing llm client: %w", err)
	}

	notifyClient := notification.New(
		notification.NewWebhookChannel(cfg.Notification.URL, cfg.Notification.Timeout),
	)

	degrade := degradation.New()

	tenantDep := newProtectedDependency("tenant-data", cfg.CircuitBreaker.ToBreaker(), cfg.Retry.ToRetry(), logger)
	historyDep := newProtectedDependency("sms-history", cfg.CircuitBreaker.ToBreaker(), cfg.Retry.ToRetry(), logger)
	llmDep := newProtectedDependency("llm", cfg.CircuitBreaker.ToBreaker(), cfg.Retry.ToRetry(), logger)
	smsSendDep := newProtectedDependency("sms-send", cfg.CircuitBreaker.ToBreaker(), cfg.Retry.ToRetry(), logger)
	notifyDep := newProtectedDependency("notification", cfg.CircuitBreaker.ToBreaker(), cfg.Retry.ToRetry(), logger)

	for _, dep := range []*protectedDependency{tenantDep, historyDep, llmDep, smsSendDep, notifyDep} {
		degrade.UpdateStatus(dep.name, degradation.ServiceHealth{Available: true})
	}

	tenantFetcher := &tenantAdapter{client: tenantCache, dep: tenantDep}
	historyFetcher := &historyAdapter{client: smsHTTP, dep: historyDep}
	replyGenerator := &replyGeneratorAdapter{client: llmClient, dep: llmDep}
	replySender := &smsSenderAdapter{client: smsHTTP, dep: smsSendDep}
	operatorNotifier := &operatorNotifierAdapter{client: notifyClient, dep: notifyDep}

	timeoutMonitor := timeout.New()
	restoreTimeouts(ctx, timeoutStore, timeoutMonitor, logger)

	escalationEngine := escalation.New(escalationStore, tenantFetcher, replySender, operatorNotifier, timeoutMonitor, logger)

	approvalQueue := approval.New(replySender, escalationEngine, auditStore)
	_ = approvalStore // not yet called: the in-memory queue has no persistence-mirroring hook

	health := &healthAdapter{
		degrade: degrade,
		deps:    []*protectedDependency{tenantDep, historyDep, llmDep, smsSendDep, notifyDep},
	}

	orchestratorCfg := orchestrator.Config{
		AutoApprovalThreshold:   cfg.Routing.AutoApprovalThreshold,
		ManualApprovalThreshold: cfg.Routing.ManualApprovalThreshold,
		EscalationTimeout:       time.Duration(cfg.Timeouts.EscalationTimeoutHours) * time.Hour,
	}
	orch := orchestrator.New(
		tenantFetcher, historyFetcher, replyGenerator, replySender,
		timeoutMonitor, approvalQueue, escalationEngine, workflowStore,
		degrade, sink, logger, orchestratorCfg,
	)

	srv := httpapi.New(orch, orch, workflowStore, approvalQueue, escalationEngine, health, sink.Registry(), logger)

	tracedHandler := otelhttp.NewHandler(srv.Routes(nil), "collections-orchestrator")
	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: tracedHandler,
	}

	stopScan := make(chan struct{})
	go timeoutMonitor.Run(stopScan, cfg.Monitor.ScanIntervalSeconds, func(result timeout.ScanResult) {
		onScan(ctx, result, escalationEngine, logger)
	})

	stopDrain := make(chan struct{})
	go drainLoop(stopDrain, degrade, logger)

	stopSweep := make(chan struct{})
	approvalCeiling := time.Duration(cfg.Timeouts.ApprovalTimeoutHours) * time.Hour
	go approvalSweepLoop(stopSweep, approvalQueue, escalationEngine, approvalCeiling, cfg.Monitor.ScanIntervalSeconds, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.ListenAddr).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		close(stopScan)
		close(stopDrain)
		close(stopSweep)
		return fmt.Errorf("http server: %w", err)
	}

	close(stopScan)
	close(stopDrain)
	close(stopSweep)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLLMClient(ctx context.Context, cfg config.LLMConfig) (llm.Client, error) {
	llmCfg := llm.Config{
		Provider:     cfg.Provider,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		Timeout:      cfg.Timeout,
		AnthropicKey: cfg.AnthropicKey,
	}
	if cfg.Provider == "bedrock" {
		runtime, err := newBedrockRuntime(ctx)
		if err != nil {
			return nil, err
		}
		llmCfg.BedrockRuntime = runtime
	}
	return llm.New(llmCfg)
}

// onScan turns one timeout-monitor scan into escalation fan-out and warning
// notifications.
func onScan(ctx context.Context, result timeout.ScanResult, engine *escalation.Engine, logger logrus.FieldLogger) {
	for _, t := range result.Expired {
		if err := engine.FromTimeout(ctx, t); err != nil {
			logger.WithError(err).WithField("workflow_id", t.WorkflowID).Warn("escalating on timeout expiry failed")
		}
	}
	for _, t := range result.Warnings {
		if err := engine.Warn(ctx, t); err != nil {
			logger.WithError(err).WithField("workflow_id", t.WorkflowID).Warn("timeout warning notification failed")
		}
	}
}

func drainLoop(stop <-chan struct{}, degrade *degradation.Controller, logger logrus.FieldLogger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if degrade.QueueLen() == 0 {
				continue
			}
			succeeded, discarded := degrade.Drain()
			if succeeded > 0 || discarded > 0 {
				logger.WithFields(logrus.Fields{"succeeded": succeeded, "discarded": discarded}).Info("drained deferred operations")
			}
		}
	}
}

// approvalSweepLoop periodically sweeps C9's queue for Pending entries older
// than ceiling and hands each to C8 as a manual escalation, the approval
// timeout's counterpart to onScan's conversation-timeout handling.
func approvalSweepLoop(stop <-chan struct{}, queue *approval.Queue, engine *escalation.Engine, ceiling, interval time.Duration, logger logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			due := queue.SweepExpired(ceiling)
			for _, e := range due {
				if err := engine.FromManual(context.Background(), e.WorkflowID, e.ConversationID, domain.ReasonDissatisfaction); err != nil {
					logger.WithError(err).WithField("queue_entry_id", e.ID).Warn("auto-escalating expired approval failed")
				}
			}
			if len(due) > 0 {
				logger.WithField("count", len(due)).Info("auto-escalated expired approval entries")
			}
		}
	}
}

func restoreTimeouts(ctx context.Context, store *postgres.TimeoutStore, monitor *timeout.Monitor, logger logrus.FieldLogger) {
	active, err := store.ListActive(ctx)
	if err != nil {
		logger.WithError(err).Warn("loading persisted timeouts failed, starting with an empty registry")
		return
	}
	for _, t := range active {
		monitor.Start(t.WorkflowID, t.CustomerPhone, t.Threshold)
	}
	if len(active) > 0 {
		logger.WithField("count", len(active)).Info("restored active timeout registrations")
	}
}
