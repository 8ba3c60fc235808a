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

// Package llm implements D2: the LLM egress client, with three concrete
// providers (anthropic, bedrock, langchain) behind one interface. Prompt
// assembly uses a package-level template constant with named sections,
// never built ad hoc inline.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	langchainanthropic "github.com/tmc/langchaingo/llms/anthropic"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	"github.com/brightline/collections-orchestrator/pkg/domain"
)

// promptTemplate is the single source of truth for prompt assembly; every
// provider fills these named sections rather than building text inline.
const promptTemplate = `You are a collections assistant replying on behalf of a servicer.

## Tenant context
%s

## Conversation history
%s

## New message
%s

Reply in the tenant's language preference if known. If the tenant proposes a
payment plan, restate it as: PAYMENT_PLAN: weekly=<amount>, weeks=<count>.`

// Turn is one historical conversation message.
type Turn struct {
	Direction string // "inbound" | "outbound"
	Content   string
}

// GenerateRequest is D2's input: tenant context, recent history, and the
// new inbound message.
type GenerateRequest struct {
	TenantContext string
	History       []Turn
	Message       string
}

func generatePrompt(req GenerateRequest) string {
	var history strings.Builder
	for _, t := range req.History {
		fmt.Fprintf(&history, "[%s] %s\n", t.Direction, t.Content)
	}
	return fmt.Sprintf(promptTemplate, req.TenantContext, history.String(), req.Message)
}

// Client is D2's interface.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (domain.CandidateReply, error)
}

// Config configures any provider.
type Config struct {
	Provider       string // "anthropic" | "bedrock" | "langchain"
	Model          string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	AnthropicKey   string
	BedrockRuntime *bedrockruntime.Client
}

// New constructs the configured provider's concrete Client.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return &anthropicClient{
			client: anthropic.NewClient(option.WithAPIKey(cfg.AnthropicKey)),
			cfg:    cfg,
		}, nil
	case "bedrock":
		return &bedrockClient{
			runtime: cfg.BedrockRuntime,
			cfg:     cfg,
		}, nil
	case "langchain":
		model, err := langchainanthropic.New(
			langchainanthropic.WithToken(cfg.AnthropicKey),
			langchainanthropic.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, orcherrors.Wrap(err, orcherrors.ErrorTypeValidation, "constructing langchain model")
		}
		return &langchainClient{model: model, cfg: cfg}, nil
	default:
		return nil, orcherrors.Newf(orcherrors.ErrorTypeValidation, "unknown llm provider %q", cfg.Provider)
	}
}

type anthropicClient struct {
	client anthropic.Client
	cfg    Config
}

func (a *anthropicClient) Generate(ctx context.Context, req GenerateRequest) (domain.CandidateReply, error) {
	start := time.Now()
	prompt := generatePrompt(req)

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.cfg.Model),
		MaxTokens:   int64(a.cfg.MaxTokens),
		Temperature: anthropic.Float(a.cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return domain.CandidateReply{}, classifyAnthropicError(err)
	}

	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return domain.CandidateReply{
		Content:   content.String(),
		ModelID:   a.cfg.Model,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if ok := errors.As(err, &apiErr); ok {
		switch apiErr.StatusCode {
		case 401:
			return orcherrors.AIServiceAuthentication("anthropic")
		case 429:
			return orcherrors.AIServiceRateLimit("anthropic", 0)
		case 408, 504:
			return orcherrors.AIServiceTimeout("anthropic")
		}
		return orcherrors.Wrapf(err, orcherrors.ErrorTypeExternalService, "anthropic returned %d", apiErr.StatusCode)
	}
	return orcherrors.Wrap(err, orcherrors.ErrorTypeNetwork, "anthropic request failed")
}

type bedrockClient struct {
	runtime *bedrockruntime.Client
	cfg     Config
}

func (b *bedrockClient) Generate(ctx context.Context, req GenerateRequest) (domain.CandidateReply, error) {
	start := time.Now()
	prompt := generatePrompt(req)

	payload := fmt.Sprintf(`{"prompt":%q,"max_tokens":%d,"temperature":%f}`, prompt, b.cfg.MaxTokens, b.cfg.Temperature)
	out, err := b.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &b.cfg.Model,
		Body:        []byte(payload),
		ContentType: strPtr("application/json"),
	})
	if err != nil {
		return domain.CandidateReply{}, orcherrors.Wrap(err, orcherrors.ErrorTypeExternalService, "bedrock invoke failed")
	}

	return domain.CandidateReply{
		Content:   string(out.Body),
		ModelID:   b.cfg.Model,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

// langchainClient routes generation through langchaingo's provider-agnostic
// llms.Model interface rather than talking to the anthropic SDK directly,
// giving operators a swap-in path to any other langchaingo-backed provider
// without touching this package.
type langchainClient struct {
	model llms.Model
	cfg   Config
}

func (l *langchainClient) Generate(ctx context.Context, req GenerateRequest) (domain.CandidateReply, error) {
	start := time.Now()
	prompt := generatePrompt(req)

	completion, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt,
		llms.WithMaxTokens(l.cfg.MaxTokens),
		llms.WithTemperature(l.cfg.Temperature),
	)
	if err != nil {
		return domain.CandidateReply{}, orcherrors.Wrap(err, orcherrors.ErrorTypeExternalService, "langchain request failed")
	}

	return domain.CandidateReply{
		Content:   completion,
		ModelID:   l.cfg.Model,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

func strPtr(s string) *string { return &s }
