package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"alcyxob/rehabflow/internal/config"
	"alcyxob/rehabflow/internal/domain"
	"alcyxob/rehabflow/internal/logger"
	"alcyxob/rehabflow/internal/prompt"

	openai "github.com/sashabaranov/go-openai"
)

// Generator produces the next routine and clinical decision for a payload.
// Implementations return *domain.GenerationError for transport or service
// failures and *domain.SchemaValidationError for malformed responses.
type Generator interface {
	Generate(ctx context.Context, payload prompt.Payload) (*Result, error)
}

// OpenAIGenerator calls an OpenAI-compatible chat completion endpoint with a
// json_schema response format.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	log         *logger.Logger
}

// NewOpenAIGenerator builds a generator from configuration. BaseURL may point
// at any compatible service, e.g. Gemini's OpenAI endpoint.
func NewOpenAIGenerator(cfg config.GenerationConfig, log *logger.Logger) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("generation.api_key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		log:         log.With("component", "generator", "model", model),
	}, nil
}

// Generate sends the payload and validates the structured answer.
func (g *OpenAIGenerator) Generate(ctx context.Context, payload prompt.Payload) (*Result, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: payload.System},
			{Role: openai.ChatMessageRoleUser, Content: payload.User},
		},
		Temperature: g.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   RoutineSchemaName,
				Schema: RoutineSchema(),
			},
		},
	})
	if err != nil {
		return nil, &domain.GenerationError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &domain.GenerationError{Err: errors.New("service returned no choices")}
	}

	g.log.Debug("routine generated",
		"elapsed", time.Since(started).String(),
		"promptTokens", resp.Usage.PromptTokens,
		"completionTokens", resp.Usage.CompletionTokens,
		"finishReason", resp.Choices[0].FinishReason,
	)

	return ParseRoutineResult([]byte(resp.Choices[0].Message.Content))
}
