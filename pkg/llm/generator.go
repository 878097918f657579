package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
)

var ErrNoChoices = errors.New("no response from model")

// GeneratorConfig represents the configuration for a text generator.
type GeneratorConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string   // Ollama server URL
	Temperature *float64 // nil leaves the provider default
	MaxTokens   int
}

// completer is one round trip to a model: prompt in, raw text out.
type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator sends prompts to a generative model and returns the trimmed
// output. Nothing about the content is validated.
type Generator struct {
	config    GeneratorConfig
	completer completer
}

// NewGeneratorWithConfig creates a new Generator with the given configuration.
func NewGeneratorWithConfig(ctx context.Context, config GeneratorConfig) (*Generator, error) {
	if config.Provider == "" {
		config.Provider = ProviderGoogleAI
	}
	if t := config.Temperature; t != nil && (*t < 0 || *t > 2) {
		return nil, fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidConfig)
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("%w: max tokens cannot be negative", ErrInvalidConfig)
	}

	var c completer
	switch config.Provider {
	case ProviderGoogleAI:
		if config.APIKey == "" {
			return nil, fmt.Errorf("%w: missing Google AI API key", ErrInvalidConfig)
		}
		if config.Model == "" {
			config.Model = "gemini-2.0-flash"
		}
		model, err := googleai.New(ctx,
			googleai.WithAPIKey(config.APIKey),
			googleai.WithDefaultModel(config.Model))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		c = &langchainCompleter{model: model, config: config}
	case ProviderOllama:
		if config.Model == "" {
			config.Model = "mistral"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		model, err := ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
		c = &langchainCompleter{model: model, config: config}
	case ProviderOpenAI:
		if config.APIKey == "" {
			return nil, fmt.Errorf("%w: missing OpenAI API key", ErrInvalidConfig)
		}
		if config.Model == "" {
			config.Model = "gpt-4o-mini"
		}
		c = &openAICompleter{
			client: openai.NewClient(option.WithAPIKey(config.APIKey)),
			config: config,
		}
	default:
		return nil, fmt.Errorf("%w: unknown generation provider %q", ErrInvalidConfig, config.Provider)
	}

	return &Generator{config: config, completer: c}, nil
}

// Model returns the model identifier requests go to.
func (g *Generator) Model() string {
	return g.config.Model
}

// Generate sends the prompt and returns the reply with surrounding
// whitespace removed.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyInput
	}

	text, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generation error: %w", err)
	}

	return strings.TrimSpace(text), nil
}

type langchainCompleter struct {
	model  llms.Model
	config GeneratorConfig
}

func (l *langchainCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var opts []llms.CallOption
	if l.config.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*l.config.Temperature))
	}
	if l.config.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(l.config.MaxTokens))
	}

	resp, err := l.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", ErrNoChoices
	}

	return resp.Choices[0].Content, nil
}

type openAICompleter struct {
	client openai.Client
	config GeneratorConfig
}

func (o *openAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if o.config.Temperature != nil {
		params.Temperature = openai.Float(*o.config.Temperature)
	}
	if o.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.config.MaxTokens))
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", ErrNoChoices
	}

	return completion.Choices[0].Message.Content, nil
}
