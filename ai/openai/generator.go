// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/callscope/ai"
	"github.com/poiesic/callscope/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client  llms.Model
	timeout time.Duration
	logger  *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

// newGenerator is an internal constructor that returns the concrete type.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.LLMHost),
		openai.WithToken(token(config)),
		openai.WithModel(config.LLMModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:  client,
		timeout: config.RequestTimeout,
		logger:  slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new chat generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate sends the prompt as a system message plus a user message and
// returns the first choice. Each call is bounded by the configured timeout.
func (g *Generator) Generate(ctx context.Context, prompt ai.Prompt) (string, error) {
	if strings.TrimSpace(prompt.User) == "" {
		return "", fmt.Errorf("%w: empty prompt", core.ErrInvalidInput)
	}

	content := make([]llms.MessageContent, 0, 2)
	if prompt.System != "" {
		content = append(content, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(prompt.System)},
		})
	}
	content = append(content, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt.User)},
	})

	callOpts := []llms.CallOption{llms.WithTemperature(prompt.Temperature)}
	if prompt.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(prompt.MaxTokens))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	response, err := g.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		g.logger.Error("failed to generate content", "err", err)
		return "", classifyError(err)
	}
	if len(response.Choices) < 1 {
		return "", fmt.Errorf("%w: no choices returned from model", core.ErrRemoteUnavailable)
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}
