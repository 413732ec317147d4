package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIAnalyzer implements Analyzer using OpenAI's chat completions API.
type OpenAIAnalyzer struct {
	client *openai.Client
	config Config
}

func NewOpenAIAnalyzer(cfg Config) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{
		client: openai.NewClient(cfg.APIKey),
		config: cfg,
	}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, meta Meta, transcript string) (string, error) {
	model := a.config.Model
	if model == "" {
		model = "gpt-4o"
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildAnalysisPrompt(meta, transcript)},
		},
		Temperature: 0.3,
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		log.Printf("openai-analyzer: API call failed after %v: %v", duration, err)
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: no response choices")
	}

	report := strings.TrimSpace(resp.Choices[0].Message.Content)
	log.Printf("openai-analyzer: analysis done in %v (%d chars)", duration, len(report))
	return report, nil
}
