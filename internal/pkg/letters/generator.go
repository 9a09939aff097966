package letters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coverpilothq/coverpilot/internal/pkg/env"
	openai "github.com/sashabaranov/go-openai"
)

const defaultCompletionModel = openai.GPT4oMini

// Generator produces the letter text for a generation request. The OpenAI
// implementation is the production one; tests inject a fake.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (content string, model string, err error)
}

// GenerateRequest carries the user-supplied inputs for one letter.
type GenerateRequest struct {
	JobTitle    string `json:"job_title" validate:"required,max=200"`
	CompanyName string `json:"company_name" validate:"required,max=200"`
	JobPosting  string `json:"job_posting" validate:"required,max=20000"`
	Resume      string `json:"resume" validate:"required,max=30000"`
}

type openAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGeneratorFromEnv builds the production generator from env config.
func NewOpenAIGeneratorFromEnv() (Generator, error) {
	apiKey := strings.TrimSpace(env.GetEnv("OPENAI_API_KEY", ""))
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not configured")
	}
	model := strings.TrimSpace(env.GetEnv("OPENAI_COMPLETION_MODEL", defaultCompletionModel))

	return &openAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

func (g *openAIGenerator) Generate(ctx context.Context, req GenerateRequest) (string, string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are an expert career coach. Write a concise, specific cover letter " +
					"in the applicant's voice. Use only facts present in the resume; never invent " +
					"experience. Three to four paragraphs, no placeholders.",
			},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Position: %s at %s\n\nJob posting:\n%s\n\nResume:\n%s",
					req.JobTitle, req.CompanyName, req.JobPosting, req.Resume),
			},
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("letter completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", "", errors.New("letter completion returned no content")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), g.model, nil
}
