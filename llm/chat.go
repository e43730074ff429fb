package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var (
	ErrChatRateLimited    = errors.New("chat API rate limit exceeded")
	ErrChatQuotaExhausted = errors.New("chat API quota exhausted")
)

// ChatClient wraps the Gemini client for answer generation and document text
// extraction.
type ChatClient struct {
	client    *genai.Client
	modelName string
}

func NewChatClient(ctx context.Context, apiKey, modelName string) (*ChatClient, error) {
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	return &ChatClient{
		client:    client,
		modelName: modelName,
	}, nil
}

// Generate produces a completion for the prompt under the given system
// instruction.
func (c *ChatClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	model.SetTemperature(0.2)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", mapAPIError(err)
	}

	text := responseText(resp)
	if text == "" {
		return "", errors.New("chat API returned empty content")
	}
	return text, nil
}

// ExtractText asks the model to return the plain text content of an uploaded
// document (PDF, Word, scanned image). This replaces a dedicated OCR service.
func (c *ChatClient) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text("Extract the complete plain text content of this document, preserving paragraph breaks. Return only the extracted text with no commentary."),
	)
	if err != nil {
		return "", mapAPIError(err)
	}

	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				builder.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(builder.String())
}

func mapAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429:
			return ErrChatRateLimited
		case 402:
			return ErrChatQuotaExhausted
		}
	}
	return fmt.Errorf("chat API error: %w", err)
}
