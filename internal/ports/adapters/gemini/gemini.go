package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

const temperature float32 = 0.9

// Adapter asks Gemini for a storyboard document in JSON mode.
type Adapter struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, apiKey, model string) (*Adapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Adapter{client: client, model: model}, nil
}

func (a *Adapter) Produce(ctx context.Context, prompt string) ([]byte, error) {
	t := temperature
	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &t,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	slog.Debug("gemini storyboard response", "model", a.model, "bytes", len(text))
	return []byte(text), nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: no candidates returned")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", errors.New("gemini: empty response")
	}
	return sb.String(), nil
}
