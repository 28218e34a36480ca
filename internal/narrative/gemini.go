package narrative

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-1.5-flash"

// contentGenerator is satisfied by *genai.Models.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient writes explanations with Google's Gemini models. Photos are
// sent as inline image parts next to the text prompt.
type GeminiClient struct {
	models      contentGenerator
	model       string
	temperature float32
}

// NewGeminiClient constructs a Gemini-backed generator.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required for gemini")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiWith(client.Models, model), nil
}

func newGeminiWith(models contentGenerator, model string) *GeminiClient {
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{models: models, model: model, temperature: 0.7}
}

func (c *GeminiClient) Name() string { return "gemini" }

// Explain renders the prompt and asks the model for a narrative.
func (c *GeminiClient) Explain(ctx context.Context, req Request) (Explanation, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return Explanation{}, err
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, p := range req.Photos {
		if len(p.Data) == 0 {
			continue
		}
		parts = append(parts, genai.NewPartFromBytes(p.Data, p.MimeType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	temp := c.temperature
	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		Temperature: &temp,
	})
	if err != nil {
		return Explanation{}, fmt.Errorf("gemini generate model=%s: %w", c.model, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Explanation{}, ErrEmptyResponse
	}
	return Explanation{
		Text:       text,
		Provider:   c.Name(),
		Model:      c.model,
		PromptHash: HashPrompt(prompt),
	}, nil
}

var _ Generator = (*GeminiClient)(nil)
