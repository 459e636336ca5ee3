// Package analysis describes uploaded images with Gemini and extracts a
// best-effort monetary total from the description.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	// DefaultModelName is the default Gemini model used for image analysis.
	DefaultModelName = "gemini-2.5-flash"

	// Prompt is the fixed instruction sent with every image.
	Prompt = "Describe this image. If it's a receipt, extract items and prices"
)

// NewClient creates a GenAI client configured from the environment
// (GOOGLE_API_KEY, or GOOGLE_GENAI_USE_VERTEXAI with project and location).
func NewClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewClient: create genai client: %w", err)
	}
	return client, nil
}

// GeminiAnalyzer sends images to a Gemini model.
type GeminiAnalyzer struct {
	client *genai.Client
	model  string
}

// NewGeminiAnalyzer creates an analyzer over a shared client.
func NewGeminiAnalyzer(client *genai.Client, model string) *GeminiAnalyzer {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiAnalyzer{client: client, model: model}
}

// Model returns the model name used for analysis.
func (a *GeminiAnalyzer) Model() string { return a.model }

// Analyze returns the model's description of the image.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("Analyze: empty image")
	}
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: Prompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     image,
					},
				},
			},
		},
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Analyze: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("Analyze: empty response from model")
	}
	return text, nil
}
