package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"google.golang.org/genai"
)

const defaultModel = "gemini-flash-lite-latest"

// llmClient wraps a Gemini client and a fixed model name. The API key is
// taken from GEMINI_API_KEY, then GOOGLE_GEMINI_API_KEY, then viper's
// gemini.api_key; the model from the explicit argument, then viper's
// gemini.model, then a built-in default.
type llmClient struct {
	modelName string
	gClient   *genai.Client
}

func newLLMClient(modelName string) (*llmClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		if apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY"); apiKey == "" {
			apiKey = viper.GetString("gemini.api_key")
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key required: set GEMINI_API_KEY or gemini.api_key")
	}

	if modelName == "" {
		modelName = viper.GetString("gemini.model")
		if modelName == "" {
			modelName = defaultModel
		}
	}

	ctx := context.Background()
	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &llmClient{modelName: modelName, gClient: gClient}, nil
}

// generateText sends prompt to the model and returns its raw text.
func (c *llmClient) generateText(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// generateJSON sends prompt to the model constrained to schema and
// decodes the response into out.
func (c *llmClient) generateJSON(ctx context.Context, prompt string, schema *genai.Schema, out interface{}) error {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, cfg)
	if err != nil {
		return fmt.Errorf("failed to generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return fmt.Errorf("empty response from model")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("failed to decode model response: %w", err)
	}
	return nil
}
