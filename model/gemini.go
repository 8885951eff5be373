package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// GeminiModel implements Encoder on Google's Gemini embedding API
type GeminiModel struct {
	client    *genai.Client
	modelName string
	dimension int
	timeout   time.Duration
}

// NewGeminiModel creates a new Gemini encoder instance
func NewGeminiModel(config *ModelConfig) (*GeminiModel, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Gemini model")
	}

	modelName := config.ModelName
	if modelName == "" {
		modelName = "gemini-embedding-001"
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 // default 30 seconds
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiModel{
		client:    client,
		modelName: modelName,
		dimension: config.dimension(),
		timeout:   time.Duration(timeout) * time.Second,
	}, nil
}

// Encode embeds the text with the configured output dimensionality
func (g *GeminiModel) Encode(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	dim := int32(g.dimension)
	rsp, err := g.client.Models.EmbedContent(ctx, g.modelName, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini embed request failed: %w", err)
	}

	if rsp == nil || len(rsp.Embeddings) == 0 || rsp.Embeddings[0] == nil || len(rsp.Embeddings[0].Values) == 0 {
		return nil, errors.New("no embedding in Gemini response")
	}

	vector := rsp.Embeddings[0].Values
	if len(vector) != g.dimension {
		return nil, fmt.Errorf("Gemini returned %d dimensions, want %d", len(vector), g.dimension)
	}

	return vector, nil
}

func (g *GeminiModel) Dimension() int {
	return g.dimension
}

// GetModelName returns the name of the Gemini model
func (g *GeminiModel) GetModelName() string {
	return fmt.Sprintf("gemini:%s", g.modelName)
}

// Close cleans up resources (the genai client holds no connections of its own)
func (g *GeminiModel) Close() error {
	return nil
}

// GeminiFactory implements ModelFactory for Gemini models
type GeminiFactory struct{}

// CreateModel creates a new Gemini encoder instance
func (f *GeminiFactory) CreateModel(config *ModelConfig) (Encoder, error) {
	return NewGeminiModel(config)
}

// GetSupportedModels returns the list of supported Gemini models
func (f *GeminiFactory) GetSupportedModels() []string {
	return []string{
		"gemini-embedding-001",
		"text-embedding-004",
	}
}

// NewGeminiFactory creates a new Gemini factory
func NewGeminiFactory() ModelFactory {
	return &GeminiFactory{}
}
