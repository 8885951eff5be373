package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIModel implements Encoder on the OpenAI embeddings endpoint
type OpenAIModel struct {
	client    *openai.Client
	modelName string
	dimension int
	timeout   time.Duration
}

// NewOpenAIModel creates a new OpenAI encoder instance
func NewOpenAIModel(config *ModelConfig) (*OpenAIModel, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI model")
	}

	modelName := config.ModelName
	if modelName == "" {
		modelName = string(openai.SmallEmbedding3)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 // default 30 seconds
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: time.Duration(timeout) * time.Second,
	}

	return &OpenAIModel{
		client:    openai.NewClientWithConfig(clientConfig),
		modelName: modelName,
		dimension: config.dimension(),
		timeout:   time.Duration(timeout) * time.Second,
	}, nil
}

// Encode requests a single embedding truncated to the configured dimension
func (o *OpenAIModel) Encode(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	rsp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(o.modelName),
		Dimensions: o.dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings request failed: %w", err)
	}

	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding in OpenAI response")
	}

	vector := rsp.Data[0].Embedding
	if len(vector) != o.dimension {
		return nil, fmt.Errorf("OpenAI returned %d dimensions, want %d", len(vector), o.dimension)
	}

	return vector, nil
}

func (o *OpenAIModel) Dimension() int {
	return o.dimension
}

// GetModelName returns the name of the OpenAI model
func (o *OpenAIModel) GetModelName() string {
	return fmt.Sprintf("openai:%s", o.modelName)
}

// Close cleans up resources (no-op for OpenAI)
func (o *OpenAIModel) Close() error {
	return nil
}

// OpenAIFactory implements ModelFactory for OpenAI models
type OpenAIFactory struct{}

// CreateModel creates a new OpenAI encoder instance
func (f *OpenAIFactory) CreateModel(config *ModelConfig) (Encoder, error) {
	return NewOpenAIModel(config)
}

// GetSupportedModels returns the list of supported OpenAI models
func (f *OpenAIFactory) GetSupportedModels() []string {
	return []string{
		string(openai.SmallEmbedding3),
		string(openai.LargeEmbedding3),
	}
}

// NewOpenAIFactory creates a new OpenAI factory
func NewOpenAIFactory() ModelFactory {
	return &OpenAIFactory{}
}
