package model

import "context"

// Encoder defines the contract for any text-to-vector model
type Encoder interface {
	// Encode returns a vector of exactly Dimension() values for the text
	Encode(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the fixed length of every vector this encoder produces
	Dimension() int

	// GetModelName returns the name/identifier of the model
	GetModelName() string

	// Close cleans up any resources used by the model
	Close() error
}

// DefaultDimension matches small sentence-embedding models
const DefaultDimension = 384

// ModelConfig holds common configuration for encoders
type ModelConfig struct {
	APIKey    string
	BaseURL   string
	ModelName string
	Dimension int
	Timeout   int // in seconds
}

func (c *ModelConfig) dimension() int {
	if c.Dimension > 0 {
		return c.Dimension
	}
	return DefaultDimension
}

// ModelFactory is a factory interface for creating encoders
type ModelFactory interface {
	CreateModel(config *ModelConfig) (Encoder, error)
	GetSupportedModels() []string
}
