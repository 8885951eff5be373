package model

import (
	"fmt"
	"strings"
	"sync"
)

// ModelType represents different encoder backends
type ModelType string

const (
	ModelTypeHash   ModelType = "hash"
	ModelTypeOpenAI ModelType = "openai"
	ModelTypeGemini ModelType = "gemini"
)

// ModelManager manages encoder factories and the instances created from them
type ModelManager struct {
	mtx       sync.Mutex
	factories map[ModelType]ModelFactory
	models    map[string]Encoder
}

// NewModelManager creates a new model manager with every built-in backend registered
func NewModelManager() *ModelManager {
	manager := &ModelManager{
		factories: make(map[ModelType]ModelFactory),
		models:    make(map[string]Encoder),
	}

	manager.RegisterFactory(ModelTypeHash, NewHashFactory())
	manager.RegisterFactory(ModelTypeOpenAI, NewOpenAIFactory())
	manager.RegisterFactory(ModelTypeGemini, NewGeminiFactory())

	return manager
}

// RegisterFactory registers a model factory
func (m *ModelManager) RegisterFactory(modelType ModelType, factory ModelFactory) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.factories[modelType] = factory
}

// CreateModel creates an encoder instance
func (m *ModelManager) CreateModel(modelType ModelType, config *ModelConfig) (Encoder, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	factory, exists := m.factories[modelType]
	if !exists {
		return nil, fmt.Errorf("unsupported model type: %s", modelType)
	}

	encoder, err := factory.CreateModel(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	m.models[modelKey(modelType, config)] = encoder

	return encoder, nil
}

// GetModel retrieves a previously created encoder
func (m *ModelManager) GetModel(modelType ModelType, config *ModelConfig) (Encoder, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	encoder, exists := m.models[modelKey(modelType, config)]
	return encoder, exists
}

// GetOrCreateModel gets an existing encoder or creates a new one
func (m *ModelManager) GetOrCreateModel(modelType ModelType, config *ModelConfig) (Encoder, error) {
	if encoder, exists := m.GetModel(modelType, config); exists {
		return encoder, nil
	}
	return m.CreateModel(modelType, config)
}

// ListSupportedModels returns all supported models across all factories
func (m *ModelManager) ListSupportedModels() map[ModelType][]string {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	result := make(map[ModelType][]string)
	for modelType, factory := range m.factories {
		result[modelType] = factory.GetSupportedModels()
	}
	return result
}

// CloseAll closes all encoder instances
func (m *ModelManager) CloseAll() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	var errors []string
	for key, encoder := range m.models {
		if err := encoder.Close(); err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", key, err))
		}
	}

	m.models = make(map[string]Encoder)

	if len(errors) > 0 {
		return fmt.Errorf("errors closing models: %s", strings.Join(errors, ", "))
	}
	return nil
}

// ParseModelType resolves a configured provider name, falling back to
// detection from the model name
func ParseModelType(provider string, modelName string) (ModelType, error) {
	switch ModelType(strings.ToLower(strings.TrimSpace(provider))) {
	case ModelTypeHash:
		return ModelTypeHash, nil
	case ModelTypeOpenAI:
		return ModelTypeOpenAI, nil
	case ModelTypeGemini:
		return ModelTypeGemini, nil
	case "":
		if t := detectModelType(modelName); t != "" {
			return t, nil
		}
		return ModelTypeHash, nil
	}
	return "", fmt.Errorf("unsupported encoder provider: %s", provider)
}

// detectModelType attempts to detect the model type from the model name
func detectModelType(modelName string) ModelType {
	modelName = strings.ToLower(modelName)

	if strings.Contains(modelName, "gemini") {
		return ModelTypeGemini
	}
	if strings.Contains(modelName, "text-embedding") || strings.Contains(modelName, "openai") {
		return ModelTypeOpenAI
	}
	if strings.Contains(modelName, "hash") {
		return ModelTypeHash
	}

	return ""
}

func modelKey(modelType ModelType, config *ModelConfig) string {
	return fmt.Sprintf("%s:%s:%d", modelType, config.ModelName, config.dimension())
}
