package domain

import (
	"context"
)

// Model is an externally fitted binary classifier used as a black box.
// It mirrors the predict / predict_proba / classes_ surface of the artifact.
type Model interface {
	// Predict returns the class label for one row.
	Predict(ctx context.Context, row []float64) (int, error)
	// PredictProba returns one probability per entry of Classes, same order.
	PredictProba(ctx context.Context, row []float64) ([]float64, error)
	// Classes is the ordered label set of the fitted model.
	Classes() []int
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetRecordsConfig() *RecordsConfig
	GetModelConfig() *ModelConfig
	GetSessionConfig() *SessionConfig
	Reload() error
	Validate() error
	GetDatabaseURL() string
	IsProduction() bool
	IsDevelopment() bool
}
