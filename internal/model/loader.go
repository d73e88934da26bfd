package model

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/pkg/external"
)

// LoadFile reads a logistic regression artifact from path.
func LoadFile(path string) (*LogisticModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model artifact: %w", err)
	}
	defer f.Close()

	return DecodeArtifact(f)
}

// Load builds the configured classifier. Any failure is wrapped with
// domain.ErrModelUnavailable so callers can start in unavailable mode.
func Load(ctx context.Context, cfg domain.ModelConfig, logger *logrus.Logger) (domain.Model, error) {
	var (
		m   domain.Model
		err error
	)

	switch cfg.Source {
	case "", domain.ModelSourceFile:
		var lm *LogisticModel
		lm, err = LoadFile(cfg.Path)
		if err == nil {
			logger.WithFields(logrus.Fields{
				"path":    cfg.Path,
				"version": lm.Version(),
			}).Info("Classifier loaded")
			m = lm
		}
	case domain.ModelSourceRemote:
		m, err = external.NewRemoteModel(ctx, external.RemoteModelConfig{
			BaseURL:   cfg.RemoteURL,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			CacheSize: cfg.CacheSize,
		}, logger)
	default:
		err = fmt.Errorf("unknown model source %q", cfg.Source)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrModelUnavailable, err)
	}
	return m, nil
}
