// Package app assembles the risk assessment components from configuration.
// Every binary goes through Build so they all share the same wiring.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/model"
	"github.com/cardiocare-risk-server/internal/records"
	"github.com/cardiocare-risk-server/internal/service"
	"github.com/cardiocare-risk-server/internal/session"
	"github.com/cardiocare-risk-server/internal/verification"
)

// App holds the wired components and owns their resources.
type App struct {
	Config   *domain.Config
	Logger   *logrus.Logger
	Records  *records.NotifyingStore
	Sessions session.Store
	Adapter  *service.RiskAdapter
	Workflow *service.Workflow
}

// Build opens the record and session stores and loads the classifier.
// A classifier that fails to load is not fatal: the app starts with
// predictions disabled and records still readable.
func Build(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	store, err := records.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	sessions, err := session.Open(ctx, cfg.Session, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	var adapter *service.RiskAdapter
	m, err := model.Load(ctx, cfg.Model, logger)
	if err != nil {
		adapter = service.NewUnavailableRiskAdapter(err, logger)
	} else {
		adapter = service.NewRiskAdapter(m, logger)
	}

	assessments := service.NewAssessmentService(adapter, store, logger)
	gate := verification.NewGate(store, nil, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Records:  store,
		Sessions: sessions,
		Adapter:  adapter,
		Workflow: service.NewWorkflow(sessions, assessments, gate),
	}, nil
}

// Close releases the session and record stores.
func (a *App) Close() error {
	sessErr := a.Sessions.Close()
	recErr := a.Records.Close()
	if sessErr != nil {
		return fmt.Errorf("closing session store: %w", sessErr)
	}
	if recErr != nil {
		return fmt.Errorf("closing record store: %w", recErr)
	}
	return nil
}
