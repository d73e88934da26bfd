// Package external holds clients for services the risk server depends on
// over the network.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/cardiocare-risk-server/internal/domain"
)

// RemoteModelConfig configures a RemoteModel.
type RemoteModelConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit int // requests per second
	CacheSize int
}

// ModelMetadata is the response of GET /metadata.
type ModelMetadata struct {
	Classes      []int    `json:"classes"`
	FeatureNames []string `json:"feature_names"`
	Version      string   `json:"version,omitempty"`
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Features []float64 `json:"features"`
}

// PredictResponse is the response of POST /predict.
type PredictResponse struct {
	Label         int       `json:"label"`
	Probabilities []float64 `json:"probabilities"`
}

// RemoteModel is a domain.Model served by an HTTP model server. Calls go
// through a rate limiter and a circuit breaker; recent inferences are cached
// so Predict and PredictProba on the same row cost one request.
type RemoteModel struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	cache      *lru.Cache[string, PredictResponse]
	classes    []int
	logger     *logrus.Logger
}

// NewRemoteModel connects to the model server and checks its metadata
// against the encoder's feature order.
func NewRemoteModel(ctx context.Context, config RemoteModelConfig, logger *logrus.Logger) (*RemoteModel, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("remote model URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 20
	}
	if config.CacheSize == 0 {
		config.CacheSize = 256
	}

	cache, err := lru.New[string, PredictResponse](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference cache: %w", err)
	}

	m := &RemoteModel{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		cache:     cache,
		logger:    logger,
	}
	m.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "RemoteModel",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker changed state")
		},
	})

	meta, err := m.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkFeatureNames(meta.FeatureNames); err != nil {
		return nil, err
	}
	m.classes = meta.Classes

	logger.WithFields(logrus.Fields{
		"url":     m.baseURL,
		"classes": meta.Classes,
		"version": meta.Version,
	}).Info("Remote model connected")

	return m, nil
}

// Classes returns the class labels reported by the model server.
func (m *RemoteModel) Classes() []int {
	return append([]int(nil), m.classes...)
}

// Predict returns the predicted class label for row.
func (m *RemoteModel) Predict(ctx context.Context, row []float64) (int, error) {
	resp, err := m.infer(ctx, row)
	if err != nil {
		return 0, err
	}
	return resp.Label, nil
}

// PredictProba returns the class probabilities for row, ordered as Classes.
func (m *RemoteModel) PredictProba(ctx context.Context, row []float64) ([]float64, error) {
	resp, err := m.infer(ctx, row)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), resp.Probabilities...), nil
}

// BreakerState reports the circuit breaker state.
func (m *RemoteModel) BreakerState() gobreaker.State {
	return m.breaker.State()
}

// Metadata fetches GET /metadata.
func (m *RemoteModel) Metadata(ctx context.Context) (*ModelMetadata, error) {
	var meta ModelMetadata
	if err := m.call(ctx, http.MethodGet, "/metadata", nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (m *RemoteModel) infer(ctx context.Context, row []float64) (PredictResponse, error) {
	if len(row) != domain.FeatureCount {
		return PredictResponse{}, domain.NewModelContractError("expected %d features, got %d", domain.FeatureCount, len(row))
	}

	key := rowKey(row)
	if cached, ok := m.cache.Get(key); ok {
		return cached, nil
	}

	var resp PredictResponse
	if err := m.call(ctx, http.MethodPost, "/predict", PredictRequest{Features: row}, &resp); err != nil {
		return PredictResponse{}, err
	}
	if len(resp.Probabilities) != len(m.classes) {
		return PredictResponse{}, domain.NewModelContractError(
			"model server returned %d probabilities for %d classes", len(resp.Probabilities), len(m.classes))
	}

	m.cache.Add(key, resp)
	return resp, nil
}

// call performs one rate-limited request through the circuit breaker.
func (m *RemoteModel) call(ctx context.Context, method, path string, body, out interface{}) error {
	if err := m.rateLimit.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	_, err := m.breaker.Execute(func() (interface{}, error) {
		return nil, m.do(ctx, method, path, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: model server circuit open", domain.ErrModelUnavailable)
	}
	return err
}

func (m *RemoteModel) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: model server %s %s returned status %d: %s",
			domain.ErrModelUnavailable, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewModelContractError("undecodable %s response: %v", path, err)
	}
	return nil
}

func checkFeatureNames(names []string) error {
	if len(names) != domain.FeatureCount {
		return domain.NewModelContractError("model expects %d features, encoder produces %d", len(names), domain.FeatureCount)
	}
	for i, name := range names {
		if name != domain.FeatureNames[i] {
			return domain.NewModelContractError("feature %d is %q, encoder produces %q", i, name, domain.FeatureNames[i])
		}
	}
	return nil
}

func rowKey(row []float64) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
