package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

// RerankWeightsSource serves the current rerank weights to the search loop.
// Weights load from a YAML file and can be reloaded at runtime without a
// restart; an empty path pins the defaults.
type RerankWeightsSource struct {
	path    string
	log     *slog.Logger
	current atomic.Value
}

func NewRerankWeightsSource(path string, log *slog.Logger) (*RerankWeightsSource, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &RerankWeightsSource{path: path, log: log}
	s.current.Store(domain.DefaultRerankWeights())

	if path == "" {
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RerankWeightsSource) Current() domain.RerankWeights {
	return s.current.Load().(domain.RerankWeights)
}

// Reload re-reads the weights file. Invalid weights reject the reload and
// keep the previous set active.
func (s *RerankWeightsSource) Reload() error {
	if s.path == "" {
		return nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read rerank weights: %w", err)
	}

	var weights domain.RerankWeights
	if err := yaml.Unmarshal(raw, &weights); err != nil {
		return fmt.Errorf("parse rerank weights: %w", err)
	}
	if !weights.Valid() {
		return fmt.Errorf("rerank weights must sum to 1.0: %+v", weights)
	}

	s.current.Store(weights)
	s.log.Info("rerank_weights_loaded", "path", s.path)
	return nil
}
