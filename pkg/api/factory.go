package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/ssargent/shapebin/pkg/metrics"
)

// DefaultServerStarter is the default implementation of ServerStarter
type DefaultServerStarter struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// NewServerStarter creates a server starter
func NewServerStarter(logger *zap.Logger, m *metrics.Metrics) ServerStarter {
	return &DefaultServerStarter{Logger: logger, Metrics: m}
}

// StartServer starts the API server with the given configuration
func (s *DefaultServerStarter) StartServer(ctx context.Context, store IBlobStore, config ServerConfig) error {
	m := s.Metrics
	if m == nil {
		m = metrics.New()
	}
	return StartServer(ctx, NewServer(store, config, m, s.Logger))
}
