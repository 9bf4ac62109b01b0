// Package di provides dependency injection container
package di

import (
	"go.uber.org/zap"

	"github.com/ssargent/shapebin/pkg/api" //nolint:depguard
	"github.com/ssargent/shapebin/pkg/metrics"
	"github.com/ssargent/shapebin/pkg/storage"
)

// StoreOpener opens the blob store used by the CLI and the server
type StoreOpener func(path string, opts storage.Options) (*storage.BlobStore, error)

// Container holds all the dependencies for the application
type Container struct {
	serverStarter api.ServerStarter
	storeOpener   StoreOpener
	metrics       *metrics.Metrics
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	m := metrics.New()
	return &Container{
		serverStarter: api.NewServerStarter(nil, m),
		storeOpener:   storage.NewBlobStore,
		metrics:       m,
	}
}

// Metrics returns the shared metrics instance
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// GetServerStarter returns the server starter
func (c *Container) GetServerStarter() api.ServerStarter {
	return c.serverStarter
}

// SetServerStarter allows overriding the server starter (for testing)
func (c *Container) SetServerStarter(s api.ServerStarter) {
	c.serverStarter = s
}

// OpenStore opens the blob store at path
func (c *Container) OpenStore(path string, opts storage.Options) (*storage.BlobStore, error) {
	return c.storeOpener(path, opts)
}

// SetStoreOpener allows overriding how stores are opened (for testing)
func (c *Container) SetStoreOpener(open StoreOpener) {
	c.storeOpener = open
}

// UseLogger rebuilds the default server starter around log
func (c *Container) UseLogger(log *zap.Logger) {
	if _, ok := c.serverStarter.(*api.DefaultServerStarter); ok {
		c.serverStarter = api.NewServerStarter(log, c.metrics)
	}
}
