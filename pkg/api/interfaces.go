package api

import (
	"context"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/shapebin/pkg/codec"
	"github.com/ssargent/shapebin/pkg/storage"
)

// IBlobStore defines the blob store operations the API needs
type IBlobStore interface {
	Put(blob []byte) (ksuid.KSUID, error)
	Get(id ksuid.KSUID) ([]byte, error)
	Header(id ksuid.KSUID) (*codec.Header, error)
	Delete(id ksuid.KSUID) error
	List() ([]ksuid.KSUID, error)
	Stats() (storage.Stats, error)
}

// ServerStarter starts the API server; the CLI depends on this interface
type ServerStarter interface {
	StartServer(ctx context.Context, store IBlobStore, config ServerConfig) error
}
