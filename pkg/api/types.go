package api

import (
	"github.com/ssargent/shapebin/pkg/codec"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// BlobResponse describes a stored blob
type BlobResponse struct {
	ID     string        `json:"id"`
	Size   int           `json:"size"`
	Header codec.Summary `json:"header"`
}

// StatsResponse reports blob store totals
type StatsResponse struct {
	Blobs int   `json:"blobs"`
	Bytes int64 `json:"bytes"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind         string
	Port         int
	APIKey       string
	MaxBlobSize  int64          // largest accepted request body, 0 = 64 MiB
	CodecOptions []codec.Option // used to parse uploaded headers
}

const defaultMaxBlobSize = 64 << 20
