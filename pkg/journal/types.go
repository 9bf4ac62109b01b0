package journal

import (
	"time"

	"go.uber.org/zap"

	"github.com/ssargent/shapebin/pkg/codec"
	"github.com/ssargent/shapebin/pkg/frame"
)

// WriterConfig holds configuration for the journal writer
type WriterConfig struct {
	FilePath      string         // Path to the journal file
	FsyncInterval time.Duration  // How often to fsync (0 = every append)
	BufferSize    int            // Write buffer size
	CodecOptions  []codec.Option // Options used to check appended blobs
	Logger        *zap.Logger
}

// ReaderConfig holds configuration for the journal reader
type ReaderConfig struct {
	FilePath    string // Path to the journal file
	StartOffset int64  // Offset to start reading from
}

// Iterator provides streaming access to frames
type Iterator interface {
	Next() bool
	Frame() *frame.Frame
	Offset() int64 // offset of the current frame
	Err() error
	Close() error
}
