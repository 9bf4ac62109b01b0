// Package journal is an append-only log of encoded blobs. Each blob is
// checked with the codec header parser and stored as a CRC32 frame.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ssargent/shapebin/pkg/codec"
	"github.com/ssargent/shapebin/pkg/frame"
)

// Writer appends framed blobs to a journal file
type Writer struct {
	file       *os.File
	writer     *bufio.Writer
	fsyncTimer *time.Timer
	config     WriterConfig
	log        *zap.Logger
	mutex      sync.Mutex
	offset     int64 // Current write offset
}

// NewWriter opens or creates the journal at config.FilePath for appending
func NewWriter(config WriterConfig) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat journal: %w", err)
	}

	if config.BufferSize <= 0 {
		config.BufferSize = 64 * 1024
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	w := &Writer{
		file:   file,
		writer: bufio.NewWriterSize(file, config.BufferSize),
		config: config,
		log:    log.With(zap.String("journal", config.FilePath)),
		offset: stat.Size(),
	}

	if config.FsyncInterval > 0 {
		w.fsyncTimer = time.AfterFunc(config.FsyncInterval, func() {
			w.mutex.Lock()
			defer w.mutex.Unlock()
			if err := w.sync(); err != nil {
				w.log.Warn("background fsync failed", zap.Error(err))
			}
		})
	}

	return w, nil
}

// Append writes blob as a new frame and returns the frame offset. Blobs whose
// header does not parse are rejected before anything is written.
func (w *Writer) Append(blob []byte) (int64, error) {
	h, err := codec.InspectHeader(blob, w.config.CodecOptions...)
	if err != nil {
		return 0, fmt.Errorf("journal: rejected blob: %w", err)
	}

	f, err := frame.New(blob)
	if err != nil {
		return 0, err
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	n, err := f.WriteTo(w.writer)
	if err != nil {
		return 0, fmt.Errorf("journal: write failed: %w", err)
	}

	recordOffset := w.offset
	w.offset += n

	w.log.Debug("blob appended",
		zap.Int64("offset", recordOffset),
		zap.Int("size", len(blob)),
		zap.Stringer("root", h.RootTag))

	if w.config.FsyncInterval == 0 {
		if err := w.sync(); err != nil {
			return 0, err
		}
	} else if w.fsyncTimer != nil {
		w.fsyncTimer.Reset(w.config.FsyncInterval)
	}

	return recordOffset, nil
}

// Sync forces a fsync to disk
func (w *Writer) Sync() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.sync()
}

func (w *Writer) sync() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close flushes pending frames and closes the file
func (w *Writer) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.fsyncTimer != nil {
		w.fsyncTimer.Stop()
	}

	if err := w.sync(); err != nil {
		w.file.Close()
		return err
	}

	return w.file.Close()
}

// Size returns the current size of the journal
func (w *Writer) Size() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.offset
}

// Path returns the file path
func (w *Writer) Path() string {
	return w.config.FilePath
}
