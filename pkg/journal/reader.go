package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ssargent/shapebin/pkg/frame"
)

// Reader provides sequential access to the frames of a journal
type Reader struct {
	file   *os.File
	reader *bufio.Reader
	offset int64
	config ReaderConfig
}

// NewReader opens the journal at config.FilePath
func NewReader(config ReaderConfig) (*Reader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}

	if config.StartOffset > 0 {
		if _, err := file.Seek(config.StartOffset, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
	}

	return &Reader{
		file:   file,
		reader: bufio.NewReader(file),
		offset: config.StartOffset,
		config: config,
	}, nil
}

// Next reads the frame at the current offset. It returns io.EOF at the end of
// the journal and an error wrapping frame.ErrShortFrame for a torn tail.
func (r *Reader) Next() (*frame.Frame, error) {
	f, err := frame.Read(r.reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("journal: frame at offset %d: %w", r.offset, err)
	}
	r.offset += int64(f.Size())
	return f, nil
}

// ReadAt reads the frame at offset without moving the sequential cursor
func (r *Reader) ReadAt(offset int64) (*frame.Frame, error) {
	f, err := frame.Read(io.NewSectionReader(r.file, offset, math.MaxInt64-offset))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("journal: no frame at offset %d: %w", offset, frame.ErrShortFrame)
		}
		return nil, fmt.Errorf("journal: frame at offset %d: %w", offset, err)
	}
	return f, nil
}

// Seek sets the read offset
func (r *Reader) Seek(offset int64) error {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	r.reader.Reset(r.file)
	r.offset = offset
	return nil
}

// Offset returns the current read offset
func (r *Reader) Offset() int64 {
	return r.offset
}

// Iterator returns a streaming iterator over the remaining frames
func (r *Reader) Iterator() Iterator {
	return &frameIterator{reader: r}
}

// Close closes the journal file
func (r *Reader) Close() error {
	return r.file.Close()
}

type frameIterator struct {
	reader *Reader
	frame  *frame.Frame
	offset int64
	err    error
}

func (it *frameIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.offset = it.reader.offset
	it.frame, it.err = it.reader.Next()
	return it.err == nil
}

func (it *frameIterator) Frame() *frame.Frame {
	return it.frame
}

func (it *frameIterator) Offset() int64 {
	return it.offset
}

// Err returns the error that stopped iteration, or nil at a clean end
func (it *frameIterator) Err() error {
	if errors.Is(it.err, io.EOF) {
		return nil
	}
	return it.err
}

func (it *frameIterator) Close() error {
	// The reader is owned by the caller.
	return nil
}
