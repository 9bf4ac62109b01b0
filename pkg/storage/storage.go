// Package storage keeps encoded blobs in a pebble database keyed by KSUID.
// Every blob is checked with the codec header parser before it is stored.
package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/ssargent/shapebin/pkg/codec"
)

var (
	// ErrBlobNotFound is returned for ids with no stored blob
	ErrBlobNotFound = errors.New("blob not found")
	// ErrInvalidID is returned when an id string is not a KSUID
	ErrInvalidID = errors.New("invalid blob id")
)

// Recorder receives one call per store operation
type Recorder interface {
	RecordStoreOperation(operation string, success bool, duration time.Duration)
}

// Options configures a BlobStore
type Options struct {
	Sync         bool           // fsync every write
	CodecOptions []codec.Option // used to parse stored headers
	Logger       *zap.Logger
	Recorder     Recorder
}

// Stats summarizes the contents of the store
type Stats struct {
	Blobs int
	Bytes int64
}

// BlobStore is a pebble-backed store of validated blobs
type BlobStore struct {
	db    *pebble.DB
	opts  Options
	write *pebble.WriteOptions
	log   *zap.Logger
}

// NewBlobStore opens or creates a blob store at path
func NewBlobStore(path string, opts Options) (*BlobStore, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	db, err := pebble.Open(path, &pebble.Options{Logger: log.Sugar()})
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	write := pebble.NoSync
	if opts.Sync {
		write = pebble.Sync
	}
	return &BlobStore{db: db, opts: opts, write: write, log: log}, nil
}

// ParseID parses the string form of a blob id
func ParseID(s string) (ksuid.KSUID, error) {
	id, err := ksuid.Parse(s)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

func (s *BlobStore) record(op string, start time.Time, err error) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordStoreOperation(op, err == nil || errors.Is(err, ErrBlobNotFound), time.Since(start))
	}
}

func (s *BlobStore) check(blob []byte) (*codec.Header, error) {
	h, err := codec.InspectHeader(blob, s.opts.CodecOptions...)
	if err != nil {
		return nil, fmt.Errorf("rejected blob: %w", err)
	}
	return h, nil
}

// Put stores blob under a new id
func (s *BlobStore) Put(blob []byte) (id ksuid.KSUID, err error) {
	defer func(start time.Time) { s.record("put", start, err) }(time.Now())

	h, err := s.check(blob)
	if err != nil {
		return ksuid.Nil, err
	}
	id = ksuid.New()
	if err := s.db.Set(id.Bytes(), blob, s.write); err != nil {
		return ksuid.Nil, fmt.Errorf("failed to store blob: %w", err)
	}
	s.log.Debug("blob stored",
		zap.Stringer("id", id),
		zap.Int("size", len(blob)),
		zap.Stringer("root", h.RootTag))
	return id, nil
}

// Update replaces the blob stored under id
func (s *BlobStore) Update(id ksuid.KSUID, blob []byte) (err error) {
	defer func(start time.Time) { s.record("update", start, err) }(time.Now())

	if _, err := s.check(blob); err != nil {
		return err
	}
	if _, err := s.get(id); err != nil {
		return err
	}
	return s.db.Set(id.Bytes(), blob, s.write)
}

// Get returns a copy of the blob stored under id
func (s *BlobStore) Get(id ksuid.KSUID) (blob []byte, err error) {
	defer func(start time.Time) { s.record("get", start, err) }(time.Now())
	return s.get(id)
}

func (s *BlobStore) get(id ksuid.KSUID) ([]byte, error) {
	data, closer, err := s.db.Get(id.Bytes())
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
		}
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Header parses the header of the blob stored under id
func (s *BlobStore) Header(id ksuid.KSUID) (h *codec.Header, err error) {
	defer func(start time.Time) { s.record("header", start, err) }(time.Now())

	blob, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return codec.InspectHeader(blob, s.opts.CodecOptions...)
}

// Delete removes the blob stored under id
func (s *BlobStore) Delete(id ksuid.KSUID) (err error) {
	defer func(start time.Time) { s.record("delete", start, err) }(time.Now())

	if _, err := s.get(id); err != nil {
		return err
	}
	return s.db.Delete(id.Bytes(), s.write)
}

// List returns all ids in creation order
func (s *BlobStore) List() ([]ksuid.KSUID, error) {
	var ids []ksuid.KSUID
	err := s.scan(func(key, _ []byte) error {
		id, err := ksuid.FromBytes(key)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

// Stats counts stored blobs and their total size
func (s *BlobStore) Stats() (Stats, error) {
	var st Stats
	err := s.scan(func(_, value []byte) error {
		st.Blobs++
		st.Bytes += int64(len(value))
		return nil
	})
	return st, err
}

func (s *BlobStore) scan(fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			iter.Close()
			return err
		}
	}
	return iter.Close()
}

// Close closes the underlying database
func (s *BlobStore) Close() error {
	return s.db.Close()
}

// PutValue encodes v as an Object blob and stores it
func PutValue[T any](s *BlobStore, v T, opts ...codec.Option) (ksuid.KSUID, error) {
	blob, err := codec.Encode(v, opts...)
	if err != nil {
		return ksuid.Nil, err
	}
	return s.Put(blob)
}

// PutSeq encodes vs as an Array blob and stores it
func PutSeq[T any](s *BlobStore, vs []T, opts ...codec.Option) (ksuid.KSUID, error) {
	blob, err := codec.EncodeSeq(vs, opts...)
	if err != nil {
		return ksuid.Nil, err
	}
	return s.Put(blob)
}

// GetValue loads and decodes the Object blob stored under id
func GetValue[T any](s *BlobStore, id ksuid.KSUID, opts ...codec.Option) (T, error) {
	blob, err := s.Get(id)
	if err != nil {
		var zero T
		return zero, err
	}
	return codec.DecodeObject[T](blob, opts...)
}

// GetSeq loads and decodes the Array blob stored under id
func GetSeq[T any](s *BlobStore, id ksuid.KSUID, opts ...codec.Option) ([]T, error) {
	blob, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return codec.DecodeArray[T](blob, opts...)
}
