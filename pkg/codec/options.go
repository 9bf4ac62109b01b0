package codec

import (
	"time"

	"go.uber.org/zap"

	"github.com/ssargent/shapebin/pkg/meta"
	"github.com/ssargent/shapebin/pkg/schema"
	"github.com/ssargent/shapebin/pkg/wire"
)

// Observer receives one call per completed encode or decode
type Observer interface {
	ObserveEncode(root schema.Tag, bytes int64, duration time.Duration, err error)
	ObserveDecode(root schema.Tag, bytes int64, duration time.Duration, err error)
}

// Options configures encoding and decoding
type Options struct {
	Endian              wire.Endian
	AddressLength       int // 0 selects the native width
	Names               meta.NameTransform
	Concurrent          bool
	NativeAddressLength int // 0 selects the platform width
	Logger              *zap.Logger
	Observer            Observer
}

// Option mutates Options
type Option func(*Options)

// DefaultOptions returns native endianness and address width with
// concurrency enabled.
func DefaultOptions() Options {
	return Options{
		Endian:     wire.Native(),
		Concurrent: true,
	}
}

// WithEndian selects the byte order of encoded output
func WithEndian(e wire.Endian) Option {
	return func(o *Options) { o.Endian = e }
}

// WithAddressLength selects the address width of encoded output
func WithAddressLength(n int) Option {
	return func(o *Options) { o.AddressLength = n }
}

// WithNameTransform maps field names on both encode and decode
func WithNameTransform(t meta.NameTransform) Option {
	return func(o *Options) { o.Names = t }
}

// WithConcurrency toggles the four-way parallel payload pass
func WithConcurrency(enabled bool) Option {
	return func(o *Options) { o.Concurrent = enabled }
}

// WithNativeAddressLength overrides the platform address width used by the
// decode guard and as the encoder's upper bound.
func WithNativeAddressLength(n int) Option {
	return func(o *Options) { o.NativeAddressLength = n }
}

// WithLogger sets the logger for a single call, overriding the package logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithObserver reports call outcomes, typically to metrics
func WithObserver(obs Observer) Option {
	return func(o *Options) { o.Observer = obs }
}

// WithOptions replaces all options at once
func WithOptions(opts Options) Option {
	return func(o *Options) { *o = opts }
}

func newOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.NativeAddressLength == 0 {
		o.NativeAddressLength = wire.NativeAddressLength()
	}
	if o.AddressLength == 0 {
		o.AddressLength = o.NativeAddressLength
	}
	if o.Logger == nil {
		o.Logger = Logger()
	}
	return o
}

func (o Options) observeEncode(root schema.Tag, n int64, start time.Time, err error) {
	if o.Observer != nil {
		o.Observer.ObserveEncode(root, n, time.Since(start), err)
	}
}

func (o Options) observeDecode(root schema.Tag, n int64, start time.Time, err error) {
	if o.Observer != nil {
		o.Observer.ObserveDecode(root, n, time.Since(start), err)
	}
}
