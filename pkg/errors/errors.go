// Package errors defines the structured error type shared by the shapebin codec packages.
package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseAnalyze Phase = "analyze" // schema analysis of a Go type
	PhaseEncode  Phase = "encode"  // Go value to bytes
	PhaseDecode  Phase = "decode"  // bytes to Go value
	PhaseHeader  Phase = "header"  // header read/write
	PhaseFit     Phase = "fit"     // schema compatibility check
	PhaseIO      Phase = "io"      // file and string adapters
)

// Kind categorizes the error
type Kind string

const (
	KindSchemaMismatch          Kind = "schema_mismatch"
	KindAddressWidthUnsupported Kind = "address_width_unsupported"
	KindInvalidRootTag          Kind = "invalid_root_tag"
	KindLeafCodec               Kind = "leaf_codec_failure"
	KindMalformedHeader         Kind = "malformed_header"
	KindMalformedPayload        Kind = "malformed_payload"
	KindTruncated               Kind = "truncated"
	KindAddressOverflow         Kind = "address_overflow"
	KindUnsupported             Kind = "unsupported"
	KindFileNotFound            Kind = "file_not_found"
	KindNotAFile                Kind = "not_a_file"
	KindDirectoryUnusable       Kind = "directory_unusable"
)

// Sentinels for errors.Is; they match any error of the same kind regardless of phase.
var (
	ErrSchemaMismatch          = &Error{Kind: KindSchemaMismatch}
	ErrAddressWidthUnsupported = &Error{Kind: KindAddressWidthUnsupported}
	ErrInvalidRootTag          = &Error{Kind: KindInvalidRootTag}
	ErrLeafCodec               = &Error{Kind: KindLeafCodec}
	ErrMalformedHeader         = &Error{Kind: KindMalformedHeader}
	ErrMalformedPayload        = &Error{Kind: KindMalformedPayload}
	ErrTruncated               = &Error{Kind: KindTruncated}
	ErrAddressOverflow         = &Error{Kind: KindAddressOverflow}
	ErrUnsupported             = &Error{Kind: KindUnsupported}
	ErrFileNotFound            = &Error{Kind: KindFileNotFound}
	ErrNotAFile                = &Error{Kind: KindNotAFile}
	ErrDirectoryUnusable       = &Error{Kind: KindDirectoryUnusable}
)

// Error is the structured error type returned by the codec
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// SchemaMismatch creates a fit failure for the given path
func SchemaMismatch(path []string, goType, detail string) *Error {
	return &Error{
		Phase:  PhaseFit,
		Kind:   KindSchemaMismatch,
		Path:   path,
		GoType: goType,
		Detail: detail,
	}
}

// AddressWidthUnsupported creates an error for headers wider than the local platform
func AddressWidthUnsupported(width, native int) *Error {
	return &Error{
		Phase:  PhaseHeader,
		Kind:   KindAddressWidthUnsupported,
		Detail: fmt.Sprintf("address length %d exceeds native %d", width, native),
	}
}

// InvalidRootTag creates an error for a root tag the caller cannot decode
func InvalidRootTag(tag fmt.Stringer) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidRootTag,
		Detail: fmt.Sprintf("invalid root tag %q", tag.String()),
	}
}

// Leaf wraps a leaf codec failure with the path of the offending field or element
func Leaf(phase Phase, path []string, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindLeafCodec,
		Path:  path,
		Cause: cause,
	}
}

// Unsupported creates an unsupported type or operation error
func Unsupported(phase Phase, path []string, goType, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Path:   path,
		GoType: goType,
		Detail: what,
	}
}

// Malformed creates a malformed header error
func Malformed(detail string, args ...any) *Error {
	return New(PhaseHeader, KindMalformedHeader).Detail(detail, args...).Build()
}

// Overflow creates an address overflow error
func Overflow(phase Phase, value uint64, width int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAddressOverflow,
		Detail: fmt.Sprintf("value %d does not fit in %d-byte address", value, width),
	}
}

// KindOf returns the kind of err if it is (or wraps) an *Error
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return "", false
		}
		err = u.Unwrap()
	}
	return "", false
}
