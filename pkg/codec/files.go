package codec

import (
	"encoding/base64"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ssargent/shapebin/pkg/errors"
)

// ToFile encodes v and writes the blob to path, creating parent directories
func ToFile[T any](path string, v T, opts ...Option) error {
	data, err := Encode(v, opts...)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// ToFileSeq encodes vs and writes the blob to path, creating parent directories
func ToFileSeq[T any](path string, vs []T, opts ...Option) error {
	data, err := EncodeSeq(vs, opts...)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// FromFile decodes the blob stored at path
func FromFile[T any](path string, opts ...Option) (Either[T], error) {
	data, err := readFile(path)
	if err != nil {
		return Either[T]{}, err
	}
	return Decode[T](data, opts...)
}

// FromFileObject decodes the Object blob stored at path
func FromFileObject[T any](path string, opts ...Option) (T, error) {
	data, err := readFile(path)
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeObject[T](data, opts...)
}

// FromFileArray decodes the Array blob stored at path
func FromFileArray[T any](path string, opts ...Option) ([]T, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeArray[T](data, opts...)
}

// InspectFile parses the header of the blob stored at path
func InspectFile(path string, opts ...Option) (*Header, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return InspectHeader(data, opts...)
}

// ToString encodes v as base64 text
func ToString[T any](v T, opts ...Option) (string, error) {
	data, err := Encode(v, opts...)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ToStringSeq encodes vs as base64 text
func ToStringSeq[T any](vs []T, opts ...Option) (string, error) {
	data, err := EncodeSeq(vs, opts...)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// FromString decodes base64 text produced by ToString or ToStringSeq
func FromString[T any](s string, opts ...Option) (Either[T], error) {
	data, err := decodeString(s)
	if err != nil {
		return Either[T]{}, err
	}
	return Decode[T](data, opts...)
}

// FromStringObject decodes base64 text produced by ToString
func FromStringObject[T any](s string, opts ...Option) (T, error) {
	data, err := decodeString(s)
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeObject[T](data, opts...)
}

// FromStringArray decodes base64 text produced by ToStringSeq
func FromStringArray[T any](s string, opts ...Option) ([]T, error) {
	data, err := decodeString(s)
	if err != nil {
		return nil, err
	}
	return DecodeArray[T](data, opts...)
}

func decodeString(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New(errors.PhaseIO, errors.KindMalformedHeader).
			Detail("blob text is not base64").Cause(err).Build()
	}
	return data, nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.New(errors.PhaseIO, errors.KindFileNotFound).Detail("%s does not exist", path).Cause(err).Build()
		}
		return nil, errors.New(errors.PhaseIO, errors.KindFileNotFound).Detail("cannot stat %s", path).Cause(err).Build()
	}
	if !info.Mode().IsRegular() {
		return nil, errors.New(errors.PhaseIO, errors.KindNotAFile).Detail("%s is not a regular file", path).Build()
	}
	return os.ReadFile(path)
}

func writeFile(path string, data []byte) error {
	if info, err := os.Stat(path); err == nil && !info.Mode().IsRegular() {
		return errors.New(errors.PhaseIO, errors.KindNotAFile).Detail("%s is not a regular file", path).Build()
	}
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return errors.New(errors.PhaseIO, errors.KindDirectoryUnusable).Detail("%s is not a directory", dir).Build()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.New(errors.PhaseIO, errors.KindDirectoryUnusable).Detail("cannot create %s", dir).Cause(err).Build()
	}
	return os.WriteFile(path, data, 0644)
}
