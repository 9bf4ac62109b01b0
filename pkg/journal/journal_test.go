package journal

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/shapebin/pkg/codec"
	"github.com/ssargent/shapebin/pkg/errors"
	"github.com/ssargent/shapebin/pkg/frame"
)

type event struct {
	Name  string
	Count int32
}

func newWriter(t *testing.T, interval time.Duration) (*Writer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "events.journal")
	w, err := NewWriter(WriterConfig{FilePath: path, FsyncInterval: interval, BufferSize: 1024})
	require.NoError(t, err)
	return w, path
}

func TestWriter_AppendAndRead(t *testing.T) {
	w, path := newWriter(t, 0)

	first, err := codec.Encode(event{Name: "a", Count: 1})
	require.NoError(t, err)
	second, err := codec.EncodeSeq([]event{{Name: "b", Count: 2}})
	require.NoError(t, err)

	off1, err := w.Append(first)
	require.NoError(t, err)
	off2, err := w.Append(second)
	require.NoError(t, err)

	assert.Equal(t, int64(0), off1)
	assert.Equal(t, int64(frame.HeaderSize+len(first)), off2)
	assert.Equal(t, off2+int64(frame.HeaderSize+len(second)), w.Size())
	assert.Equal(t, path, w.Path())
	require.NoError(t, w.Close())

	r, err := NewReader(ReaderConfig{FilePath: path})
	require.NoError(t, err)
	defer r.Close()

	f, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, first, f.Payload)

	f, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, second, f.Payload)
	assert.Equal(t, w.Size(), r.Offset())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)

	f, err = r.ReadAt(off2)
	require.NoError(t, err)
	assert.Equal(t, second, f.Payload)

	require.NoError(t, r.Seek(off2))
	f, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, second, f.Payload)
}

func TestWriter_RejectsInvalidBlob(t *testing.T) {
	w, _ := newWriter(t, 0)
	defer w.Close()

	_, err := w.Append([]byte{0xFF, 0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMalformedHeader)
	assert.Equal(t, int64(0), w.Size())
}

func TestWriter_ReopenAppends(t *testing.T) {
	w, path := newWriter(t, 0)
	_, err := AppendValue(w, event{Name: "a", Count: 1})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w, err = NewWriter(WriterConfig{FilePath: path})
	require.NoError(t, err)
	_, err = AppendValue(w, event{Name: "b", Count: 2})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	values, err := ReadValues[event](path)
	require.NoError(t, err)
	assert.Equal(t, []event{{Name: "a", Count: 1}, {Name: "b", Count: 2}}, values)
}

func TestWriter_FsyncInterval(t *testing.T) {
	w, path := newWriter(t, 10*time.Millisecond)

	_, err := AppendValue(w, event{Name: "timer", Count: 7})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		info, err := os.Stat(path)
		return err == nil && info.Size() == w.Size()
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Close())
}

func TestReadValues_FlattensSequences(t *testing.T) {
	w, path := newWriter(t, 0)

	_, err := AppendValue(w, event{Name: "one", Count: 1})
	require.NoError(t, err)
	_, err = AppendSeq(w, []event{{Name: "two", Count: 2}, {Name: "three", Count: 3}})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	values, err := ReadValues[event](path)
	require.NoError(t, err)
	assert.Equal(t, []event{{"one", 1}, {"two", 2}, {"three", 3}}, values)
}

func TestReadValues_SchemaMismatch(t *testing.T) {
	type other struct {
		Label string
	}

	w, path := newWriter(t, 0)
	_, err := AppendValue(w, event{Name: "one", Count: 1})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = ReadValues[other](path)
	assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
}

func TestReader_TornTail(t *testing.T) {
	w, path := newWriter(t, 0)
	_, err := AppendValue(w, event{Name: "one", Count: 1})
	require.NoError(t, err)
	_, err = AppendValue(w, event{Name: "two", Count: 2})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, os.Truncate(path, w.Size()-3))

	r, err := NewReader(ReaderConfig{FilePath: path})
	require.NoError(t, err)
	defer r.Close()

	it := r.Iterator()
	count := 0
	for it.Next() {
		count++
	}
	assert.Equal(t, 1, count)
	assert.ErrorIs(t, it.Err(), frame.ErrShortFrame)
	assert.NoError(t, it.Close())
}

func TestReader_Corruption(t *testing.T) {
	w, path := newWriter(t, 0)
	_, err := AppendValue(w, event{Name: "one", Count: 1})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0600))

	_, err = ReadValues[event](path)
	assert.ErrorIs(t, err, frame.ErrCorruption)
}

func TestNewReader_StartOffset(t *testing.T) {
	w, path := newWriter(t, 0)
	_, err := AppendValue(w, event{Name: "one", Count: 1})
	require.NoError(t, err)
	off, err := AppendValue(w, event{Name: "two", Count: 2})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReader(ReaderConfig{FilePath: path, StartOffset: off})
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, off, r.Offset())

	it := r.Iterator()
	require.True(t, it.Next())
	assert.Equal(t, off, it.Offset())
	v, err := codec.DecodeObject[event](it.Frame().Payload)
	require.NoError(t, err)
	assert.Equal(t, "two", v.Name)
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
}

func TestNewReader_NonExistentFile(t *testing.T) {
	r, err := NewReader(ReaderConfig{FilePath: "/non/existent/file.journal"})
	assert.Error(t, err)
	assert.Nil(t, r)
}
