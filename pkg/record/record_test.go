package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeOpen_RoundTrip(t *testing.T) {
	buf := Encode("node-1", "Message", "emb-42", "hello world", 1700000000000000000)

	rec, err := Open(buf)
	require.NoError(t, err)

	assert.Equal(t, "node-1", rec.ID())
	assert.Equal(t, "Message", rec.Kind())
	assert.Equal(t, "emb-42", rec.EmbeddingID())
	assert.Equal(t, "hello world", rec.Text())
	assert.Equal(t, int64(1700000000000000000), rec.CreatedAtUnixNano())
}

func TestEncodeOpen_EmptyFields(t *testing.T) {
	buf := Encode("", "", "", "", 0)

	rec, err := Open(buf)
	require.NoError(t, err)

	assert.Equal(t, "", rec.ID())
	assert.Equal(t, "", rec.Kind())
	assert.Equal(t, "", rec.EmbeddingID())
	assert.Equal(t, "", rec.Text())
	assert.Equal(t, int64(0), rec.CreatedAtUnixNano())
}

func TestOpen_RejectsShortBuffer(t *testing.T) {
	_, err := Open([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestOpen_RejectsWrongVersion(t *testing.T) {
	buf := Encode("id", "Kind", "eid", "text", 1)
	buf[0] = CurrentVersion + 1

	_, err := Open(buf)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestOpen_RejectsOffsetPastEnd(t *testing.T) {
	buf := Encode("id", "Kind", "eid", "text", 1)
	// Corrupt the text field's length so it claims to run past the buffer.
	binaryPutUint32(buf, 1+fieldText*8+4, 1<<20)

	_, err := Open(buf)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestArchived_FieldsAreZeroCopy(t *testing.T) {
	buf := Encode("id-1", "Entity", "", "shared text", 5)
	rec, err := Open(buf)
	require.NoError(t, err)

	text := rec.Text()
	require.Equal(t, "shared text", text)

	// Mutating the backing buffer must be visible through the borrowed
	// string, proving it is a view and not a copy.
	textOffset := headerFixedSize + len("id-1") + len("Entity")
	buf[textOffset] = 'X'
	assert.Equal(t, "Xhared text", text)
}

func TestLease_RefusesAfterRelease(t *testing.T) {
	buf := Encode("id", "Kind", "eid", "text", 1)
	rec, err := Open(buf)
	require.NoError(t, err)

	released := false
	lease := NewLease(rec, func() { released = true })

	got, err := lease.Get()
	require.NoError(t, err)
	assert.Same(t, rec, got)

	lease.Release()
	assert.True(t, released)

	_, err = lease.Get()
	assert.Error(t, err)
}

func TestLease_ReleaseIsIdempotent(t *testing.T) {
	buf := Encode("id", "Kind", "eid", "text", 1)
	rec, err := Open(buf)
	require.NoError(t, err)

	calls := 0
	lease := NewLease(rec, func() { calls++ })

	lease.Release()
	lease.Release()
	assert.Equal(t, 1, calls)
}

// binaryPutUint32 writes a little-endian uint32 at off, mirroring the
// package's own header layout, so this test can corrupt a length field
// without depending on encoding/binary being imported twice.
func binaryPutUint32(buf []byte, off int, v uint32) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
}
