// Package record implements the zero-copy archived record format: a
// fixed-offset, length-prefixed, endian-explicit binary layout that lets
// hot-path readers (the embedding-text builder, the Associative Linker)
// pull individual fields out of a stored node without first paying a JSON
// unmarshal and full struct allocation.
//
// This is not a replacement for pkg/storage's JSON encoding of the mutable
// graph payload — it is a read-optimized side format for the fields the
// enrichment pipeline reads millions of times per corpus (node kind,
// embedding text, embedding id), built directly on encoding/binary because
// no ecosystem serialization library in the retrieval pack implements this
// exact fixed-offset scheme (see DESIGN.md).
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

// CurrentVersion is the schema version this package writes. Readers reject
// any other version outright rather than attempt a best-effort decode —
// the format has no implicit backward compatibility.
const CurrentVersion = 1

var (
	ErrSchemaMismatch = errors.New("archived record: unsupported schema version")
	ErrInvalidRecord  = errors.New("archived record: malformed buffer")
)

// field indices into the fixed header, in declaration order.
const (
	fieldID = iota
	fieldKind
	fieldEmbeddingID
	fieldText
	fieldCount
)

// header layout: [version byte][fieldCount * (uint32 offset, uint32 length)][created_at unix_ns int64]
const headerFixedSize = 1 + fieldCount*8 + 8

// Encode produces the archived-record byte layout for a node's hot-path
// fields. The caller supplies already-extracted strings rather than a
// *model.Node to keep this package free of a dependency on pkg/model,
// mirroring how the rest of the corpus keeps serialization codecs
// independent of the domain types they serialize.
func Encode(id, kind, embeddingID, text string, createdAtUnixNano int64) []byte {
	values := [fieldCount]string{fieldID: id, fieldKind: kind, fieldEmbeddingID: embeddingID, fieldText: text}

	buf := make([]byte, headerFixedSize)
	buf[0] = CurrentVersion

	offset := uint32(headerFixedSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[1+i*8:], offset)
		binary.LittleEndian.PutUint32(buf[1+i*8+4:], uint32(len(v)))
		buf = append(buf, v...)
		offset += uint32(len(v))
	}
	binary.LittleEndian.PutUint64(buf[1+fieldCount*8:], uint64(createdAtUnixNano))

	return buf
}

// Archived is a validated, zero-copy view over an Encode-produced buffer.
// Field accessors borrow directly from the backing slice: they are only
// valid as long as the caller holds buf unmodified (e.g. for the lifetime
// of the read transaction that produced it). Callers that need the data to
// outlive that scope must copy it explicitly (string(rec.Text())).
type Archived struct {
	buf []byte
}

// Open validates buf's header and returns a zero-copy view, or an error if
// the version doesn't match or the offsets/lengths don't fit inside buf.
func Open(buf []byte) (*Archived, error) {
	if len(buf) < headerFixedSize {
		return nil, ErrInvalidRecord
	}
	if buf[0] != CurrentVersion {
		return nil, fmt.Errorf("%w: got version %d, want %d", ErrSchemaMismatch, buf[0], CurrentVersion)
	}

	for i := 0; i < fieldCount; i++ {
		off := binary.LittleEndian.Uint32(buf[1+i*8:])
		length := binary.LittleEndian.Uint32(buf[1+i*8+4:])
		if uint64(off)+uint64(length) > uint64(len(buf)) {
			return nil, ErrInvalidRecord
		}
	}

	return &Archived{buf: buf}, nil
}

func (a *Archived) field(idx int) []byte {
	off := binary.LittleEndian.Uint32(a.buf[1+idx*8:])
	length := binary.LittleEndian.Uint32(a.buf[1+idx*8+4:])
	return a.buf[off : off+length]
}

// borrowedString converts a byte slice to a string without copying. Safe
// here because Archived never exposes a mutable view of buf, so the
// no-mutation invariant unsafe.String requires always holds.
func borrowedString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}

func (a *Archived) ID() string          { return borrowedString(a.field(fieldID)) }
func (a *Archived) Kind() string        { return borrowedString(a.field(fieldKind)) }
func (a *Archived) EmbeddingID() string { return borrowedString(a.field(fieldEmbeddingID)) }
func (a *Archived) Text() string        { return borrowedString(a.field(fieldText)) }

// CreatedAtUnixNano returns the record's creation timestamp.
func (a *Archived) CreatedAtUnixNano() int64 {
	return int64(binary.LittleEndian.Uint64(a.buf[1+fieldCount*8:]))
}

// Lease is a RAII-style guard pairing an Archived view with the release
// callback of whatever owns the backing buffer (typically a pooled read
// transaction from pkg/txpool). Once Release is called, further field
// reads are refused rather than risk returning memory that has been handed
// back to the pool and overwritten by another goroutine's Acquire.
type Lease struct {
	rec     *Archived
	release func()
	live    bool
}

// NewLease wraps rec with a release callback.
func NewLease(rec *Archived, release func()) *Lease {
	return &Lease{rec: rec, release: release, live: true}
}

// Get returns the wrapped record, or an error if the lease has already been
// released.
func (l *Lease) Get() (*Archived, error) {
	if !l.live {
		return nil, errors.New("archived record: lease already released")
	}
	return l.rec, nil
}

// Release invalidates the lease and invokes the owner's release callback.
// Safe to call more than once.
func (l *Lease) Release() {
	if !l.live {
		return
	}
	l.live = false
	if l.release != nil {
		l.release()
	}
}
