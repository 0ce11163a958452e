// Package baton implements the receive buffer handle passed between the connection and
// the request framing: a cursor over the bytes received so far plus an end-of-input flag.
package baton

import "github.com/panjf2000/gnet/v2/pkg/pool/byteslice"

// Baton holds bytes received from the peer, yet unconsumed by the parser. The storage is
// borrowed from the shared byte-slice pool and must be given back either by Release or Free.
type Baton struct {
	storage []byte
	offset  int
	initial int
	eof     bool
}

func New(initialSize int) *Baton {
	return &Baton{initial: initialSize}
}

// Append copies the data into the baton, growing or compacting the storage if needed.
func (b *Baton) Append(data []byte) {
	if len(data) == 0 {
		return
	}

	if b.storage == nil {
		b.storage = byteslice.Get(max(b.initial, len(data)))[:0]
	}

	if len(b.storage)+len(data) > cap(b.storage) {
		b.grow(len(data))
	}

	b.storage = append(b.storage, data...)
}

func (b *Baton) grow(n int) {
	pending := b.storage[b.offset:]
	if len(pending)+n <= cap(b.storage) {
		// enough space if the consumed head is cut off
		b.storage = b.storage[:copy(b.storage, pending)]
		b.offset = 0
		return
	}

	fresh := byteslice.Get(max(2*cap(b.storage), len(pending)+n))[:0]
	fresh = append(fresh, pending...)
	byteslice.Put(b.storage)
	b.storage, b.offset = fresh, 0
}

// Bytes returns unconsumed bytes. The returned slice is valid until the next Append,
// Skip, Release or Free.
func (b *Baton) Bytes() []byte {
	if b.storage == nil {
		return nil
	}

	return b.storage[b.offset:]
}

// Len returns the number of unconsumed bytes.
func (b *Baton) Len() int {
	return len(b.storage) - b.offset
}

// Skip consumes n bytes from the front.
func (b *Baton) Skip(n int) {
	if n > b.Len() {
		n = b.Len()
	}

	b.offset += n
	if b.offset == len(b.storage) {
		b.storage, b.offset = b.storage[:0], 0
	}
}

// SetEOF marks that the peer won't send anything more.
func (b *Baton) SetEOF() {
	b.eof = true
}

// EOF reports whether the end of input was reached.
func (b *Baton) EOF() bool {
	return b.eof
}

// Release gives the storage back to the pool. Unconsumed bytes, if any, survive: they are
// moved into a fresh slice fitting them exactly.
func (b *Baton) Release() {
	if b.storage == nil {
		return
	}

	pending := b.storage[b.offset:]
	var rest []byte
	if len(pending) > 0 {
		rest = append(byteslice.Get(len(pending))[:0], pending...)
	}

	byteslice.Put(b.storage)
	b.storage, b.offset = rest, 0
}

// Free drops everything and gives the storage back to the pool. The baton may be reused
// afterwards.
func (b *Baton) Free() {
	if b.storage != nil {
		byteslice.Put(b.storage)
	}

	b.storage, b.offset = nil, 0
}
