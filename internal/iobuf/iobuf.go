// Package iobuf implements the growable byte buffer that carries frames
// between pipeline layers.
//
// A Buffer behaves like a bounded queue: producers append at the tail and
// consumers advance a read cursor at the head. Typed access is provided by the
// generic package functions (Size, Data, Tail, Write, ...) because Go methods
// cannot carry type parameters. Mixing element types on one buffer is allowed
// only when the caller accounts for the byte width of each type: Data and Tail
// panic with ErrOutOfRange when the cursor they view from is not a multiple of
// the element size.
package iobuf

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrOutOfRange reports a consume or move past the bytes a buffer holds. It
// signals a broken caller contract rather than a recoverable runtime event.
var ErrOutOfRange = errors.New("iobuf: out of range")

const (
	minGrow = 256
	// storage sizes are rounded to this so the base suits every Element
	storageAlign = 8
)

func alignUp(n int) int {
	return (n + storageAlign - 1) &^ (storageAlign - 1)
}

// Element is the set of scalar types a Buffer can be viewed as.
type Element interface {
	~float32 | ~float64 | ~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64
}

// Buffer is an append-only byte array with a read cursor (consumed) and a
// write cursor (written). consumed <= written <= Cap() holds after every call.
type Buffer struct {
	buf      []byte
	consumed int
	written  int
}

// New returns an empty buffer with room for capacity bytes.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{buf: make([]byte, alignUp(capacity))}
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return b.written - b.consumed }

// Cap returns the size of the backing storage in bytes.
func (b *Buffer) Cap() int { return len(b.buf) }

// Consumed returns the read cursor in bytes.
func (b *Buffer) Consumed() int { return b.consumed }

// Written returns the write cursor in bytes.
func (b *Buffer) Written() int { return b.written }

// Bytes returns the unread bytes. The slice aliases the buffer and is only
// valid until the next Ensure.
func (b *Buffer) Bytes() []byte { return b.buf[b.consumed:b.written] }

// Clear discards all content.
func (b *Buffer) Clear() {
	b.consumed = 0
	b.written = 0
}

func (b *Buffer) String() string {
	return fmt.Sprintf("IOBuffer{consumed=%d written=%d cap=%d}", b.consumed, b.written, len(b.buf))
}

// ensureBytes guarantees n free bytes past the write cursor. Unread bytes are
// compacted to offset 0 first; storage only grows when compaction is not
// enough.
func (b *Buffer) ensureBytes(n int) {
	if n <= len(b.buf)-b.written {
		return
	}
	unread := b.written - b.consumed
	if unread+n <= len(b.buf) {
		copy(b.buf, b.buf[b.consumed:b.written])
		b.consumed = 0
		b.written = unread
		return
	}
	size := alignUp(max(2*len(b.buf), unread+n, minGrow))
	grown := make([]byte, size)
	copy(grown, b.buf[b.consumed:b.written])
	b.buf = grown
	b.consumed = 0
	b.written = unread
}

func (b *Buffer) moveBytes(n int) error {
	if n < 0 || b.written+n > len(b.buf) {
		return fmt.Errorf("%w: move %d bytes with %d free", ErrOutOfRange, n, len(b.buf)-b.written)
	}
	b.written += n
	return nil
}

func (b *Buffer) consumeBytes(n int) error {
	if n < 0 || n > b.written-b.consumed {
		return fmt.Errorf("%w: consume %d bytes with %d unread", ErrOutOfRange, n, b.written-b.consumed)
	}
	b.consumed += n
	if b.consumed == b.written {
		b.consumed = 0
		b.written = 0
	}
	return nil
}

func (b *Buffer) truncateBytes(n int) error {
	if n < 0 || n > b.written-b.consumed {
		return fmt.Errorf("%w: truncate to %d bytes with %d unread", ErrOutOfRange, n, b.written-b.consumed)
	}
	b.written = b.consumed + n
	if n == 0 {
		b.consumed = 0
		b.written = 0
	}
	return nil
}

func sizeOf[T Element]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// checkAligned panics when off bytes into the storage is not a T boundary.
func checkAligned[T Element](off int) {
	if size := sizeOf[T](); off%size != 0 {
		panic(fmt.Errorf("%w: offset %d is not aligned to %d-byte elements", ErrOutOfRange, off, size))
	}
}

func view[T Element](raw []byte) []T {
	n := len(raw) / sizeOf[T]()
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), n)
}

// Size returns the number of unread elements of type T.
func Size[T Element](b *Buffer) int {
	return (b.written - b.consumed) / sizeOf[T]()
}

// Data returns the unread elements. The slice aliases the buffer.
func Data[T Element](b *Buffer) []T {
	checkAligned[T](b.consumed)
	return view[T](b.buf[b.consumed:b.written])
}

// Tail returns the writable region past the write cursor. Elements placed
// there become readable only after Move.
func Tail[T Element](b *Buffer) []T {
	checkAligned[T](b.written)
	return view[T](b.buf[b.written:])
}

// Ensure guarantees room for at least n elements at the tail. It is the only
// operation that may relocate or compact storage, so slices obtained from
// Data or Tail must be refreshed after calling it.
func Ensure[T Element](b *Buffer, n int) {
	if n <= 0 {
		return
	}
	b.ensureBytes(n * sizeOf[T]())
}

// Write appends src.
func Write[T Element](b *Buffer, src []T) {
	if len(src) == 0 {
		return
	}
	Ensure[T](b, len(src))
	copy(Tail[T](b), src)
	b.written += len(src) * sizeOf[T]()
}

// WriteZero appends n zero elements.
func WriteZero[T Element](b *Buffer, n int) {
	if n <= 0 {
		return
	}
	Ensure[T](b, n)
	clear(Tail[T](b)[:n])
	b.written += n * sizeOf[T]()
}

// Move commits n elements already placed in Tail as readable.
func Move[T Element](b *Buffer, n int) error {
	return b.moveBytes(n * sizeOf[T]())
}

// Truncate keeps the first n unread elements and drops the rest from the
// tail.
func Truncate[T Element](b *Buffer, n int) error {
	return b.truncateBytes(n * sizeOf[T]())
}

// Consume advances the read cursor by n elements.
func Consume[T Element](b *Buffer, n int) error {
	return b.consumeBytes(n * sizeOf[T]())
}
