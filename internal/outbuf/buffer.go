// Package outbuf implements the append-only arena the compiler serializes
// records into. Regions are addressed by offset handles, so growing the
// backing slice never invalidates a handle issued earlier.
package outbuf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBufferFull is returned when a reservation would exceed the size limit.
var ErrBufferFull = errors.New("output buffer limit exceeded")

// ErrReleased is returned when the buffer is used after Release.
var ErrReleased = errors.New("output buffer released")

// Handle addresses a reserved region. The zero Handle with Len 0 is valid
// but empty.
type Handle struct {
	Off int
	Len int
}

// Buffer is a growable byte arena.
type Buffer struct {
	data     []byte
	maxSize  int
	released bool
}

// New creates a buffer that refuses to grow past maxSize bytes.
// A maxSize <= 0 means unlimited.
func New(maxSize int) *Buffer {
	return &Buffer{maxSize: maxSize}
}

// Reserve appends n zeroed bytes and returns their handle.
func (b *Buffer) Reserve(n int) (Handle, error) {
	if b.released {
		return Handle{}, ErrReleased
	}
	if n < 0 {
		return Handle{}, fmt.Errorf("invalid reservation size %d", n)
	}
	if b.maxSize > 0 && len(b.data)+n > b.maxSize {
		return Handle{}, fmt.Errorf("reserve %d bytes at %d: %w", n, len(b.data), ErrBufferFull)
	}

	h := Handle{Off: len(b.data), Len: n}
	b.data = append(b.data, make([]byte, n)...)
	return h, nil
}

// Bytes resolves a handle to its current backing region. The returned
// slice must not be retained across a later Reserve.
func (b *Buffer) Bytes(h Handle) []byte {
	return b.data[h.Off : h.Off+h.Len : h.Off+h.Len]
}

// Len returns the number of bytes reserved so far.
func (b *Buffer) Len() int {
	return len(b.data)
}

// CopyTo copies the whole content into dst, which must be large enough.
func (b *Buffer) CopyTo(dst []byte) (int, error) {
	if b.released {
		return 0, ErrReleased
	}
	if len(dst) < len(b.data) {
		return 0, fmt.Errorf("destination too small: %d < %d", len(dst), len(b.data))
	}
	return copy(dst, b.data), nil
}

// Release drops the storage. It is safe to call more than once.
func (b *Buffer) Release() {
	b.data = nil
	b.released = true
}

// Append reserves len(p) bytes and copies p into them.
func (b *Buffer) Append(p []byte) (Handle, error) {
	h, err := b.Reserve(len(p))
	if err != nil {
		return Handle{}, err
	}
	copy(b.Bytes(h), p)
	return h, nil
}

// Alloc reserves room for a T and writes v into it.
func Alloc[T any](b *Buffer, v *T) (Handle, error) {
	n := binary.Size(v)
	if n < 0 {
		return Handle{}, fmt.Errorf("type %T has no fixed size", v)
	}
	h, err := b.Reserve(n)
	if err != nil {
		return Handle{}, err
	}
	return h, Store(b, h, v)
}

// Load decodes the T stored at h.
func Load[T any](b *Buffer, h Handle, v *T) error {
	if _, err := binary.Decode(b.Bytes(h), binary.LittleEndian, v); err != nil {
		return fmt.Errorf("load %T at %d: %w", v, h.Off, err)
	}
	return nil
}

// Store encodes v into the region at h.
func Store[T any](b *Buffer, h Handle, v *T) error {
	if _, err := binary.Encode(b.Bytes(h), binary.LittleEndian, v); err != nil {
		return fmt.Errorf("store %T at %d: %w", v, h.Off, err)
	}
	return nil
}

// Update loads the T at h, applies fn and stores it back.
func Update[T any](b *Buffer, h Handle, fn func(*T)) error {
	var v T
	if err := Load(b, h, &v); err != nil {
		return err
	}
	fn(&v)
	return Store(b, h, &v)
}
