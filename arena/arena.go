// Package arena provides a fixed-capacity bump allocator with handle-based
// addressing. A parse operation allocates scratch storage for decoded values
// from one Arena it exclusively owns, then reclaims everything at once with
// Clear. Handles, not raw pointers, cross the arena boundary: a handle can be
// resolved back to a typed view only against the arena generation that issued
// it, so use-after-Clear is a checked error instead of memory corruption.
package arena

import (
	"errors"
	"math/rand/v2"
	"unsafe"

	"golang.org/x/exp/constraints"
)

var (
	// ErrExhausted indicates an allocation would exceed the arena's fixed
	// capacity. The arena never grows and never falls back to the heap;
	// callers size it for their worst-case input.
	ErrExhausted = errors.New("arena: capacity exhausted")

	// ErrStaleHandle indicates a handle from a different arena instance or
	// from before a Clear.
	ErrStaleHandle = errors.New("arena: stale or foreign handle")

	// ErrHandleType indicates a handle resolved with a different element
	// type than it was allocated with.
	ErrHandleType = errors.New("arena: handle element type mismatch")
)

// Element restricts typed allocation to fixed-width numeric types, for which
// reinterpreting a byte region is well defined on every supported platform.
type Element interface {
	constraints.Integer | constraints.Float
}

// Handle is an opaque reference to arena-resident data: a byte offset, a
// length in elements, the element width and the arena generation that issued
// it. The zero Handle is never issued.
type Handle struct {
	off  uint32
	n    uint32
	elem uint32 // element size in bytes
	gen  uint32
}

// Len returns the number of elements the handle refers to.
func (h Handle) Len() int { return int(h.n) }

// Arena is a bump allocator over a preallocated byte region. It is owned by
// a single goroutine at a time; there is no internal synchronization.
type Arena struct {
	buf []byte
	off int
	gen uint32

	// ZeroOnClear wipes freed content on Clear. Not required for
	// correctness; useful when debugging handle misuse.
	ZeroOnClear bool
}

// New creates an arena with the given fixed capacity in bytes. The starting
// generation is randomized so a handle from one arena does not accidentally
// carry the current generation of another.
func New(capacity int) *Arena {
	return &Arena{buf: make([]byte, capacity), gen: rand.Uint32() | 1}
}

// Len returns the number of bytes currently allocated.
func (a *Arena) Len() int { return a.off }

// Cap returns the fixed capacity in bytes.
func (a *Arena) Cap() int { return len(a.buf) }

// Remaining returns the bytes still available before exhaustion.
func (a *Arena) Remaining() int { return len(a.buf) - a.off }

// Clear resets the bump cursor to zero and invalidates every handle issued
// since the previous Clear. O(1) unless ZeroOnClear is set.
func (a *Arena) Clear() {
	if a.ZeroOnClear {
		clear(a.buf[:a.off])
	}
	a.off = 0
	a.gen++
}

// AllocBytes bump-allocates n bytes and returns the mutable view plus its
// handle. The view stays valid until the next Clear.
func (a *Arena) AllocBytes(n int) ([]byte, Handle, error) {
	off, err := a.reserve(n, 1)
	if err != nil {
		return nil, Handle{}, err
	}
	h := Handle{off: uint32(off), n: uint32(n), elem: 1, gen: a.gen}
	return a.buf[off : off+n : off+n], h, nil
}

// ResolveBytes reconstructs the byte view a handle refers to.
func (a *Arena) ResolveBytes(h Handle) ([]byte, error) {
	if err := a.check(h); err != nil {
		return nil, err
	}
	if h.elem != 1 {
		return nil, ErrHandleType
	}
	return a.buf[h.off : h.off+h.n : h.off+h.n], nil
}

// Alloc bump-allocates count elements of T aligned to T's natural alignment
// and returns the typed view plus its handle.
func Alloc[T Element](a *Arena, count int) ([]T, Handle, error) {
	var t T
	size := int(unsafe.Sizeof(t))
	off, err := a.reserve(count*size, int(unsafe.Alignof(t)))
	if err != nil {
		return nil, Handle{}, err
	}
	h := Handle{off: uint32(off), n: uint32(count), elem: uint32(size), gen: a.gen}
	return view[T](a, off, count), h, nil
}

// Resolve reconstructs a typed view from a previously issued handle. The
// element type must match the allocation and the handle must belong to the
// current generation of this arena.
func Resolve[T Element](a *Arena, h Handle) ([]T, error) {
	if err := a.check(h); err != nil {
		return nil, err
	}
	var t T
	if h.elem != uint32(unsafe.Sizeof(t)) {
		return nil, ErrHandleType
	}
	return view[T](a, int(h.off), int(h.n)), nil
}

func view[T Element](a *Arena, off, count int) []T {
	if count == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&a.buf[off])), count)
}

func (a *Arena) check(h Handle) error {
	if h.gen != a.gen || int(h.off)+int(h.n)*int(h.elem) > a.off {
		return ErrStaleHandle
	}
	return nil
}

// reserve advances the bump cursor past any alignment padding plus n bytes
// and returns the aligned offset.
func (a *Arena) reserve(n, align int) (int, error) {
	off := (a.off + align - 1) &^ (align - 1)
	if n < 0 || off+n > len(a.buf) {
		return 0, ErrExhausted
	}
	a.off = off + n
	return off, nil
}
