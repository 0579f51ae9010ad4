// Package alloc provides the two allocation primitives the runtime needs
// beneath handle.Arena (spec.md §4.8): a fixed-size-object Pool whose
// pages are pinned so raw pointers into them stay valid across
// allocations, and a raw Arena used for diff-arena payload copies where
// the caller manages lifetime explicitly
// instead of through a handle.
package alloc

import (
	"fmt"
)

// pageSizes are the rounded-up page byte sizes a Pool may choose from
// (spec.md §4.8): "one of {256, 1K, 4K, 16K} bytes chosen to approximate
// object_size × desired_pool_size".
var pageSizes = [...]int{256, 1024, 4096, 16384}

// choosePageSize picks the smallest pageSizes entry that can hold at
// least one object, preferring the entry closest to the requested
// object_size × desired_pool_size product without going under a single
// object's size.
func choosePageSize(objectSize, desiredPoolSize int) int {
	target := objectSize * desiredPoolSize
	for _, ps := range pageSizes {
		if ps >= target && ps >= objectSize {
			return ps
		}
	}
	last := pageSizes[len(pageSizes)-1]
	if last < objectSize {
		// Object is larger than the biggest standard page; give it a
		// dedicated page sized to the object itself.
		return objectSize
	}

	return last
}

// page is one pinned backing array plus its free-position stack. Slices
// into storage are never reallocated for the page's lifetime, so a
// pointer obtained from Alloc remains stable until Free or Dispose.
type page struct {
	storage    []byte
	objectSize int
	capacity   int
	freeStack  []int // free slot indices, popped from the end
	next       *page
}

func newPage(objectSize, pageBytes int) *page {
	capacity := pageBytes / objectSize
	if capacity < 1 {
		capacity = 1
	}
	p := &page{
		storage:    make([]byte, capacity*objectSize),
		objectSize: objectSize,
		capacity:   capacity,
		freeStack:  make([]int, capacity),
	}
	// Initialized in reverse so allocations proceed contiguously from
	// index 0 (spec.md §4.8).
	for i := 0; i < capacity; i++ {
		p.freeStack[i] = capacity - 1 - i
	}

	return p
}

func (p *page) alloc() (int, []byte, bool) {
	n := len(p.freeStack)
	if n == 0 {
		return 0, nil, false
	}
	idx := p.freeStack[n-1]
	p.freeStack = p.freeStack[:n-1]
	off := idx * p.objectSize

	return idx, p.storage[off : off+p.objectSize], true
}

func (p *page) free(idx int) {
	off := idx * p.objectSize
	block := p.storage[off : off+p.objectSize]
	for i := range block {
		block[i] = 0
	}
	p.freeStack = append(p.freeStack, idx)
}

func (p *page) inUse() int {
	return p.capacity - len(p.freeStack)
}

// Ref identifies one allocated block within a Pool, for Free.
type Ref struct {
	page *page
	idx  int
}

// Pool is the managed-object pool allocator of spec.md §4.8: fixed-size
// blocks carved out of pinned pages, so a returned byte slice's backing
// array never moves until Free.
type Pool struct {
	objectSize  int
	objectAlign int
	pageBytes   int
	pages       *page // most-recently-added page first
	name        string
}

// NewPool constructs a Pool for objects of the given size and alignment,
// sized to approximately hold desiredPoolSize objects per page.
// objectAlign is recorded for callers that need it when interpreting the
// returned bytes (e.g. casting to a typed pointer); the allocator itself
// does not re-align, since Go's runtime-allocated []byte is already
// worst-case aligned.
func NewPool(objectSize, objectAlign, desiredPoolSize int, name string) *Pool {
	if objectSize < 1 {
		objectSize = 1
	}

	return &Pool{
		objectSize:  objectSize,
		objectAlign: objectAlign,
		pageBytes:   choosePageSize(objectSize, desiredPoolSize),
		name:        name,
	}
}

// Alloc returns a zeroed block and a Ref to free it later. It walks the
// page list for a free slot, allocating a fresh page only when none has
// room (spec.md §4.8: "alloc walks the list and allocates a new page
// when none has a free slot").
func (p *Pool) Alloc() ([]byte, Ref) {
	for pg := p.pages; pg != nil; pg = pg.next {
		if idx, block, ok := pg.alloc(); ok {
			return block, Ref{page: pg, idx: idx}
		}
	}

	pg := newPage(p.objectSize, p.pageBytes)
	pg.next = p.pages
	p.pages = pg
	idx, block, _ := pg.alloc()

	return block, Ref{page: pg, idx: idx}
}

// Free zeros the block and returns its slot to its page's free stack,
// per spec.md §4.8's "free zeros the returned block to avoid retaining
// references" (a managed object pool must not keep a stale reference
// alive after return).
func (p *Pool) Free(ref Ref) {
	ref.page.free(ref.idx)
}

// InUse returns the total number of currently allocated objects across
// every page.
func (p *Pool) InUse() int {
	n := 0
	for pg := p.pages; pg != nil; pg = pg.next {
		n += pg.inUse()
	}

	return n
}

// Dispose logs a leak warning for every object still in use, then frees
// all pages (spec.md §4.8: "Disposing prints the count of in-use objects
// (leak warning) and frees all pages"). A nil logf falls back to
// fmt.Printf; rendergraph.Graph.Dispose passes the logger it is given.
func (p *Pool) Dispose(logf func(format string, args ...interface{})) {
	if n := p.InUse(); n > 0 {
		if logf == nil {
			logf = func(format string, args ...interface{}) { fmt.Printf(format+"\n", args...) }
		}
		logf("alloc: pool %q disposed with %d object(s) still in use", p.name, n)
	}
	p.pages = nil
}
