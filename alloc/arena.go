package alloc

// Arena is a bump allocator for variable-sized byte payloads such as the
// render graph's diff-arena copies of MessageToData payloads, where the
// caller owns the lifetime of the whole arena rather than of individual
// allocations. Unlike Pool, Arena never frees individual blocks; its
// owner releases everything at once with Reset.
type Arena struct {
	chunks    [][]byte
	chunkSize int
	cur       int // index into chunks of the chunk currently being filled
	off       int // next free byte within chunks[cur]
}

// defaultChunkSize matches Pool's 4K page size, keeping the two
// allocators' memory footprint comparable for workloads that mix them.
const defaultChunkSize = 4096

// NewArena constructs an empty Arena. chunkSize of 0 uses
// defaultChunkSize.
func NewArena(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	return &Arena{chunkSize: chunkSize}
}

// Alloc returns an n-byte slice that will not be reused until the next
// Reset. Requests larger than the arena's chunk size get a dedicated
// chunk of exactly n bytes.
func (a *Arena) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	if n > a.chunkSize {
		// Oversized requests get a dedicated chunk appended at the end;
		// the bump cursor keeps filling whatever chunk it was already on.
		chunk := make([]byte, n)
		a.chunks = append(a.chunks, chunk)

		return chunk
	}

	if len(a.chunks) == 0 || a.off+n > len(a.chunks[a.cur]) {
		a.chunks = append(a.chunks, make([]byte, a.chunkSize))
		a.cur = len(a.chunks) - 1
		a.off = 0
	}

	block := a.chunks[a.cur][a.off : a.off+n]
	a.off += n

	return block
}

// Reset discards every allocation, reusing the first chunk's backing
// array for the next frame (the common case: one chunk is enough).
func (a *Arena) Reset() {
	if len(a.chunks) == 0 {
		return
	}
	a.chunks = a.chunks[:1]
	a.cur = 0
	a.off = 0
}

// Len reports how many chunks are currently allocated, exposed for
// leak/footprint diagnostics.
func (a *Arena) Len() int {
	return len(a.chunks)
}
