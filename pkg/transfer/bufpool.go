package transfer

import "sync"

// chunkPool recycles chunk buffers of one fixed size across transfers.
type chunkPool struct {
	size int
	pool sync.Pool
}

func newChunkPool(size int) *chunkPool {
	p := &chunkPool{size: size}
	p.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

func (p *chunkPool) get() []byte {
	return *(p.pool.Get().(*[]byte))
}

func (p *chunkPool) put(buf []byte) {
	// Only buffers handed out by this pool come back
	if cap(buf) != p.size {
		return
	}
	full := buf[:cap(buf)]
	p.pool.Put(&full)
}
