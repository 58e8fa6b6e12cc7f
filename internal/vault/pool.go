package vault

import "sync"

// bufferPool recycles the pipeline's ChunkSize buffers: chunk buffers
// cycle once per block, keystream buffers once per transform. Pointers
// keep Put allocation-free.
type bufferPool struct {
	pool sync.Pool
}

func newBufferPool() *bufferPool {
	return &bufferPool{
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, ChunkSize)
				return &b
			},
		},
	}
}

func (p *bufferPool) get() []byte {
	return *p.pool.Get().(*[]byte)
}

func (p *bufferPool) put(b []byte) {
	if cap(b) < ChunkSize {
		return
	}
	b = b[:ChunkSize]
	p.pool.Put(&b)
}

// wipe zeroes a buffer. Keystream buffers are wiped before they go back
// to the pool so pad material never lingers in recycled memory.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
