package mqtt311

import "sync"

// maxPooledBufferSize bounds the capacity of encode buffers kept for reuse,
// so one large packet does not pin memory for the life of the process.
const maxPooledBufferSize = 64 * 1024

var bytesBufferPool = sync.Pool{
	New: func() any {
		return &bytesBuffer{}
	},
}

// bytesBuffer collects an encoded packet before it is written.
type bytesBuffer struct {
	data []byte
}

func (b *bytesBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *bytesBuffer) Bytes() []byte {
	return b.data
}

func getBytesBuffer() *bytesBuffer {
	b := bytesBufferPool.Get().(*bytesBuffer)
	b.data = b.data[:0]
	return b
}

func putBytesBuffer(b *bytesBuffer) {
	if b == nil || cap(b.data) > maxPooledBufferSize {
		return
	}
	b.data = b.data[:0]
	bytesBufferPool.Put(b)
}
