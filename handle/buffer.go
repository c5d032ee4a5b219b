package handle

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/scriptbridge/host"
)

// Buffer is a host allocation freed at most once.
type Buffer struct {
	table *Table
	buf   host.Buffer
	freed atomic.Bool
}

// Alloc allocates size bytes of host memory.
func (t *Table) Alloc(size int) (*Buffer, error) {
	buf, err := t.host.Alloc(size)
	if err != nil {
		return nil, err
	}
	t.notify(Event{Type: EventBufferAllocated, Size: size})
	return &Buffer{table: t, buf: buf}, nil
}

// AllocString copies s into a fresh host buffer.
func (t *Table) AllocString(s string) (*Buffer, error) {
	b, err := t.Alloc(len(s))
	if err != nil {
		return nil, err
	}
	copy(b.buf.Data, s)
	return b, nil
}

// Host returns the underlying host buffer.
func (b *Buffer) Host() host.Buffer {
	return b.buf
}

// Bytes returns the buffer contents.
func (b *Buffer) Bytes() []byte {
	return b.buf.Data
}

// Free returns the allocation to the host. Later calls are no-ops.
func (b *Buffer) Free() bool {
	if b == nil || !b.freed.CompareAndSwap(false, true) {
		return false
	}
	if err := b.table.host.Free(b.buf); err != nil {
		Logger().Warn("free host buffer",
			zap.Uint64("addr", b.buf.Addr),
			zap.Error(err))
	}
	b.table.notify(Event{Type: EventBufferFreed, Size: len(b.buf.Data)})
	return true
}
