// Package kpool provides a sync.Pool-backed source of zeroed 4 KiB
// page-shaped buffers backing the simulated physical memory manager
// (C2), so frame allocation reuses the same pooling idiom
// internal/queue/pool.go uses for I/O buffers instead of a bare make
// per frame.
package kpool

import (
	"sync"

	"github.com/kernelcore/gokernel/internal/constants"
)

var pagePool = sync.Pool{
	New: func() any {
		b := make([]byte, constants.PageSize)
		return &b
	},
}

// Get returns a page-sized buffer. Contents are not guaranteed zeroed;
// callers that need a zero frame call Zero first.
func Get() []byte {
	return *pagePool.Get().(*[]byte)
}

// Put returns a buffer obtained from Get back to the pool. The buffer's
// length must equal constants.PageSize.
func Put(buf []byte) {
	if len(buf) != constants.PageSize {
		return
	}
	pagePool.Put(&buf)
}

// Zero clears a page buffer in place.
func Zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
