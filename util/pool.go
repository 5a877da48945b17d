package util

import "sync"

// RelayBufSize is the copy buffer used by Relay.  Bank traffic is a line
// at a time, so a small buffer is plenty.
const RelayBufSize = 4 * 1024

// bufPool recycles relay buffers across client reconnects.
var bufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, RelayBufSize)
		return &buf
	},
}

func getBuf() *[]byte { return bufPool.Get().(*[]byte) }

func putBuf(buf *[]byte) {
	if buf != nil {
		bufPool.Put(buf)
	}
}
