package sandbox

import (
	"bytes"
)

// limitedBuffer keeps at most limit bytes and silently drops the rest, so a
// chatty program can neither exhaust memory nor block on a full pipe
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newLimitedBuffer(limit int) *limitedBuffer {
	return &limitedBuffer{limit: limit}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if b.limit > 0 {
		remain := b.limit - b.buf.Len()
		if remain <= 0 {
			b.truncated = b.truncated || n > 0
			return n, nil
		}
		if len(p) > remain {
			p = p[:remain]
			b.truncated = true
		}
	}
	b.buf.Write(p)
	return n, nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
