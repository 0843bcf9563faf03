package codec

import (
	"bytes"
	"sync"

	"github.com/harliandi/sizefit/pkg/metrics"
)

// bufferTier pools encode buffers of one capacity class.
type bufferTier struct {
	name string
	size int
	pool sync.Pool
}

// Trial encodes are measured and thrown away, so their buffers are recycled
// instead of reallocated each time.
var bufferTiers = []*bufferTier{
	{name: "small", size: 64 * 1024},
	{name: "medium", size: 512 * 1024},
	{name: "large", size: 5 * 1024 * 1024},
	{name: "xlarge", size: 10 * 1024 * 1024},
}

func tierFor(size int) *bufferTier {
	for _, t := range bufferTiers {
		if size <= t.size {
			return t
		}
	}
	return bufferTiers[len(bufferTiers)-1]
}

// getBuffer returns an empty buffer sized for roughly hint bytes.
func getBuffer(hint int) *bytes.Buffer {
	t := tierFor(hint)
	if b, ok := t.pool.Get().(*bytes.Buffer); ok {
		metrics.RecordPoolHit(t.name)
		return b
	}
	metrics.RecordPoolMiss(t.name)
	return bytes.NewBuffer(make([]byte, 0, t.size))
}

// putBuffer resets b and returns it to the tier matching its capacity.
// Buffers that grew far past the largest tier are left to the GC.
func putBuffer(b *bytes.Buffer) {
	if b == nil {
		return
	}
	capacity := b.Cap()
	if capacity > 2*bufferTiers[len(bufferTiers)-1].size {
		return
	}
	b.Reset()

	t := bufferTiers[0]
	for _, candidate := range bufferTiers {
		if capacity >= candidate.size {
			t = candidate
		}
	}
	t.pool.Put(b)
}
