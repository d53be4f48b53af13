// internal/console/ring.go
package console

import "fmt"

// Shift bounds for the ring capacity (1<<shift bytes).
const (
	MinBufferShift     = 4
	MaxBufferShift     = 24
	DefaultBufferShift = 14
)

// Ring is a power-of-two byte ring. One slot is always left empty, so
// it holds at most Cap()-1 bytes. Not safe for concurrent use.
type Ring struct {
	buf  []byte
	mask int
	head int
	tail int
}

// NewRing allocates a ring of 1<<shift bytes.
func NewRing(shift uint) (*Ring, error) {
	if shift < MinBufferShift || shift > MaxBufferShift {
		return nil, fmt.Errorf("console: buffer shift %d outside %d..%d",
			shift, MinBufferShift, MaxBufferShift)
	}
	size := 1 << shift
	return &Ring{buf: make([]byte, size), mask: size - 1}, nil
}

func (r *Ring) Cap() int { return len(r.buf) }

// Len is the number of buffered bytes.
func (r *Ring) Len() int { return (r.head - r.tail) & r.mask }

// Space is the number of bytes that can be written without dropping.
func (r *Ring) Space() int { return r.mask - r.Len() }

// Write appends p, discarding the oldest bytes when it does not fit.
// Returns the number of bytes dropped.
func (r *Ring) Write(p []byte) int {
	dropped := 0
	if excess := len(p) - r.mask; excess > 0 {
		dropped += excess
		p = p[excess:]
	}
	if over := len(p) - r.Space(); over > 0 {
		r.tail = (r.tail + over) & r.mask
		dropped += over
	}
	for len(p) > 0 {
		n := copy(r.buf[r.head:], p)
		r.head = (r.head + n) & r.mask
		p = p[n:]
	}
	return dropped
}

// Read copies buffered bytes into p, stopping at the end of the
// underlying storage. A wrapped ring needs two reads to empty.
func (r *Ring) Read(p []byte) int {
	n := min(len(p), r.Len(), len(r.buf)-r.tail)
	copy(p, r.buf[r.tail:r.tail+n])
	r.tail = (r.tail + n) & r.mask
	return n
}
