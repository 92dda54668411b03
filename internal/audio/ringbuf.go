package audio

import "sync/atomic"

// ringBuffer is a fixed capacity, lock-free, single-producer single-consumer
// byte queue.
//
// Positions increase monotonically and are only wrapped (modulo capacity)
// when indexing into buf, so occupied + free always equals the capacity. The
// producer (claim, commit and write) and the consumer (read) may run
// concurrently; neither side ever blocks.
type ringBuffer struct {
	// Producer and consumer positions live in different cache lines.
	writePos atomic.Uint64
	_pad1    [56]byte
	readPos  atomic.Uint64
	_pad2    [56]byte

	buf []byte

	// claimed is the size of the outstanding claim. Only accessed by the
	// producer.
	claimed int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]byte, capacity)}
}

func (rb *ringBuffer) capacity() int {
	return len(rb.buf)
}

// len is the number of bytes available for reading.
func (rb *ringBuffer) len() int {
	return int(rb.writePos.Load() - rb.readPos.Load())
}

// free is the number of bytes available for writing.
func (rb *ringBuffer) free() int {
	return len(rb.buf) - rb.len()
}

// claim returns a contiguous writable region of at most n bytes. The region
// may be shorter than n when free space is short or when it reaches the end
// of the underlying buffer. Data copied into the region is only published by
// a subsequent commit. Each call replaces the previous claim.
func (rb *ringBuffer) claim(n int) []byte {
	w := rb.writePos.Load()
	r := rb.readPos.Load()

	size := uint64(len(rb.buf))
	free := int(size - (w - r))
	if n > free {
		n = free
	}
	pos := int(w % size)
	if n > len(rb.buf)-pos {
		n = len(rb.buf) - pos
	}
	if n < 0 {
		n = 0
	}

	rb.claimed = n
	return rb.buf[pos : pos+n]
}

// commit publishes n bytes of the outstanding claim. Committing more than was
// claimed fails with ErrOverflow and leaves the buffer untouched.
func (rb *ringBuffer) commit(n int) error {
	if n < 0 || n > rb.claimed {
		return codedErrorf(ErrOverflow, nil, "commit of %d bytes "+
			"exceeds claim of %d bytes", n, rb.claimed)
	}
	rb.claimed = 0
	rb.writePos.Store(rb.writePos.Load() + uint64(n))
	return nil
}

// write stores all of p, claiming and committing as many times as needed to
// cross the end of the underlying buffer. It fails with ErrOverflow, without
// writing anything, if p does not fit in the free space.
func (rb *ringBuffer) write(p []byte) error {
	if free := rb.free(); len(p) > free {
		return codedErrorf(ErrOverflow, nil, "write of %d bytes "+
			"exceeds free space of %d bytes", len(p), free)
	}
	for len(p) > 0 {
		n := copy(rb.claim(len(p)), p)
		if err := rb.commit(n); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// read copies up to len(dst) bytes out of the buffer in FIFO order and
// returns the number of bytes copied.
func (rb *ringBuffer) read(dst []byte) int {
	r := rb.readPos.Load()
	w := rb.writePos.Load()

	n := uint64(len(dst))
	if avail := w - r; n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	size := uint64(len(rb.buf))
	pos := r % size
	first := size - pos
	if first >= n {
		copy(dst[:n], rb.buf[pos:pos+n])
	} else {
		copy(dst[:first], rb.buf[pos:])
		copy(dst[first:n], rb.buf[:n-first])
	}

	rb.readPos.Store(r + n)
	return int(n)
}
