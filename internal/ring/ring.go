// Package ring implements the power-of-two sample ring buffer used by
// delay lines, allpass filters, and grain buffers. Grounded on
// original_source/arco/src/ringbuf.h's Ringbuf class: head/tail indices
// masked by allocated length minus one, with get_nth/enqueue/toss and a
// history-preserving resize.
package ring

// Buffer is a circular buffer of float32 samples. The allocated length is
// always a power of two; logical length (the "fifo length") is at most
// allocated length minus one, matching the source's invariant so that
// full and empty states remain distinguishable without a separate count.
type Buffer struct {
	data []float32
	mask int // allocated length - 1
	head int // index of the next slot to write (newest + 1)
	tail int // index of the oldest sample still logically present
	len  int // logical length (number of valid samples)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// New allocates an empty buffer (Len is 0) that can hold at least length
// samples before the oldest is overwritten.
func New(length int) *Buffer {
	alloc := nextPow2(length + 1)
	if alloc < 2 {
		alloc = 2
	}
	return &Buffer{
		data: make([]float32, alloc),
		mask: alloc - 1,
	}
}

// Len reports the number of samples currently held.
func (b *Buffer) Len() int { return b.len }

// Cap reports the maximum logical length without growing.
func (b *Buffer) Cap() int { return len(b.data) - 1 }

// Enqueue appends one sample at the head, evicting the oldest sample if
// the buffer is already at its logical capacity.
func (b *Buffer) Enqueue(s float32) {
	b.data[b.head] = s
	b.head = (b.head + 1) & b.mask
	if b.len < b.Cap() {
		b.len++
	} else {
		b.tail = (b.tail + 1) & b.mask
	}
}

// EnqueueBlock appends a slice of samples in order.
func (b *Buffer) EnqueueBlock(s []float32) {
	for _, v := range s {
		b.Enqueue(v)
	}
}

// Dequeue removes and returns the oldest sample.
func (b *Buffer) Dequeue() float32 {
	v := b.data[b.tail]
	b.tail = (b.tail + 1) & b.mask
	b.len--
	return v
}

// Toss discards the n oldest samples without returning them (delay-line
// read-then-advance idiom).
func (b *Buffer) Toss(n int) {
	if n > b.len {
		n = b.len
	}
	b.tail = (b.tail + n) & b.mask
	b.len -= n
}

// GetNth returns the sample n positions before the head (n=0 is the most
// recently enqueued sample). This is the delay-line read used by Delay,
// Allpass, and Granstream.
func (b *Buffer) GetNth(n int) float32 {
	idx := (b.head - 1 - n) & b.mask
	return b.data[idx]
}

// AddToNth adds v to the sample n positions before the head, used by
// Allpass/Delay feedback write-back into history.
func (b *Buffer) AddToNth(n int, v float32) {
	idx := (b.head - 1 - n) & b.mask
	b.data[idx] += v
}

// SetFifoLen grows the allocated storage if needed so the buffer can hold
// length samples, preserving history. If padWithZeros is true and the
// buffer is being lengthened, the newly available span nearest the tail
// is zero-filled rather than left containing stale samples, which is what
// lets a delay line's duration be increased without a click. Mirrors
// Ringbuf::set_fifo_len in ringbuf.h.
func (b *Buffer) SetFifoLen(length int, padWithZeros bool) {
	if length <= b.Cap() {
		if length < b.len {
			b.Toss(b.len - length)
		}
		return
	}
	oldAlloc := len(b.data)
	newAlloc := nextPow2(length + 1)
	grown := make([]float32, newAlloc)
	// Copy existing logical contents out in age order (oldest first),
	// then lay them back down contiguously starting at index 0 so the
	// mask arithmetic stays simple after growth.
	for i := 0; i < b.len; i++ {
		idx := (b.tail + i) & (oldAlloc - 1)
		grown[i] = b.data[idx]
	}
	extra := length - b.len
	if padWithZeros {
		// zero-pad at the "oldest" end so new history reads as silence
		copy(grown[extra:], grown[:b.len])
		for i := 0; i < extra; i++ {
			grown[i] = 0
		}
		b.len = length
	}
	b.data = grown
	b.mask = newAlloc - 1
	b.tail = 0
	if padWithZeros {
		b.head = b.len & b.mask
	} else {
		b.head = b.len & b.mask
	}
}
