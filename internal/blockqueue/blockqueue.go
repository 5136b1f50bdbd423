// Package blockqueue implements a FIFO of fixed-size byte blocks used for
// cross-thread audio hand-off, grounded on
// original_source/arco/src/blockqueue.h's Blockqueue class.
package blockqueue

// Queue is a ring of fixed-size byte blocks. Every Enqueue/Dequeue moves
// exactly blockSize bytes, matching the source's block-aligned memcpy
// semantics. No other package in this module uses it: strplay/filerec
// hand blocks to the file-I/O worker over fileio's channels instead.
type Queue struct {
	blockSize int
	blocks    [][]byte
	head      int
	tail      int
	len       int
}

// New creates a queue holding up to capacity blocks of blockSize bytes
// each.
func New(blockSize, capacity int) *Queue {
	if capacity < 2 {
		capacity = 2
	}
	return &Queue{
		blockSize: blockSize,
		blocks:    make([][]byte, capacity),
	}
}

// Len reports the number of whole blocks currently queued.
func (q *Queue) Len() int { return q.len }

// Cap reports the maximum number of blocks the queue holds; once Len
// reaches Cap, Enqueue returns false (this queue never blocks).
func (q *Queue) Cap() int { return len(q.blocks) }

// Enqueue copies src (which must be blockSize bytes) into the next slot.
// Reports false if the queue is full.
func (q *Queue) Enqueue(src []byte) bool {
	if q.len == len(q.blocks) {
		return false
	}
	buf := make([]byte, q.blockSize)
	copy(buf, src)
	q.blocks[q.head] = buf
	q.head = (q.head + 1) % len(q.blocks)
	q.len++
	return true
}

// EnqueueZeros appends a zero-filled block, used to pad the stream on
// underflow so downstream consumers never read past a short read.
func (q *Queue) EnqueueZeros() bool {
	return q.Enqueue(make([]byte, q.blockSize))
}

// Dequeue copies the oldest block into dst (which must be at least
// blockSize bytes) and removes it. Reports false if the queue is empty.
func (q *Queue) Dequeue(dst []byte) bool {
	if q.len == 0 {
		return false
	}
	copy(dst, q.blocks[q.tail])
	q.blocks[q.tail] = nil
	q.tail = (q.tail + 1) % len(q.blocks)
	q.len--
	return true
}

// Dequeue16Bit dequeues the oldest block, interprets it as little-endian
// 16-bit PCM samples, and writes the converted float32 samples (scaled to
// [-1, 1]) into dst. dst must have room for blockSize/2 samples.
func (q *Queue) Dequeue16Bit(dst []float32) bool {
	raw := make([]byte, q.blockSize)
	if !q.Dequeue(raw) {
		return false
	}
	n := q.blockSize / 2
	for i := 0; i < n && i < len(dst); i++ {
		v := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		dst[i] = float32(v) / 32768.0
	}
	return true
}

// Toss discards the oldest block without returning its contents.
func (q *Queue) Toss() bool {
	if q.len == 0 {
		return false
	}
	q.blocks[q.tail] = nil
	q.tail = (q.tail + 1) % len(q.blocks)
	q.len--
	return true
}
