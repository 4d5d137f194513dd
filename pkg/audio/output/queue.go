// ABOUTME: Bounded sample queue between the render goroutine and a device callback
// ABOUTME: Drops overflow so a stalled device never holds up the render clock
package output

import "sync"

// sampleQueue is a fixed-size FIFO of interleaved samples. Push never
// blocks; Pop zero-fills on underrun.
type sampleQueue struct {
	mu        sync.Mutex
	buf       []int32
	head      int
	n         int
	dropped   int64
	underruns int64
}

func newSampleQueue(capacity int) *sampleQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &sampleQueue{buf: make([]int32, capacity)}
}

// push appends as many samples as fit and returns how many were kept
func (q *sampleQueue) push(samples []int32) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := min(len(samples), len(q.buf)-q.n)
	tail := (q.head + q.n) % len(q.buf)
	for i := 0; i < kept; i++ {
		q.buf[(tail+i)%len(q.buf)] = samples[i]
	}
	q.n += kept
	q.dropped += int64(len(samples) - kept)
	return kept
}

// pop fills dst from the front of the queue
func (q *sampleQueue) pop(dst []int32) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	got := min(len(dst), q.n)
	for i := 0; i < got; i++ {
		dst[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.head = (q.head + got) % len(q.buf)
	q.n -= got

	if got < len(dst) {
		clear(dst[got:])
		if got > 0 || q.dropped > 0 {
			q.underruns++
		}
	}
	return got
}

// reset discards queued samples
func (q *sampleQueue) reset() {
	q.mu.Lock()
	q.head, q.n = 0, 0
	q.mu.Unlock()
}

func (q *sampleQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func (q *sampleQueue) counters() (dropped, underruns int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped, q.underruns
}
