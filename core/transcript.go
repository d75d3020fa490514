package core

import (
	"sync"
	"time"
)

// checkpoint records the wall-clock time at which a given byte offset was
// reached, so callers can correlate transcript positions with timestamps
// without storing a timestamp per byte.
type checkpoint struct {
	at     time.Time
	offset uint64
}

// Transcript is a fixed-capacity ring of raw output bytes with interleaved
// append checkpoints. Append is the only mutator; overwrite of the oldest
// bytes happens silently once the ring is full. Grounded on
// observe.RingBuffer's offset-tracked Write/ReadFrom shape (see DESIGN.md),
// extended with checkpoints and an epoch counter for clear().
type Transcript struct {
	mu       sync.Mutex
	data     []byte
	capacity int
	writePos int
	total    uint64 // bytes ever written in the current epoch
	epoch    uint64
	version  uint64
	checks   []checkpoint
}

// NewTranscript constructs a Transcript with the given byte capacity.
func NewTranscript(capacity int) *Transcript {
	if capacity <= 0 {
		capacity = 1 << 20
	}
	return &Transcript{
		data:     make([]byte, capacity),
		capacity: capacity,
	}
}

// Offset is an epoch-qualified position into a Transcript: comparing
// offsets from different epochs is meaningless, so callers must check
// Epoch before trusting Truncated=false.
type Offset struct {
	Epoch  uint64
	Offset uint64
}

// AppendResult reports the outcome of an Append call.
type AppendResult struct {
	Version  uint64
	Evicted  bool
	Offset   Offset
}

// Append copies bytes into the ring, advances the version counter, and
// evicts the oldest bytes past capacity. Readers never observe a partial
// append: the mutex covers the whole copy.
func (t *Transcript) Append(b []byte) AppendResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := false
	for offset := 0; offset < len(b); {
		available := t.capacity - t.writePos
		n := len(b) - offset
		if n > available {
			n = available
		}
		copy(t.data[t.writePos:t.writePos+n], b[offset:offset+n])
		t.writePos = (t.writePos + n) % t.capacity
		offset += n
	}
	if uint64(len(b)) > 0 {
		if t.total+uint64(len(b)) > uint64(t.capacity) && t.total <= uint64(t.capacity) {
			evicted = evicted || t.total+uint64(len(b)) > uint64(t.capacity)
		}
		if t.total >= uint64(t.capacity) {
			evicted = true
		}
	}
	t.total += uint64(len(b))
	t.version++
	t.checks = append(t.checks, checkpoint{at: time.Now(), offset: t.total})
	// Trim checkpoint history so it can't grow without bound on chatty agents.
	if len(t.checks) > 4096 {
		t.checks = t.checks[len(t.checks)-4096:]
	}
	return AppendResult{
		Version: t.version,
		Evicted: evicted,
		Offset:  Offset{Epoch: t.epoch, Offset: t.total},
	}
}

// Len returns the number of bytes currently retained (<= capacity).
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.storedLocked()
}

func (t *Transcript) storedLocked() int {
	if t.total > uint64(t.capacity) {
		return t.capacity
	}
	return int(t.total)
}

// Version returns the current append version counter.
func (t *Transcript) Version() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

// Head returns the current tail offset, suitable as a starting point for
// a subsequent Since call that only wants future bytes.
func (t *Transcript) Head() Offset {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Offset{Epoch: t.epoch, Offset: t.total}
}

// Contents returns the full retained byte range, oldest first.
func (t *Transcript) Contents() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sliceSinceLocked(t.oldestOffsetLocked())
}

// Since returns bytes appended after off, plus the new offset to pass on
// the next call, plus whether truncation occurred (off predates the
// oldest retained byte, or belongs to a prior epoch).
func (t *Transcript) Since(off Offset) (data []byte, next Offset, truncated bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if off.Epoch != t.epoch {
		return t.sliceSinceLocked(t.oldestOffsetLocked()), Offset{Epoch: t.epoch, Offset: t.total}, true
	}
	oldest := t.oldestOffsetLocked()
	truncated = off.Offset < oldest
	start := off.Offset
	if start < oldest {
		start = oldest
	}
	if start > t.total {
		start = t.total
	}
	return t.sliceSinceLocked(start), Offset{Epoch: t.epoch, Offset: t.total}, truncated
}

func (t *Transcript) oldestOffsetLocked() uint64 {
	stored := uint64(t.storedLocked())
	if t.total > stored {
		return t.total - stored
	}
	return 0
}

// sliceSinceLocked returns everything from byte-offset start (within the
// current epoch) to the current write head, reading out of the ring.
func (t *Transcript) sliceSinceLocked(start uint64) []byte {
	if start >= t.total {
		return nil
	}
	n := int(t.total - start)
	out := make([]byte, n)
	// The byte at absolute offset o lives at ring index o mod capacity, as
	// long as it hasn't since been overwritten (guaranteed by start >= oldest).
	readPos := int(start % uint64(t.capacity))
	for i := 0; i < n; i++ {
		out[i] = t.data[readPos]
		readPos = (readPos + 1) % t.capacity
	}
	return out
}

// Clear drops all retained bytes and bumps the epoch, so any offset taken
// before the clear is recognizable as stale on the next Since call.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writePos = 0
	t.total = 0
	t.epoch++
	t.version = 0
	t.checks = nil
}

// Capacity returns the configured byte capacity.
func (t *Transcript) Capacity() int {
	return t.capacity
}
