package preroll

// ring is a fixed-capacity slab of equally sized chunks. cursor counts every
// chunk ever written; the slot for the next write is cursor % capacity.
type ring struct {
	slab     []int16
	chunkLen int
	capacity int
	cursor   uint64
}

func newRing(capacity, chunkLen int) *ring {
	return &ring{
		slab:     make([]int16, capacity*chunkLen),
		chunkLen: chunkLen,
		capacity: capacity,
	}
}

func (r *ring) write(chunk []int16) {
	slot := int(r.cursor % uint64(r.capacity))
	copy(r.slab[slot*r.chunkLen:(slot+1)*r.chunkLen], chunk)
	r.cursor++
}

// len returns the number of chunks currently held.
func (r *ring) len() int {
	if r.cursor < uint64(r.capacity) {
		return int(r.cursor)
	}
	return r.capacity
}

// oldest returns the slot of the oldest held chunk.
func (r *ring) oldest() int {
	return int((r.cursor - uint64(r.len())) % uint64(r.capacity))
}

// snapshot copies the held chunks oldest first.
func (r *ring) snapshot() []int16 {
	n := r.len()
	out := make([]int16, 0, n*r.chunkLen)
	start := r.oldest()
	for k := 0; k < n; k++ {
		slot := (start + k) % r.capacity
		out = append(out, r.slab[slot*r.chunkLen:(slot+1)*r.chunkLen]...)
	}
	return out
}
