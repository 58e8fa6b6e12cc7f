package vault

// blockTask is one in-flight block. The scheduler fills data from the
// source, a worker transforms it in place and closes done, and the drain
// loop consumes data[:n] once the task is the lowest pending index.
type blockTask struct {
	index uint32
	data  []byte // ChunkSize capacity, transformed in place
	n     int    // bytes of data actually holding payload
	err   error  // set by the worker before done is closed
	done  chan struct{}
}

// pendingRing is the fixed-depth window of in-flight blocks. Blocks enter
// in ascending index order as they are read and leave in that same order;
// completion happens in between, in any order, signalled per task. Slot
// lookup is index modulo depth, so the window never scans for a minimum.
// Only the scheduler goroutine touches the ring.
type pendingRing struct {
	slots []*blockTask
	head  uint32 // lowest in-flight index
	next  uint32 // index assigned to the next added task
}

func newPendingRing(depth int) *pendingRing {
	return &pendingRing{slots: make([]*blockTask, depth)}
}

func (r *pendingRing) size() int   { return int(r.next - r.head) }
func (r *pendingRing) full() bool  { return r.size() == len(r.slots) }
func (r *pendingRing) empty() bool { return r.next == r.head }

// add assigns the task the next block index and stores it in its slot.
// The caller checks full() first; add on a full ring would overwrite the
// head slot.
func (r *pendingRing) add(t *blockTask) uint32 {
	idx := r.next
	t.index = idx
	r.slots[idx%uint32(len(r.slots))] = t
	r.next++
	return idx
}

// lowest returns the head task, or nil when nothing is in flight.
func (r *pendingRing) lowest() *blockTask {
	if r.empty() {
		return nil
	}
	return r.slots[r.head%uint32(len(r.slots))]
}

// release frees the head slot after its result has been consumed.
func (r *pendingRing) release() {
	r.slots[r.head%uint32(len(r.slots))] = nil
	r.head++
}
