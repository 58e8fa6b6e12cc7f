package vault

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// Pipeline defaults. The depth bounds in-flight blocks (and so memory);
// two workers saturate a pipeline whose bottleneck is the serialized
// oracle, not CPU.
const (
	DefaultDepth   = 4
	DefaultWorkers = 2
)

// transformFunc computes a task's output bytes in place. It runs on a
// worker goroutine and may finish in any order relative to other tasks.
type transformFunc func(t *blockTask) error

// sinkFunc consumes a finished block. The pipeline guarantees calls
// arrive in strictly ascending index order, on the scheduler goroutine.
type sinkFunc func(index uint32, data []byte) error

// pipeline drives bounded-lookahead block processing: read a chunk,
// submit it to the worker pool, and hand results to the sink in index
// order. Reads stall while the window is full; the drain wait on the
// lowest pending block is the only other suspension point. A failed
// block surfaces at its drain turn and aborts the run; blocks already
// handed to workers are allowed to finish.
type pipeline struct {
	src       io.Reader
	transform transformFunc
	sink      sinkFunc
	depth     int
	workers   int
	pool      *bufferPool
}

func (p *pipeline) run() error {
	ring := newPendingRing(p.depth)
	tasks := make(chan *blockTask, p.depth)

	var g errgroup.Group
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for t := range tasks {
				t.err = p.transform(t)
				close(t.done)
			}
			return nil
		})
	}

	err := p.loop(ring, tasks)
	close(tasks)
	g.Wait()
	return err
}

// loop alternates fill and drain: top up the window from the source,
// then consume the lowest pending block, until the source is exhausted
// and the window is empty.
func (p *pipeline) loop(ring *pendingRing, tasks chan<- *blockTask) error {
	srcDone := false
	for {
		for !srcDone && !ring.full() {
			t, err := p.nextTask()
			if err != nil {
				return err
			}
			if t == nil {
				srcDone = true
				break
			}
			ring.add(t)
			tasks <- t
		}

		if ring.empty() {
			return nil
		}

		t := ring.lowest()
		<-t.done
		if t.err != nil {
			return t.err
		}
		if err := p.sink(t.index, t.data[:t.n]); err != nil {
			return err
		}
		p.pool.put(t.data)
		ring.release()
	}
}

// nextTask reads the next chunk from the source. A nil task with nil
// error means the source is cleanly exhausted.
func (p *pipeline) nextTask() (*blockTask, error) {
	buf := p.pool.get()
	n, err := io.ReadFull(p.src, buf)
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF):
		// short final block
	case errors.Is(err, io.EOF):
		p.pool.put(buf)
		return nil, nil
	default:
		p.pool.put(buf)
		return nil, fmt.Errorf("reading source block: %w", err)
	}

	return &blockTask{
		data: buf,
		n:    n,
		done: make(chan struct{}),
	}, nil
}
