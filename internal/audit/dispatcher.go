package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Dispatcher decouples event producers from the configured [Sink]. Events
// are queued on a buffered channel and delivered by a single background
// goroutine, so a slow sink never blocks the token lifecycle hot path.
type Dispatcher struct {
	sink       Sink
	ch         chan Event
	done       chan struct{}
	wg         sync.WaitGroup
	dropIfFull bool
	dropped    atomic.Uint64
	closed     atomic.Bool
	closeOnce  sync.Once
}

// NewDispatcher starts a dispatcher delivering events to sink. It returns
// nil when enabled is false; a nil *Dispatcher is safe to use and drops
// everything silently.
func NewDispatcher(sink Sink, bufferSize int, dropIfFull, enabled bool) *Dispatcher {
	if !enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}

	d := &Dispatcher{
		sink:       sink,
		ch:         make(chan Event, bufferSize),
		done:       make(chan struct{}),
		dropIfFull: dropIfFull,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.ch:
			d.sink.Emit(context.Background(), ev)
		case <-d.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case ev := <-d.ch:
					d.sink.Emit(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

// Emit enqueues an event for asynchronous delivery. With DropIfFull the
// event is discarded when the buffer is full; otherwise Emit blocks until
// space is available or the dispatcher is closed.
func (d *Dispatcher) Emit(event Event) {
	if d == nil || d.closed.Load() {
		return
	}

	if d.dropIfFull {
		select {
		case d.ch <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-d.done:
	}
}

// Close stops the dispatcher and waits for queued events to be delivered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}

	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the number of events discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
