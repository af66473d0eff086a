// flusher.go - Bounded fire-and-forget persistence of usage snapshots

package metrics

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sink receives usage snapshots for persistence.
type Sink interface {
	SaveUsage(ctx context.Context, stats []UsageStat) error
}

// Flusher drains snapshots to a sink through a bounded queue and a small
// worker pool. Enqueueing never blocks the request path: when the queue
// is full the snapshot is dropped and the next flush carries the
// cumulative totals anyway.
type Flusher struct {
	queue   chan []UsageStat
	sink    Sink
	wg      sync.WaitGroup
	stop    chan struct{}
	stopped sync.Once
}

// NewFlusher starts `workers` goroutines draining the queue into sink.
func NewFlusher(sink Sink, workers, queueSize int) *Flusher {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 32
	}

	f := &Flusher{
		queue: make(chan []UsageStat, queueSize),
		sink:  sink,
		stop:  make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		f.wg.Add(1)
		go f.worker()
	}

	return f
}

// Enqueue submits a snapshot without blocking.
func (f *Flusher) Enqueue(stats []UsageStat) {
	if len(stats) == 0 {
		return
	}
	select {
	case f.queue <- stats:
	default:
		log.Printf("⚠️  Usage flush queue full, dropping snapshot (%d stats)", len(stats))
	}
}

// RunPeriodic enqueues tracker snapshots on the given interval until the
// flusher is closed.
func (f *Flusher) RunPeriodic(tracker *UsageTracker, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				f.Enqueue(tracker.Snapshot())
			case <-f.stop:
				// Final flush on shutdown
				f.Enqueue(tracker.Snapshot())
				return
			}
		}
	}()
}

// Close stops the periodic loop, lets workers drain what is queued, and
// waits for them to exit.
func (f *Flusher) Close() {
	f.stopped.Do(func() {
		close(f.stop)
		f.wg.Wait()
	})
}

func (f *Flusher) worker() {
	defer f.wg.Done()

	for {
		select {
		case stats := <-f.queue:
			f.flush(stats)
		case <-f.stop:
			// Drain whatever is already queued, then exit
			for {
				select {
				case stats := <-f.queue:
					f.flush(stats)
				default:
					return
				}
			}
		}
	}
}

func (f *Flusher) flush(stats []UsageStat) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := f.sink.SaveUsage(ctx, stats); err != nil {
		log.Printf("⚠️  Usage stats persistence failed: %v", err)
	}
}
