package audit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// asyncWriter batches routine entries so the caller's critical path only pays
// for a local append. Safety entries never pass through here.
type asyncWriter struct {
	logger *Logger

	mu      sync.Mutex
	pending []Entry
	err     error

	stop    chan struct{}
	stopped sync.Once
	done    chan struct{}
}

func newAsyncWriter(logger *Logger, interval time.Duration) *asyncWriter {
	w := &asyncWriter{
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.run(interval)
	return w
}

func (w *asyncWriter) enqueue(entry Entry) {
	w.mu.Lock()
	w.pending = append(w.pending, entry)
	w.mu.Unlock()
}

func (w *asyncWriter) run(interval time.Duration) {
	defer close(w.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.flush()
		case <-w.stop:
			w.flush()
			return
		}
	}
}

func (w *asyncWriter) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, entry := range batch {
		if err := w.logger.store.Insert(ctx, entry); err != nil {
			w.logger.persistError(entry, err)
			w.mu.Lock()
			w.err = errors.Join(w.err, err)
			w.mu.Unlock()
		}
	}
}

// close drains pending entries before returning. At-least-once for anything
// enqueued before process exit; the joined error covers every failed write.
func (w *asyncWriter) close() error {
	w.stopped.Do(func() {
		close(w.stop)
	})
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
