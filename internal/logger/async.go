package logger

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

// nopCloser is a no-op Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler wraps an slog.Handler with a buffered channel and worker pool.
// Turn goroutines log on the hot streaming path, so Handle never blocks: when
// the channel is full the record is dropped and counted instead.
type AsyncHandler struct {
	inner   slog.Handler
	ch      chan slog.Record
	wg      *sync.WaitGroup
	dropped *atomic.Int64

	// mu guards closed. Handlers derived via WithAttrs/WithGroup share the
	// channel, so they must share the close state too.
	mu     *sync.RWMutex
	closed *bool
}

// NewAsyncHandler creates an AsyncHandler with the given channel capacity and worker count.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	h := &AsyncHandler{
		inner:   inner,
		ch:      make(chan slog.Record, chanSize),
		wg:      &sync.WaitGroup{},
		dropped: &atomic.Int64{},
		mu:      &sync.RWMutex{},
		closed:  new(bool),
	}
	for range workers {
		h.wg.Add(1)
		go h.drain()
	}
	return h
}

func (h *AsyncHandler) drain() {
	defer h.wg.Done()
	for rec := range h.ch {
		_ = h.inner.Handle(context.Background(), rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record. Drops if the channel is full. After Close, the
// record is written synchronously instead: a finishing turn goroutine may log
// after shutdown started, and those records should still land.
func (h *AsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	h.mu.RLock()
	defer h.mu.RUnlock()
	if *h.closed {
		return h.inner.Handle(ctx, rec)
	}
	select {
	case h.ch <- rec:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a new AsyncHandler sharing the same channel but wrapping a new inner handler.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{
		inner:   h.inner.WithAttrs(attrs),
		ch:      h.ch,
		wg:      h.wg,
		dropped: h.dropped,
		mu:      h.mu,
		closed:  h.closed,
	}
}

// WithGroup returns a new AsyncHandler sharing the same channel but wrapping a new inner handler.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{
		inner:   h.inner.WithGroup(name),
		ch:      h.ch,
		wg:      h.wg,
		dropped: h.dropped,
		mu:      h.mu,
		closed:  h.closed,
	}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.dropped.Load()
}

// Close stops the workers and drains the remaining records. Closing twice is
// a no-op. If records were dropped during the handler's lifetime, a single
// summary record is written so the loss is visible in the output.
func (h *AsyncHandler) Close() {
	h.mu.Lock()
	if *h.closed {
		h.mu.Unlock()
		return
	}
	*h.closed = true
	close(h.ch)
	h.mu.Unlock()

	h.wg.Wait()

	if n := h.dropped.Load(); n > 0 {
		var pcs [1]uintptr
		runtime.Callers(2, pcs[:])
		rec := slog.NewRecord(time.Now(), slog.LevelWarn, "async log records dropped", pcs[0])
		rec.AddAttrs(slog.Int64("count", n))
		_ = h.inner.Handle(context.Background(), rec)
	}
}
