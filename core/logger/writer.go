package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter decouples log emission from the underlying sinks. Records are
// queued and fanned out to every sink from a single background goroutine, so
// hot paths never block on file or terminal I/O.
type asyncWriter struct {
	pending chan []byte
	flushes chan chan error
	drained chan struct{}
	once    sync.Once

	mu   sync.Mutex
	outs []*bufio.Writer
	err  error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	outs := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w == nil {
			continue
		}
		outs = append(outs, bufio.NewWriterSize(w, bufSize))
	}
	aw := &asyncWriter{
		pending: make(chan []byte, 256),
		flushes: make(chan chan error),
		drained: make(chan struct{}),
		outs:    outs,
	}
	go aw.run()
	return aw
}

func (w *asyncWriter) run() {
	for {
		select {
		case rec, ok := <-w.pending:
			if !ok {
				w.flushAll()
				close(w.drained)
				return
			}
			w.emit(rec)
		case ack := <-w.flushes:
			// drain whatever is queued before acknowledging
			for {
				select {
				case rec := <-w.pending:
					w.emit(rec)
					continue
				default:
				}
				break
			}
			ack <- w.flushAll()
		}
	}
}

func (w *asyncWriter) emit(rec []byte) {
	if len(rec) == 0 {
		return
	}
	if err := w.writeAll(rec); err != nil {
		w.stickErr(err)
	}
}

// Write queues one record. The send blocks when the queue is full rather
// than dropping the record.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	rec := make([]byte, len(p))
	copy(rec, p)
	w.pending <- rec
	return nil
}

// Flush forces all queued records out to the sinks and waits for completion.
func (w *asyncWriter) Flush() error {
	if err := w.firstErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.flushes <- ack
	return <-ack
}

// Close drains the queue and reports the first write error encountered.
func (w *asyncWriter) Close() error {
	w.once.Do(func() {
		close(w.pending)
	})
	<-w.drained
	return w.firstErr()
}

func (w *asyncWriter) writeAll(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, out := range w.outs {
		if _, err := out.Write(p); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, out := range w.outs {
		if err := out.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) firstErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) stickErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
