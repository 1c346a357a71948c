package logging

import (
	"bytes"
	"io"
	"sync"
)

type deferredState int

const (
	pending deferredState = iota
	flushed
	discarded
)

// Deferred holds log output in memory until the caller knows whether the run
// succeeded. Flush writes the held output to dst and passes later writes
// straight through; Discard drops it and every later write.
type Deferred struct {
	mu    sync.Mutex
	dst   io.Writer
	buf   bytes.Buffer
	state deferredState
}

func NewDeferred(dst io.Writer) *Deferred {
	return &Deferred{dst: dst}
}

func (d *Deferred) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case flushed:
		return d.dst.Write(p)
	case discarded:
		return len(p), nil
	default:
		return d.buf.Write(p)
	}
}

func (d *Deferred) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != pending {
		return nil
	}
	d.state = flushed
	_, err := d.dst.Write(d.buf.Bytes())
	d.buf.Reset()
	return err
}

func (d *Deferred) Discard() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == pending {
		d.state = discarded
		d.buf.Reset()
	}
}
