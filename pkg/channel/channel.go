// Package channel is the single-attribute command channel between the remote
// and the robot. The remote overwrites the attribute every tick; the robot
// polls it. There is no queue: a value that is overwritten before it is read
// is lost, and the latest write always wins.
package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gwillem/thething/pkg/command"
	"github.com/gwillem/thething/pkg/link"
)

// Attribute is the write side of the command characteristic.
type Attribute interface {
	Write(p []byte) (int, error)
}

// Source is the read side of the command characteristic.
type Source interface {
	Read(p []byte) (int, error)
}

// maxPayload is larger than any valid value so oversize payloads are seen.
const maxPayload = 20

// Value is an in-memory attribute holding the latest written payload. A
// fresh Value reads as the no-op command.
type Value struct {
	mu     sync.Mutex
	data   []byte
	writes uint64
}

// NewValue returns a Value initialised to the no-op command.
func NewValue() *Value {
	return &Value{data: command.NoOp.Bytes()}
}

func (v *Value) Write(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data = append(v.data[:0], p...)
	v.writes++
	return len(p), nil
}

func (v *Value) Read(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.data == nil {
		v.data = command.NoOp.Bytes()
	}
	return copy(p, v.data), nil
}

// Writes returns how many writes the value has seen.
func (v *Value) Writes() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.writes
}

// Writer publishes commands to an attribute.
type Writer struct {
	attr Attribute

	mu   sync.Mutex
	last command.Command
}

func NewWriter(attr Attribute) *Writer {
	return &Writer{attr: attr, last: command.NoOp}
}

// Publish overwrites the attribute with c. Nothing acknowledges delivery.
func (w *Writer) Publish(c command.Command) error {
	if _, err := w.attr.Write(c.Bytes()); err != nil {
		return fmt.Errorf("publish %s: %w", c, err)
	}
	w.mu.Lock()
	w.last = c
	w.mu.Unlock()
	return nil
}

// Last returns the most recently published command.
func (w *Writer) Last() command.Command {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Reader polls a source for the current command.
type Reader struct {
	src     Source
	timeout time.Duration
}

// NewReader returns a reader whose reads fail with a timeout fault after
// timeout. A zero timeout reads without a bound.
func NewReader(src Source, timeout time.Duration) *Reader {
	return &Reader{src: src, timeout: timeout}
}

type readResult struct {
	buf []byte
	n   int
	err error
}

// Next reads the current command. Every error is a *link.Fault.
func (r *Reader) Next(ctx context.Context) (command.Command, error) {
	if err := ctx.Err(); err != nil {
		return command.NoOp, link.Classify("read", err)
	}

	var res readResult
	if r.timeout <= 0 {
		res = r.read()
	} else {
		// The read cannot be interrupted; a late result is discarded.
		done := make(chan readResult, 1)
		go func() { done <- r.read() }()

		t := time.NewTimer(r.timeout)
		defer t.Stop()
		select {
		case res = <-done:
		case <-t.C:
			return command.NoOp, &link.Fault{Kind: link.FaultTimeout, Op: "read", Err: link.ErrTimeout}
		case <-ctx.Done():
			return command.NoOp, link.Classify("read", ctx.Err())
		}
	}

	if res.err != nil {
		return command.NoOp, link.Classify("read", res.err)
	}
	if res.n > 1 {
		return command.NoOp, &link.Fault{
			Kind: link.FaultTypeMismatch,
			Op:   "read",
			Err:  fmt.Errorf("%w: %d bytes", link.ErrTypeMismatch, res.n),
		}
	}
	return command.Decode(res.buf[:res.n]), nil
}

func (r *Reader) read() readResult {
	buf := make([]byte, maxPayload)
	n, err := r.src.Read(buf)
	return readResult{buf: buf, n: n, err: err}
}
