package link

import (
	"context"
	"errors"
	"fmt"
)

// Discovery-phase errors. None of them is fatal; the scanner rescans.
var (
	ErrNotFound       = errors.New("no matching peer found")
	ErrConnectTimeout = errors.New("connect timed out")
	ErrDiscovery      = errors.New("service discovery failed")
)

// Session-phase errors reported by radio backends.
var (
	ErrClosed       = errors.New("connection closed")
	ErrTimeout      = errors.New("operation timed out")
	ErrTypeMismatch = errors.New("unexpected attribute value")
)

// FaultKind classifies an error observed during a connected session.
type FaultKind int

const (
	FaultTransport FaultKind = iota
	FaultTimeout
	FaultTypeMismatch
	FaultDisconnected
)

func (k FaultKind) String() string {
	switch k {
	case FaultTimeout:
		return "timeout"
	case FaultTypeMismatch:
		return "type mismatch"
	case FaultDisconnected:
		return "disconnected"
	default:
		return "transport"
	}
}

// Fault is an error on a live connection. Managers react to every kind the
// same way, by tearing the session down; the kind is kept for logs.
type Fault struct {
	Kind FaultKind
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s fault: %v", f.Op, f.Kind, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Classify wraps err into a Fault for operation op. Faults pass through
// unchanged and nil stays nil.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return err
	}

	kind := FaultTransport
	switch {
	case errors.Is(err, ErrTypeMismatch):
		kind = FaultTypeMismatch
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		kind = FaultTimeout
	case errors.Is(err, ErrClosed), errors.Is(err, context.Canceled):
		kind = FaultDisconnected
	}
	return &Fault{Kind: kind, Op: op, Err: err}
}

// AsFault returns the Fault inside err, if any.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
