package core

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	ErrAlreadyRunning    = errors.New("server already running")
	ErrAddrInUse         = errors.New("address already in use")
	ErrAddrNotAvailable  = errors.New("cannot assign requested address")
	ErrConnectionLost    = errors.New("connection lost mid-transfer")
	ErrAlgorithmRejected = errors.New("hash algorithm rejected")
	ErrUnsafePath        = errors.New("path escapes destination")
)

// ConnectError reports a failed dial to a peer.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TimeoutError tags a deadline expiry with the protocol phase it
// interrupted.
type TimeoutError struct {
	Phase string
	Err   error
}

func (e *TimeoutError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("timeout during %s", e.Phase)
	}
	return fmt.Sprintf("timeout during %s: %v", e.Phase, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// NetworkError is a mid-stream socket failure. Errno carries the OS
// error code when one could be extracted from the cause chain.
type NetworkError struct {
	Op    string
	Errno syscall.Errno
	Err   error
}

func (e *NetworkError) Error() string {
	if e.Errno != 0 {
		return fmt.Sprintf("%s: %v (os error %d)", e.Op, e.Err, int(e.Errno))
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UnexpectedResponseError reports a reply that matched none of the
// acceptable control tokens.
type UnexpectedResponseError struct {
	Phase string
	Raw   []byte
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response during %s: %q", e.Phase, e.Raw)
}

// IntegrityError records a content hash mismatch after a transfer. It
// is reported, not fatal: the received file is still published.
type IntegrityError struct {
	Path     string
	Expected string
	Received string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: expected %s, received %s",
		e.Path, e.Expected, e.Received)
}

// SizeMismatchError reports a gap between a declared entry size and
// the bytes actually present.
type SizeMismatchError struct {
	Path     string
	Declared int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch for %s: declared %d bytes, got %d",
		e.Path, e.Declared, e.Actual)
}

// DiskSpaceError reports insufficient space at the destination, either
// from the preflight check or from a failed write.
type DiskSpaceError struct {
	Path      string
	Required  int64
	Available int64
}

func (e *DiskSpaceError) Error() string {
	if e.Required > 0 {
		return fmt.Sprintf("insufficient disk space at %s: need %d bytes, %d available",
			e.Path, e.Required, e.Available)
	}
	return fmt.Sprintf("no space left on device at %s", e.Path)
}

// AckError reports a failed per-entry acknowledgment during a
// directory send, with enough context to tell which file broke the
// run and how far the transfer got.
type AckError struct {
	Path      string
	Completed int
	Total     int
	LastGood  string
	Err       error
}

func (e *AckError) Error() string {
	last := e.LastGood
	if last == "" {
		last = "none"
	}
	return fmt.Sprintf("acknowledgment failed for %s (completed %d/%d files, last successful: %s): %v",
		e.Path, e.Completed, e.Total, last, e.Err)
}

func (e *AckError) Unwrap() error { return e.Err }

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// errnoOf digs the OS error code out of a socket or filesystem error
// chain, or returns 0.
func errnoOf(err error) syscall.Errno {
	var no syscall.Errno
	if errors.As(err, &no) {
		return no
	}
	return 0
}

func isDiskFull(err error) bool {
	return errnoOf(err) == syscall.ENOSPC
}

// netError wraps a mid-stream socket failure with its OS error code.
func netError(op string, err error) error {
	return &NetworkError{Op: op, Errno: errnoOf(err), Err: err}
}

// classifyBind maps a failed listen to the startup error taxonomy so
// callers can tell a busy port from a wrong address.
func classifyBind(addr string, err error) error {
	switch errnoOf(err) {
	case syscall.EADDRINUSE:
		return fmt.Errorf("%w: %s", ErrAddrInUse, addr)
	case syscall.EADDRNOTAVAIL:
		return fmt.Errorf("%w: %s", ErrAddrNotAvailable, addr)
	default:
		return fmt.Errorf("bind %s: %w", addr, err)
	}
}
