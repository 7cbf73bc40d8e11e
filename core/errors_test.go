package core

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBind(t *testing.T) {
	inUse := &net.OpError{
		Op:  "listen",
		Net: "tcp",
		Err: os.NewSyscallError("bind", syscall.EADDRINUSE),
	}
	err := classifyBind("127.0.0.1:5001", inUse)
	assert.ErrorIs(t, err, ErrAddrInUse)
	assert.Contains(t, err.Error(), "127.0.0.1:5001")

	notAvail := &net.OpError{
		Op:  "listen",
		Net: "tcp",
		Err: os.NewSyscallError("bind", syscall.EADDRNOTAVAIL),
	}
	assert.ErrorIs(t, classifyBind("10.9.9.9:5001", notAvail), ErrAddrNotAvailable)

	other := errors.New("boom")
	err = classifyBind("x:1", other)
	assert.NotErrorIs(t, err, ErrAddrInUse)
	assert.ErrorIs(t, err, other)
}

func TestErrnoOf(t *testing.T) {
	wrapped := fmt.Errorf("write chunk: %w", &os.PathError{
		Op:   "write",
		Path: "/tmp/x",
		Err:  syscall.ENOSPC,
	})
	assert.Equal(t, syscall.ENOSPC, errnoOf(wrapped))
	assert.True(t, isDiskFull(wrapped))

	assert.Equal(t, syscall.Errno(0), errnoOf(errors.New("plain")))
	assert.False(t, isDiskFull(nil))
}

func TestNetErrorCarriesErrno(t *testing.T) {
	cause := &net.OpError{Op: "write", Net: "tcp", Err: os.NewSyscallError("write", syscall.ECONNRESET)}
	err := netError("sending chunk", cause)

	var ne *NetworkError
	assert.ErrorAs(t, err, &ne)
	assert.Equal(t, syscall.ECONNRESET, ne.Errno)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "sending chunk")
}

func TestAckErrorMessage(t *testing.T) {
	err := &AckError{
		Path:      "docs/report.pdf",
		Completed: 3,
		Total:     10,
		LastGood:  "docs/intro.md",
		Err:       errors.New("timeout"),
	}
	assert.Contains(t, err.Error(), "completed 3/10 files")
	assert.Contains(t, err.Error(), "docs/intro.md")

	first := &AckError{Path: "a.txt", Completed: 0, Total: 2, Err: errors.New("timeout")}
	assert.Contains(t, first.Error(), "last successful: none")
}
