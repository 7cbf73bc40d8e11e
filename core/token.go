package core

import (
	"bytes"
	"net"
	"time"
)

// Control tokens are short ASCII byte sequences sent raw after each
// protocol phase and matched by prefix.
var (
	TokenAck1       = []byte("ACK1")
	TokenMismatch   = []byte("MISMATCH")
	TokenAck2       = []byte("ACK2")
	TokenDone       = []byte("DONE")
	TokenSpaceError = []byte("SPACE_ERROR")
)

// maxTokenRead caps a single token read regardless of the acceptable
// set.
const maxTokenRead = 1024

// awaitToken reads one reply from conn and matches it against the
// acceptable token prefixes, returning the token that matched. The
// read deadline is overridden for the duration of the call and
// restored to restore afterward (zero restore clears the deadline).
func awaitToken(conn net.Conn, phase string, timeout, restore time.Duration, accept ...[]byte) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	defer func() {
		var d time.Time
		if restore > 0 {
			d = time.Now().Add(restore)
		}
		conn.SetReadDeadline(d)
	}()

	longest := 0
	for _, t := range accept {
		if len(t) > longest {
			longest = len(t)
		}
	}
	if longest > maxTokenRead {
		longest = maxTokenRead
	}

	buf := make([]byte, longest)
	n, err := conn.Read(buf)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Phase: phase, Err: err}
		}
		return nil, netError("awaiting "+phase, err)
	}

	got := buf[:n]
	for _, t := range accept {
		if bytes.HasPrefix(got, t) {
			return t, nil
		}
	}

	return nil, &UnexpectedResponseError{Phase: phase, Raw: bytes.Clone(got)}
}

// writeToken sends a control token under a short write deadline.
func writeToken(conn net.Conn, token []byte, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	defer conn.SetWriteDeadline(time.Time{})

	if _, err := conn.Write(token); err != nil {
		if isTimeout(err) {
			return &TimeoutError{Phase: "sending " + string(token), Err: err}
		}
		return netError("sending "+string(token), err)
	}
	return nil
}

// probe is the zero-length liveness write used to surface a dead peer
// without waiting out a full I/O timeout. Best effort: a healthy
// connection treats it as a no-op.
func probe(conn net.Conn) error {
	if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	defer conn.SetWriteDeadline(time.Time{})

	_, err := conn.Write(nil)
	return err
}
