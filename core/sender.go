package core

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/Redslayer112/lantransfer/config"
	"github.com/Redslayer112/lantransfer/logger"
)

// Sender streams one file or a whole directory to a receiving peer.
// It performs no retries; restarting a failed transfer is the
// caller's decision.
type Sender struct {
	cfg *config.Config
	log logger.Logger

	// Progress, when set, receives coalesced byte counts for the whole
	// transfer.
	Progress Reporter
}

func NewSender(cfg *config.Config, log logger.Logger) *Sender {
	return &Sender{
		cfg:      cfg,
		log:      log,
		Progress: NopReporter,
	}
}

// SendFile transfers a single file to target. local, when non-empty,
// pins the outgoing connection to that interface address.
func (s *Sender) SendFile(path, target, local string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("source file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("source file: %s is a directory", path)
	}

	name := filepath.Base(path)

	// Hash before any network I/O so a local read problem never
	// strands a half-open connection.
	sum, err := HashFile(path, s.cfg.HashAlgorithm, s.cfg.HashChunkSize)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", path, err)
	}

	conn, err := s.dial(target, local, 0)
	if err != nil {
		return err
	}
	defer conn.Close()

	log := s.log.WithStr("name", name).WithStr("target", target)
	log.WithInt64("size", info.Size()).Info("sending file")

	m := NewFileManifest(s.cfg.TransferTypes.File, name, s.cfg.HashAlgorithm, sum, info.Size())
	if err := s.writeManifest(conn, m); err != nil {
		return err
	}

	reply, err := awaitToken(conn, "metadata acknowledgment",
		s.cfg.AckTimeout(), s.cfg.IOTimeout(), TokenAck1, TokenMismatch)
	if err != nil {
		return err
	}
	if bytes.Equal(reply, TokenMismatch) {
		return fmt.Errorf("%w: sender uses %s", ErrAlgorithmRejected, s.cfg.HashAlgorithm)
	}

	report := Throttle(s.Progress, DefaultProgressInterval)
	if err := s.streamFile(conn, path, info.Size(), 0, info.Size(), 0, report); err != nil {
		return err
	}

	// All bytes are out, but the transfer only counts once the
	// receiver confirms it verified and published the file.
	if _, err := awaitToken(conn, "completion acknowledgment",
		s.cfg.AckTimeout(), 0, TokenDone); err != nil {
		return err
	}

	log.Info("file sent")
	return nil
}

// SendDirectory transfers a whole directory tree to target, one entry
// at a time in manifest order, awaiting a per-entry acknowledgment
// before moving on.
func (s *Sender) SendDirectory(path, target, local string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source directory: %s is not a directory", path)
	}

	name := filepath.Base(path)

	entries, total, err := ScanDirectory(path, s.cfg.HashAlgorithm, s.cfg.HashChunkSize)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", path, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no files found in %s", path)
	}

	conn, err := s.dial(target, local, 15*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	log := s.log.WithStr("name", name).WithStr("target", target)
	log.WithInt("files", len(entries)).WithInt64("size", total).Info("sending directory")

	m := NewDirectoryManifest(s.cfg.TransferTypes.Directory, name, s.cfg.HashAlgorithm, entries)
	if err := s.writeManifest(conn, m); err != nil {
		return err
	}

	reply, err := awaitToken(conn, "metadata acknowledgment",
		s.cfg.AckTimeout(), s.cfg.IOTimeout(), TokenAck1, TokenMismatch)
	if err != nil {
		return err
	}
	if bytes.Equal(reply, TokenMismatch) {
		return fmt.Errorf("%w: sender uses %s", ErrAlgorithmRejected, s.cfg.HashAlgorithm)
	}

	report := Throttle(s.Progress, DefaultProgressInterval)
	var sentTotal int64
	lastGood := ""

	for i, e := range entries {
		// Cheap liveness check; a dead peer shows up here instead of
		// mid-chunk.
		if err := probe(conn); err != nil {
			return netError(fmt.Sprintf("connection lost before sending %s", e.Path), err)
		}

		if err := s.streamFile(conn, e.abspath, e.Size, sentTotal, total,
			s.cfg.LivenessProbeInterval, report); err != nil {
			return err
		}
		sentTotal += e.Size

		if _, err := awaitToken(conn, fmt.Sprintf("acknowledgment of %s", e.Path),
			s.cfg.FileAckTimeout(), s.cfg.IOTimeout(), TokenAck2); err != nil {
			return &AckError{
				Path:      e.Path,
				Completed: i,
				Total:     len(entries),
				LastGood:  lastGood,
				Err:       err,
			}
		}
		lastGood = e.Path
	}

	if _, err := awaitToken(conn, "final completion acknowledgment",
		s.cfg.AckTimeout(), 0, TokenDone); err != nil {
		return err
	}

	log.Info("directory sent")
	return nil
}

func (s *Sender) dial(target, local string, keepAlive time.Duration) (net.Conn, error) {
	d := net.Dialer{
		Timeout:   s.cfg.ConnectTimeout(),
		KeepAlive: keepAlive,
	}
	if local != "" {
		d.LocalAddr = &net.TCPAddr{IP: net.ParseIP(local)}
	}

	conn, err := d.Dial("tcp", target)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{Phase: "connect", Err: err}
		}
		return nil, &ConnectError{Addr: target, Err: err}
	}
	return conn, nil
}

func (s *Sender) writeManifest(conn net.Conn, m *Manifest) error {
	frame, err := EncodeManifest(m)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(s.cfg.IOTimeout()))
	defer conn.SetWriteDeadline(time.Time{})

	if _, err := conn.Write(frame); err != nil {
		if isTimeout(err) {
			return &TimeoutError{Phase: "sending manifest", Err: err}
		}
		return netError("sending manifest", err)
	}
	return nil
}

// streamFile writes exactly size bytes of path to conn in buffer-sized
// chunks, probing the connection every probeEvery chunks when
// probeEvery is positive. Progress is reported against total with
// base already-transferred bytes.
func (s *Sender) streamFile(conn net.Conn, path string, size, base, total int64, probeEvery int, report Reporter) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, s.cfg.BufferSize)
	var sent int64
	chunks := 0

	for sent < size {
		n := int64(len(buf))
		if rem := size - sent; rem < n {
			n = rem
		}

		rn, rerr := f.Read(buf[:n])
		if rn == 0 {
			if rerr == io.EOF || rerr == nil {
				// The file shrank after the manifest was built. Stop
				// rather than pad; the receiver flags the shortfall.
				return &SizeMismatchError{Path: path, Declared: size, Actual: sent}
			}
			return fmt.Errorf("read %s: %w", path, rerr)
		}

		conn.SetWriteDeadline(time.Now().Add(s.cfg.IOTimeout()))
		if _, werr := conn.Write(buf[:rn]); werr != nil {
			if isTimeout(werr) {
				return &TimeoutError{
					Phase: fmt.Sprintf("sending %s at %d/%d bytes", path, sent, size),
					Err:   werr,
				}
			}
			return netError(fmt.Sprintf("sending %s", path), werr)
		}

		sent += int64(rn)
		chunks++
		report.Update(base+sent, total)

		if probeEvery > 0 && chunks%probeEvery == 0 {
			if perr := probe(conn); perr != nil {
				return netError(
					fmt.Sprintf("connection lost during %s (chunk %d)", path, chunks), perr)
			}
		}
	}

	conn.SetWriteDeadline(time.Time{})
	return nil
}
