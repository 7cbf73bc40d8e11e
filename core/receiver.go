package core

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Redslayer112/lantransfer/config"
	"github.com/Redslayer112/lantransfer/logger"
	"github.com/google/uuid"
)

// FailedValidation records one integrity mismatch: the published file
// and truncated expected/received digests.
type FailedValidation struct {
	File     string
	Expected string
	Received string
}

// Receiver runs the receive-side state machine for one accepted
// connection: parse the manifest, negotiate the hash algorithm,
// stream payload bytes into a staging artifact, validate, publish
// atomically.
type Receiver struct {
	cfg *config.Config
	dir string
	log logger.Logger

	// NewProgress, when set, is invoked once per transfer to obtain
	// the progress sink for that connection.
	NewProgress func(name string, total int64) Reporter

	// OnFailedValidation receives integrity mismatches. Failures are
	// reported, never fatal: the file is published regardless.
	OnFailedValidation func(FailedValidation)
}

func NewReceiver(cfg *config.Config, dir string, log logger.Logger) *Receiver {
	return &Receiver{
		cfg: cfg,
		dir: dir,
		log: log,
	}
}

// Handle serves one connection to completion and closes it. A decode
// failure drops the connection without a reply.
func (r *Receiver) Handle(conn net.Conn) error {
	defer conn.Close()

	log := r.log.WithStr("transfer", uuid.NewString()[:8]).
		WithStr("peer", conn.RemoteAddr().String())

	conn.SetReadDeadline(time.Now().Add(r.cfg.IOTimeout()))
	m, err := ReadManifest(conn)
	if err != nil {
		return err
	}

	if !strings.EqualFold(m.HashAlgorithm, r.cfg.HashAlgorithm) {
		if !r.cfg.SkipHashVerification {
			writeToken(conn, TokenMismatch, r.cfg.TokenWriteTimeout())
			return fmt.Errorf("%w: sender uses %s, receiver uses %s",
				ErrAlgorithmRejected, m.HashAlgorithm, r.cfg.HashAlgorithm)
		}
		log.WithStr("sender_algorithm", m.HashAlgorithm).
			Warn("hash algorithm mismatch, verification skipped")
	}

	if err := writeToken(conn, TokenAck1, r.cfg.TokenWriteTimeout()); err != nil {
		return fmt.Errorf("acknowledging manifest: %w", err)
	}

	verify := !r.cfg.SkipHashVerification

	switch m.Type {
	case r.cfg.TransferTypes.File:
		return r.receiveFile(conn, m, verify, log)
	case r.cfg.TransferTypes.Directory:
		return r.receiveDirectory(conn, m, verify, log)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, m.Type)
	}
}

func (r *Receiver) receiveFile(conn net.Conn, m *Manifest, verify bool, log logger.Logger) error {
	if m.Size < 0 {
		return fmt.Errorf("%w: negative size", ErrManifestInvalid)
	}

	name, err := safeName(m.Name)
	if err != nil {
		return err
	}
	log = log.WithStr("name", name)
	log.WithInt64("size", m.Size).Info("receiving file")

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	final := filepath.Join(r.dir, name)

	// Never write under the final name; stage next to it so the
	// publish rename stays on one filesystem.
	tmp, err := os.CreateTemp(r.dir, "."+name+"_*.tmp")
	if err != nil {
		return fmt.Errorf("staging file: %w", err)
	}
	tmpPath := tmp.Name()

	report := r.progressFor(name, m.Size)
	err = r.readPayload(conn, tmp, m.Size, 0, m.Size, report, name, func(got int64) error {
		return fmt.Errorf("%w: receiving %s at %d/%d bytes", ErrConnectionLost, name, got, m.Size)
	})
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("flushing %s: %w", name, cerr)
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if verify && m.Hash != "" {
		sum, herr := HashFile(tmpPath, r.cfg.HashAlgorithm, r.cfg.HashChunkSize)
		if herr != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("verifying %s: %w", name, herr)
		}
		if sum != m.Hash {
			r.recordFailure(final, m.Hash, sum)
			log.Error("integrity check failed, publishing anyway")
		}
	} else {
		log.Debug("hash verification skipped")
	}

	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publishing %s: %w", final, err)
	}

	if err := writeToken(conn, TokenDone, r.cfg.TokenWriteTimeout()); err != nil {
		os.Remove(final)
		return fmt.Errorf("confirming %s: %w", name, err)
	}

	log.Info("file received")
	return nil
}

func (r *Receiver) receiveDirectory(conn net.Conn, m *Manifest, verify bool, log logger.Logger) error {
	if err := validateDirectory(m); err != nil {
		return err
	}

	name, err := safeName(m.Name)
	if err != nil {
		return err
	}
	log = log.WithStr("name", name)
	log.WithInt("files", m.TotalFiles).WithInt64("size", m.TotalSize).Info("receiving directory")

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	if free, ferr := diskFree(r.dir); ferr != nil {
		log.Warn("could not determine free space, proceeding")
	} else if !sufficientSpace(free, m.TotalSize) {
		writeToken(conn, TokenSpaceError, r.cfg.TokenWriteTimeout())
		return &DiskSpaceError{Path: r.dir, Required: m.TotalSize, Available: free}
	}

	final := filepath.Join(r.dir, name)
	tmpDir, err := os.MkdirTemp(r.dir, "."+name+"_")
	if err != nil {
		return fmt.Errorf("staging directory: %w", err)
	}
	defer func() {
		// Non-empty tmpDir here means the transfer did not finalize;
		// no partial directory is ever published.
		if tmpDir != "" {
			os.RemoveAll(tmpDir)
		}
	}()

	report := r.progressFor(name, m.TotalSize)
	var receivedTotal int64
	completed := 0

	for _, e := range m.Files {
		rel := filepath.FromSlash(e.Path)
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("%w: entry %q", ErrUnsafePath, e.Path)
		}

		if err := r.receiveEntry(conn, tmpDir, rel, e, receivedTotal, m.TotalSize, report, verify, final); err != nil {
			return fmt.Errorf("receiving %s (completed %d/%d files): %w",
				e.Path, completed, len(m.Files), err)
		}
		receivedTotal += e.Size

		if err := writeToken(conn, TokenAck2, r.cfg.TokenWriteTimeout()); err != nil {
			return fmt.Errorf("acknowledging %s: %w", e.Path, err)
		}
		completed++
	}

	if _, err := os.Stat(final); err == nil {
		if err := os.RemoveAll(final); err != nil {
			return fmt.Errorf("replacing %s: %w", final, err)
		}
	}
	if err := os.Rename(tmpDir, final); err != nil {
		return fmt.Errorf("finalizing %s: %w", final, err)
	}
	tmpDir = ""

	if err := writeToken(conn, TokenDone, r.cfg.TokenWriteTimeout()); err != nil {
		// The directory is safely on disk; only the confirmation to
		// the sender was lost.
		log.Warn("directory stored but final acknowledgment failed")
		return nil
	}

	log.WithInt("files", completed).Info("directory received")
	return nil
}

// receiveEntry stages one directory entry under tmpDir and validates
// its size and hash.
func (r *Receiver) receiveEntry(conn net.Conn, tmpDir, rel string, e FileEntry, base, total int64, report Reporter, verify bool, final string) error {
	dst := filepath.Join(tmpDir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating directory structure: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}

	err = r.readPayload(conn, f, e.Size, base, total, report, e.Path, func(got int64) error {
		// The stream ended cleanly before the declared byte count: the
		// sender had less on disk than the manifest promised.
		return &SizeMismatchError{Path: e.Path, Declared: e.Size, Actual: got}
	})
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	info, err := os.Stat(dst)
	if err != nil {
		return err
	}
	if info.Size() != e.Size {
		return &SizeMismatchError{Path: e.Path, Declared: e.Size, Actual: info.Size()}
	}

	if verify && e.Hash != "" {
		sum, err := HashFile(dst, r.cfg.HashAlgorithm, r.cfg.HashChunkSize)
		if err != nil {
			return fmt.Errorf("verifying: %w", err)
		}
		if sum != e.Hash {
			r.recordFailure(filepath.Join(final, rel), e.Hash, sum)
		}
	}

	return nil
}

// readPayload reads exactly size bytes from conn into w in
// buffer-sized chunks, each under its own read deadline. onShort
// classifies a stream that ends cleanly before size is reached.
func (r *Receiver) readPayload(conn net.Conn, w io.Writer, size, base, total int64, report Reporter, path string, onShort func(got int64) error) error {
	buf := make([]byte, r.cfg.BufferSize)
	var received int64

	for received < size {
		n := int64(len(buf))
		if rem := size - received; rem < n {
			n = rem
		}

		conn.SetReadDeadline(time.Now().Add(r.cfg.IOTimeout()))
		rn, err := conn.Read(buf[:n])
		if rn > 0 {
			if _, werr := w.Write(buf[:rn]); werr != nil {
				if isDiskFull(werr) {
					return &DiskSpaceError{Path: path}
				}
				return fmt.Errorf("writing: %w", werr)
			}
			received += int64(rn)
			report.Update(base+received, total)
		}

		if err != nil {
			if err == io.EOF {
				if received < size {
					return onShort(received)
				}
				break
			}
			if isTimeout(err) {
				return &TimeoutError{
					Phase: fmt.Sprintf("receiving %s at %d/%d bytes", path, received, size),
					Err:   err,
				}
			}
			return netError(fmt.Sprintf("receiving %s", path), err)
		}
	}

	conn.SetReadDeadline(time.Time{})
	return nil
}

func (r *Receiver) progressFor(name string, total int64) Reporter {
	if r.NewProgress == nil {
		return NopReporter
	}
	return Throttle(r.NewProgress(name, total), DefaultProgressInterval)
}

func (r *Receiver) recordFailure(file, expected, received string) {
	if r.OnFailedValidation == nil {
		return
	}
	r.OnFailedValidation(FailedValidation{
		File:     file,
		Expected: truncDigest(expected),
		Received: truncDigest(received),
	})
}

func truncDigest(d string) string {
	if len(d) <= 16 {
		return d
	}
	return d[:16] + "..."
}

// safeName reduces a manifest display name to a single path element
// under the destination root.
func safeName(name string) (string, error) {
	base := filepath.Base(filepath.FromSlash(name))
	if base == "." || base == string(filepath.Separator) || base == ".." {
		return "", fmt.Errorf("%w: name %q", ErrUnsafePath, name)
	}
	return base, nil
}
