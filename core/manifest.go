// Package core implements the transfer protocol engine: manifest
// framing, the acknowledgment exchange, chunked payload streaming for
// single files and whole directories, content hashing, and the
// concurrent receive-side server.
package core

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	// ManifestPrefixSize is the big-endian unsigned length prefix that
	// frames every manifest.
	ManifestPrefixSize = 4

	// MaxManifestSize bounds the declared manifest body against a
	// corrupt or hostile peer.
	MaxManifestSize = 10 * 1024 * 1024
)

var (
	ErrManifestTooLarge     = errors.New("manifest exceeds maximum size")
	ErrMissingField         = errors.New("manifest missing required field")
	ErrUnknownKind          = errors.New("unknown transfer type")
	ErrManifestInvalid      = errors.New("malformed manifest")
	ErrManifestInconsistent = errors.New("manifest totals inconsistent")
)

// FileEntry describes one file within a directory transfer. Path is
// relative to the directory root and uses forward slashes regardless
// of platform. Entry order is the exact order payload bytes are
// streamed and the receiver replays it identically.
type FileEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	Hash string `json:"hash,omitempty"`

	// abspath is the local source location; never serialized.
	abspath string
}

// Manifest describes a whole transfer. It is sent once, before any
// payload bytes, and is immutable after that.
type Manifest struct {
	Type          string  `json:"type"`
	Name          string  `json:"name"`
	HashAlgorithm string  `json:"hash_algorithm"`
	Timestamp     float64 `json:"timestamp"`

	// file transfers
	Size int64  `json:"size,omitempty"`
	Hash string `json:"hash,omitempty"`

	// directory transfers
	TotalFiles int         `json:"total_files,omitempty"`
	TotalSize  int64       `json:"total_size,omitempty"`
	Files      []FileEntry `json:"files,omitempty"`
}

// NewFileManifest builds the manifest for a single-file transfer.
func NewFileManifest(kind, name, algorithm, hash string, size int64) *Manifest {
	return &Manifest{
		Type:          kind,
		Name:          name,
		HashAlgorithm: algorithm,
		Timestamp:     newTimestamp(),
		Size:          size,
		Hash:          hash,
	}
}

// NewDirectoryManifest builds the manifest for a directory transfer,
// deriving the totals from the entries.
func NewDirectoryManifest(kind, name, algorithm string, files []FileEntry) *Manifest {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return &Manifest{
		Type:          kind,
		Name:          name,
		HashAlgorithm: algorithm,
		Timestamp:     newTimestamp(),
		TotalFiles:    len(files),
		TotalSize:     total,
		Files:         files,
	}
}

func newTimestamp() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// EncodeManifest serializes a manifest to its wire frame: a 4-byte
// big-endian length prefix followed by the JSON body.
func EncodeManifest(m *Manifest) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}
	if len(body) > MaxManifestSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrManifestTooLarge, len(body))
	}

	frame := make([]byte, ManifestPrefixSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[ManifestPrefixSize:], body)
	return frame, nil
}

// DecodeManifest parses a manifest body. It checks structural
// well-formedness only; semantic checks (algorithm match, size
// consistency) belong to the engines.
func DecodeManifest(body []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}

	switch {
	case m.Type == "":
		return nil, fmt.Errorf("%w: type", ErrMissingField)
	case m.Name == "":
		return nil, fmt.Errorf("%w: name", ErrMissingField)
	case m.HashAlgorithm == "":
		return nil, fmt.Errorf("%w: hash_algorithm", ErrMissingField)
	}

	return &m, nil
}

// ReadManifest reads one framed manifest from r. The declared length
// is checked against MaxManifestSize before the body is read.
func ReadManifest(r io.Reader) (*Manifest, error) {
	prefix := make([]byte, ManifestPrefixSize)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("read manifest length: %w", err)
	}

	n := binary.BigEndian.Uint32(prefix)
	if n > MaxManifestSize {
		return nil, fmt.Errorf("%w: declared %d bytes", ErrManifestTooLarge, n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read manifest body: %w", err)
	}

	return DecodeManifest(body)
}

// validateDirectory applies the directory manifest invariants: entry
// count and declared totals must line up and every entry must carry a
// path and a non-negative size.
func validateDirectory(m *Manifest) error {
	if m.TotalFiles != len(m.Files) {
		return fmt.Errorf("%w: total_files=%d, entries=%d",
			ErrManifestInconsistent, m.TotalFiles, len(m.Files))
	}

	var sum int64
	for _, f := range m.Files {
		if f.Path == "" {
			return fmt.Errorf("%w: entry path", ErrMissingField)
		}
		if f.Size < 0 {
			return fmt.Errorf("%w: negative size for %s", ErrManifestInvalid, f.Path)
		}
		sum += f.Size
	}
	if sum != m.TotalSize {
		return fmt.Errorf("%w: total_size=%d, sum=%d",
			ErrManifestInconsistent, m.TotalSize, sum)
	}

	return nil
}
