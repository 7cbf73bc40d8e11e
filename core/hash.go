package core

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

// DefaultHashChunkSize is the read size used when streaming a file
// through a digest.
const DefaultHashChunkSize = 1024 * 1024

var hashAlgorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// NewHasher returns an incremental digest for a known algorithm
// identifier. Identifiers are case-insensitive.
func NewHasher(algorithm string) (hash.Hash, error) {
	newFn, ok := hashAlgorithms[strings.ToLower(algorithm)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
	return newFn(), nil
}

// HashFile streams the file through the digest in chunkSize reads and
// returns the hex encoding; it never loads the whole file into
// memory.
func HashFile(path, algorithm string, chunkSize int) (string, error) {
	h, err := NewHasher(algorithm)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if chunkSize <= 0 {
		chunkSize = DefaultHashChunkSize
	}

	buf := make([]byte, chunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", rerr
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
