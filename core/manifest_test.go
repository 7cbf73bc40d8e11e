package core

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestRoundTripFile(t *testing.T) {
	m := NewFileManifest("file", "report.pdf", "sha256", "abc123", 2048)

	frame, err := EncodeManifest(m)
	require.NoError(t, err)

	assert.Equal(t, uint32(len(frame)-ManifestPrefixSize), binary.BigEndian.Uint32(frame))

	got, err := ReadManifest(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestManifestRoundTripDirectory(t *testing.T) {
	files := []FileEntry{
		{Path: "docs/readme.txt", Size: 10, Hash: "aa"},
		{Path: "docs/ünïcødé/日本語.txt", Size: 4, Hash: "bb"},
		{Path: "empty.bin", Size: 0},
	}
	m := NewDirectoryManifest("directory", "stuff", "sha256", files)

	assert.Equal(t, 3, m.TotalFiles)
	assert.Equal(t, int64(14), m.TotalSize)

	frame, err := EncodeManifest(m)
	require.NoError(t, err)

	got, err := ReadManifest(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestManifestRoundTripEmptyDirectory(t *testing.T) {
	m := NewDirectoryManifest("directory", "empty", "md5", nil)

	frame, err := EncodeManifest(m)
	require.NoError(t, err)

	got, err := ReadManifest(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, m, got)
	assert.Empty(t, got.Files)
}

func TestDecodeManifestMissingFields(t *testing.T) {
	cases := []string{
		`{}`,
		`{"type":"file"}`,
		`{"type":"file","name":"a"}`,
	}
	for _, body := range cases {
		_, err := DecodeManifest([]byte(body))
		assert.ErrorIs(t, err, ErrMissingField, body)
	}
}

func TestDecodeManifestInvalidJSON(t *testing.T) {
	_, err := DecodeManifest([]byte("not json at all"))
	assert.ErrorIs(t, err, ErrManifestInvalid)
}

func TestReadManifestOversizedPrefix(t *testing.T) {
	frame := make([]byte, ManifestPrefixSize)
	binary.BigEndian.PutUint32(frame, MaxManifestSize+1)

	_, err := ReadManifest(bytes.NewReader(frame))
	assert.ErrorIs(t, err, ErrManifestTooLarge)
}

func TestValidateDirectory(t *testing.T) {
	m := NewDirectoryManifest("directory", "d", "sha256", []FileEntry{
		{Path: "a", Size: 1},
		{Path: "b", Size: 2},
	})
	assert.NoError(t, validateDirectory(m))

	m.TotalFiles = 3
	assert.ErrorIs(t, validateDirectory(m), ErrManifestInconsistent)

	m.TotalFiles = 2
	m.TotalSize = 99
	assert.ErrorIs(t, validateDirectory(m), ErrManifestInconsistent)

	m = NewDirectoryManifest("directory", "d", "sha256", []FileEntry{
		{Path: "a", Size: -1},
	})
	assert.ErrorIs(t, validateDirectory(m), ErrManifestInvalid)
}
