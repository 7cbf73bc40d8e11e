// Package config loads the transfer configuration: defaults, an
// optional JSON config file, then environment overrides. The core
// engines consume the result read-only.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"
)

// TransferTypes are the wire tags carried in a manifest's type field.
type TransferTypes struct {
	File      string `json:"file"`
	Directory string `json:"directory"`
}

// Config holds everything the transfer core consumes. Timeout fields
// are seconds in the JSON file; use the duration accessors.
type Config struct {
	Port                 int           `json:"port"`
	BufferSize           int           `json:"buffer_size"`
	HashChunkSize        int           `json:"hash_chunk_size"`
	ReceivedDir          string        `json:"received_dir"`
	HashAlgorithm        string        `json:"hash_algorithm"`
	SkipHashVerification bool          `json:"skip_hash_verification"`
	TransferTypes        TransferTypes `json:"transfer_types"`

	AcceptTimeoutSec     int `json:"server_timeout"`
	ConnectTimeoutSec    int `json:"connect_timeout"`
	IOTimeoutSec         int `json:"io_timeout"`
	AckTimeoutSec        int `json:"ack_timeout"`
	FileAckTimeoutSec    int `json:"file_ack_timeout"`
	TokenWriteTimeoutSec int `json:"token_write_timeout"`

	// LivenessProbeInterval is the number of payload chunks streamed
	// between zero-length liveness probes on a directory transfer.
	LivenessProbeInterval int `json:"liveness_probe_interval"`

	LogLevel string `json:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Port:          5001,
		BufferSize:    64 * 1024,
		HashChunkSize: 1024 * 1024,
		ReceivedDir:   "received",
		HashAlgorithm: "sha256",
		TransferTypes: TransferTypes{File: "file", Directory: "directory"},

		AcceptTimeoutSec:     1,
		ConnectTimeoutSec:    30,
		IOTimeoutSec:         30,
		AckTimeoutSec:        30,
		FileAckTimeoutSec:    60,
		TokenWriteTimeoutSec: 10,

		LivenessProbeInterval: 100,

		LogLevel: "info",
	}
}

// Load merges a JSON config file over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// defaults apply
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if dir := os.Getenv("LANTRANSFER_DIR"); dir != "" {
		c.ReceivedDir = dir
	}
	if algo := os.Getenv("LANTRANSFER_HASH_ALGORITHM"); algo != "" {
		c.HashAlgorithm = algo
	}
	if level := os.Getenv("LANTRANSFER_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if port := os.Getenv("LANTRANSFER_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			c.Port = n
		}
	}
	if skip := os.Getenv("LANTRANSFER_SKIP_VERIFY"); skip != "" {
		if b, err := strconv.ParseBool(skip); err == nil {
			c.SkipHashVerification = b
		}
	}
}

func (c *Config) validate() error {
	switch {
	case c.BufferSize <= 0:
		return fmt.Errorf("config: buffer_size must be positive, got %d", c.BufferSize)
	case c.HashChunkSize <= 0:
		return fmt.Errorf("config: hash_chunk_size must be positive, got %d", c.HashChunkSize)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: invalid port %d", c.Port)
	case c.HashAlgorithm == "":
		return fmt.Errorf("config: hash_algorithm is required")
	case c.TransferTypes.File == "" || c.TransferTypes.Directory == "":
		return fmt.Errorf("config: transfer type tags are required")
	case c.LivenessProbeInterval < 0:
		return fmt.Errorf("config: liveness_probe_interval must not be negative")
	}
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// AcceptTimeout bounds one Accept call so the serving loop can re-check
// its running flag.
func (c *Config) AcceptTimeout() time.Duration { return seconds(c.AcceptTimeoutSec) }

// ConnectTimeout bounds the sender's dial.
func (c *Config) ConnectTimeout() time.Duration { return seconds(c.ConnectTimeoutSec) }

// IOTimeout bounds one chunk read or write mid-payload.
func (c *Config) IOTimeout() time.Duration { return seconds(c.IOTimeoutSec) }

// AckTimeout bounds the wait for ACK1 and DONE.
func (c *Config) AckTimeout() time.Duration { return seconds(c.AckTimeoutSec) }

// FileAckTimeout bounds the wait for a per-entry ACK2; longer than
// AckTimeout because the receiver may be hashing or flushing to disk.
func (c *Config) FileAckTimeout() time.Duration { return seconds(c.FileAckTimeoutSec) }

// TokenWriteTimeout bounds the receiver's control token writes.
func (c *Config) TokenWriteTimeout() time.Duration { return seconds(c.TokenWriteTimeoutSec) }
