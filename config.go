package pathoram

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// User errors: the operation was rejected before touching storage and the
// client state is unchanged.
var (
	ErrInvalidConfig     = errors.New("invalid PathORAM configuration")
	ErrInvalidBlockID    = errors.New("invalid block ID")
	ErrInvalidDataSize   = errors.New("data size doesn't match block size")
	ErrDuplicateID       = errors.New("block ID already stored")
	ErrNotFound          = errors.New("block not found")
	ErrCapacityExceeded  = errors.New("ORAM capacity exceeded")
	ErrOutOfRange        = errors.New("bucket index out of range")
	ErrEncryptionFailed  = errors.New("block encryption failed")
	ErrUnsupportedCipher = errors.New("unsupported cipher suite")
)

// Fatal errors: the tree can no longer be trusted.
var (
	ErrIntegrity     = errors.New("block authentication failed")
	ErrInvariant     = errors.New("ORAM invariant violated")
	ErrNoFreeSlot    = fmt.Errorf("%w: no free dummy slot in bucket", ErrInvariant)
	ErrSessionFailed = errors.New("ORAM session terminated by earlier failure")
)

// IsFatal reports whether err means the client session must not continue.
func IsFatal(err error) bool {
	return errors.Is(err, ErrIntegrity) ||
		errors.Is(err, ErrInvariant) ||
		errors.Is(err, ErrSessionFailed)
}

// CipherSuite selects the AEAD used to seal bucket slots.
type CipherSuite int

const (
	// AESGCM is AES-256-GCM with a random 96-bit nonce.
	AESGCM CipherSuite = iota

	// XChaCha20Poly1305 uses a random 192-bit nonce, which keeps collision
	// probability negligible even with very many re-encryptions under one key.
	XChaCha20Poly1305
)

func (s CipherSuite) String() string {
	switch s {
	case AESGCM:
		return "aes-gcm"
	case XChaCha20Poly1305:
		return "xchacha20-poly1305"
	default:
		return fmt.Sprintf("CipherSuite(%d)", int(s))
	}
}

// ParseCipherSuite maps a config name to a CipherSuite.
func ParseCipherSuite(name string) (CipherSuite, error) {
	switch name {
	case "", "aes-gcm":
		return AESGCM, nil
	case "xchacha20-poly1305":
		return XChaCha20Poly1305, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedCipher, name)
}

// Config holds PathORAM configuration parameters.
type Config struct {
	NumBlocks    int         // N: maximum number of live blocks
	BlockSize    int         // DATA_SIZE: payload size of each block in bytes
	BucketSize   int         // Z override; 0 derives Z from NumBlocks
	Cipher       CipherSuite // AEAD used for slots
	ConstantTime bool        // Scan buckets without data-dependent early exits

	// Rand drives leaf assignment and eviction sampling. It must be a
	// cryptographically secure source; defaults to crypto/rand.Reader.
	Rand io.Reader

	// Logger receives operation logs; defaults to a no-op logger.
	Logger *zap.Logger
}

// Validate checks the configuration for errors and applies defaults.
// Returns a copy of the config with defaults applied.
func (c Config) Validate() (Config, error) {
	if c.NumBlocks <= 0 || c.BlockSize <= 0 || c.BucketSize < 0 {
		return c, ErrInvalidConfig
	}
	if c.Cipher != AESGCM && c.Cipher != XChaCha20Poly1305 {
		return c, ErrUnsupportedCipher
	}
	if c.Rand == nil {
		c.Rand = rand.Reader
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c, nil
}

// Geometry computes the tree dimensions for the config.
func (c Config) Geometry() (Geometry, error) {
	return NewGeometry(c.NumBlocks, c.BucketSize)
}

// SlotSize returns the length of every ciphertext slot produced under c.
func (c Config) SlotSize() int {
	return plaintextSize(c.BlockSize) + cipherOverhead(c.Cipher)
}
