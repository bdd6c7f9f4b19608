package pathoram

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// BlockCipher seals plaintext blocks into bucket slots.
// Every call to Encrypt must use fresh randomness so that re-encrypting an
// unchanged block yields unrelated ciphertext, and every ciphertext must have
// the same length whether the block is real or dummy.
type BlockCipher interface {
	// Encrypt seals b for the given bucket index and slot.
	Encrypt(bucket, slot int, b Block) ([]byte, error)

	// Decrypt opens a slot ciphertext. Authentication failure returns an
	// error wrapping ErrIntegrity.
	Decrypt(bucket, slot int, ciphertext []byte) (Block, error)

	// CiphertextSize returns the fixed length of every ciphertext.
	CiphertextSize() int
}

const (
	aesKeySize   = 32 // AES-256
	aesNonceSize = 12 // Standard GCM nonce size
	aeadTagSize  = 16
)

// KeySize is the secret key length for every supported suite.
const KeySize = aesKeySize

// NewKey returns a fresh random secret key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

func cipherOverhead(s CipherSuite) int {
	if s == XChaCha20Poly1305 {
		return chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	}
	return aesNonceSize + aeadTagSize
}

// AEADCipher implements BlockCipher over any AEAD with random nonces.
type AEADCipher struct {
	aead      cipher.AEAD
	blockSize int
}

var _ BlockCipher = (*AEADCipher)(nil)

// NewAESGCMCipher creates an AES-256-GCM block cipher with the given 32-byte key.
func NewAESGCMCipher(key []byte, blockSize int) (*AEADCipher, error) {
	if len(key) != aesKeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", aesKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return newAEADCipher(aead, blockSize)
}

// NewXChaCha20Cipher creates an XChaCha20-Poly1305 block cipher with the given 32-byte key.
func NewXChaCha20Cipher(key []byte, blockSize int) (*AEADCipher, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create XChaCha20-Poly1305: %w", err)
	}
	return newAEADCipher(aead, blockSize)
}

// NewCipher creates the block cipher selected by suite.
func NewCipher(suite CipherSuite, key []byte, blockSize int) (*AEADCipher, error) {
	switch suite {
	case AESGCM:
		return NewAESGCMCipher(key, blockSize)
	case XChaCha20Poly1305:
		return NewXChaCha20Cipher(key, blockSize)
	}
	return nil, ErrUnsupportedCipher
}

func newAEADCipher(aead cipher.AEAD, blockSize int) (*AEADCipher, error) {
	if blockSize <= 0 {
		return nil, ErrInvalidConfig
	}
	return &AEADCipher{aead: aead, blockSize: blockSize}, nil
}

// Encrypt seals b with a random nonce.
// Output format: nonce || ciphertext || tag
func (c *AEADCipher) Encrypt(bucket, slot int, b Block) ([]byte, error) {
	plaintext, err := encodeBlock(b, c.blockSize)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, c.aead.NonceSize(), c.CiphertextSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	// Bind the slot position so ciphertexts cannot be moved undetected.
	aad := makeAAD(bucket, slot)

	// Seal appends ciphertext+tag to nonce
	return c.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Decrypt opens a slot sealed by Encrypt for the same bucket and slot.
func (c *AEADCipher) Decrypt(bucket, slot int, ciphertext []byte) (Block, error) {
	if len(ciphertext) != c.CiphertextSize() {
		return Block{}, fmt.Errorf("%w: bucket %d slot %d: ciphertext length %d, want %d",
			ErrIntegrity, bucket, slot, len(ciphertext), c.CiphertextSize())
	}

	ns := c.aead.NonceSize()
	nonce := ciphertext[:ns]
	ct := ciphertext[ns:]

	plaintext, err := c.aead.Open(nil, nonce, ct, makeAAD(bucket, slot))
	if err != nil {
		return Block{}, fmt.Errorf("%w: bucket %d slot %d", ErrIntegrity, bucket, slot)
	}

	return decodeBlock(plaintext, c.blockSize)
}

// CiphertextSize returns nonce + encoded block + tag.
func (c *AEADCipher) CiphertextSize() int {
	return c.aead.NonceSize() + plaintextSize(c.blockSize) + c.aead.Overhead()
}

// makeAAD creates additional authenticated data from the slot position.
func makeAAD(bucket, slot int) []byte {
	aad := make([]byte, 16)
	binary.LittleEndian.PutUint64(aad[0:8], uint64(bucket))
	binary.LittleEndian.PutUint64(aad[8:16], uint64(slot))
	return aad
}
