package pathoram

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCiphers(t *testing.T, blockSize int) map[string]*AEADCipher {
	t.Helper()
	key, err := NewKey()
	require.NoError(t, err)

	out := make(map[string]*AEADCipher)
	for _, suite := range []CipherSuite{AESGCM, XChaCha20Poly1305} {
		c, err := NewCipher(suite, key, blockSize)
		require.NoError(t, err)
		out[suite.String()] = c
	}
	return out
}

func TestBlockCipher_RoundTrip(t *testing.T) {
	for name, c := range testCiphers(t, 16) {
		t.Run(name, func(t *testing.T) {
			blk := RealBlock(42, []byte("hello world 1234"))

			ct, err := c.Encrypt(3, 1, blk)
			require.NoError(t, err)
			assert.Len(t, ct, c.CiphertextSize())

			got, err := c.Decrypt(3, 1, ct)
			require.NoError(t, err)
			assert.Equal(t, blk, got)

			ct, err = c.Encrypt(3, 2, DummyBlock())
			require.NoError(t, err)
			assert.Len(t, ct, c.CiphertextSize(), "dummy ciphertext must match real length")

			got, err = c.Decrypt(3, 2, ct)
			require.NoError(t, err)
			assert.True(t, got.IsDummy())
		})
	}
}

func TestBlockCipher_FreshCiphertext(t *testing.T) {
	for name, c := range testCiphers(t, 8) {
		t.Run(name, func(t *testing.T) {
			b := RealBlock(7, bytes.Repeat([]byte{0xAB}, 8))
			first, err := c.Encrypt(0, 0, b)
			require.NoError(t, err)
			second, err := c.Encrypt(0, 0, b)
			require.NoError(t, err)
			assert.NotEqual(t, first, second)

			d1, err := c.Encrypt(0, 0, DummyBlock())
			require.NoError(t, err)
			d2, err := c.Encrypt(0, 0, DummyBlock())
			require.NoError(t, err)
			assert.NotEqual(t, d1, d2)
		})
	}
}

func TestBlockCipher_Tamper(t *testing.T) {
	for name, c := range testCiphers(t, 8) {
		t.Run(name, func(t *testing.T) {
			ct, err := c.Encrypt(5, 0, RealBlock(1, []byte("ABCDEFGH")))
			require.NoError(t, err)

			for _, pos := range []int{0, len(ct) / 2, len(ct) - 1} {
				bad := append([]byte(nil), ct...)
				bad[pos] ^= 0x01
				_, err := c.Decrypt(5, 0, bad)
				assert.ErrorIs(t, err, ErrIntegrity, "flipped byte %d", pos)
			}

			_, err = c.Decrypt(5, 1, ct)
			assert.ErrorIs(t, err, ErrIntegrity, "moved to another slot")
			_, err = c.Decrypt(6, 0, ct)
			assert.ErrorIs(t, err, ErrIntegrity, "moved to another bucket")
			_, err = c.Decrypt(5, 0, ct[:len(ct)-1])
			assert.ErrorIs(t, err, ErrIntegrity, "truncated")
		})
	}
}

func TestBlockCipher_WrongKey(t *testing.T) {
	k1, err := NewKey()
	require.NoError(t, err)
	k2, err := NewKey()
	require.NoError(t, err)

	c1, err := NewAESGCMCipher(k1, 4)
	require.NoError(t, err)
	c2, err := NewAESGCMCipher(k2, 4)
	require.NoError(t, err)

	ct, err := c1.Encrypt(0, 0, RealBlock(1, []byte("AAAA")))
	require.NoError(t, err)
	_, err = c2.Decrypt(0, 0, ct)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestBlockCipher_InvalidInput(t *testing.T) {
	_, err := NewAESGCMCipher(make([]byte, 16), 4)
	assert.Error(t, err, "short key")
	_, err = NewXChaCha20Cipher(make([]byte, 16), 4)
	assert.Error(t, err, "short key")
	_, err = NewAESGCMCipher(make([]byte, KeySize), 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewCipher(CipherSuite(9), make([]byte, KeySize), 4)
	assert.ErrorIs(t, err, ErrUnsupportedCipher)

	c, err := NewAESGCMCipher(make([]byte, KeySize), 4)
	require.NoError(t, err)
	_, err = c.Encrypt(0, 0, RealBlock(1, []byte("TOO LONG")))
	assert.ErrorIs(t, err, ErrInvalidDataSize)
	_, err = c.Encrypt(0, 0, RealBlock(-1, []byte("AAAA")))
	assert.ErrorIs(t, err, ErrInvalidBlockID)
}

func TestBlockEncoding(t *testing.T) {
	pt, err := encodeBlock(RealBlock(0x0102, []byte("WXYZ")), 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0x01, 0x02, 'W', 'X', 'Y', 'Z'}, pt)

	pt, err = encodeBlock(DummyBlock(), 4)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 13), pt)

	// Real block with id 0 must not look like a dummy.
	pt, err = encodeBlock(RealBlock(0, []byte("AAAA")), 4)
	require.NoError(t, err)
	b, err := decodeBlock(pt, 4)
	require.NoError(t, err)
	assert.False(t, b.IsDummy())
	assert.Equal(t, 0, b.ID)

	pt[0] = 7
	_, err = decodeBlock(pt, 4)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestConfigSlotSize(t *testing.T) {
	for _, suite := range []CipherSuite{AESGCM, XChaCha20Poly1305} {
		cfg := Config{NumBlocks: 5, BlockSize: 4, Cipher: suite}
		key, err := NewKey()
		require.NoError(t, err)
		c, err := NewCipher(suite, key, 4)
		require.NoError(t, err)
		assert.Equal(t, c.CiphertextSize(), cfg.SlotSize(), suite.String())
	}
}
