package service

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestAEADManagerService_CreateCipher(t *testing.T) {
	manager := NewAEADManager()
	key := randomKey(t)

	t.Run("aes-gcm", func(t *testing.T) {
		cipher, err := manager.CreateCipher(key, cryptoDomain.AESGCM)
		require.NoError(t, err)
		_, ok := cipher.(*AESGCMCipher)
		assert.True(t, ok)
	})

	t.Run("chacha20-poly1305", func(t *testing.T) {
		cipher, err := manager.CreateCipher(key, cryptoDomain.ChaCha20)
		require.NoError(t, err)
		_, ok := cipher.(*ChaCha20Poly1305Cipher)
		assert.True(t, ok)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := manager.CreateCipher(key, cryptoDomain.Algorithm("des"))
		assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedAlgorithm)
		assert.Contains(t, err.Error(), `"des"`)
	})

	t.Run("invalid key sizes", func(t *testing.T) {
		for _, size := range []int{0, 16, 31, 33, 64} {
			_, err := manager.CreateCipher(make([]byte, size), cryptoDomain.AESGCM)
			assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize, "size %d", size)
		}
		_, err := manager.CreateCipher(nil, cryptoDomain.ChaCha20)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
		assert.Contains(t, err.Error(), "chacha20-poly1305 needs 32 bytes, got 0")
	})
}

func TestAEAD_Ciphers(t *testing.T) {
	manager := NewAEADManager()

	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		t.Run(string(alg), func(t *testing.T) {
			cipher, err := manager.CreateCipher(randomKey(t), alg)
			require.NoError(t, err)
			assert.Equal(t, 12, cipher.NonceSize())

			t.Run("encrypt uses a fresh nonce", func(t *testing.T) {
				ct1, nonce1, err := cipher.Encrypt([]byte("value"), []byte("aad"))
				require.NoError(t, err)
				ct2, nonce2, err := cipher.Encrypt([]byte("value"), []byte("aad"))
				require.NoError(t, err)
				assert.NotEqual(t, nonce1, nonce2)
				assert.NotEqual(t, ct1, ct2)

				pt, err := cipher.Decrypt(ct1, nonce1, []byte("aad"))
				require.NoError(t, err)
				assert.Equal(t, []byte("value"), pt)
			})

			t.Run("seal with fixed nonce is repeatable", func(t *testing.T) {
				nonce := make([]byte, cipher.NonceSize())
				ct1, err := cipher.Seal(nonce, []byte("value"), nil)
				require.NoError(t, err)
				ct2, err := cipher.Seal(nonce, []byte("value"), nil)
				require.NoError(t, err)
				assert.Equal(t, ct1, ct2)

				pt, err := cipher.Decrypt(ct1, nonce, nil)
				require.NoError(t, err)
				assert.Equal(t, []byte("value"), pt)
			})

			t.Run("seal rejects wrong nonce size", func(t *testing.T) {
				_, err := cipher.Seal([]byte{1, 2, 3}, []byte("value"), nil)
				assert.Error(t, err)
			})

			t.Run("decrypt fails on wrong aad", func(t *testing.T) {
				ct, nonce, err := cipher.Encrypt([]byte("value"), []byte("a"))
				require.NoError(t, err)
				_, err = cipher.Decrypt(ct, nonce, []byte("b"))
				assert.Error(t, err)
			})

			t.Run("decrypt fails on tampered ciphertext", func(t *testing.T) {
				ct, nonce, err := cipher.Encrypt([]byte("value"), nil)
				require.NoError(t, err)
				ct[0] ^= 0xff
				_, err = cipher.Decrypt(ct, nonce, nil)
				assert.Error(t, err)
			})

			t.Run("decrypt rejects wrong nonce size", func(t *testing.T) {
				_, err := cipher.Decrypt([]byte("whatever-ciphertext"), []byte{1}, nil)
				assert.Error(t, err)
			})
		})
	}
}
