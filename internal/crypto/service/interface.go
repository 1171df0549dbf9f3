// Package service provides the cryptographic collaborators used by the document encryption
// engine: AEAD ciphers, the per-DEK data encryption algorithm and gocloud.dev backed key
// custody (key resolver, key handles and the wrap provider).
package service

import (
	"context"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD using a random nonce and returns
	// ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Seal encrypts plaintext with a caller supplied nonce. The nonce must be NonceSize bytes.
	Seal(nonce, plaintext, aad []byte) ([]byte, error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)

	// NonceSize returns the nonce length in bytes.
	NonceSize() int
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// DataEncryptionAlgorithm encrypts and decrypts property values with one unwrapped DEK.
//
// Instances are bound to a single key and encryption type. Close releases derived key
// material; calls after Close fail with ErrDekDisposed.
type DataEncryptionAlgorithm interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
	Close() error
}

// KeyHandle wraps and unwraps DEKs with one KEK held by the key custodian.
//
// The plain methods are used on synchronous hot paths; the Context variants may be
// cancelled and are used for prefetching and background refresh.
type KeyHandle interface {
	WrapKey(algorithm cryptoDomain.KeyWrapAlgorithm, key []byte) ([]byte, error)
	UnwrapKey(algorithm cryptoDomain.KeyWrapAlgorithm, wrappedKey []byte) ([]byte, error)
	WrapKeyContext(ctx context.Context, algorithm cryptoDomain.KeyWrapAlgorithm, key []byte) ([]byte, error)
	UnwrapKeyContext(
		ctx context.Context,
		algorithm cryptoDomain.KeyWrapAlgorithm,
		wrappedKey []byte,
	) ([]byte, error)
}

// KeyResolver resolves a KEK identifier (a keeper URL) into a KeyHandle.
type KeyResolver interface {
	// Resolve resolves synchronously. Used by the key store provider's cold path.
	Resolve(keyID string) (KeyHandle, error)

	// ResolveContext resolves honoring ctx. Used for prefetching.
	ResolveContext(ctx context.Context, keyID string) (KeyHandle, error)
}

// WrapProvider wraps and unwraps DEKs described by EncryptionKeyWrapMetadata.
//
// Unwrap failures caused by revoked KEK access wrap cryptoDomain.ErrAccessRevoked; every
// other custodian failure wraps cryptoDomain.ErrUnwrapFailed.
type WrapProvider interface {
	WrapKey(
		ctx context.Context,
		key []byte,
		metadata cryptoDomain.EncryptionKeyWrapMetadata,
	) ([]byte, cryptoDomain.EncryptionKeyWrapMetadata, error)
	UnwrapKey(ctx context.Context, wrappedKey []byte, metadata cryptoDomain.EncryptionKeyWrapMetadata) ([]byte, error)
}
