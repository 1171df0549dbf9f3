package domain

import (
	"github.com/allisson/docencrypt/internal/errors"
)

// Cryptographic and key custody error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors so callers can
// match either the specific failure or its broad class with errors.Is.
var (
	// ErrUnsupportedAlgorithm indicates the requested AEAD algorithm is not supported.
	//
	// Supported algorithms: AESGCM (AES-256-GCM), ChaCha20 (ChaCha20-Poly1305).
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidConfiguration, "unsupported algorithm")

	// ErrUnsupportedEncryptionType indicates an encryption type other than Deterministic or Randomized.
	ErrUnsupportedEncryptionType = errors.Wrap(errors.ErrInvalidConfiguration, "unsupported encryption type")

	// ErrUnsupportedKeyWrapAlgorithm indicates the key wrap algorithm identifier is unknown.
	ErrUnsupportedKeyWrapAlgorithm = errors.Wrap(
		errors.ErrInvalidConfiguration,
		"unsupported key wrap algorithm",
	)

	// ErrInvalidKeySize indicates the cryptographic key size is invalid.
	//
	// Unwrapped DEKs and every sub-key derived from them must be exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates a decryption operation failed.
	//
	// This error can occur due to:
	//   - Wrong decryption key used
	//   - Ciphertext has been tampered with (authentication failure)
	//   - Corrupted or truncated encrypted data
	//
	// The specific cause is not disclosed.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrAccessRevoked indicates the key custodian refused to unwrap because access to the
	// KEK was revoked, disabled or deleted. DEKs hit by this error are disposed immediately.
	ErrAccessRevoked = errors.Wrap(errors.ErrForbidden, "key access revoked")

	// ErrUnwrapFailed indicates any other key custodian failure (network, throttling, outage).
	// DEKs hit by this error keep serving until their natural expiry.
	ErrUnwrapFailed = errors.New("key unwrap failed")

	// ErrUnsupportedOperation indicates an operation the key store provider never implements
	// (sign and verify).
	ErrUnsupportedOperation = errors.Wrap(errors.ErrUnsupported, "operation not supported by key store provider")

	// ErrDekDisposed indicates a RawDek was used after the lifecycle manager disposed it.
	ErrDekDisposed = errors.New("data encryption key disposed")

	// ErrClientEncryptionKeyNotFound indicates no key properties exist for the given id.
	ErrClientEncryptionKeyNotFound = errors.Wrap(errors.ErrNotFound, "client encryption key not found")

	// ErrClientEncryptionKeyAlreadyExists indicates an import collided with an existing id.
	ErrClientEncryptionKeyAlreadyExists = errors.Wrap(errors.ErrConflict, "client encryption key already exists")

	// ErrInvalidKeyWrapMetadata indicates wrap metadata without a usable keeper URL.
	ErrInvalidKeyWrapMetadata = errors.Wrap(errors.ErrInvalidConfiguration, "invalid key wrap metadata")
)
