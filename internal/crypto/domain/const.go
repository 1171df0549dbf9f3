package domain

// Algorithm represents the AEAD cipher used to encrypt property values with an unwrapped DEK.
//
// All supported algorithms provide Authenticated Encryption with Associated Data (AEAD),
// ensuring both confidentiality and authenticity of encrypted values.
//
// Algorithm selection guidelines:
//   - Use AESGCM on modern CPUs with AES-NI hardware acceleration
//   - Use ChaCha20 on mobile devices or systems without AES-NI
type Algorithm string

const (
	// AESGCM represents the AES-256-GCM authenticated encryption algorithm
	// (256-bit key, 12-byte nonce, 16-byte tag).
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents the ChaCha20-Poly1305 authenticated encryption algorithm
	// (256-bit key, 12-byte nonce, 16-byte tag, constant-time software implementation).
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// KeySize is the length in bytes of a data encryption key for every supported Algorithm.
const KeySize = 32

// Validate returns ErrUnsupportedAlgorithm for unknown algorithm names.
func (a Algorithm) Validate() error {
	switch a {
	case AESGCM, ChaCha20:
		return nil
	default:
		return ErrUnsupportedAlgorithm
	}
}

// EncryptionType selects how an algorithm derives per-value nonces.
//
// Deterministic encryption produces identical ciphertext for identical plaintext under the
// same key, which keeps equality queries possible. Randomized encryption produces a fresh
// ciphertext on every call and should be preferred for anything that is never queried.
type EncryptionType string

const (
	// Deterministic derives the nonce from the plaintext (synthetic IV).
	Deterministic EncryptionType = "Deterministic"

	// Randomized draws the nonce from crypto/rand.
	Randomized EncryptionType = "Randomized"
)

// Validate returns ErrUnsupportedEncryptionType for unknown encryption types.
func (e EncryptionType) Validate() error {
	switch e {
	case Deterministic, Randomized:
		return nil
	default:
		return ErrUnsupportedEncryptionType
	}
}

// KeyWrapAlgorithm identifies the algorithm the key custodian uses to wrap a DEK.
type KeyWrapAlgorithm string

const (
	// RSAOAEP is RSA-OAEP with SHA-1, the default custodian wrap algorithm.
	RSAOAEP KeyWrapAlgorithm = "RSA-OAEP"

	// RSAOAEP256 is RSA-OAEP with SHA-256.
	RSAOAEP256 KeyWrapAlgorithm = "RSA-OAEP-256"
)

// Validate returns ErrUnsupportedKeyWrapAlgorithm for unknown key wrap algorithms.
func (a KeyWrapAlgorithm) Validate() error {
	switch a {
	case RSAOAEP, RSAOAEP256:
		return nil
	default:
		return ErrUnsupportedKeyWrapAlgorithm
	}
}

// KeyWrapMetadataTypeKMS marks wrap metadata whose Value is a gocloud.dev secrets keeper URL.
const KeyWrapMetadataTypeKMS = "kms"
