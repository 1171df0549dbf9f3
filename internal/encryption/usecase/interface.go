// Package usecase wires the document encryption engine to stored client encryption keys.
//
// Settings are built from a container's client encryption policy and cached per container
// and policy fingerprint. Algorithms are resolved lazily per (key, encryption type) through
// the protected-key cache, the key-unwrap cache and finally the key custodian; every DEK
// produced on the way is handed to the lifecycle manager.
package usecase

import (
	"context"
	"io"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
)

// ClientEncryptionKeyReader loads stored client encryption key properties.
type ClientEncryptionKeyReader interface {
	Get(ctx context.Context, id string) (*cryptoDomain.ClientEncryptionKey, error)
}

// KeyPrefetcher warms unwrapped DEKs off the document hot path.
type KeyPrefetcher interface {
	PrefetchUnwrapKey(ctx context.Context, keyID string, wrappedKey []byte) error
}

// DocumentProcessor is the type-preserving encryption engine.
type DocumentProcessor interface {
	Encrypt(
		ctx context.Context,
		input io.ReadCloser,
		settings *encryptionDomain.EncryptionSettings,
		diag encryptionDomain.DiagnosticsSink,
	) (io.ReadCloser, error)
	Decrypt(
		ctx context.Context,
		input io.ReadCloser,
		settings *encryptionDomain.EncryptionSettings,
		diag encryptionDomain.DiagnosticsSink,
	) (io.ReadCloser, int, error)
	DecryptFeedResponse(
		ctx context.Context,
		input io.ReadCloser,
		settings *encryptionDomain.EncryptionSettings,
		diag encryptionDomain.DiagnosticsSink,
	) (io.ReadCloser, error)
}

// EncryptionUseCase encrypts and decrypts documents of a container.
//
// Stream ownership follows the engine: Encrypt always closes input; Decrypt and
// DecryptFeedResponse close it on success and leave it open, fully read, on error.
type EncryptionUseCase interface {
	// BuildSettings validates the container policy and returns its encryption settings.
	BuildSettings(ctx context.Context, container *encryptionDomain.Container) (*encryptionDomain.EncryptionSettings, error)

	Encrypt(
		ctx context.Context,
		container *encryptionDomain.Container,
		input io.ReadCloser,
		diag encryptionDomain.DiagnosticsSink,
	) (io.ReadCloser, error)

	Decrypt(
		ctx context.Context,
		container *encryptionDomain.Container,
		input io.ReadCloser,
		diag encryptionDomain.DiagnosticsSink,
	) (io.ReadCloser, int, error)

	DecryptFeedResponse(
		ctx context.Context,
		container *encryptionDomain.Container,
		input io.ReadCloser,
		diag encryptionDomain.DiagnosticsSink,
	) (io.ReadCloser, error)
}
