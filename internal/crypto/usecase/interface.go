// Package usecase implements client encryption key management.
//
// Client encryption keys are imported already wrapped: the caller's key custodian wraps the
// DEK and this package only stores the wrapped bytes with the metadata needed to unwrap
// them. Rewrap moves a key to a new KEK without exposing the DEK outside the process.
package usecase

import (
	"context"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
)

// ClientEncryptionKeyRepository defines client encryption key persistence.
//
// Implementations must participate in a transaction carried by ctx (see database.GetTx) so
// that Rewrap can lock, read and update a key atomically.
type ClientEncryptionKeyRepository interface {
	// Create stores a new key. Returns ErrClientEncryptionKeyAlreadyExists for a duplicate id.
	Create(ctx context.Context, key *cryptoDomain.ClientEncryptionKey) error

	// Get returns the key or ErrClientEncryptionKeyNotFound.
	Get(ctx context.Context, id string) (*cryptoDomain.ClientEncryptionKey, error)

	// GetForUpdate returns the key with a row lock held until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*cryptoDomain.ClientEncryptionKey, error)

	// List returns keys ordered by id.
	List(ctx context.Context, offset, limit int) ([]*cryptoDomain.ClientEncryptionKey, error)

	// Update persists new wrapped bytes and wrap metadata.
	Update(ctx context.Context, key *cryptoDomain.ClientEncryptionKey) error
}

// ClientEncryptionKeyUseCase defines client encryption key business operations.
type ClientEncryptionKeyUseCase interface {
	// Import validates and stores a wrapped DEK. The wrapped bytes are unwrapped once through
	// the key custodian to prove the metadata is usable; the plaintext is discarded.
	Import(ctx context.Context, key *cryptoDomain.ClientEncryptionKey) (*cryptoDomain.ClientEncryptionKey, error)

	// Get returns the stored properties of a key.
	Get(ctx context.Context, id string) (*cryptoDomain.ClientEncryptionKey, error)

	// List returns a page of keys ordered by id.
	List(ctx context.Context, offset, limit int) ([]*cryptoDomain.ClientEncryptionKey, error)

	// Rewrap unwraps the key with its current KEK and wraps it again with the KEK named by
	// metadata, inside one transaction.
	Rewrap(
		ctx context.Context,
		id string,
		metadata cryptoDomain.EncryptionKeyWrapMetadata,
	) (*cryptoDomain.ClientEncryptionKey, error)
}
