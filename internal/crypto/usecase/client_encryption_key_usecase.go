package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/docencrypt/internal/crypto/service"
	"github.com/allisson/docencrypt/internal/database"
	apperrors "github.com/allisson/docencrypt/internal/errors"
	customValidation "github.com/allisson/docencrypt/internal/validation"
)

// dekSize is the size of every unwrapped DEK.
const dekSize = 32

// clientEncryptionKeyUseCase implements ClientEncryptionKeyUseCase.
type clientEncryptionKeyUseCase struct {
	txManager    database.TxManager
	keyRepo      ClientEncryptionKeyRepository
	wrapProvider cryptoService.WrapProvider
	logger       *slog.Logger
	now          func() time.Time
}

// NewClientEncryptionKeyUseCase creates a ClientEncryptionKeyUseCase.
func NewClientEncryptionKeyUseCase(
	txManager database.TxManager,
	keyRepo ClientEncryptionKeyRepository,
	wrapProvider cryptoService.WrapProvider,
	logger *slog.Logger,
) ClientEncryptionKeyUseCase {
	return &clientEncryptionKeyUseCase{
		txManager:    txManager,
		keyRepo:      keyRepo,
		wrapProvider: wrapProvider,
		logger:       logger,
		now:          time.Now,
	}
}

func validateClientEncryptionKey(key *cryptoDomain.ClientEncryptionKey) error {
	err := validation.ValidateStruct(key,
		validation.Field(&key.ID,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
			customValidation.KeyID,
		),
		validation.Field(&key.WrappedDataEncryptionKey, validation.Required),
	)
	if err != nil {
		return customValidation.WrapValidationError(err)
	}
	if err := key.EncryptionAlgorithm.Validate(); err != nil {
		return err
	}
	return validateWrapMetadata(key.KeyWrapMetadata)
}

func validateWrapMetadata(metadata cryptoDomain.EncryptionKeyWrapMetadata) error {
	if err := metadata.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(metadata.Value, customValidation.KeeperURL{}); err != nil {
		return apperrors.Wrap(cryptoDomain.ErrInvalidKeyWrapMetadata, err.Error())
	}
	return nil
}

// Import validates key, proves it can be unwrapped and stores it.
func (u *clientEncryptionKeyUseCase) Import(
	ctx context.Context,
	key *cryptoDomain.ClientEncryptionKey,
) (*cryptoDomain.ClientEncryptionKey, error) {
	key.ID = strings.TrimSpace(key.ID)
	if key.KeyWrapMetadata.Type == "" {
		key.KeyWrapMetadata.Type = cryptoDomain.KeyWrapMetadataTypeKMS
	}
	if err := validateClientEncryptionKey(key); err != nil {
		return nil, err
	}

	if err := u.verifyUnwrap(ctx, key.WrappedDataEncryptionKey, key.KeyWrapMetadata); err != nil {
		return nil, err
	}

	now := u.now().UTC()
	key.CreatedAt = now
	key.UpdatedAt = now

	if err := u.keyRepo.Create(ctx, key); err != nil {
		return nil, err
	}

	u.logger.Info("client encryption key imported",
		slog.String("key_id", key.ID),
		slog.String("kek_name", key.KeyWrapMetadata.Name),
	)
	return key, nil
}

// verifyUnwrap unwraps once and discards the plaintext.
func (u *clientEncryptionKeyUseCase) verifyUnwrap(
	ctx context.Context,
	wrapped []byte,
	metadata cryptoDomain.EncryptionKeyWrapMetadata,
) error {
	raw, err := u.wrapProvider.UnwrapKey(ctx, wrapped, metadata)
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(raw)

	if len(raw) != dekSize {
		return apperrors.Wrapf(cryptoDomain.ErrInvalidKeySize, "unwrapped key has %d bytes", len(raw))
	}
	return nil
}

// Get returns the stored properties of a key.
func (u *clientEncryptionKeyUseCase) Get(ctx context.Context, id string) (*cryptoDomain.ClientEncryptionKey, error) {
	return u.keyRepo.Get(ctx, id)
}

// List returns a page of keys ordered by id.
func (u *clientEncryptionKeyUseCase) List(
	ctx context.Context,
	offset, limit int,
) ([]*cryptoDomain.ClientEncryptionKey, error) {
	return u.keyRepo.List(ctx, offset, limit)
}

// Rewrap moves key id to the KEK named by metadata.
func (u *clientEncryptionKeyUseCase) Rewrap(
	ctx context.Context,
	id string,
	metadata cryptoDomain.EncryptionKeyWrapMetadata,
) (*cryptoDomain.ClientEncryptionKey, error) {
	if metadata.Type == "" {
		metadata.Type = cryptoDomain.KeyWrapMetadataTypeKMS
	}
	if err := validateWrapMetadata(metadata); err != nil {
		return nil, err
	}

	var rewrapped *cryptoDomain.ClientEncryptionKey
	err := u.txManager.WithTx(ctx, func(txCtx context.Context) error {
		key, err := u.keyRepo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		raw, err := u.wrapProvider.UnwrapKey(txCtx, key.WrappedDataEncryptionKey, key.KeyWrapMetadata)
		if err != nil {
			return err
		}
		defer cryptoDomain.Zero(raw)

		wrapped, newMetadata, err := u.wrapProvider.WrapKey(txCtx, raw, metadata)
		if err != nil {
			return err
		}

		key.WrappedDataEncryptionKey = wrapped
		key.KeyWrapMetadata = newMetadata
		key.UpdatedAt = u.now().UTC()

		if err := u.keyRepo.Update(txCtx, key); err != nil {
			return err
		}
		rewrapped = key
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("client encryption key rewrapped",
		slog.String("key_id", id),
		slog.String("kek_name", rewrapped.KeyWrapMetadata.Name),
	)
	return rewrapped, nil
}
