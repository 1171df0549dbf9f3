package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocloud.dev/gcerrors"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
)

// KeeperKeyResolver resolves KEK URLs into key handles backed by gocloud.dev keepers.
// Opened keepers are reused for the lifetime of the resolver.
type KeeperKeyResolver struct {
	kmsService KMSService
	keepers    sync.Map // map[string]cryptoDomain.KMSKeeper
}

// NewKeeperKeyResolver creates a resolver that opens keepers through kmsService.
func NewKeeperKeyResolver(kmsService KMSService) *KeeperKeyResolver {
	return &KeeperKeyResolver{kmsService: kmsService}
}

// Resolve resolves keyID without a caller context.
func (r *KeeperKeyResolver) Resolve(keyID string) (KeyHandle, error) {
	return r.ResolveContext(context.Background(), keyID)
}

// ResolveContext resolves keyID, opening its keeper on first use.
func (r *KeeperKeyResolver) ResolveContext(ctx context.Context, keyID string) (KeyHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if keyID == "" {
		return nil, cryptoDomain.ErrInvalidKeyWrapMetadata
	}

	if v, ok := r.keepers.Load(keyID); ok {
		return &keeperKeyHandle{keeper: v.(cryptoDomain.KMSKeeper)}, nil
	}

	keeper, err := r.kmsService.OpenKeeper(ctx, keyID)
	if err != nil {
		return nil, classifyCustodianError(err, "failed to resolve key")
	}

	actual, loaded := r.keepers.LoadOrStore(keyID, keeper)
	if loaded {
		_ = keeper.Close()
	}
	return &keeperKeyHandle{keeper: actual.(cryptoDomain.KMSKeeper)}, nil
}

// Close closes every opened keeper.
func (r *KeeperKeyResolver) Close() error {
	var errs []error
	r.keepers.Range(func(key, value any) bool {
		r.keepers.Delete(key)
		if err := value.(cryptoDomain.KMSKeeper).Close(); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

// keeperKeyHandle adapts a KMSKeeper to KeyHandle.
type keeperKeyHandle struct {
	keeper cryptoDomain.KMSKeeper
}

func (h *keeperKeyHandle) WrapKey(algorithm cryptoDomain.KeyWrapAlgorithm, key []byte) ([]byte, error) {
	return h.WrapKeyContext(context.Background(), algorithm, key)
}

func (h *keeperKeyHandle) UnwrapKey(algorithm cryptoDomain.KeyWrapAlgorithm, wrappedKey []byte) ([]byte, error) {
	return h.UnwrapKeyContext(context.Background(), algorithm, wrappedKey)
}

func (h *keeperKeyHandle) WrapKeyContext(
	ctx context.Context,
	algorithm cryptoDomain.KeyWrapAlgorithm,
	key []byte,
) ([]byte, error) {
	if err := algorithm.Validate(); err != nil {
		return nil, err
	}
	wrapped, err := h.keeper.Encrypt(ctx, key)
	if err != nil {
		return nil, classifyCustodianError(err, "failed to wrap key")
	}
	return wrapped, nil
}

func (h *keeperKeyHandle) UnwrapKeyContext(
	ctx context.Context,
	algorithm cryptoDomain.KeyWrapAlgorithm,
	wrappedKey []byte,
) ([]byte, error) {
	if err := algorithm.Validate(); err != nil {
		return nil, err
	}
	key, err := h.keeper.Decrypt(ctx, wrappedKey)
	if err != nil {
		return nil, classifyCustodianError(err, "failed to unwrap key")
	}
	return key, nil
}

// classifyCustodianError maps custodian failures onto ErrAccessRevoked or ErrUnwrapFailed.
// Cancellation and already classified errors pass through.
func classifyCustodianError(err error, message string) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, cryptoDomain.ErrAccessRevoked),
		errors.Is(err, cryptoDomain.ErrUnwrapFailed),
		errors.Is(err, cryptoDomain.ErrInvalidKeyWrapMetadata):
		return fmt.Errorf("%s: %w", message, err)
	}

	switch gcerrors.Code(err) {
	case gcerrors.PermissionDenied, gcerrors.NotFound, gcerrors.FailedPrecondition:
		return fmt.Errorf("%s: %w: %w", message, cryptoDomain.ErrAccessRevoked, err)
	case gcerrors.Canceled, gcerrors.DeadlineExceeded:
		return fmt.Errorf("%s: %w", message, err)
	default:
		return fmt.Errorf("%s: %w: %w", message, cryptoDomain.ErrUnwrapFailed, err)
	}
}
