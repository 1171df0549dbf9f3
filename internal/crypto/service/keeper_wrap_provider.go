package service

import (
	"context"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
)

// KeeperWrapProvider implements WrapProvider on top of a KeyResolver, using the wrap
// metadata's Value as the key id.
type KeeperWrapProvider struct {
	resolver KeyResolver
}

// NewKeeperWrapProvider creates a WrapProvider backed by resolver.
func NewKeeperWrapProvider(resolver KeyResolver) *KeeperWrapProvider {
	return &KeeperWrapProvider{resolver: resolver}
}

// WrapKey wraps key with the KEK named by metadata. The returned metadata is the input
// metadata; gocloud keepers do not rotate key versions on wrap.
func (p *KeeperWrapProvider) WrapKey(
	ctx context.Context,
	key []byte,
	metadata cryptoDomain.EncryptionKeyWrapMetadata,
) ([]byte, cryptoDomain.EncryptionKeyWrapMetadata, error) {
	if err := metadata.Validate(); err != nil {
		return nil, cryptoDomain.EncryptionKeyWrapMetadata{}, err
	}

	handle, err := p.resolver.ResolveContext(ctx, metadata.Value)
	if err != nil {
		return nil, cryptoDomain.EncryptionKeyWrapMetadata{}, err
	}

	wrapped, err := handle.WrapKeyContext(ctx, metadata.Algorithm, key)
	if err != nil {
		return nil, cryptoDomain.EncryptionKeyWrapMetadata{}, err
	}
	return wrapped, metadata, nil
}

// UnwrapKey unwraps wrappedKey with the KEK named by metadata.
func (p *KeeperWrapProvider) UnwrapKey(
	ctx context.Context,
	wrappedKey []byte,
	metadata cryptoDomain.EncryptionKeyWrapMetadata,
) ([]byte, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	handle, err := p.resolver.ResolveContext(ctx, metadata.Value)
	if err != nil {
		return nil, err
	}
	return handle.UnwrapKeyContext(ctx, metadata.Algorithm, wrappedKey)
}
