package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	"github.com/allisson/docencrypt/internal/crypto/keystore"
	"github.com/allisson/docencrypt/internal/crypto/lifecycle"
	cryptoService "github.com/allisson/docencrypt/internal/crypto/service"
	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
	apperrors "github.com/allisson/docencrypt/internal/errors"
)

// KeyUnwrapper is the key-unwrap cache consulted when the protected-key cache is cold.
type KeyUnwrapper interface {
	UnwrapKey(keyID string, algorithm cryptoDomain.KeyWrapAlgorithm, wrappedKey []byte) ([]byte, error)
	Remove(keyID string, wrappedKey []byte)
}

// DekRegistry tracks unwrapped DEKs for refresh and disposal.
type DekRegistry interface {
	Register(dek *cryptoDomain.RawDek, ttl time.Duration)
	Tracked(id string) (*cryptoDomain.RawDek, bool)
}

// dekBoundAlgorithm runs every operation under the DEK's disposal guard, so usage is
// recorded and a disposed key fails with ErrDekDisposed.
type dekBoundAlgorithm struct {
	dek *cryptoDomain.RawDek
	alg cryptoService.DataEncryptionAlgorithm
}

func (b *dekBoundAlgorithm) Encrypt(plaintext []byte) ([]byte, error) {
	var out []byte
	err := b.dek.Use(func([]byte) error {
		var err error
		out, err = b.alg.Encrypt(plaintext)
		return err
	})
	return out, err
}

func (b *dekBoundAlgorithm) Decrypt(ciphertext []byte) ([]byte, error) {
	var out []byte
	err := b.dek.Use(func([]byte) error {
		var err error
		out, err = b.alg.Decrypt(ciphertext)
		return err
	})
	return out, err
}

// AlgorithmProvider resolves encryption algorithms for property settings.
//
// Algorithms are cached per (client encryption key id, encryption type). A cached algorithm
// whose DEK was disposed is rebuilt on next use.
type AlgorithmProvider struct {
	keys              ClientEncryptionKeyReader
	unwrapper         KeyUnwrapper
	protected         *keystore.ProtectedKeyCache
	registry          DekRegistry
	aeadManager       cryptoService.AEADManager
	dekTTL            time.Duration
	refreshPercentage int
	logger            *slog.Logger
	now               func() time.Time

	algorithms sync.Map // map[string]*dekBoundAlgorithm
	sem        *semaphore.Weighted
}

// NewAlgorithmProvider creates an AlgorithmProvider. DEKs it unwraps are registered with
// registry for dekTTL and carry refreshPercentage.
func NewAlgorithmProvider(
	keys ClientEncryptionKeyReader,
	unwrapper KeyUnwrapper,
	protected *keystore.ProtectedKeyCache,
	registry DekRegistry,
	aeadManager cryptoService.AEADManager,
	dekTTL time.Duration,
	refreshPercentage int,
	logger *slog.Logger,
) *AlgorithmProvider {
	return &AlgorithmProvider{
		keys:              keys,
		unwrapper:         unwrapper,
		protected:         protected,
		registry:          registry,
		aeadManager:       aeadManager,
		dekTTL:            dekTTL,
		refreshPercentage: refreshPercentage,
		logger:            logger,
		now:               time.Now,
		sem:               semaphore.NewWeighted(1),
	}
}

func algorithmCacheKey(keyID string, encryptionType cryptoDomain.EncryptionType) string {
	return keyID + "/" + string(encryptionType)
}

func (p *AlgorithmProvider) lookup(key string) (*dekBoundAlgorithm, bool) {
	v, ok := p.algorithms.Load(key)
	if !ok {
		return nil, false
	}
	bound := v.(*dekBoundAlgorithm)
	if bound.dek.IsDisposed() {
		p.algorithms.CompareAndDelete(key, v)
		return nil, false
	}
	return bound, true
}

// GetAlgorithm returns the algorithm for setting, building it on first use.
func (p *AlgorithmProvider) GetAlgorithm(
	ctx context.Context,
	setting *encryptionDomain.EncryptionSettingForProperty,
) (encryptionDomain.EncryptionAlgorithm, error) {
	key := algorithmCacheKey(setting.ClientEncryptionKeyID(), setting.EncryptionType())
	if bound, ok := p.lookup(key); ok {
		return bound, nil
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	if bound, ok := p.lookup(key); ok {
		return bound, nil
	}

	props, err := p.keys.Get(ctx, setting.ClientEncryptionKeyID())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", encryptionDomain.ErrInvalidEncryptionSetting, err)
		}
		return nil, err
	}

	dek, err := p.rawDek(ctx, props)
	if err != nil {
		return nil, err
	}

	var alg cryptoService.DataEncryptionAlgorithm
	err = dek.Use(func(raw []byte) error {
		var err error
		alg, err = cryptoService.NewDataEncryptionAlgorithm(
			p.aeadManager,
			raw,
			props.EncryptionAlgorithm,
			setting.EncryptionType(),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	dek.Bind(alg)

	bound := &dekBoundAlgorithm{dek: dek, alg: alg}
	p.algorithms.Store(key, bound)
	return bound, nil
}

// rawDek returns the tracked DEK for props or unwraps and registers a new one.
func (p *AlgorithmProvider) rawDek(
	ctx context.Context,
	props *cryptoDomain.ClientEncryptionKey,
) (*cryptoDomain.RawDek, error) {
	wrapped := props.WrappedDataEncryptionKey
	metadata := props.KeyWrapMetadata

	if dek, ok := p.registry.Tracked(props.ID); ok && !dek.IsDisposed() && bytes.Equal(dek.WrappedKey, wrapped) {
		return dek, nil
	}

	pk, err := p.protected.GetOrCreate(ctx, props.ID, metadata.Value, wrapped, func(context.Context) ([]byte, error) {
		return p.unwrapper.UnwrapKey(metadata.Value, metadata.Algorithm, wrapped)
	})
	if err != nil {
		return nil, err
	}

	raw := pk.RawKey()
	defer cryptoDomain.Zero(raw)

	dek := cryptoDomain.NewRawDek(props.ID, raw, wrapped, metadata, p.refreshPercentage, p.now)
	p.registry.Register(dek, p.dekTTL)

	p.logger.Debug("dek unwrapped",
		slog.String("key_id", props.ID),
		slog.String("kek_name", metadata.Name),
	)
	return dek, nil
}

// OnDispose drops algorithms bound to dek. Revoked DEKs are also evicted from both key
// caches so the next use goes back to the custodian.
func (p *AlgorithmProvider) OnDispose(dek *cryptoDomain.RawDek, reason lifecycle.DisposeReason) {
	p.algorithms.Range(func(k, v any) bool {
		if v.(*dekBoundAlgorithm).dek == dek {
			p.algorithms.CompareAndDelete(k, v)
		}
		return true
	})

	if reason != lifecycle.DisposeRevoked {
		return
	}
	p.unwrapper.Remove(dek.WrapMetadata.Value, dek.WrappedKey)
	p.protected.Remove(dek.ID, dek.WrapMetadata.Value, dek.WrappedKey)
	p.logger.Warn("key access revoked, cached key material evicted",
		slog.String("key_id", dek.ID),
		slog.String("kek_name", dek.WrapMetadata.Name),
	)
}

// Cleanup drops every cached algorithm. DEKs are disposed by their registry.
func (p *AlgorithmProvider) Cleanup() {
	p.algorithms.Clear()
}
