package app

import (
	"fmt"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	"github.com/allisson/docencrypt/internal/crypto/keystore"
	"github.com/allisson/docencrypt/internal/crypto/lifecycle"
	cryptoRepository "github.com/allisson/docencrypt/internal/crypto/repository"
	cryptoService "github.com/allisson/docencrypt/internal/crypto/service"
	cryptoUseCase "github.com/allisson/docencrypt/internal/crypto/usecase"
)

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// KeyResolver returns the resolver that turns KEK URLs into keeper-backed key handles.
func (c *Container) KeyResolver() *cryptoService.KeeperKeyResolver {
	c.keyResolverInit.Do(func() {
		c.keyResolver = cryptoService.NewKeeperKeyResolver(c.KMSService())
	})
	return c.keyResolver
}

// WrapProvider returns the key custodian used for wrap, unwrap and refresh calls.
func (c *Container) WrapProvider() *cryptoService.KeeperWrapProvider {
	c.wrapProviderInit.Do(func() {
		c.wrapProvider = cryptoService.NewKeeperWrapProvider(c.KeyResolver())
	})
	return c.wrapProvider
}

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// KeyStoreProvider returns the key-unwrap cache.
func (c *Container) KeyStoreProvider() *keystore.KeyStoreProvider {
	c.keyStoreProviderInit.Do(func() {
		c.keyStoreProvider = keystore.NewKeyStoreProvider(
			c.KeyResolver(),
			keystore.NewTimeToLive(c.config.KeyCacheTTL),
			keystore.WithRefreshPercentage(c.config.KeyCacheRefreshPercentage),
			keystore.WithLogger(c.Logger()),
		)
	})
	return c.keyStoreProvider
}

// ProtectedKeyCache returns the protected-key shadow cache.
func (c *Container) ProtectedKeyCache() *keystore.ProtectedKeyCache {
	c.protectedKeysInit.Do(func() {
		c.protectedKeys = keystore.NewProtectedKeyCache(
			keystore.NewTimeToLive(c.config.ProtectedKeyCacheTTL),
			keystore.WithLogger(c.Logger()),
		)
	})
	return c.protectedKeys
}

// DekManager returns the DEK lifecycle manager. It is not started; call Start on the
// returned manager from long-running commands.
func (c *Container) DekManager() *lifecycle.Manager {
	c.dekManagerInit.Do(func() {
		c.dekManager = lifecycle.NewManager(
			c.WrapProvider(),
			c.Logger(),
			lifecycle.WithInterval(c.config.DEKRefreshInterval),
			lifecycle.WithConcurrency(c.config.DEKRefreshConcurrency),
			lifecycle.WithOnDispose(c.onDekDisposed),
		)
	})
	return c.dekManager
}

// onDekDisposed forwards disposals to the algorithm provider once it exists.
func (c *Container) onDekDisposed(dek *cryptoDomain.RawDek, reason lifecycle.DisposeReason) {
	if c.algorithmProvider != nil {
		c.algorithmProvider.OnDispose(dek, reason)
	}
}

// ClientEncryptionKeyRepository returns the client encryption key repository based on the database driver.
func (c *Container) ClientEncryptionKeyRepository() (cryptoUseCase.ClientEncryptionKeyRepository, error) {
	var err error
	c.keyRepoInit.Do(func() {
		c.keyRepo, err = c.initClientEncryptionKeyRepository()
		if err != nil {
			c.initErrors["keyRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyRepo"]; exists {
		return nil, storedErr
	}
	return c.keyRepo, nil
}

// ClientEncryptionKeyUseCase returns the client encryption key use case.
func (c *Container) ClientEncryptionKeyUseCase() (cryptoUseCase.ClientEncryptionKeyUseCase, error) {
	var err error
	c.keyUseCaseInit.Do(func() {
		c.keyUseCase, err = c.initClientEncryptionKeyUseCase()
		if err != nil {
			c.initErrors["keyUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyUseCase"]; exists {
		return nil, storedErr
	}
	return c.keyUseCase, nil
}

// initClientEncryptionKeyRepository creates the repository for the configured driver.
func (c *Container) initClientEncryptionKeyRepository() (cryptoUseCase.ClientEncryptionKeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for client encryption key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return cryptoRepository.NewPostgreSQLClientEncryptionKeyRepository(db), nil
	case "mysql":
		return cryptoRepository.NewMySQLClientEncryptionKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initClientEncryptionKeyUseCase creates the client encryption key use case with metrics.
func (c *Container) initClientEncryptionKeyUseCase() (cryptoUseCase.ClientEncryptionKeyUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for client encryption key use case: %w", err)
	}

	keyRepo, err := c.ClientEncryptionKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get repository for client encryption key use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for client encryption key use case: %w", err)
	}

	useCase := cryptoUseCase.NewClientEncryptionKeyUseCase(txManager, keyRepo, c.WrapProvider(), c.Logger())
	return cryptoUseCase.NewClientEncryptionKeyUseCaseWithMetrics(useCase, businessMetrics), nil
}
