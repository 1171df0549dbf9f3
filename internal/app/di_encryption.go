package app

import (
	"fmt"

	"github.com/allisson/docencrypt/internal/crypto/keystore"
	encryptionHTTP "github.com/allisson/docencrypt/internal/encryption/http"
	encryptionService "github.com/allisson/docencrypt/internal/encryption/service"
	encryptionUseCase "github.com/allisson/docencrypt/internal/encryption/usecase"
)

// AlgorithmProvider returns the provider that resolves per-property encryption algorithms.
func (c *Container) AlgorithmProvider() (*encryptionUseCase.AlgorithmProvider, error) {
	var err error
	c.algorithmProviderInit.Do(func() {
		c.algorithmProvider, err = c.initAlgorithmProvider()
		if err != nil {
			c.initErrors["algorithmProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["algorithmProvider"]; exists {
		return nil, storedErr
	}
	return c.algorithmProvider, nil
}

// EncryptionUseCase returns the document encryption use case.
func (c *Container) EncryptionUseCase() (encryptionUseCase.EncryptionUseCase, error) {
	var err error
	c.encryptionUseCaseInit.Do(func() {
		c.encryptionUseCase, err = c.initEncryptionUseCase()
		if err != nil {
			c.initErrors["encryptionUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["encryptionUseCase"]; exists {
		return nil, storedErr
	}
	return c.encryptionUseCase, nil
}

// DocumentHandler returns the document HTTP handler.
func (c *Container) DocumentHandler() (*encryptionHTTP.DocumentHandler, error) {
	var err error
	c.documentHandlerInit.Do(func() {
		c.documentHandler, err = c.initDocumentHandler()
		if err != nil {
			c.initErrors["documentHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["documentHandler"]; exists {
		return nil, storedErr
	}
	return c.documentHandler, nil
}

// ClientEncryptionKeyHandler returns the client encryption key HTTP handler.
func (c *Container) ClientEncryptionKeyHandler() (*encryptionHTTP.ClientEncryptionKeyHandler, error) {
	var err error
	c.keyHandlerInit.Do(func() {
		c.keyHandler, err = c.initClientEncryptionKeyHandler()
		if err != nil {
			c.initErrors["keyHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyHandler"]; exists {
		return nil, storedErr
	}
	return c.keyHandler, nil
}

// initAlgorithmProvider wires the shadow cache, the key-unwrap cache and the DEK registry.
func (c *Container) initAlgorithmProvider() (*encryptionUseCase.AlgorithmProvider, error) {
	keyRepo, err := c.ClientEncryptionKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get repository for algorithm provider: %w", err)
	}

	return encryptionUseCase.NewAlgorithmProvider(
		keyRepo,
		c.KeyStoreProvider(),
		c.ProtectedKeyCache(),
		c.DekManager(),
		c.AEADManager(),
		c.config.DEKTTL,
		c.config.DEKRefreshPercentage,
		c.Logger(),
	), nil
}

// initEncryptionUseCase creates the document encryption use case with metrics.
func (c *Container) initEncryptionUseCase() (encryptionUseCase.EncryptionUseCase, error) {
	keyRepo, err := c.ClientEncryptionKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get repository for encryption use case: %w", err)
	}

	algorithmProvider, err := c.AlgorithmProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get algorithm provider for encryption use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for encryption use case: %w", err)
	}

	logger := c.Logger()
	processor := encryptionService.NewProcessor(algorithmProvider, logger)
	useCase := encryptionUseCase.NewEncryptionUseCase(
		keyRepo,
		c.KeyStoreProvider(),
		processor,
		keystore.NewTimeToLive(c.config.EncryptionSettingsTTL),
		logger,
	)

	return encryptionUseCase.NewEncryptionUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initDocumentHandler creates the document HTTP handler.
func (c *Container) initDocumentHandler() (*encryptionHTTP.DocumentHandler, error) {
	useCase, err := c.EncryptionUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption use case for document handler: %w", err)
	}
	return encryptionHTTP.NewDocumentHandler(useCase, c.Logger()), nil
}

// initClientEncryptionKeyHandler creates the client encryption key HTTP handler.
func (c *Container) initClientEncryptionKeyHandler() (*encryptionHTTP.ClientEncryptionKeyHandler, error) {
	useCase, err := c.ClientEncryptionKeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get client encryption key use case for handler: %w", err)
	}
	return encryptionHTTP.NewClientEncryptionKeyHandler(useCase, c.Logger()), nil
}
