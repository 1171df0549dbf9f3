package service

import (
	"fmt"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
)

// cipherFactories builds the AEAD for each supported algorithm from a KeySize key.
var cipherFactories = map[cryptoDomain.Algorithm]func(key []byte) (AEAD, error){
	cryptoDomain.AESGCM: func(key []byte) (AEAD, error) {
		return NewAESGCM(key)
	},
	cryptoDomain.ChaCha20: func(key []byte) (AEAD, error) {
		return NewChaCha20Poly1305(key)
	},
}

// AEADManagerService implements AEADManager.
type AEADManagerService struct{}

// NewAEADManager creates a new AEADManagerService.
func NewAEADManager() *AEADManagerService {
	return &AEADManagerService{}
}

// CreateCipher returns the AEAD for alg keyed with key.
// Fails with ErrUnsupportedAlgorithm for unknown algorithms and ErrInvalidKeySize unless
// key is KeySize bytes.
func (am *AEADManagerService) CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error) {
	factory, ok := cipherFactories[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cryptoDomain.ErrUnsupportedAlgorithm, alg)
	}
	if len(key) != cryptoDomain.KeySize {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d",
			cryptoDomain.ErrInvalidKeySize, alg, cryptoDomain.KeySize, len(key))
	}
	return factory(key)
}
