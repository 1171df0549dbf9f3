// Package domain defines the document encryption model: per-property encryption settings,
// client encryption policies, type markers and the diagnostics sink.
package domain

import (
	"fmt"
	"slices"
	"sync"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	"github.com/allisson/docencrypt/internal/errors"
)

// IDPropertyName is the document identifier property. Its ciphertext is escaped.
const IDPropertyName = "id"

// EncryptionAlgorithm encrypts and decrypts property values with one bound key.
type EncryptionAlgorithm interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// EncryptionSettingForProperty is the immutable encryption configuration of one property.
type EncryptionSettingForProperty struct {
	clientEncryptionKeyID string
	encryptionType        cryptoDomain.EncryptionType
	containerRID          string
	databaseRID           string
	algorithm             EncryptionAlgorithm
}

// NewEncryptionSettingForProperty validates and creates a property setting.
func NewEncryptionSettingForProperty(
	clientEncryptionKeyID string,
	encryptionType cryptoDomain.EncryptionType,
	containerRID, databaseRID string,
) (*EncryptionSettingForProperty, error) {
	if clientEncryptionKeyID == "" {
		return nil, errors.Wrap(ErrInvalidEncryptionSetting, "client encryption key id is required")
	}
	if err := encryptionType.Validate(); err != nil {
		return nil, err
	}
	return &EncryptionSettingForProperty{
		clientEncryptionKeyID: clientEncryptionKeyID,
		encryptionType:        encryptionType,
		containerRID:          containerRID,
		databaseRID:           databaseRID,
	}, nil
}

// WithAlgorithm returns a copy of the setting pre-bound to alg.
func (s *EncryptionSettingForProperty) WithAlgorithm(alg EncryptionAlgorithm) *EncryptionSettingForProperty {
	c := *s
	c.algorithm = alg
	return &c
}

func (s *EncryptionSettingForProperty) ClientEncryptionKeyID() string {
	return s.clientEncryptionKeyID
}

func (s *EncryptionSettingForProperty) EncryptionType() cryptoDomain.EncryptionType {
	return s.encryptionType
}

func (s *EncryptionSettingForProperty) ContainerRID() string {
	return s.containerRID
}

func (s *EncryptionSettingForProperty) DatabaseRID() string {
	return s.databaseRID
}

// Algorithm returns the pre-bound algorithm, or nil when it must be resolved.
func (s *EncryptionSettingForProperty) Algorithm() EncryptionAlgorithm {
	return s.algorithm
}

// EncryptionSettings maps the encrypted properties of one container to their settings.
//
// A property may be listed with a nil setting; looking it up fails with
// ErrInvalidEncryptionSetting instead of skipping the property.
type EncryptionSettings struct {
	containerRID string

	mu       sync.RWMutex
	paths    []string
	settings map[string]*EncryptionSettingForProperty
}

// NewEncryptionSettings creates empty settings for a container.
func NewEncryptionSettings(containerRID string) *EncryptionSettings {
	return &EncryptionSettings{
		containerRID: containerRID,
		settings:     make(map[string]*EncryptionSettingForProperty),
	}
}

// ContainerRID returns the owning container resource id.
func (s *EncryptionSettings) ContainerRID() string {
	return s.containerRID
}

// Set lists a property. Changing the encryption type of an already configured property
// is rejected.
func (s *EncryptionSettings) Set(name string, setting *EncryptionSettingForProperty) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, listed := s.settings[name]
	if existing != nil && setting != nil && existing.encryptionType != setting.encryptionType {
		return errors.Wrap(
			ErrInvalidEncryptionSetting,
			fmt.Sprintf("encryption type of property %q cannot change", name),
		)
	}
	if !listed {
		s.paths = append(s.paths, name)
	}
	s.settings[name] = setting
	return nil
}

// Get returns the setting of a listed property.
func (s *EncryptionSettings) Get(name string) (*EncryptionSettingForProperty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	setting, ok := s.settings[name]
	if !ok || setting == nil {
		return nil, errors.Wrap(
			ErrInvalidEncryptionSetting,
			fmt.Sprintf("no encryption setting for property %q", name),
		)
	}
	return setting, nil
}

// PropertiesToEncrypt returns the listed property names in insertion order.
func (s *EncryptionSettings) PropertiesToEncrypt() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.paths)
}

// Contains reports whether name is listed.
func (s *EncryptionSettings) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.settings[name]
	return ok
}
