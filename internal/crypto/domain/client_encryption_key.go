package domain

import (
	"time"
)

// EncryptionKeyWrapMetadata describes which KEK wraps a DEK and how.
type EncryptionKeyWrapMetadata struct {
	Type      string           // Custodian type, KeyWrapMetadataTypeKMS for gocloud keepers
	Name      string           // Human friendly KEK name
	Value     string           // KEK path, a gocloud.dev secrets keeper URL
	Algorithm KeyWrapAlgorithm // Wrap algorithm identifier
}

// Validate checks that the metadata points at a KEK with a supported wrap algorithm.
func (m EncryptionKeyWrapMetadata) Validate() error {
	if m.Value == "" {
		return ErrInvalidKeyWrapMetadata
	}
	return m.Algorithm.Validate()
}

// ClientEncryptionKey holds the persisted properties of a DEK: its wrapped bytes and the
// metadata of the KEK that wrapped it. The plaintext DEK is never persisted.
type ClientEncryptionKey struct {
	ID                       string
	EncryptionAlgorithm      Algorithm
	WrappedDataEncryptionKey []byte
	KeyWrapMetadata          EncryptionKeyWrapMetadata
	CreatedAt                time.Time
	UpdatedAt                time.Time
}
