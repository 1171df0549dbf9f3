// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"encoding/base64"
	"encoding/json"

	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
	customValidation "github.com/allisson/docencrypt/internal/validation"
)

// DocumentRequest carries one document and the container it belongs to.
type DocumentRequest struct {
	Container encryptionDomain.Container `json:"container"`
	Document  json.RawMessage            `json:"document"`
}

// Validate checks if the document request is valid.
// The policy itself is validated when settings are built.
func (r *DocumentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Container, validation.By(validateContainer)),
		validation.Field(&r.Document, validation.Required),
	)
}

// FeedRequest carries one page of query results and the container they were read from.
type FeedRequest struct {
	Container encryptionDomain.Container `json:"container"`
	Response  json.RawMessage            `json:"response"`
}

// Validate checks if the feed request is valid.
func (r *FeedRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Container, validation.By(validateContainer)),
		validation.Field(&r.Response, validation.Required),
	)
}

func validateContainer(value interface{}) error {
	container, _ := value.(encryptionDomain.Container)
	return validation.ValidateStruct(&container,
		validation.Field(&container.RID, validation.Required, customValidation.NotBlank),
	)
}

// KeyWrapMetadataRequest describes the KEK that wraps a data encryption key.
type KeyWrapMetadataRequest struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Value     string `json:"value"`
	Algorithm string `json:"algorithm"`
}

// Validate checks if the key wrap metadata is valid.
func (r KeyWrapMetadataRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.In(cryptoDomain.KeyWrapMetadataTypeKMS)),
		validation.Field(&r.Value, validation.Required, customValidation.KeeperURL{}),
		validation.Field(&r.Algorithm,
			validation.Required,
			validation.In(string(cryptoDomain.RSAOAEP), string(cryptoDomain.RSAOAEP256)),
		),
	)
}

// ToDomain converts the request to domain wrap metadata.
func (r KeyWrapMetadataRequest) ToDomain() cryptoDomain.EncryptionKeyWrapMetadata {
	return cryptoDomain.EncryptionKeyWrapMetadata{
		Type:      r.Type,
		Name:      r.Name,
		Value:     r.Value,
		Algorithm: cryptoDomain.KeyWrapAlgorithm(r.Algorithm),
	}
}

// ImportClientEncryptionKeyRequest contains the parameters for importing an already wrapped DEK.
type ImportClientEncryptionKeyRequest struct {
	ID                       string                 `json:"id"`
	EncryptionAlgorithm      string                 `json:"encryption_algorithm"`
	WrappedDataEncryptionKey string                 `json:"wrapped_data_encryption_key"` // base64
	KeyWrapMetadata          KeyWrapMetadataRequest `json:"key_wrap_metadata"`
}

// Validate checks if the import request is valid.
func (r *ImportClientEncryptionKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
			customValidation.KeyID,
		),
		validation.Field(&r.EncryptionAlgorithm,
			validation.Required,
			validation.In(string(cryptoDomain.AESGCM), string(cryptoDomain.ChaCha20)),
		),
		validation.Field(&r.WrappedDataEncryptionKey, validation.Required, customValidation.Base64),
		validation.Field(&r.KeyWrapMetadata),
	)
}

// ToDomain converts the request to a domain client encryption key.
// Call Validate first; an undecodable wrapped key yields an error.
func (r *ImportClientEncryptionKeyRequest) ToDomain() (*cryptoDomain.ClientEncryptionKey, error) {
	wrapped, err := base64.StdEncoding.DecodeString(r.WrappedDataEncryptionKey)
	if err != nil {
		return nil, err
	}

	return &cryptoDomain.ClientEncryptionKey{
		ID:                       r.ID,
		EncryptionAlgorithm:      cryptoDomain.Algorithm(r.EncryptionAlgorithm),
		WrappedDataEncryptionKey: wrapped,
		KeyWrapMetadata:          r.KeyWrapMetadata.ToDomain(),
	}, nil
}

// RewrapClientEncryptionKeyRequest names the KEK a client encryption key is rewrapped with.
type RewrapClientEncryptionKeyRequest struct {
	KeyWrapMetadata KeyWrapMetadataRequest `json:"key_wrap_metadata"`
}

// Validate checks if the rewrap request is valid.
func (r *RewrapClientEncryptionKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.KeyWrapMetadata),
	)
}
