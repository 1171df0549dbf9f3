package dto

import (
	"encoding/json"
	"time"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
)

// KeyWrapMetadataResponse describes the KEK that wraps a client encryption key.
type KeyWrapMetadataResponse struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Value     string `json:"value"`
	Algorithm string `json:"algorithm"`
}

// ClientEncryptionKeyResponse represents client encryption key properties in API responses.
// The wrapped key is serialized as base64.
type ClientEncryptionKeyResponse struct {
	ID                       string                  `json:"id"`
	EncryptionAlgorithm      string                  `json:"encryption_algorithm"`
	WrappedDataEncryptionKey []byte                  `json:"wrapped_data_encryption_key"`
	KeyWrapMetadata          KeyWrapMetadataResponse `json:"key_wrap_metadata"`
	CreatedAt                time.Time               `json:"created_at"`
	UpdatedAt                time.Time               `json:"updated_at"`
}

// ListClientEncryptionKeysResponse represents a paginated list of client encryption keys.
type ListClientEncryptionKeysResponse struct {
	Data []ClientEncryptionKeyResponse `json:"data"`
}

// MapClientEncryptionKeyToResponse converts domain key properties to an API response.
func MapClientEncryptionKeyToResponse(key *cryptoDomain.ClientEncryptionKey) ClientEncryptionKeyResponse {
	return ClientEncryptionKeyResponse{
		ID:                       key.ID,
		EncryptionAlgorithm:      string(key.EncryptionAlgorithm),
		WrappedDataEncryptionKey: key.WrappedDataEncryptionKey,
		KeyWrapMetadata: KeyWrapMetadataResponse{
			Type:      key.KeyWrapMetadata.Type,
			Name:      key.KeyWrapMetadata.Name,
			Value:     key.KeyWrapMetadata.Value,
			Algorithm: string(key.KeyWrapMetadata.Algorithm),
		},
		CreatedAt: key.CreatedAt,
		UpdatedAt: key.UpdatedAt,
	}
}

// MapClientEncryptionKeysToListResponse converts a slice of domain keys to a list response.
func MapClientEncryptionKeysToListResponse(keys []*cryptoDomain.ClientEncryptionKey) ListClientEncryptionKeysResponse {
	data := make([]ClientEncryptionKeyResponse, 0, len(keys))
	for _, key := range keys {
		data = append(data, MapClientEncryptionKeyToResponse(key))
	}

	return ListClientEncryptionKeysResponse{
		Data: data,
	}
}

// DocumentResponse carries a transformed document and the diagnostics recorded for it.
type DocumentResponse struct {
	Document    json.RawMessage     `json:"document"`
	Diagnostics DiagnosticsResponse `json:"diagnostics"`
}

// FeedResponse carries a decrypted page of query results.
type FeedResponse struct {
	Response    json.RawMessage     `json:"response"`
	Diagnostics DiagnosticsResponse `json:"diagnostics"`
}

// DiagnosticsResponse reports property counts and timings of one operation.
type DiagnosticsResponse struct {
	PropertiesEncrypted *int  `json:"properties_encrypted,omitempty"`
	PropertiesDecrypted *int  `json:"properties_decrypted,omitempty"`
	DurationMs          int64 `json:"duration_ms"`
}

// MapDiagnosticsToResponse converts recorded diagnostics to an API response.
func MapDiagnosticsToResponse(diag *encryptionDomain.Diagnostics) DiagnosticsResponse {
	var response DiagnosticsResponse

	if n, ok := diag.Counter(encryptionDomain.DiagnosticPropertiesEncrypted); ok {
		response.PropertiesEncrypted = &n
	}
	if n, ok := diag.Counter(encryptionDomain.DiagnosticPropertiesDecrypted); ok {
		response.PropertiesDecrypted = &n
	}

	if d, ok := diag.Duration(encryptionDomain.DiagnosticEncryptDuration); ok {
		response.DurationMs = d.Milliseconds()
	} else if d, ok := diag.Duration(encryptionDomain.DiagnosticDecryptDuration); ok {
		response.DurationMs = d.Milliseconds()
	}

	return response
}
