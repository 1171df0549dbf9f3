package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/docencrypt/internal/crypto/usecase"
	"github.com/allisson/docencrypt/internal/encryption/http/dto"
	"github.com/allisson/docencrypt/internal/httputil"
)

// maxListLimit bounds the page size of list-keys.
const maxListLimit = 1000

// KeyWrapFlags names the KEK a client encryption key is wrapped with.
type KeyWrapFlags struct {
	KekURI    string
	KekName   string
	Algorithm string
}

func (f KeyWrapFlags) toMetadata() (cryptoDomain.EncryptionKeyWrapMetadata, error) {
	if strings.TrimSpace(f.KekURI) == "" {
		return cryptoDomain.EncryptionKeyWrapMetadata{}, fmt.Errorf("kek uri is required (flag --kek-uri or KMS_KEY_URI)")
	}

	algorithm, err := parseKeyWrapAlgorithm(f.Algorithm)
	if err != nil {
		return cryptoDomain.EncryptionKeyWrapMetadata{}, err
	}

	name := f.KekName
	if name == "" {
		name = f.KekURI
	}

	return cryptoDomain.EncryptionKeyWrapMetadata{
		Type:      cryptoDomain.KeyWrapMetadataTypeKMS,
		Name:      name,
		Value:     f.KekURI,
		Algorithm: algorithm,
	}, nil
}

// RunImportKey stores a DEK that was already wrapped by the key custodian.
// The wrapped key is passed base64 encoded. The use case unwraps it once to prove the KEK
// is reachable before anything is persisted.
//
// Requirements: Database must be migrated and the KEK must be reachable.
func RunImportKey(
	ctx context.Context,
	keyUseCase cryptoUseCase.ClientEncryptionKeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	id string,
	algorithmStr string,
	wrappedKeyB64 string,
	wrap KeyWrapFlags,
	format string,
) error {
	logger.Info("importing client encryption key",
		slog.String("key_id", id),
		slog.String("algorithm", algorithmStr),
	)

	algorithm, err := parseAlgorithm(algorithmStr)
	if err != nil {
		return err
	}

	wrapped, err := base64.StdEncoding.DecodeString(strings.TrimSpace(wrappedKeyB64))
	if err != nil {
		return fmt.Errorf("wrapped key must be base64 encoded: %w", err)
	}

	metadata, err := wrap.toMetadata()
	if err != nil {
		return err
	}

	key, err := keyUseCase.Import(ctx, &cryptoDomain.ClientEncryptionKey{
		ID:                       id,
		EncryptionAlgorithm:      algorithm,
		WrappedDataEncryptionKey: wrapped,
		KeyWrapMetadata:          metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to import client encryption key: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, dto.MapClientEncryptionKeyToResponse(key))
	}
	_, err = fmt.Fprintf(writer, "Client encryption key %s imported (%s, wrapped by %s)\n",
		key.ID, key.EncryptionAlgorithm, key.KeyWrapMetadata.Name)
	return err
}

// RunRewrapKey moves a client encryption key to another KEK. The DEK itself does not
// change, so documents encrypted with it stay readable.
//
// Requirements: Database must be migrated; both the current and the new KEK must be reachable.
func RunRewrapKey(
	ctx context.Context,
	keyUseCase cryptoUseCase.ClientEncryptionKeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	id string,
	wrap KeyWrapFlags,
	format string,
) error {
	logger.Info("rewrapping client encryption key", slog.String("key_id", id))

	metadata, err := wrap.toMetadata()
	if err != nil {
		return err
	}

	key, err := keyUseCase.Rewrap(ctx, id, metadata)
	if err != nil {
		return fmt.Errorf("failed to rewrap client encryption key: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, dto.MapClientEncryptionKeyToResponse(key))
	}
	_, err = fmt.Fprintf(writer, "Client encryption key %s rewrapped with %s\n",
		key.ID, key.KeyWrapMetadata.Name)
	return err
}

// RunListKeys prints one page of client encryption keys ordered by id.
func RunListKeys(
	ctx context.Context,
	keyUseCase cryptoUseCase.ClientEncryptionKeyUseCase,
	writer io.Writer,
	offset, limit int,
	format string,
) error {
	if err := httputil.ValidatePagination(offset, limit, maxListLimit); err != nil {
		return err
	}

	keys, err := keyUseCase.List(ctx, offset, limit)
	if err != nil {
		return fmt.Errorf("failed to list client encryption keys: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, dto.MapClientEncryptionKeysToListResponse(keys))
	}

	if len(keys) == 0 {
		_, err = fmt.Fprintln(writer, "No client encryption keys found")
		return err
	}
	for _, key := range keys {
		if _, err := fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			key.ID,
			key.EncryptionAlgorithm,
			key.KeyWrapMetadata.Name,
			key.UpdatedAt.Format("2006-01-02 15:04:05"),
		); err != nil {
			return err
		}
	}
	return nil
}
