// Package commands contains CLI command implementations for the application.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"gopkg.in/yaml.v3"

	"github.com/allisson/docencrypt/internal/app"
	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// closeMigrate closes the migration instance and logs any errors.
func closeMigrate(migrate *migrate.Migrate, logger *slog.Logger) {
	sourceError, databaseError := migrate.Close()
	if sourceError != nil || databaseError != nil {
		logger.Error(
			"failed to close the migrate",
			slog.Any("source_error", sourceError),
			slog.Any("database_error", databaseError),
		)
	}
}

// parseAlgorithm converts algorithm string to cryptoDomain.Algorithm type.
// Returns an error if the algorithm string is invalid.
func parseAlgorithm(algorithmStr string) (cryptoDomain.Algorithm, error) {
	switch algorithmStr {
	case "aes-gcm":
		return cryptoDomain.AESGCM, nil
	case "chacha20-poly1305":
		return cryptoDomain.ChaCha20, nil
	default:
		return "", fmt.Errorf(
			"invalid algorithm: %s (valid options: aes-gcm, chacha20-poly1305)",
			algorithmStr,
		)
	}
}

// parseKeyWrapAlgorithm converts a wrap algorithm string to cryptoDomain.KeyWrapAlgorithm.
func parseKeyWrapAlgorithm(algorithmStr string) (cryptoDomain.KeyWrapAlgorithm, error) {
	algorithm := cryptoDomain.KeyWrapAlgorithm(algorithmStr)
	if err := algorithm.Validate(); err != nil {
		return "", fmt.Errorf(
			"invalid key wrap algorithm: %s (valid options: RSA-OAEP, RSA-OAEP-256)",
			algorithmStr,
		)
	}
	return algorithm, nil
}

// LoadContainer reads a container description (rid, database_rid and client encryption
// policy) from path. Files ending in .json are decoded as JSON, anything else as YAML.
func LoadContainer(path string) (*encryptionDomain.Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read container file: %w", err)
	}

	var container encryptionDomain.Container
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &container)
	} else {
		err = yaml.Unmarshal(data, &container)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse container file: %w", err)
	}

	if container.RID == "" {
		return nil, fmt.Errorf("container file %s must set rid", path)
	}
	return &container, nil
}

// openInput opens path for reading, or returns stdin when path is empty or "-".
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonBytes))
	return err
}
