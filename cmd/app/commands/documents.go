package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
	encryptionUseCase "github.com/allisson/docencrypt/internal/encryption/usecase"
)

// RunEncryptDocument encrypts the JSON document read from inputPath (stdin when empty) with
// the policy of the container described in containerPath and writes it to streams.Writer.
func RunEncryptDocument(
	ctx context.Context,
	useCase encryptionUseCase.EncryptionUseCase,
	logger *slog.Logger,
	streams IOTuple,
	containerPath string,
	inputPath string,
) error {
	container, err := LoadContainer(containerPath)
	if err != nil {
		return err
	}

	input, err := openInput(inputPath, streams.Reader)
	if err != nil {
		return err
	}

	diag := encryptionDomain.NewDiagnostics()
	out, err := useCase.Encrypt(ctx, container, input, diag)
	if err != nil {
		return fmt.Errorf("failed to encrypt document: %w", err)
	}

	if err := copyOutput(streams.Writer, out); err != nil {
		return err
	}

	encrypted, _ := diag.Counter(encryptionDomain.DiagnosticPropertiesEncrypted)
	logger.Info("document encrypted",
		slog.String("container_rid", container.RID),
		slog.Int("properties_encrypted", encrypted),
	)
	return nil
}

// RunDecryptDocument decrypts a document, or every document of a query feed response when
// feed is true, and writes the result to streams.Writer.
func RunDecryptDocument(
	ctx context.Context,
	useCase encryptionUseCase.EncryptionUseCase,
	logger *slog.Logger,
	streams IOTuple,
	containerPath string,
	inputPath string,
	feed bool,
) error {
	container, err := LoadContainer(containerPath)
	if err != nil {
		return err
	}

	input, err := openInput(inputPath, streams.Reader)
	if err != nil {
		return err
	}
	// Decrypt leaves input open on failure
	defer func() { _ = input.Close() }()

	diag := encryptionDomain.NewDiagnostics()
	var out io.ReadCloser
	if feed {
		out, err = useCase.DecryptFeedResponse(ctx, container, input, diag)
	} else {
		out, _, err = useCase.Decrypt(ctx, container, input, diag)
	}
	if err != nil {
		return fmt.Errorf("failed to decrypt document: %w", err)
	}

	if err := copyOutput(streams.Writer, out); err != nil {
		return err
	}

	decrypted, _ := diag.Counter(encryptionDomain.DiagnosticPropertiesDecrypted)
	logger.Info("document decrypted",
		slog.String("container_rid", container.RID),
		slog.Bool("feed", feed),
		slog.Int("properties_decrypted", decrypted),
	)
	return nil
}

// copyOutput writes out followed by a newline and closes it.
func copyOutput(w io.Writer, out io.ReadCloser) error {
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(w, out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	_, err := fmt.Fprintln(w)
	return err
}
