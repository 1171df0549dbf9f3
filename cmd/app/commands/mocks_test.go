package commands

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
)

type mockClientEncryptionKeyUseCase struct {
	mock.Mock
}

func (m *mockClientEncryptionKeyUseCase) Import(
	ctx context.Context,
	key *cryptoDomain.ClientEncryptionKey,
) (*cryptoDomain.ClientEncryptionKey, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.ClientEncryptionKey), args.Error(1)
}

func (m *mockClientEncryptionKeyUseCase) Get(ctx context.Context, id string) (*cryptoDomain.ClientEncryptionKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.ClientEncryptionKey), args.Error(1)
}

func (m *mockClientEncryptionKeyUseCase) List(
	ctx context.Context,
	offset, limit int,
) ([]*cryptoDomain.ClientEncryptionKey, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cryptoDomain.ClientEncryptionKey), args.Error(1)
}

func (m *mockClientEncryptionKeyUseCase) Rewrap(
	ctx context.Context,
	id string,
	metadata cryptoDomain.EncryptionKeyWrapMetadata,
) (*cryptoDomain.ClientEncryptionKey, error) {
	args := m.Called(ctx, id, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.ClientEncryptionKey), args.Error(1)
}

type mockEncryptionUseCase struct {
	mock.Mock
}

func (m *mockEncryptionUseCase) BuildSettings(
	ctx context.Context,
	container *encryptionDomain.Container,
) (*encryptionDomain.EncryptionSettings, error) {
	args := m.Called(ctx, container)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*encryptionDomain.EncryptionSettings), args.Error(1)
}

func (m *mockEncryptionUseCase) Encrypt(
	ctx context.Context,
	container *encryptionDomain.Container,
	input io.ReadCloser,
	diag encryptionDomain.DiagnosticsSink,
) (io.ReadCloser, error) {
	args := m.Called(ctx, container, input, diag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *mockEncryptionUseCase) Decrypt(
	ctx context.Context,
	container *encryptionDomain.Container,
	input io.ReadCloser,
	diag encryptionDomain.DiagnosticsSink,
) (io.ReadCloser, int, error) {
	args := m.Called(ctx, container, input, diag)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Int(1), args.Error(2)
}

func (m *mockEncryptionUseCase) DecryptFeedResponse(
	ctx context.Context,
	container *encryptionDomain.Container,
	input io.ReadCloser,
	diag encryptionDomain.DiagnosticsSink,
) (io.ReadCloser, error) {
	args := m.Called(ctx, container, input, diag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}
