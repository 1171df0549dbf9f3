package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
)

// createTestContext creates a gin context whose request body is the JSON encoding of body.
func createTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	var raw string
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		raw = string(bodyBytes)
	}
	return createRawTestContext(method, path, raw)
}

// createRawTestContext creates a gin context with a literal request body.
func createRawTestContext(method, path, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	return c, w
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

// readerOf returns a stream over s.
func readerOf(s string) io.ReadCloser {
	return io.NopCloser(bytes.NewReader([]byte(s)))
}
