// Package http provides HTTP handlers for document encryption and client encryption key management.
package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
	"github.com/allisson/docencrypt/internal/encryption/http/dto"
	encryptionUseCase "github.com/allisson/docencrypt/internal/encryption/usecase"
	"github.com/allisson/docencrypt/internal/httputil"
	customValidation "github.com/allisson/docencrypt/internal/validation"
)

// DocumentHandler handles HTTP requests that encrypt and decrypt documents.
type DocumentHandler struct {
	encryptionUseCase encryptionUseCase.EncryptionUseCase
	logger            *slog.Logger
}

// NewDocumentHandler creates a new document handler with required dependencies.
func NewDocumentHandler(
	encryptionUseCase encryptionUseCase.EncryptionUseCase,
	logger *slog.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		encryptionUseCase: encryptionUseCase,
		logger:            logger,
	}
}

// readAll reads a transformed stream and closes it.
func readAll(rc io.ReadCloser) ([]byte, error) {
	defer func() {
		_ = rc.Close()
	}()
	return io.ReadAll(rc)
}

func (h *DocumentHandler) bindDocument(c *gin.Context) (*dto.DocumentRequest, bool) {
	var req dto.DocumentRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return nil, false
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return nil, false
	}

	return &req, true
}

// EncryptHandler encrypts the policy-listed properties of a document.
// POST /v1/documents/encrypt
// Returns 200 OK with the encrypted document.
func (h *DocumentHandler) EncryptHandler(c *gin.Context) {
	req, ok := h.bindDocument(c)
	if !ok {
		return
	}

	diag := encryptionDomain.NewDiagnostics()
	out, err := h.encryptionUseCase.Encrypt(
		c.Request.Context(),
		&req.Container,
		io.NopCloser(bytes.NewReader(req.Document)),
		diag,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	document, err := readAll(out)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.DocumentResponse{
		Document:    document,
		Diagnostics: dto.MapDiagnosticsToResponse(diag),
	})
}

// DecryptHandler decrypts the encrypted properties of a document.
// POST /v1/documents/decrypt
// Returns 200 OK with the plaintext document.
func (h *DocumentHandler) DecryptHandler(c *gin.Context) {
	req, ok := h.bindDocument(c)
	if !ok {
		return
	}

	diag := encryptionDomain.NewDiagnostics()
	out, _, err := h.encryptionUseCase.Decrypt(
		c.Request.Context(),
		&req.Container,
		io.NopCloser(bytes.NewReader(req.Document)),
		diag,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	document, err := readAll(out)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.DocumentResponse{
		Document:    document,
		Diagnostics: dto.MapDiagnosticsToResponse(diag),
	})
}

// DecryptFeedHandler decrypts every document of one page of query results.
// POST /v1/documents/decrypt-feed
// Returns 200 OK with the page, documents decrypted in place.
func (h *DocumentHandler) DecryptFeedHandler(c *gin.Context) {
	var req dto.FeedRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	diag := encryptionDomain.NewDiagnostics()
	out, err := h.encryptionUseCase.DecryptFeedResponse(
		c.Request.Context(),
		&req.Container,
		io.NopCloser(bytes.NewReader(req.Response)),
		diag,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response, err := readAll(out)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.FeedResponse{
		Response:    response,
		Diagnostics: dto.MapDiagnosticsToResponse(diag),
	})
}
