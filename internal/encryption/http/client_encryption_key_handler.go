package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	cryptoUseCase "github.com/allisson/docencrypt/internal/crypto/usecase"
	"github.com/allisson/docencrypt/internal/encryption/http/dto"
	"github.com/allisson/docencrypt/internal/httputil"
	customValidation "github.com/allisson/docencrypt/internal/validation"
)

// ClientEncryptionKeyHandler handles HTTP requests for client encryption key properties.
// Plaintext DEKs never cross this API; only wrapped keys are imported and returned.
type ClientEncryptionKeyHandler struct {
	keyUseCase cryptoUseCase.ClientEncryptionKeyUseCase
	logger     *slog.Logger
}

// NewClientEncryptionKeyHandler creates a new client encryption key handler.
func NewClientEncryptionKeyHandler(
	keyUseCase cryptoUseCase.ClientEncryptionKeyUseCase,
	logger *slog.Logger,
) *ClientEncryptionKeyHandler {
	return &ClientEncryptionKeyHandler{
		keyUseCase: keyUseCase,
		logger:     logger,
	}
}

// ImportHandler stores the properties of an already wrapped DEK.
// POST /v1/client-encryption-keys
// Returns 201 Created with the stored properties.
func (h *ClientEncryptionKeyHandler) ImportHandler(c *gin.Context) {
	var req dto.ImportClientEncryptionKeyRequest

	// Parse and bind JSON
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	// Validate request
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	key, err := req.ToDomain()
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 wrapped key: %w", err), h.logger)
		return
	}

	imported, err := h.keyUseCase.Import(c.Request.Context(), key)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapClientEncryptionKeyToResponse(imported))
}

// GetHandler retrieves client encryption key properties by id.
// GET /v1/client-encryption-keys/:id
func (h *ClientEncryptionKeyHandler) GetHandler(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		httputil.HandleBadRequestGin(c, fmt.Errorf("client encryption key id cannot be empty"), h.logger)
		return
	}

	key, err := h.keyUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapClientEncryptionKeyToResponse(key))
}

// ListHandler retrieves client encryption keys with pagination support.
// GET /v1/client-encryption-keys?offset=0&limit=50
func (h *ClientEncryptionKeyHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	keys, err := h.keyUseCase.List(c.Request.Context(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapClientEncryptionKeysToListResponse(keys))
}

// RewrapHandler rewraps a client encryption key with another KEK.
// POST /v1/client-encryption-keys/:id/rewrap
// Returns 200 OK with the updated properties.
func (h *ClientEncryptionKeyHandler) RewrapHandler(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		httputil.HandleBadRequestGin(c, fmt.Errorf("client encryption key id cannot be empty"), h.logger)
		return
	}

	var req dto.RewrapClientEncryptionKeyRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	key, err := h.keyUseCase.Rewrap(c.Request.Context(), id, req.KeyWrapMetadata.ToDomain())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapClientEncryptionKeyToResponse(key))
}
