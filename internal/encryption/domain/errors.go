package domain

import (
	"github.com/allisson/docencrypt/internal/errors"
)

// Document encryption errors.
var (
	// ErrInvalidEncryptionSetting indicates a listed property has no usable setting.
	ErrInvalidEncryptionSetting = errors.Wrap(errors.ErrInvalidConfiguration, "invalid encryption setting")

	// ErrInvalidEncryptionPolicy indicates a client encryption policy failed validation.
	ErrInvalidEncryptionPolicy = errors.Wrap(errors.ErrInvalidConfiguration, "invalid client encryption policy")

	// ErrUnsupportedType indicates a JSON value has no binary encoding.
	ErrUnsupportedType = errors.Wrap(errors.ErrInvalidInput, "unsupported value type")

	// ErrNonFiniteNumber indicates a NaN or infinite number.
	ErrNonFiniteNumber = errors.Wrap(ErrUnsupportedType, "non-finite number")

	// ErrEscapeTypeMismatch indicates id escaping was requested on a non-string value.
	ErrEscapeTypeMismatch = errors.Wrap(errors.ErrInvalidInput, "escaping requires a string value")

	// ErrInvalidFeedResponse indicates a paged result without a Documents array.
	ErrInvalidFeedResponse = errors.Wrap(errors.ErrInvalidInput, "invalid feed response")

	// ErrInvalidDocument indicates the input is not a JSON object.
	ErrInvalidDocument = errors.Wrap(errors.ErrInvalidInput, "invalid document")

	// ErrInvalidCiphertext indicates an encrypted leaf that cannot be decoded.
	ErrInvalidCiphertext = errors.Wrap(errors.ErrInvalidInput, "invalid encrypted value")
)
