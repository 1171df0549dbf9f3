// Package validation provides custom validation rules for the application.
package validation

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"slices"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/docencrypt/internal/errors"
)

var (
	// keyIDRegex restricts client encryption key ids to characters safe in URL paths
	keyIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]*$`)

	// keeperSchemes lists the gocloud.dev secrets keeper schemes registered by the KMS service
	keeperSchemes = []string{"base64key", "awskms", "gcpkms", "azurekeyvault", "hashivault"}
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// KeeperURL validates that a string is a gocloud.dev secrets keeper URL with a known scheme.
type KeeperURL struct {
	// Schemes overrides the accepted schemes when not empty.
	Schemes []string
}

// Validate checks the keeper URL scheme and that the URL names a key.
func (k KeeperURL) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_keeper_url_type", "keeper url must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}

	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return validation.NewError("validation_keeper_url", "must be a valid keeper url")
	}

	schemes := k.Schemes
	if len(schemes) == 0 {
		schemes = keeperSchemes
	}
	if !slices.Contains(schemes, u.Scheme) {
		return validation.NewError(
			"validation_keeper_url_scheme",
			"keeper url scheme must be one of: "+strings.Join(schemes, ", "),
		)
	}

	if u.Host == "" && strings.Trim(u.Path, "/") == "" && u.Opaque == "" {
		return validation.NewError("validation_keeper_url_key", "keeper url must name a key")
	}

	return nil
}

// KeyID validates client encryption key ids
var KeyID = validation.NewStringRuleWithError(
	func(s string) bool {
		return keyIDRegex.MatchString(s)
	},
	validation.NewError(
		"validation_key_id_format",
		"must start with a letter or digit and contain only letters, digits, '.', '_', ':' or '-'",
	),
)

// Base64 validates standard base64 with padding, the encoding used for wrapped keys on the wire.
var Base64 = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := base64.StdEncoding.DecodeString(s)
		return err == nil
	},
	validation.NewError("validation_base64", "must be valid base64-encoded data"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
