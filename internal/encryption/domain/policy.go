package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	"github.com/allisson/docencrypt/internal/errors"
)

// Supported policy format versions. Version 2 allows encrypting the id property.
const (
	PolicyFormatVersion1 = 1
	PolicyFormatVersion2 = 2
)

// ClientEncryptionIncludedPath configures encryption of one top-level property.
type ClientEncryptionIncludedPath struct {
	Path                  string                      `json:"path"                     yaml:"path"`
	ClientEncryptionKeyID string                      `json:"client_encryption_key_id" yaml:"client_encryption_key_id"`
	EncryptionType        cryptoDomain.EncryptionType `json:"encryption_type"          yaml:"encryption_type"`
	EncryptionAlgorithm   cryptoDomain.Algorithm      `json:"encryption_algorithm"     yaml:"encryption_algorithm"`
}

// PropertyName returns the path without its leading slash.
func (p ClientEncryptionIncludedPath) PropertyName() string {
	return strings.TrimPrefix(p.Path, "/")
}

// ClientEncryptionPolicy lists the encrypted properties of a container.
type ClientEncryptionPolicy struct {
	IncludedPaths       []ClientEncryptionIncludedPath `json:"included_paths"        yaml:"included_paths"`
	PolicyFormatVersion int                            `json:"policy_format_version" yaml:"policy_format_version"`
}

// Validate checks the policy. Failures wrap ErrInvalidEncryptionPolicy.
func (p *ClientEncryptionPolicy) Validate() error {
	err := validation.ValidateStruct(p,
		validation.Field(&p.PolicyFormatVersion,
			validation.Required,
			validation.Min(PolicyFormatVersion1),
			validation.Max(PolicyFormatVersion2),
		),
		validation.Field(&p.IncludedPaths,
			validation.Required,
			validation.Each(validation.By(p.validateIncludedPath)),
		),
	)
	if err != nil {
		return errors.Wrap(ErrInvalidEncryptionPolicy, err.Error())
	}

	seen := make(map[string]struct{}, len(p.IncludedPaths))
	for _, path := range p.IncludedPaths {
		if _, ok := seen[path.Path]; ok {
			return errors.Wrap(ErrInvalidEncryptionPolicy, fmt.Sprintf("duplicate path %q", path.Path))
		}
		seen[path.Path] = struct{}{}
	}
	return nil
}

func (p *ClientEncryptionPolicy) validateIncludedPath(value interface{}) error {
	path, ok := value.(ClientEncryptionIncludedPath)
	if !ok {
		return validation.NewError("validation_included_path_type", "must be an included path")
	}

	if !strings.HasPrefix(path.Path, "/") || len(path.Path) < 2 || strings.Contains(path.Path[1:], "/") {
		return validation.NewError(
			"validation_included_path_format",
			fmt.Sprintf("path %q must be a top-level property such as /name", path.Path),
		)
	}
	if strings.TrimSpace(path.ClientEncryptionKeyID) == "" {
		return validation.NewError("validation_included_path_key", "client encryption key id is required")
	}
	if err := path.EncryptionType.Validate(); err != nil {
		return validation.NewError("validation_included_path_type", err.Error())
	}
	if err := path.EncryptionAlgorithm.Validate(); err != nil {
		return validation.NewError("validation_included_path_algorithm", err.Error())
	}

	if path.PropertyName() == IDPropertyName {
		if p.PolicyFormatVersion < PolicyFormatVersion2 {
			return validation.NewError(
				"validation_included_path_id_version",
				"encrypting /id requires policy format version 2",
			)
		}
		if path.EncryptionType != cryptoDomain.Deterministic {
			return validation.NewError(
				"validation_included_path_id_type",
				"/id can only be encrypted deterministically",
			)
		}
	}
	return nil
}

// Fingerprint returns a stable hash of the policy content, used as a cache key.
func (p *ClientEncryptionPolicy) Fingerprint() string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "v%d", p.PolicyFormatVersion)
	for _, path := range p.IncludedPaths {
		_, _ = fmt.Fprintf(h, "|%s\x00%s\x00%s\x00%s",
			path.Path,
			path.ClientEncryptionKeyID,
			path.EncryptionType,
			path.EncryptionAlgorithm,
		)
	}
	return hex.EncodeToString(h.Sum(nil))
}
