package service

import (
	"context"
	"fmt"

	validation "github.com/jellydator/validation"
	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	customValidation "github.com/allisson/docencrypt/internal/validation"

	// Keeper drivers for every scheme accepted by customValidation.KeeperURL.
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// KMSService opens gocloud.dev secrets keepers for KEK URLs.
type KMSService interface {
	// OpenKeeper opens a keeper for keyURI. Malformed URLs and unknown schemes fail
	// with ErrInvalidKeyWrapMetadata before any provider is contacted.
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}

type kmsService struct {
	rule customValidation.KeeperURL
}

// NewKMSService creates a KMSService. schemes narrows the accepted keeper schemes;
// none means every registered driver.
func NewKMSService(schemes ...string) KMSService {
	return &kmsService{rule: customValidation.KeeperURL{Schemes: schemes}}
}

func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	if err := validation.Validate(keyURI, validation.Required, k.rule); err != nil {
		return nil, fmt.Errorf("%w: %s", cryptoDomain.ErrInvalidKeyWrapMetadata, err.Error())
	}

	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}
