package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	"github.com/allisson/docencrypt/internal/crypto/keystore"
	encryptionDomain "github.com/allisson/docencrypt/internal/encryption/domain"
	apperrors "github.com/allisson/docencrypt/internal/errors"
)

const tracerName = "github.com/allisson/docencrypt/internal/encryption/usecase"

// cachedSettings is one settings cache entry.
type cachedSettings struct {
	settings  *encryptionDomain.EncryptionSettings
	createdAt time.Time
}

// encryptionUseCase implements EncryptionUseCase.
type encryptionUseCase struct {
	keys       ClientEncryptionKeyReader
	prefetcher KeyPrefetcher
	processor  DocumentProcessor
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time

	settingsTTL *keystore.TimeToLive
	settings    sync.Map // map[string]*cachedSettings

	sweepMu   sync.Mutex
	nextSweep time.Time
}

// NewEncryptionUseCase creates an EncryptionUseCase. Built settings are cached per
// container and policy fingerprint for settingsTTL. When prefetcher is not nil, the DEK of
// every key a policy references is unwrapped while its settings are built.
func NewEncryptionUseCase(
	keys ClientEncryptionKeyReader,
	prefetcher KeyPrefetcher,
	processor DocumentProcessor,
	settingsTTL *keystore.TimeToLive,
	logger *slog.Logger,
) EncryptionUseCase {
	return &encryptionUseCase{
		keys:        keys,
		prefetcher:  prefetcher,
		processor:   processor,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
		settingsTTL: settingsTTL,
	}
}

func (u *encryptionUseCase) cached(key string) (*encryptionDomain.EncryptionSettings, bool) {
	v, ok := u.settings.Load(key)
	if !ok {
		return nil, false
	}
	entry := v.(*cachedSettings)
	ttl := u.settingsTTL.Get()
	if ttl <= 0 || !u.now().Before(entry.createdAt.Add(ttl)) {
		u.settings.CompareAndDelete(key, v)
		return nil, false
	}
	return entry.settings, true
}

// storeSettings caches settings under key. Expired entries of other containers are swept at
// most once per TTL, so the cache never outgrows the containers seen within one TTL.
func (u *encryptionUseCase) storeSettings(key string, settings *encryptionDomain.EncryptionSettings) {
	ttl := u.settingsTTL.Get()
	if ttl <= 0 {
		return
	}
	now := u.now()
	u.settings.Store(key, &cachedSettings{settings: settings, createdAt: now})

	u.sweepMu.Lock()
	defer u.sweepMu.Unlock()
	if now.Before(u.nextSweep) {
		return
	}
	u.nextSweep = now.Add(ttl)
	u.settings.Range(func(k, v any) bool {
		if !now.Before(v.(*cachedSettings).createdAt.Add(ttl)) {
			u.settings.CompareAndDelete(k, v)
		}
		return true
	})
}

// prefetch warms the DEK of every key in keys. Custodian failures are left for the first
// encrypt or decrypt to report; only cancellation fails the build.
func (u *encryptionUseCase) prefetch(ctx context.Context, keys []*cryptoDomain.ClientEncryptionKey) error {
	if u.prefetcher == nil {
		return nil
	}
	for _, key := range keys {
		err := u.prefetcher.PrefetchUnwrapKey(ctx, key.KeyWrapMetadata.Value, key.WrappedDataEncryptionKey)
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		u.logger.Warn("client encryption key prefetch failed",
			slog.String("client_encryption_key_id", key.ID),
			slog.Any("error", err),
		)
	}
	return nil
}

// BuildSettings validates the policy, checks every referenced key and returns the settings.
func (u *encryptionUseCase) BuildSettings(
	ctx context.Context,
	container *encryptionDomain.Container,
) (*encryptionDomain.EncryptionSettings, error) {
	if container == nil || container.RID == "" {
		return nil, apperrors.Wrap(encryptionDomain.ErrInvalidEncryptionSetting, "container rid is required")
	}

	cacheKey := container.SettingsCacheKey()
	if settings, ok := u.cached(cacheKey); ok {
		return settings, nil
	}

	policy := &container.Policy
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	settings := encryptionDomain.NewEncryptionSettings(container.RID)
	var referenced []*cryptoDomain.ClientEncryptionKey
	seen := make(map[string]struct{})
	for _, path := range policy.IncludedPaths {
		props, err := u.keys.Get(ctx, path.ClientEncryptionKeyID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: path %s: %w", encryptionDomain.ErrInvalidEncryptionSetting, path.Path, err)
			}
			return nil, err
		}
		if props.EncryptionAlgorithm != path.EncryptionAlgorithm {
			return nil, apperrors.Wrapf(
				encryptionDomain.ErrInvalidEncryptionSetting,
				"path %s uses %s but client encryption key %q is %s",
				path.Path,
				path.EncryptionAlgorithm,
				props.ID,
				props.EncryptionAlgorithm,
			)
		}
		if _, ok := seen[props.ID]; !ok {
			seen[props.ID] = struct{}{}
			referenced = append(referenced, props)
		}

		setting, err := encryptionDomain.NewEncryptionSettingForProperty(
			path.ClientEncryptionKeyID,
			path.EncryptionType,
			container.RID,
			container.DatabaseRID,
		)
		if err != nil {
			return nil, err
		}
		if err := settings.Set(path.PropertyName(), setting); err != nil {
			return nil, err
		}
	}

	if err := u.prefetch(ctx, referenced); err != nil {
		return nil, err
	}

	u.storeSettings(cacheKey, settings)
	u.logger.Debug("encryption settings built",
		slog.String("container_rid", container.RID),
		slog.Int("properties", len(policy.IncludedPaths)),
	)
	return settings, nil
}

func (u *encryptionUseCase) startSpan(
	ctx context.Context,
	name string,
	container *encryptionDomain.Container,
) (context.Context, trace.Span) {
	rid := ""
	if container != nil {
		rid = container.RID
	}
	return u.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("container.rid", rid)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// drain reads input to the end, leaving it open.
func drain(input io.Reader) {
	_, _ = io.Copy(io.Discard, input)
}

// Encrypt encrypts one document. input is always closed.
func (u *encryptionUseCase) Encrypt(
	ctx context.Context,
	container *encryptionDomain.Container,
	input io.ReadCloser,
	diag encryptionDomain.DiagnosticsSink,
) (out io.ReadCloser, err error) {
	ctx, span := u.startSpan(ctx, "EncryptionUseCase.Encrypt", container)
	defer func() {
		endSpan(span, err)
	}()

	settings, err := u.BuildSettings(ctx, container)
	if err != nil {
		_ = input.Close()
		return nil, err
	}
	return u.processor.Encrypt(ctx, input, settings, diag)
}

// Decrypt decrypts one document and returns the number of encrypted properties visited.
func (u *encryptionUseCase) Decrypt(
	ctx context.Context,
	container *encryptionDomain.Container,
	input io.ReadCloser,
	diag encryptionDomain.DiagnosticsSink,
) (out io.ReadCloser, count int, err error) {
	ctx, span := u.startSpan(ctx, "EncryptionUseCase.Decrypt", container)
	defer func() {
		span.SetAttributes(attribute.Int("properties.decrypted", count))
		endSpan(span, err)
	}()

	settings, err := u.BuildSettings(ctx, container)
	if err != nil {
		drain(input)
		return nil, 0, err
	}
	return u.processor.Decrypt(ctx, input, settings, diag)
}

// DecryptFeedResponse decrypts every document of a paged query result.
func (u *encryptionUseCase) DecryptFeedResponse(
	ctx context.Context,
	container *encryptionDomain.Container,
	input io.ReadCloser,
	diag encryptionDomain.DiagnosticsSink,
) (out io.ReadCloser, err error) {
	ctx, span := u.startSpan(ctx, "EncryptionUseCase.DecryptFeedResponse", container)
	defer func() {
		endSpan(span, err)
	}()

	settings, err := u.BuildSettings(ctx, container)
	if err != nil {
		drain(input)
		return nil, err
	}
	return u.processor.DecryptFeedResponse(ctx, input, settings, diag)
}
