package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	apperrors "github.com/allisson/docencrypt/internal/errors"
)

type nopAlgorithm struct{}

func (nopAlgorithm) Encrypt(p []byte) ([]byte, error) { return p, nil }
func (nopAlgorithm) Decrypt(c []byte) ([]byte, error) { return c, nil }

func TestNewEncryptionSettingForProperty(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		s, err := NewEncryptionSettingForProperty("cek1", cryptoDomain.Deterministic, "coll1", "db1")
		require.NoError(t, err)
		assert.Equal(t, "cek1", s.ClientEncryptionKeyID())
		assert.Equal(t, cryptoDomain.Deterministic, s.EncryptionType())
		assert.Equal(t, "coll1", s.ContainerRID())
		assert.Equal(t, "db1", s.DatabaseRID())
		assert.Nil(t, s.Algorithm())
	})

	t.Run("missing key id", func(t *testing.T) {
		_, err := NewEncryptionSettingForProperty("", cryptoDomain.Deterministic, "coll1", "db1")
		assert.ErrorIs(t, err, ErrInvalidEncryptionSetting)
		assert.ErrorIs(t, err, apperrors.ErrInvalidConfiguration)
	})

	t.Run("unknown encryption type", func(t *testing.T) {
		_, err := NewEncryptionSettingForProperty("cek1", "Sometimes", "coll1", "db1")
		assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedEncryptionType)
	})

	t.Run("with algorithm copies", func(t *testing.T) {
		s, err := NewEncryptionSettingForProperty("cek1", cryptoDomain.Randomized, "coll1", "db1")
		require.NoError(t, err)

		bound := s.WithAlgorithm(nopAlgorithm{})
		assert.NotNil(t, bound.Algorithm())
		assert.Nil(t, s.Algorithm())
		assert.Equal(t, s.ClientEncryptionKeyID(), bound.ClientEncryptionKeyID())
	})
}

func TestEncryptionSettings(t *testing.T) {
	det, err := NewEncryptionSettingForProperty("cek1", cryptoDomain.Deterministic, "coll1", "db1")
	require.NoError(t, err)
	rnd, err := NewEncryptionSettingForProperty("cek1", cryptoDomain.Randomized, "coll1", "db1")
	require.NoError(t, err)

	t.Run("set and get keep insertion order", func(t *testing.T) {
		settings := NewEncryptionSettings("coll1")
		require.NoError(t, settings.Set("ssn", det))
		require.NoError(t, settings.Set("address", rnd))

		assert.Equal(t, "coll1", settings.ContainerRID())
		assert.Equal(t, []string{"ssn", "address"}, settings.PropertiesToEncrypt())

		got, err := settings.Get("ssn")
		require.NoError(t, err)
		assert.Same(t, det, got)
	})

	t.Run("encryption type cannot change", func(t *testing.T) {
		settings := NewEncryptionSettings("coll1")
		require.NoError(t, settings.Set("ssn", det))

		err := settings.Set("ssn", rnd)
		assert.ErrorIs(t, err, ErrInvalidEncryptionSetting)

		got, err := settings.Get("ssn")
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.Deterministic, got.EncryptionType())
	})

	t.Run("listed but nil faults on use", func(t *testing.T) {
		settings := NewEncryptionSettings("coll1")
		require.NoError(t, settings.Set("ssn", nil))

		assert.True(t, settings.Contains("ssn"))
		assert.Equal(t, []string{"ssn"}, settings.PropertiesToEncrypt())
		_, err := settings.Get("ssn")
		assert.ErrorIs(t, err, ErrInvalidEncryptionSetting)
	})

	t.Run("unlisted", func(t *testing.T) {
		settings := NewEncryptionSettings("coll1")
		assert.False(t, settings.Contains("ssn"))
		_, err := settings.Get("ssn")
		assert.ErrorIs(t, err, ErrInvalidEncryptionSetting)
	})

	t.Run("properties slice is a copy", func(t *testing.T) {
		settings := NewEncryptionSettings("coll1")
		require.NoError(t, settings.Set("ssn", det))

		props := settings.PropertiesToEncrypt()
		props[0] = "changed"
		assert.Equal(t, []string{"ssn"}, settings.PropertiesToEncrypt())
	})
}
