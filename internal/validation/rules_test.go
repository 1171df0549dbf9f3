package validation

import (
	"testing"

	validation "github.com/jellydator/validation"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/docencrypt/internal/errors"
)

func TestKeeperURL(t *testing.T) {
	rule := KeeperURL{}

	tests := []struct {
		name      string
		value     interface{}
		shouldErr bool
		errMsg    string
	}{
		{
			name:      "local keeper",
			value:     "base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4=",
			shouldErr: false,
		},
		{
			name:      "aws kms alias",
			value:     "awskms:///alias/docencrypt?region=us-east-1",
			shouldErr: false,
		},
		{
			name:      "gcp kms key",
			value:     "gcpkms://projects/p/locations/global/keyRings/r/cryptoKeys/k",
			shouldErr: false,
		},
		{
			name:      "vault transit key",
			value:     "hashivault://docencrypt",
			shouldErr: false,
		},
		{
			name:      "empty left to required",
			value:     "",
			shouldErr: false,
		},
		{
			name:      "unknown scheme",
			value:     "s3://bucket/key",
			shouldErr: true,
			errMsg:    "scheme must be one of",
		},
		{
			name:      "no scheme",
			value:     "just-a-key",
			shouldErr: true,
			errMsg:    "valid keeper url",
		},
		{
			name:      "no key",
			value:     "base64key://",
			shouldErr: true,
			errMsg:    "must name a key",
		},
		{
			name:      "not a string",
			value:     42,
			shouldErr: true,
			errMsg:    "must be a string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rule.Validate(tt.value)
			if tt.shouldErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKeeperURL_CustomSchemes(t *testing.T) {
	rule := KeeperURL{Schemes: []string{"base64key"}}

	assert.NoError(t, rule.Validate("base64key://a2V5"))
	assert.Error(t, rule.Validate("awskms:///alias/docencrypt"))
}

func TestKeyID(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		shouldErr bool
	}{
		{name: "simple", id: "cek1", shouldErr: false},
		{name: "with separators", id: "orders.cek-2024_01:v2", shouldErr: false},
		{name: "leading dash", id: "-cek", shouldErr: true},
		{name: "slash", id: "a/b", shouldErr: true},
		{name: "space", id: "my key", shouldErr: true},
		{name: "query chars", id: "cek?x=1", shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := KeyID.Validate(tt.id)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBase64(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		shouldErr bool
	}{
		{name: "empty skipped", value: "", shouldErr: false},
		{name: "padded", value: "dzE=", shouldErr: false},
		{name: "missing padding", value: "dzE", shouldErr: true},
		{name: "url alphabet", value: "-_-_", shouldErr: true},
		{name: "garbage", value: "not-valid-base64!@#$%", shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Base64.Validate(tt.value)
			if tt.shouldErr {
				assert.EqualError(t, err, "must be valid base64-encoded data")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNotBlank(t *testing.T) {
	assert.NoError(t, NotBlank.Validate("cek1"))
	assert.NoError(t, NotBlank.Validate(""), "empty is left to Required")
	for _, blank := range []string{"   ", "\t\t", "\n\n", " \t\n "} {
		assert.EqualError(t, NotBlank.Validate(blank), "must not be blank", "%q", blank)
	}
}

func TestWrapValidationError(t *testing.T) {
	assert.NoError(t, WrapValidationError(nil))

	err := WrapValidationError(validation.Errors{"id": validation.NewError("x", "cannot be blank")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, "id: cannot be blank.: invalid input", err.Error())
}
