package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keeperError struct {
	URL string
}

func (e keeperError) Error() string { return "keeper unavailable: " + e.URL }

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))
	assert.Nil(t, Wrapf(nil, "ignored %d", 1))

	wrapped := Wrap(ErrNotFound, "client encryption key not found")
	assert.EqualError(t, wrapped, "client encryption key not found: not found")
	assert.ErrorIs(t, wrapped, ErrNotFound)

	formatted := Wrapf(ErrInvalidInput, "property %q at offset %d", "ssn", 12)
	assert.EqualError(t, formatted, `property "ssn" at offset 12: invalid input`)
	assert.ErrorIs(t, formatted, ErrInvalidInput)
}

func TestIs_CategoriesStayDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrConflict,
		ErrInvalidInput,
		ErrForbidden,
		ErrInvalidConfiguration,
		ErrUnsupported,
	}

	for _, target := range sentinels {
		layered := fmt.Errorf("decrypt document: %w", Wrap(target, "property /ssn"))
		for _, other := range sentinels {
			assert.Equal(t, target == other, Is(layered, other), "%v vs %v", target, other)
		}
	}
}

func TestAs(t *testing.T) {
	err := Wrap(keeperError{URL: "awskms:///alias/a"}, "failed to unwrap key")

	var target keeperError
	require.True(t, As(err, &target))
	assert.Equal(t, "awskms:///alias/a", target.URL)
	assert.False(t, As(New("plain"), &target))
}

func TestNew(t *testing.T) {
	err := New("document is not a json object")
	assert.EqualError(t, err, "document is not a json object")
	assert.False(t, errors.Is(err, New("document is not a json object")))
}
