package httputil

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/docencrypt/internal/errors"
)

const (
	// DefaultPageLimit is used when a request does not set limit.
	DefaultPageLimit = 50
	// MaxPageLimit bounds the page size of API list endpoints.
	MaxPageLimit = 100
)

// ValidatePagination checks an offset/limit pair against maxLimit.
// Failures wrap ErrInvalidInput.
func ValidatePagination(offset, limit, maxLimit int) error {
	if offset < 0 || limit < 1 || limit > maxLimit {
		return apperrors.Wrapf(
			apperrors.ErrInvalidInput,
			"offset must be >= 0 and limit between 1 and %d, got offset=%d limit=%d",
			maxLimit, offset, limit,
		)
	}
	return nil
}

// ParsePagination reads the offset and limit query parameters.
// Missing values default to 0 and DefaultPageLimit; limit cannot exceed MaxPageLimit.
func ParsePagination(c *gin.Context) (offset, limit int, err error) {
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrInvalidInput, "offset must be an integer")
	}

	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPageLimit)))
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrInvalidInput, "limit must be an integer")
	}

	if err := ValidatePagination(offset, limit, MaxPageLimit); err != nil {
		return 0, 0, err
	}
	return offset, limit, nil
}
