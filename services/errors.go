package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "storefront-service/common/errors"
	"storefront-service/repository"
)

// translate maps repository errors onto the application taxonomy. Record
// not found becomes notFound; anything unrecognised is internal.
func translate(err error, notFound *apperrors.Error) error {
	var appErr *apperrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, repository.ErrOrderNotOpen):
		return apperrors.ErrOrderNotOpen
	default:
		return apperrors.ErrInternal.Wrap(err)
	}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
