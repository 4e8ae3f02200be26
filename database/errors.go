package database

import (
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/kbukum/voicememo/errors"
)

// FromGormError translates a GORM error into an AppError. Missing rows
// become NOT_FOUND; everything else is a retryable PERSISTENCE error.
func FromGormError(err error, op, resource, id string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound(resource, id).WithCause(err)
	}
	return errors.Persistence(op, err)
}
