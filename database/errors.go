package database

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/kbukum/meetingflow/errors"
)

var connectionErrorPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"driver: bad connection",
	"database is locked",
	"database table is locked",
}

// IsConnectionError reports whether err looks like a transient connection
// or locking failure that may succeed on retry.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range connectionErrorPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsNotFoundError checks if the error is a GORM record-not-found error.
func IsNotFoundError(err error) bool {
	return stderrors.Is(err, gorm.ErrRecordNotFound)
}

// FromDatabase converts a database error to an AppError.
func FromDatabase(err error, resource, id string) *errors.AppError {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound(resource, id).WithCause(err)
	}

	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Conflict(fmt.Sprintf("A %s with these details already exists.", resource)).WithCause(err)
	}

	if IsConnectionError(err) {
		return (&errors.AppError{
			Code:       errors.ErrCodeDatabaseError,
			Message:    "Database is temporarily unavailable. Please try again.",
			HTTPStatus: http.StatusServiceUnavailable,
			Retryable:  true,
		}).WithCause(err)
	}

	return errors.DatabaseError(err)
}
