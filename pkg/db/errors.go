// pkg/db/errors.go
package db

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes the application reacts to.
const (
	codeForeignKeyViolation pq.ErrorCode = "23503"
	codeUniqueViolation     pq.ErrorCode = "23505"
	codeCheckViolation      pq.ErrorCode = "23514"
	codeLockNotAvailable    pq.ErrorCode = "55P03"
	codeNumericOutOfRange   pq.ErrorCode = "22003"
)

func pqCode(err error) (pq.ErrorCode, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code, true
	}
	return "", false
}

// IsLockTimeout reports whether err is a lock_timeout expiry.
func IsLockTimeout(err error) bool {
	code, ok := pqCode(err)
	return ok && code == codeLockNotAvailable
}

// IsUniqueViolation reports whether err violates a unique constraint.
func IsUniqueViolation(err error) bool {
	code, ok := pqCode(err)
	return ok && code == codeUniqueViolation
}

// IsCheckViolation reports whether err violates a CHECK constraint (e.g. balance >= 0).
func IsCheckViolation(err error) bool {
	code, ok := pqCode(err)
	return ok && code == codeCheckViolation
}

// IsForeignKeyViolation reports whether err references a missing row.
func IsForeignKeyViolation(err error) bool {
	code, ok := pqCode(err)
	return ok && code == codeForeignKeyViolation
}

// IsNumericOutOfRange reports whether a value did not fit its NUMERIC column.
func IsNumericOutOfRange(err error) bool {
	code, ok := pqCode(err)
	return ok && code == codeNumericOutOfRange
}
