package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Sentinel errors surfaced by transactional repository operations so the
// service layer can map them to typed domain errors.
var (
	ErrWaveClosed      = errors.New("wave not open for enrollment")
	ErrDuplicatePhone  = errors.New("phone number already registered")
	ErrDuplicateCode   = errors.New("code already in use")
	ErrCapacityFull    = errors.New("wave capacity reached")
	ErrAlreadyEnrolled = errors.New("student already enrolled in wave")
	ErrExceedsBalance  = errors.New("payment exceeds remaining balance")
	ErrScheduleTaken   = errors.New("resource already booked for this slot")
	ErrLevelReferenced = errors.New("level referenced by existing waves")
	ErrTxRetryable     = errors.New("transaction aborted, retry")
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// isRetryable reports serialization failures and deadlocks, which the
// caller may retry from scratch.
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// txErr classifies an error raised inside an open transaction. Postgres
// can abort with a serialization failure or deadlock on any statement,
// not just at commit; those become ErrTxRetryable so the caller keeps
// the retry signal. Everything else is wrapped with the operation name.
func txErr(op string, err error) error {
	if isRetryable(err) {
		return ErrTxRetryable
	}
	return fmt.Errorf("%s: %w", op, err)
}
