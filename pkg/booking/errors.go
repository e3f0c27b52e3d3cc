package booking

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the booking service.
var (
	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingRoomNotFound  = errors.New("booking room not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrCartNotFound         = errors.New("cart not found")
	ErrCartRoomNotFound     = errors.New("cart room not found")
	ErrLedgerEntryNotFound  = errors.New("ledger entry not found")
	ErrRoomUnavailable      = errors.New("room unavailable")
	ErrCartLimitExceeded    = errors.New("cart limit exceeded")
	ErrLedgerCoverageGap    = errors.New("ledger coverage gap")
	ErrLedgerEntryHeld      = errors.New("ledger entry held by a booking")
	ErrDuplicateLedgerEntry = errors.New("duplicate ledger entry")
	ErrRoomExists           = errors.New("room already exists")
	ErrRoomInUse            = errors.New("room linked to bookings")
	ErrRoomAlreadyInBooking = errors.New("room already in booking")
	ErrRoomAlreadyInCart    = errors.New("room already in cart")
	ErrTransientConflict    = errors.New("transient conflict")

	ErrInvalidUserID             = errors.New("invalid user id")
	ErrInvalidHotelID            = errors.New("invalid hotel id")
	ErrInvalidRoomID             = errors.New("invalid room id")
	ErrInvalidBookingID          = errors.New("invalid booking id")
	ErrInvalidBookingRoomID      = errors.New("invalid booking room id")
	ErrInvalidCartID             = errors.New("invalid cart id")
	ErrInvalidConfirmationNumber = errors.New("invalid confirmation number")
	ErrInvalidPrice              = errors.New("invalid price")
	ErrInvalidDate               = errors.New("invalid date")
	ErrInvalidDateRange          = errors.New("invalid date range")
	ErrInvalidGuestCount         = errors.New("invalid guest count")
	ErrInvalidHorizon            = errors.New("invalid horizon")
	ErrInvalidBookingFilter      = errors.New("invalid booking filter")
	ErrEmptyRoomSet              = errors.New("empty room set")
	ErrDuplicateRoom             = errors.New("duplicate room in request")
	ErrSpecialRequestsTooLong    = errors.New("special requests too long")
	ErrRoomHotelMismatch         = errors.New("room does not belong to hotel")
	ErrLastBookingRoom           = errors.New("cannot remove the last room of a booking")
	ErrInvalidServiceConfig      = errors.New("invalid service config")
)

// ErrorClass groups errors by how callers should react to them.
type ErrorClass string

const (
	ClassNotFound          ErrorClass = "not_found"
	ClassConflict          ErrorClass = "conflict"
	ClassInvalidRequest    ErrorClass = "invalid_request"
	ClassTransientConflict ErrorClass = "transient_conflict"
	ClassUnexpected        ErrorClass = "unexpected"
)

var (
	notFoundErrors = []error{
		ErrBookingNotFound,
		ErrBookingRoomNotFound,
		ErrRoomNotFound,
		ErrCartNotFound,
		ErrCartRoomNotFound,
		ErrLedgerEntryNotFound,
	}
	conflictErrors = []error{
		ErrRoomUnavailable,
		ErrCartLimitExceeded,
		ErrLedgerCoverageGap,
		ErrLedgerEntryHeld,
		ErrDuplicateLedgerEntry,
		ErrRoomExists,
		ErrRoomInUse,
		ErrRoomAlreadyInBooking,
		ErrRoomAlreadyInCart,
	}
	invalidRequestErrors = []error{
		ErrInvalidUserID,
		ErrInvalidHotelID,
		ErrInvalidRoomID,
		ErrInvalidBookingID,
		ErrInvalidBookingRoomID,
		ErrInvalidCartID,
		ErrInvalidConfirmationNumber,
		ErrInvalidPrice,
		ErrInvalidDate,
		ErrInvalidDateRange,
		ErrInvalidGuestCount,
		ErrInvalidHorizon,
		ErrInvalidBookingFilter,
		ErrEmptyRoomSet,
		ErrDuplicateRoom,
		ErrSpecialRequestsTooLong,
		ErrRoomHotelMismatch,
		ErrLastBookingRoom,
	}
)

// Classify maps an error onto the caller-facing taxonomy.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransientConflict):
		return ClassTransientConflict
	case matchesAny(err, notFoundErrors):
		return ClassNotFound
	case matchesAny(err, conflictErrors):
		return ClassConflict
	case matchesAny(err, invalidRequestErrors):
		return ClassInvalidRequest
	default:
		return ClassUnexpected
	}
}

// IsRetryable reports whether the caller may retry the same request unchanged.
func IsRetryable(err error) bool {
	return Classify(err) == ClassTransientConflict
}

// IsNotFound reports whether err names an absent booking, room, or cart.
func IsNotFound(err error) bool {
	return Classify(err) == ClassNotFound
}

// IsConflict reports whether err is an expected business conflict.
func IsConflict(err error) bool {
	return Classify(err) == ClassConflict
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
