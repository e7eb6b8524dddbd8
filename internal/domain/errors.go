package domain

import "errors"

// Domain errors
var (
	// Seat errors
	ErrSeatNotFound        = errors.New("seat not found")
	ErrSeatAlreadyReserved = errors.New("seat is already reserved")
	ErrSeatProtected       = errors.New("reserved seat cannot be modified outside the release path")
	ErrDuplicateSeatNumber = errors.New("seat number already exists for this match")

	// Match errors
	ErrMatchNotFound        = errors.New("match not found")
	ErrStadiumMatchConflict = errors.New("stadium has another match around that time")

	// Invoice errors
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrItemNotFound       = errors.New("invoice item not found")
	ErrNotInvoiceOwner    = errors.New("only the invoice owner may perform this operation")
	ErrOnlyPendingInvoice = errors.New("only pending invoices can be modified")

	// Validation errors
	ErrInvalidBuyerID   = errors.New("invalid buyer id")
	ErrInvalidSeatID    = errors.New("invalid seat id")
	ErrInvalidInvoiceID = errors.New("invalid invoice id")
	ErrInvalidItemID    = errors.New("invalid invoice item id")
	ErrFullNameRequired = errors.New("full name cannot be empty")
	ErrInvalidCapacity  = errors.New("capacity must be greater than zero")
	ErrInvalidPrice     = errors.New("price cannot be negative")

	// Infrastructure errors
	ErrProcessFailed = errors.New("process failed, the operation could not be committed")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSeatNotFound) ||
		errors.Is(err, ErrMatchNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrItemNotFound)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSeatAlreadyReserved) ||
		errors.Is(err, ErrDuplicateSeatNumber) ||
		errors.Is(err, ErrStadiumMatchConflict)
}

// IsPermissionError checks if the error is a permission error
func IsPermissionError(err error) bool {
	return errors.Is(err, ErrNotInvoiceOwner) ||
		errors.Is(err, ErrOnlyPendingInvoice) ||
		errors.Is(err, ErrSeatProtected)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidBuyerID) ||
		errors.Is(err, ErrInvalidSeatID) ||
		errors.Is(err, ErrInvalidInvoiceID) ||
		errors.Is(err, ErrInvalidItemID) ||
		errors.Is(err, ErrFullNameRequired) ||
		errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrInvalidPrice)
}

// IsInfrastructureError checks if the error is an infrastructure error;
// these are safe to retry as a whole operation
func IsInfrastructureError(err error) bool {
	return errors.Is(err, ErrProcessFailed)
}
