package ledger

import "errors"

// Sentinel errors returned by this package, wrapped via
// fmt.Errorf("...: %w", ...). Failures from the underlying log store are
// wrapped with the pager package's sentinels instead.
var (
	// ErrSerialization is returned when a transaction cannot be encoded,
	// i.e. its Description is longer than the 255 bytes the one-byte length
	// prefix can express. Nothing is written.
	ErrSerialization = errors.New("ledger: serialization error")

	// ErrDeserialization is returned when a stored entry cannot be
	// decoded; the ledger's reads stop at the first such row.
	ErrDeserialization = errors.New("ledger: deserialization error")

	// ErrInsufficientLimit is returned when a debit would violate
	// balance + limit >= value.
	ErrInsufficientLimit = errors.New("ledger: insufficient limit")

	// ErrArithmeticOverflow is returned when a balance computation would
	// overflow int64.
	ErrArithmeticOverflow = errors.New("ledger: arithmetic overflow")

	// ErrInvalidDescription is returned when a description is empty or
	// longer than 10 characters.
	ErrInvalidDescription = errors.New("ledger: invalid description")

	// ErrUnknownAccount names an account id the deployment does not
	// recognize. No function in this package returns it; httpapi answers
	// unknown ids with 404 directly.
	ErrUnknownAccount = errors.New("ledger: unknown account")
)
