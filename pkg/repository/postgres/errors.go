package postgres

import "errors"

// Sentinel errors returned by repository methods after translating
// driver-level failures (see TranslateError).
var (
	ErrNotFound       = errors.New("repository: record not found")
	ErrDuplicate      = errors.New("repository: duplicate record")
	ErrValidation     = errors.New("repository: validation failed")
	ErrOptimisticLock = errors.New("repository: optimistic lock conflict")
)

// TxOptions configures a transaction started via WithTransactionOptions.
type TxOptions struct {
	Isolation int
	ReadOnly  bool
}

// Isolation levels accepted by TxOptions.Isolation, mirroring database/sql's
// sql.IsolationLevel values used by the driver.
const (
	IsolationDefault = iota
	IsolationReadUncommitted
	IsolationReadCommitted
	IsolationWriteCommitted
	IsolationRepeatableRead
	IsolationSnapshot
	IsolationSerializable
	IsolationLinearizable
)
