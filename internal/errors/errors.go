// Package errors defines the caller-facing error kinds surfaced by write_lp
// and the admin/last-cache APIs, in the teacher's sentinel-error idiom
// (package-level errors.New values, no external errors library).
package errors

import "errors"

// Kind classifies a *Error for callers that need to branch on error type
// (e.g. an HTTP layer mapping to status codes) without string matching.
type Kind int

const (
	KindParseError Kind = iota + 1
	KindColumnTypeMismatch
	KindCatalogUpdateError
	KindWalError
	KindDbDoesNotExist
	KindTableDoesNotExist
	KindColumnDoesNotExist
	KindNoWriteInReadOnly
)

func (k Kind) String() string {
	switch k {
	case KindParseError:
		return "ParseError"
	case KindColumnTypeMismatch:
		return "ColumnTypeMismatch"
	case KindCatalogUpdateError:
		return "CatalogUpdateError"
	case KindWalError:
		return "WalError"
	case KindDbDoesNotExist:
		return "DbDoesNotExist"
	case KindTableDoesNotExist:
		return "TableDoesNotExist"
	case KindColumnDoesNotExist:
		return "ColumnDoesNotExist"
	case KindNoWriteInReadOnly:
		return "NoWriteInReadOnly"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with a message and an optional underlying cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds a *Error of the given kind around an existing cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Sentinel values for conditions that do not carry per-occurrence context.
var (
	ErrDbDoesNotExist     = errors.New("database does not exist")
	ErrTableDoesNotExist  = errors.New("table does not exist")
	ErrColumnDoesNotExist = errors.New("column does not exist")
	ErrNoWriteInReadOnly  = errors.New("cannot write to a read-only server")

	// WAL / durability
	ErrWalClosed       = errors.New("wal is closed")
	ErrWalUploadFailed = errors.New("wal file upload failed after retries")
	ErrCorruptRecord   = errors.New("corrupt wal record: invalid length or crc")

	// Persister
	ErrCatalogLoad   = errors.New("failed to load catalog snapshot")
	ErrSnapshotLoad  = errors.New("failed to load snapshot manifest")
	ErrPersistFailed = errors.New("failed to persist object")

	// Catalog/validator
	ErrDbExists           = errors.New("database already exists")
	ErrCacheExists        = errors.New("last cache already exists with different definition")
	ErrTableBufferDrained = errors.New("partition already drained")
)
