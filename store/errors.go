package store

import "errors"

// Error kinds returned by every backend.
var (
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrDuplicateID            = errors.New("duplicate message id")
	ErrNotFound               = errors.New("not found")
	ErrConflictRetryExhausted = errors.New("conflict retry exhausted")
)

// An Error is returned by backends. It matches its Kind with errors.Is and
// hides the substrate error, which is kept in Err for logging.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Kind.Error()
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Errorf returns an *Error of the given kind for op.
func Errorf(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Unavailable returns an ErrStorageUnavailable error for op, or nil if err is
// nil. Errors that already carry a kind are returned unchanged.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Kind: ErrStorageUnavailable, Err: err}
}

// Kind returns the kind of err, or nil if err was not produced by a backend.
func Kind(err error) error {
	for _, k := range []error{ErrStorageUnavailable, ErrDuplicateID, ErrNotFound, ErrConflictRetryExhausted} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
