package query

import "errors"

// Resolution errors.
var (
	// ErrModuleNotFound indicates no module is registered under the path.
	ErrModuleNotFound = errors.New("query: module not found")

	// ErrQueryNotFound indicates the module has no query with that name.
	ErrQueryNotFound = errors.New("query: query not found")
)

// Registration errors.
var (
	ErrInvalidName    = errors.New("query: invalid name")
	ErrDuplicateQuery = errors.New("query: query already registered")
	ErrNilFunc        = errors.New("query: query function is nil")
)

// Binding errors. All of them indicate a bad request.
var (
	ErrTooManyArgs    = errors.New("query: too many positional arguments")
	ErrUnknownParam   = errors.New("query: unknown parameter")
	ErrMissingParam   = errors.New("query: missing required parameter")
	ErrDuplicateParam = errors.New("query: parameter given twice")
	ErrInvalidParam   = errors.New("query: invalid parameter value")
	ErrInvalidDate    = errors.New("query: invalid date")
)

// IsBadRequest reports whether err stems from invalid call arguments.
func IsBadRequest(err error) bool {
	for _, target := range []error{
		ErrTooManyArgs, ErrUnknownParam, ErrMissingParam,
		ErrDuplicateParam, ErrInvalidParam, ErrInvalidDate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is a resolution failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrModuleNotFound) || errors.Is(err, ErrQueryNotFound)
}
